package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	mu  sync.Mutex
	ids []int64
}

func (s *recordingScheduler) Enqueue(assetID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, assetID)
	return true
}

func TestParseSymbolList(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
		wantErr error
	}{
		{"normalizes and dedupes", `["aapl", " msft ", "AAPL", "brk.b"]`, []string{"AAPL", "MSFT", "BRK.B"}, nil},
		{"forex and index symbols", `["EURUSD=X", "^GSPC", "BTC-USD"]`, []string{"EURUSD=X", "^GSPC", "BTC-USD"}, nil},
		{"non-string element rejects the list", `["AAPL", 42, "MSFT"]`, nil, models.ErrInvalidAssetSymbol},
		{"null element", `["AAPL", null]`, nil, models.ErrInvalidAssetSymbol},
		{"empty string", `["AAPL", "  "]`, nil, models.ErrInvalidAssetSymbol},
		{"too long", `["` + strings.Repeat("A", models.MaxSymbolLength+1) + `"]`, nil, models.ErrInvalidAssetSymbol},
		{"bad characters", `["AA PL"]`, nil, models.ErrInvalidAssetSymbol},
		{"empty list", `[]`, nil, models.ErrValidation},
		{"not an array", `{"symbols": ["AAPL"]}`, nil, models.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSymbolList([]byte(tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, models.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestAssets_InvalidListWritesNothing(t *testing.T) {
	h := newHarness(t)
	sched := &recordingScheduler{}
	h.assets.SetScheduler(sched)

	_, err := h.assets.RequestAssets(context.Background(), []string{"AAPL", "", "MSFT"})
	require.ErrorIs(t, err, models.ErrInvalidAssetSymbol)

	all, err := h.store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, sched.ids)
}

func TestRequestAssets_RegistersAndEnqueues(t *testing.T) {
	h := newHarness(t)
	sched := &recordingScheduler{}
	h.assets.SetScheduler(sched)
	ctx := context.Background()

	first, err := h.assets.RequestAssets(ctx, []string{"aapl", "MSFT"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "AAPL", first[0].Symbol)
	assert.Equal(t, models.AssetStatusPending, first[0].Status)

	again, err := h.assets.RequestAssets(ctx, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, again[0].ID)

	assert.Equal(t, []int64{first[0].ID, first[1].ID, first[0].ID}, sched.ids)
}

func TestRequestAssets_ConcurrentSameSymbol(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assets, err := h.assets.RequestAssets(ctx, []string{"AAPL"})
			if assert.NoError(t, err) {
				ids[i] = assets[0].ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := h.store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteAsset_Cascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := trainedAsset(t, h, "AAPL")
	_, err := h.prediction.Generate(ctx, a.ID, true)
	require.NoError(t, err)

	require.NoError(t, h.assets.DeleteAsset(ctx, "aapl"))

	_, err = h.assets.GetAsset(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrUnknownAsset)
	_, err = h.store.GetCurrentModel(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrNoCurrentModel)
	count, err := h.store.CountDistinctDates(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = h.assets.DeleteAsset(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	// re-requesting starts a fresh pending asset
	again := h.register(t, "AAPL")
	assert.NotEqual(t, a.ID, again.ID)
	assert.Equal(t, models.AssetStatusPending, again.Status)
}
