// Package memory provides an in-process implementation of the repository stores.
// It backs STORE_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/repository"
)

type priceKey struct {
	assetID int64
	date    string
	source  models.Source
}

// Store keeps assets, prices, models and predictions behind one mutex so that
// deletes cascade atomically, as they do in postgres.
type Store struct {
	mu sync.RWMutex

	nextAssetID      int64
	nextModelID      int64
	nextPredictionID int64

	assets        map[int64]*models.Asset
	symbols       map[string]int64
	prices        map[priceKey]models.PricePoint
	models        map[int64]*models.Model
	currentModels map[int64]int64
	predictions   []models.Prediction

	now func() time.Time
}

var (
	_ repository.AssetStore      = (*Store)(nil)
	_ repository.PriceStore      = (*Store)(nil)
	_ repository.ModelStore      = (*Store)(nil)
	_ repository.PredictionStore = (*Store)(nil)
)

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		assets:        make(map[int64]*models.Asset),
		symbols:       make(map[string]int64),
		prices:        make(map[priceKey]models.PricePoint),
		models:        make(map[int64]*models.Model),
		currentModels: make(map[int64]int64),
		now:           time.Now,
	}
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func copyAsset(a *models.Asset) *models.Asset {
	c := *a
	return &c
}

// ---- assets ----

func (s *Store) RegisterIfAbsent(_ context.Context, symbol string) (*models.Asset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.symbols[symbol]; ok {
		return copyAsset(s.assets[id]), false, nil
	}

	s.nextAssetID++
	now := s.now()
	a := &models.Asset{
		ID:        s.nextAssetID,
		Symbol:    symbol,
		Category:  models.AssetCategoryUnset,
		Status:    models.AssetStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.assets[a.ID] = a
	s.symbols[symbol] = a.ID
	return copyAsset(a), true, nil
}

func (s *Store) GetBySymbol(_ context.Context, symbol string) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.symbols[symbol]
	if !ok {
		return nil, repository.ErrAssetNotFound
	}
	return copyAsset(s.assets[id]), nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, repository.ErrAssetNotFound
	}
	return copyAsset(a), nil
}

func (s *Store) listAssets(keep func(*models.Asset) bool) []*models.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Asset
	for _, a := range s.assets {
		if keep(a) {
			result = append(result, copyAsset(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result
}

func (s *Store) ListActive(_ context.Context) ([]*models.Asset, error) {
	return s.listAssets(func(a *models.Asset) bool { return a.IsActive() }), nil
}

func (s *Store) ListAll(_ context.Context) ([]*models.Asset, error) {
	return s.listAssets(func(*models.Asset) bool { return true }), nil
}

func (s *Store) ListPendingDue(_ context.Context, now time.Time) ([]*models.Asset, error) {
	result := s.listAssets(func(a *models.Asset) bool {
		return a.Status == models.AssetStatusPending && (a.NextAttempt == nil || !a.NextAttempt.After(now))
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) update(id int64, fn func(a *models.Asset)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return repository.ErrAssetNotFound
	}
	fn(a)
	a.UpdatedAt = s.now()
	return nil
}

func (s *Store) SetStatus(_ context.Context, id int64, status models.AssetStatus) error {
	return s.update(id, func(a *models.Asset) { a.Status = status })
}

func (s *Store) SetMetadata(_ context.Context, id int64, meta models.AssetMetadata) error {
	return s.update(id, func(a *models.Asset) {
		if a.Description == nil && meta.Description != "" {
			d := meta.Description
			a.Description = &d
		}
		if a.Category == models.AssetCategoryUnset && meta.Category != "" {
			a.Category = meta.Category
		}
		if a.Currency == nil && meta.Currency != "" {
			c := meta.Currency
			a.Currency = &c
		}
	})
}

func (s *Store) RecordIngestionFailure(_ context.Context, id int64, nextAttempt time.Time) (int, error) {
	var streak int
	err := s.update(id, func(a *models.Asset) {
		a.FailureStreak++
		next := nextAttempt
		a.NextAttempt = &next
		streak = a.FailureStreak
	})
	return streak, err
}

func (s *Store) RecordIngestionSuccess(_ context.Context, id int64, nextAttempt *time.Time) error {
	return s.update(id, func(a *models.Asset) {
		a.FailureStreak = 0
		if nextAttempt == nil {
			a.NextAttempt = nil
			return
		}
		next := *nextAttempt
		a.NextAttempt = &next
	})
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return repository.ErrAssetNotFound
	}
	delete(s.assets, id)
	delete(s.symbols, a.Symbol)
	delete(s.currentModels, id)
	for k := range s.prices {
		if k.assetID == id {
			delete(s.prices, k)
		}
	}
	for mid, m := range s.models {
		if m.AssetID == id {
			delete(s.models, mid)
		}
	}
	kept := s.predictions[:0]
	for _, p := range s.predictions {
		if p.AssetID != id {
			kept = append(kept, p)
		}
	}
	s.predictions = kept
	return nil
}

// ---- prices ----

func (s *Store) UpsertPrices(_ context.Context, prices []models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prices {
		if _, ok := s.assets[p.AssetID]; !ok {
			return repository.ErrAssetNotFound
		}
	}
	for _, p := range prices {
		p.Date = models.DateOnly(p.Date)
		s.prices[priceKey{assetID: p.AssetID, date: dateKey(p.Date), source: p.Source}] = p
	}
	return nil
}

func sortPrices(prices []models.PricePoint) {
	sort.Slice(prices, func(i, j int) bool {
		if !prices[i].Date.Equal(prices[j].Date) {
			return prices[i].Date.Before(prices[j].Date)
		}
		return prices[i].Source < prices[j].Source
	})
}

func (s *Store) assetPrices(assetID int64) []models.PricePoint {
	var result []models.PricePoint
	for k, p := range s.prices {
		if k.assetID == assetID {
			result = append(result, p)
		}
	}
	sortPrices(result)
	return result
}

func (s *Store) GetPrices(_ context.Context, assetID int64, start, end time.Time) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, end = models.DateOnly(start), models.DateOnly(end)
	var result []models.PricePoint
	for _, p := range s.assetPrices(assetID) {
		if !p.Date.Before(start) && !p.Date.After(end) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) GetRecentPrices(_ context.Context, assetID int64, days int) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.assetPrices(assetID)
	if days <= 0 || len(all) == 0 {
		return all, nil
	}

	seen := 0
	cut := len(all)
	for i := len(all) - 1; i >= 0; i-- {
		if i == len(all)-1 || !all[i].Date.Equal(all[i+1].Date) {
			seen++
			if seen > days {
				break
			}
		}
		cut = i
	}
	return all[cut:], nil
}

func (s *Store) CountDistinctDates(_ context.Context, assetID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dates := make(map[string]struct{})
	for k := range s.prices {
		if k.assetID == assetID {
			dates[k.date] = struct{}{}
		}
	}
	return len(dates), nil
}

func (s *Store) GetLatestDate(_ context.Context, assetID int64) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *time.Time
	for k, p := range s.prices {
		if k.assetID != assetID {
			continue
		}
		if latest == nil || p.Date.After(*latest) {
			d := p.Date
			latest = &d
		}
	}
	return latest, nil
}

// ---- models ----

func (s *Store) PromoteModel(_ context.Context, m *models.Model) (*models.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[m.AssetID]
	if !ok {
		return nil, repository.ErrAssetGone
	}
	if !a.IsActive() {
		return nil, repository.ErrAssetNotActive
	}

	s.nextModelID++
	stored := *m
	stored.ID = s.nextModelID
	stored.CreatedAt = s.now()
	stored.TrainingCutoff = models.DateOnly(m.TrainingCutoff)
	s.models[stored.ID] = &stored
	s.currentModels[m.AssetID] = stored.ID

	out := stored
	return &out, nil
}

func (s *Store) GetCurrentModel(_ context.Context, assetID int64) (*models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.currentModels[assetID]
	if !ok {
		return nil, repository.ErrNoCurrentModel
	}
	m := *s.models[id]
	return &m, nil
}

func (s *Store) ListModels(_ context.Context, assetID int64) ([]*models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Model
	for _, m := range s.models {
		if m.AssetID == assetID {
			c := *m
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastTrained.Equal(result[j].LastTrained) {
			return result[i].LastTrained.After(result[j].LastTrained)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// ---- predictions ----

func (s *Store) AppendPredictions(_ context.Context, predictions []models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range predictions {
		if _, ok := s.assets[p.AssetID]; !ok {
			return repository.ErrAssetNotFound
		}
	}
	for _, p := range predictions {
		s.nextPredictionID++
		p.ID = s.nextPredictionID
		p.Date = models.DateOnly(p.Date)
		p.CreatedAt = s.now()
		s.predictions = append(s.predictions, p)
	}
	return nil
}

// newer reports whether a was written after b. IDs break created_at ties.
func newer(a, b models.Prediction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (s *Store) GetLatestPredictions(_ context.Context, assetID int64, start, end time.Time) ([]models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, end = models.DateOnly(start), models.DateOnly(end)

	type key struct {
		date   string
		target models.Target
	}
	latest := make(map[key]models.Prediction)
	for _, p := range s.predictions {
		if p.AssetID != assetID || p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		k := key{date: dateKey(p.Date), target: p.Target}
		if cur, ok := latest[k]; !ok || newer(p, cur) {
			latest[k] = p
		}
	}

	result := make([]models.Prediction, 0, len(latest))
	for _, p := range latest {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Target < result[j].Target
	})
	return result, nil
}

func (s *Store) ListPredictionHistory(_ context.Context, assetID int64, date time.Time, target models.Target) ([]models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = models.DateOnly(date)
	var result []models.Prediction
	for _, p := range s.predictions {
		if p.AssetID == assetID && p.Target == target && p.Date.Equal(date) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return newer(result[j], result[i]) })
	return result, nil
}
