// Package lease provides per-key exclusive leases. The pipeline keys them by asset
// so ingestion upserts and training runs for one asset never overlap.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrHeld is returned by TryAcquire when another holder owns the lease.
var ErrHeld = errors.New("lease is held")

// Release gives a lease back. Calling it more than once is a no-op.
type Release func()

// Locker hands out exclusive leases by key
type Locker interface {
	// Acquire blocks until the lease is held or ctx is done.
	Acquire(ctx context.Context, key string) (Release, error)
	// TryAcquire returns ErrHeld instead of waiting.
	TryAcquire(ctx context.Context, key string) (Release, error)
}

// AssetKey is the lease key guarding an asset's price writes and reads
func AssetKey(assetID int64) string {
	return fmt.Sprintf("asset:%d", assetID)
}

// TrainingKey is the lease key held for the whole of an asset's training run
func TrainingKey(assetID int64) string {
	return fmt.Sprintf("training:%d", assetID)
}

// LocalLocker serializes holders within one process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker creates a LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	for {
		release, wait := l.try(key)
		if release != nil {
			return release, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string) (Release, error) {
	release, _ := l.try(key)
	if release == nil {
		return nil, ErrHeld
	}
	return release, nil
}

// try takes the lease if free. Otherwise it returns a channel closed on release.
func (l *LocalLocker) try(key string) (Release, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, busy := l.held[key]; busy {
		return nil, ch
	}
	ch := make(chan struct{})
	l.held[key] = ch

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == ch {
				delete(l.held, key)
			}
			close(ch)
		})
	}, nil
}
