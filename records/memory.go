package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/livepeer/catalyst-vod/cache"
	"github.com/livepeer/catalyst-vod/config"
)

// Memory keeps records in process. Everything is lost on restart.
type Memory struct {
	// serialises writes that touch both asset maps
	mu     sync.Mutex
	assets *cache.Cache[Asset]
	keys   *cache.Cache[string]
	jobs   *cache.Cache[JobResult]
}

func NewMemory() *Memory {
	return &Memory{
		assets: cache.New[Asset](),
		keys:   cache.New[string](),
		jobs:   cache.New[JobResult](),
	}
}

func (m *Memory) CreateAsset(_ context.Context, a Asset) error {
	if err := validateAsset(a); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets.Lookup(a.ID); ok {
		return fmt.Errorf("asset %s: %w", a.ID, ErrConflict)
	}
	if !m.keys.StoreIfAbsent(a.BaseName, a.ID) {
		return fmt.Errorf("asset key %s: %w", a.BaseName, ErrConflict)
	}
	m.assets.Store(a.ID, a)
	return nil
}

func (m *Memory) GetAsset(_ context.Context, id string) (Asset, error) {
	a, ok := m.assets.Lookup(id)
	if !ok {
		return Asset{}, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *Memory) GetAssetByKey(ctx context.Context, baseName string) (Asset, error) {
	id, ok := m.keys.Lookup(baseName)
	if !ok {
		return Asset{}, fmt.Errorf("asset key %s: %w", baseName, ErrNotFound)
	}
	return m.GetAsset(ctx, id)
}

func (m *Memory) UpdateAsset(_ context.Context, id string, u AssetUpdate) (Asset, error) {
	a, ok := m.assets.Update(id, func(a Asset) Asset {
		return u.Apply(a, config.Clock.Now())
	})
	if !ok {
		return Asset{}, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *Memory) DeleteAsset(_ context.Context, id string) (Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets.Lookup(id)
	if !ok {
		return Asset{}, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	m.assets.Remove(id)
	m.keys.Remove(a.BaseName)
	return a, nil
}

func (m *Memory) CreateJobResult(_ context.Context, r JobResult) error {
	if !m.jobs.StoreIfAbsent(r.JobID, r) {
		return fmt.Errorf("job result %s: %w", r.JobID, ErrConflict)
	}
	return nil
}

func (m *Memory) GetJobResult(_ context.Context, jobID string) (JobResult, error) {
	r, ok := m.jobs.Lookup(jobID)
	if !ok {
		return JobResult{}, fmt.Errorf("job result %s: %w", jobID, ErrNotFound)
	}
	return r, nil
}

func (m *Memory) Close() error { return nil }
