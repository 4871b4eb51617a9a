package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/livepeer/catalyst-vod/config"
)

// Pebble is an embedded store for single node deployments.
type Pebble struct {
	db *pebble.DB
	// pebble has no conditional writes, so check-then-set goes through this
	mu sync.Mutex
}

func pebbleAssetKey(id string) []byte { return []byte("asset/" + id) }
func pebbleBaseNameKey(name string) []byte { return []byte("asset-key/" + name) }
func pebbleJobResultKey(jobID string) []byte { return []byte("job/" + jobID) }

// OpenPebble opens (or creates) a database in dir. A nil fs means the OS filesystem.
func OpenPebble(dir string, fs vfs.FS) (*Pebble, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) get(key []byte) ([]byte, error) {
	data, closer, err := p.db.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	// the slice is only valid until the closer is closed
	return append([]byte(nil), data...), nil
}

func (p *Pebble) exists(key []byte) (bool, error) {
	_, err := p.get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func pebbleGetJSON[T any](p *Pebble, key []byte, what string) (T, error) {
	var v T
	data, err := p.get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return v, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("error reading %s: %w", what, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("error decoding %s: %w", what, err)
	}
	return v, nil
}

func (p *Pebble) CreateAsset(_ context.Context, a Asset) error {
	if err := validateAsset(a); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range [][]byte{pebbleAssetKey(a.ID), pebbleBaseNameKey(a.BaseName)} {
		exists, err := p.exists(k)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", k, err)
		}
		if exists {
			return fmt.Errorf("%s: %w", k, ErrConflict)
		}
	}
	b := p.db.NewBatch()
	defer b.Close()
	if err := b.Set(pebbleAssetKey(a.ID), data, nil); err != nil {
		return err
	}
	if err := b.Set(pebbleBaseNameKey(a.BaseName), []byte(a.ID), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (p *Pebble) GetAsset(_ context.Context, id string) (Asset, error) {
	return pebbleGetJSON[Asset](p, pebbleAssetKey(id), "asset "+id)
}

func (p *Pebble) GetAssetByKey(ctx context.Context, baseName string) (Asset, error) {
	id, err := p.get(pebbleBaseNameKey(baseName))
	if errors.Is(err, pebble.ErrNotFound) {
		return Asset{}, fmt.Errorf("asset key %s: %w", baseName, ErrNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("error reading asset key: %w", err)
	}
	return p.GetAsset(ctx, string(id))
}

func (p *Pebble) UpdateAsset(ctx context.Context, id string, u AssetUpdate) (Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, err := p.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	a = u.Apply(a, config.Clock.Now())
	data, err := json.Marshal(a)
	if err != nil {
		return Asset{}, err
	}
	if err := p.db.Set(pebbleAssetKey(id), data, pebble.Sync); err != nil {
		return Asset{}, fmt.Errorf("error writing asset: %w", err)
	}
	return a, nil
}

func (p *Pebble) DeleteAsset(ctx context.Context, id string) (Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, err := p.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	b := p.db.NewBatch()
	defer b.Close()
	if err := b.Delete(pebbleAssetKey(id), nil); err != nil {
		return Asset{}, err
	}
	if err := b.Delete(pebbleBaseNameKey(a.BaseName), nil); err != nil {
		return Asset{}, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return Asset{}, fmt.Errorf("error deleting asset: %w", err)
	}
	return a, nil
}

func (p *Pebble) CreateJobResult(_ context.Context, r JobResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	key := pebbleJobResultKey(r.JobID)
	p.mu.Lock()
	defer p.mu.Unlock()
	exists, err := p.exists(key)
	if err != nil {
		return fmt.Errorf("error reading job result: %w", err)
	}
	if exists {
		return fmt.Errorf("job result %s: %w", r.JobID, ErrConflict)
	}
	return p.db.Set(key, data, pebble.Sync)
}

func (p *Pebble) GetJobResult(_ context.Context, jobID string) (JobResult, error) {
	return pebbleGetJSON[JobResult](p, pebbleJobResultKey(jobID), "job result "+jobID)
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
