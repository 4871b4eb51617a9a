package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/livepeer/catalyst-vod/config"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "vod:"
	// optimistic transaction retries for UpdateAsset
	redisMaxTxRetries = 5
)

func redisAssetKey(id string) string { return redisKeyPrefix + "asset:" + id }
func redisBaseNameKey(name string) string { return redisKeyPrefix + "asset-key:" + name }
func redisJobResultKey(jobID string) string { return redisKeyPrefix + "job:" + jobID }

// Redis stores records as JSON values with a base name → id index key.
type Redis struct {
	rdb *redis.Client
}

func OpenRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}
	r := NewRedis(redis.NewClient(opts))
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		r.rdb.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return r, nil
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) CreateAsset(ctx context.Context, a Asset) error {
	if err := validateAsset(a); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, redisBaseNameKey(a.BaseName), a.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("error writing asset key: %w", err)
	}
	if !ok {
		return fmt.Errorf("asset key %s: %w", a.BaseName, ErrConflict)
	}
	ok, err = r.rdb.SetNX(ctx, redisAssetKey(a.ID), data, 0).Result()
	if err != nil || !ok {
		// release the index so the base name isn't stranded
		r.rdb.Del(ctx, redisBaseNameKey(a.BaseName))
	}
	if err != nil {
		return fmt.Errorf("error writing asset: %w", err)
	}
	if !ok {
		return fmt.Errorf("asset %s: %w", a.ID, ErrConflict)
	}
	return nil
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON[T any](ctx context.Context, c redisGetter, key, what string) (T, error) {
	var v T
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
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

func (r *Redis) GetAsset(ctx context.Context, id string) (Asset, error) {
	return getJSON[Asset](ctx, r.rdb, redisAssetKey(id), "asset "+id)
}

func (r *Redis) GetAssetByKey(ctx context.Context, baseName string) (Asset, error) {
	id, err := r.rdb.Get(ctx, redisBaseNameKey(baseName)).Result()
	if errors.Is(err, redis.Nil) {
		return Asset{}, fmt.Errorf("asset key %s: %w", baseName, ErrNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("error reading asset key: %w", err)
	}
	return r.GetAsset(ctx, id)
}

func (r *Redis) UpdateAsset(ctx context.Context, id string, u AssetUpdate) (Asset, error) {
	key := redisAssetKey(id)
	var updated Asset
	txf := func(tx *redis.Tx) error {
		a, err := getJSON[Asset](ctx, tx, key, "asset "+id)
		if err != nil {
			return err
		}
		updated = u.Apply(a, config.Clock.Now())
		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}
	for i := 0; i < redisMaxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Asset{}, err
		}
		return updated, nil
	}
	return Asset{}, fmt.Errorf("error updating asset %s: too much contention", id)
}

func (r *Redis) DeleteAsset(ctx context.Context, id string) (Asset, error) {
	a, err := r.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisAssetKey(id))
		pipe.Del(ctx, redisBaseNameKey(a.BaseName))
		return nil
	})
	if err != nil {
		return Asset{}, fmt.Errorf("error deleting asset: %w", err)
	}
	return a, nil
}

func (r *Redis) CreateJobResult(ctx context.Context, res JobResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, redisJobResultKey(res.JobID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("error writing job result: %w", err)
	}
	if !ok {
		return fmt.Errorf("job result %s: %w", res.JobID, ErrConflict)
	}
	return nil
}

func (r *Redis) GetJobResult(ctx context.Context, jobID string) (JobResult, error) {
	return getJSON[JobResult](ctx, r.rdb, redisJobResultKey(jobID), "job result "+jobID)
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
