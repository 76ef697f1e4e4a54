package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/domain/ports/repository"
	"healthtrack-billing/internal/infra/metrics"
	red "healthtrack-billing/internal/infra/redis"
)

var _ repository.TierRepository = (*tierRepoCacheDecorator)(nil)

// tierRepoCacheDecorator caches the tier catalog in Redis. The catalog is
// small and nearly static, so a flat TTL plus write invalidation is
// sufficient.
type tierRepoCacheDecorator struct {
	inner repository.TierRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewTierRepoCacheDecorator(inner repository.TierRepository, cache red.RedisClient, ttl time.Duration) repository.TierRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &tierRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *tierRepoCacheDecorator) FindByCode(ctx context.Context, code model.TierCode) (*model.Tier, error) {
	key := fmt.Sprintf("tier:%s", code)
	// Redis being down is a miss, not a failure.
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var t model.Tier
		if json.Unmarshal([]byte(val), &t) == nil {
			metrics.IncCacheRequest("tier", "hit")
			return &t, nil
		}
	}

	metrics.IncCacheRequest("tier", "miss")
	t, err := d.inner.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(t); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return t, nil
}

func (d *tierRepoCacheDecorator) ListActive(ctx context.Context) ([]*model.Tier, error) {
	const key = "tiers:active"
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var tiers []*model.Tier
		if json.Unmarshal([]byte(val), &tiers) == nil {
			metrics.IncCacheRequest("tier_list", "hit")
			return tiers, nil
		}
	}

	metrics.IncCacheRequest("tier_list", "miss")
	tiers, err := d.inner.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(tiers); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return tiers, nil
}

// Writes invalidate both the per-code entry and the list.
func (d *tierRepoCacheDecorator) Save(ctx context.Context, t *model.Tier) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("tier:%s", t.Code), "tiers:active")
	return d.inner.Save(ctx, t)
}
