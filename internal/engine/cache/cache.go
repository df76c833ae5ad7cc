// internal/engine/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creator-match/internal/common/logger"
	"creator-match/internal/common/metrics"
	"creator-match/internal/models"
)

// Tier selects a freshness class. Callers never build tier prefixes themselves.
type Tier string

const (
	TierResult Tier = "result"
	TierEntity Tier = "entity"
)

type Cache struct {
	store  Store
	ttls   map[Tier]time.Duration
	now    func() time.Time
	logger logger.Logger
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(store Store, resultTTL, entityTTL time.Duration, log logger.Logger, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	for _, ttl := range []time.Duration{resultTTL, entityTTL} {
		if ttl < 0 {
			return nil, fmt.Errorf("cache TTLs must not be negative")
		}
		if ttl > 0 && ttl < time.Second {
			return nil, fmt.Errorf("cache TTL %s is below the one second resolution", ttl)
		}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	c := &Cache{
		store: store,
		ttls: map[Tier]time.Duration{
			TierResult: resultTTL,
			TierEntity: entityTTL,
		},
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{"component": "cache"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) TTL(tier Tier) time.Duration {
	return c.ttls[tier]
}

// Get decodes the live entry for key into out. Missing, expired and
// undecodable entries all report false.
func (c *Cache) Get(ctx context.Context, tier Tier, key string, out interface{}) bool {
	entry, ok, err := c.store.Get(ctx, tierKey(tier, key))
	if err != nil {
		c.logger.Warn("cache read failed", map[string]interface{}{
			"tier":  string(tier),
			"key":   key,
			"error": err.Error(),
		})
		metrics.CacheLookups.WithLabelValues(string(tier), "error").Inc()
		return false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(string(tier), "miss").Inc()
		return false
	}
	if entry.Expired(c.now()) {
		_ = c.store.Delete(ctx, tierKey(tier, key))
		metrics.CacheLookups.WithLabelValues(string(tier), "expired").Inc()
		return false
	}
	if err := json.Unmarshal(entry.Value, out); err != nil {
		c.logger.Warn("cache entry undecodable", map[string]interface{}{
			"tier":  string(tier),
			"key":   key,
			"error": err.Error(),
		})
		metrics.CacheLookups.WithLabelValues(string(tier), "error").Inc()
		return false
	}
	metrics.CacheLookups.WithLabelValues(string(tier), "hit").Inc()
	return true
}

// Put stores value under the tier's TTL. A tier with zero TTL is disabled.
func (c *Cache) Put(ctx context.Context, tier Tier, key string, value interface{}) error {
	return c.PutWithTTL(ctx, tier, key, value, c.ttls[tier])
}

// PutWithTTL stores value for ttl rounded up to whole seconds.
func (c *Cache) PutWithTTL(ctx context.Context, tier Tier, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", tier, err)
	}
	return c.store.Set(ctx, tierKey(tier, key), Entry{
		Value:      raw,
		CachedAt:   c.now().UTC(),
		TTLSeconds: int64((ttl + time.Second - 1) / time.Second),
	})
}

func (c *Cache) Invalidate(ctx context.Context, tier Tier, key string) error {
	return c.store.Delete(ctx, tierKey(tier, key))
}

// StartSweeper periodically removes expired entries from stores that hold
// them. It returns when ctx is done.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	sw, ok := c.store.(Sweeper)
	if !ok || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sw.Sweep(c.now()); n > 0 {
					c.logger.Debug("swept expired cache entries", map[string]interface{}{"removed": n})
				}
			}
		}
	}()
}

// --- typed accessors ---

func (c *Cache) GetResult(ctx context.Context, fingerprint string) (*models.AnalysisRecord, bool) {
	var rec models.AnalysisRecord
	if !c.Get(ctx, TierResult, fingerprint, &rec) {
		return nil, false
	}
	return &rec, true
}

func (c *Cache) PutResult(ctx context.Context, rec *models.AnalysisRecord) error {
	return c.Put(ctx, TierResult, rec.Fingerprint, rec)
}

func (c *Cache) GetEntity(ctx context.Context, candidateID string, windowDays int) (*models.ActivityWindow, bool) {
	var w models.ActivityWindow
	if !c.Get(ctx, TierEntity, EntityKey(candidateID, windowDays), &w) {
		return nil, false
	}
	return &w, true
}

func (c *Cache) PutEntity(ctx context.Context, candidateID string, w models.ActivityWindow) error {
	return c.Put(ctx, TierEntity, EntityKey(candidateID, w.WindowDays), w)
}

// GetQuery returns the candidates a search query produced while still fresh.
func (c *Cache) GetQuery(ctx context.Context, query string, maxResults int) ([]models.Candidate, bool) {
	var out []models.Candidate
	if !c.Get(ctx, TierEntity, QueryKey(query, maxResults), &out) {
		return nil, false
	}
	return out, true
}

func (c *Cache) PutQuery(ctx context.Context, query string, maxResults int, candidates []models.Candidate) error {
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return c.Put(ctx, TierEntity, QueryKey(query, maxResults), candidates)
}

func tierKey(tier Tier, key string) string {
	return string(tier) + ":" + key
}
