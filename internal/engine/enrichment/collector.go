// internal/engine/enrichment/collector.go
package enrichment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"creator-match/internal/common/logger"
	"creator-match/internal/engine/geo"
	"creator-match/internal/engine/quota"
	"creator-match/internal/models"
)

// ActivityFetcher is the activity side of the provider boundary.
type ActivityFetcher interface {
	FetchRecentActivity(ctx context.Context, candidateID string, windowDays int) ([]models.ActivityItem, error)
}

type QuotaReserver interface {
	Reserve(cost int) (*quota.Token, error)
	Release(token *quota.Token)
	Exhaust()
}

type EntityCache interface {
	GetEntity(ctx context.Context, candidateID string, windowDays int) (*models.ActivityWindow, bool)
	PutEntity(ctx context.Context, candidateID string, w models.ActivityWindow) error
}

type Config struct {
	Workers      int
	WindowDays   int
	FetchCost    int
	TopTags      int
	KeepDegraded bool
}

type Options struct {
	WindowDays int
}

type Stats struct {
	Requested   int
	Enriched    int
	FromCache   int
	Degraded    int
	Failed      int
	QuotaDenied bool
}

type Collector struct {
	config  Config
	fetcher ActivityFetcher
	quota   QuotaReserver
	cache   EntityCache
	places  *geo.Table
	now     func() time.Time
	logger  logger.Logger
}

type Option func(*Collector)

func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

func New(config Config, fetcher ActivityFetcher, q QuotaReserver, cache EntityCache, places *geo.Table, log logger.Logger, opts ...Option) *Collector {
	if config.Workers < 1 {
		config.Workers = 4
	}
	if config.WindowDays < 1 {
		config.WindowDays = 30
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	c := &Collector{
		config:  config,
		fetcher: fetcher,
		quota:   q,
		cache:   cache,
		places:  places,
		now:     time.Now,
		logger:  log.WithFields(map[string]interface{}{"component": "enrichment"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type slot struct {
	enriched models.EnrichedCandidate
	ok       bool
	degraded bool
	cached   bool
}

// Enrich attaches an activity window to each candidate. It never fails:
// candidates whose window cannot be obtained are dropped, or kept with a
// flagged empty window when KeepDegraded is set. Output keeps input order.
func (c *Collector) Enrich(ctx context.Context, candidates []models.Candidate, opts Options) ([]models.EnrichedCandidate, Stats) {
	windowDays := opts.WindowDays
	if windowDays < 1 {
		windowDays = c.config.WindowDays
	}

	stats := Stats{Requested: len(candidates)}
	slots := make([]slot, len(candidates))
	var quotaDenied atomic.Bool
	var warnOnce sync.Once

	var g errgroup.Group
	g.SetLimit(c.config.Workers)
	for i, cand := range candidates {
		g.Go(func() error {
			slots[i] = c.enrichOne(ctx, cand, windowDays, &quotaDenied, &warnOnce)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.EnrichedCandidate, 0, len(candidates))
	for _, s := range slots {
		switch {
		case s.ok:
			stats.Enriched++
			if s.cached {
				stats.FromCache++
			}
			out = append(out, s.enriched)
		case s.degraded && c.config.KeepDegraded:
			stats.Degraded++
			out = append(out, s.enriched)
		default:
			stats.Failed++
		}
	}
	stats.QuotaDenied = quotaDenied.Load()

	c.logger.Info("enrichment finished", map[string]interface{}{
		"requested":   stats.Requested,
		"enriched":    stats.Enriched,
		"fromCache":   stats.FromCache,
		"degraded":    stats.Degraded,
		"failed":      stats.Failed,
		"quotaDenied": stats.QuotaDenied,
	})
	return out, stats
}

func (c *Collector) enrichOne(ctx context.Context, cand models.Candidate, windowDays int, denied *atomic.Bool, warnOnce *sync.Once) slot {
	if c.cache != nil {
		if w, ok := c.cache.GetEntity(ctx, cand.ID, windowDays); ok {
			return slot{enriched: models.EnrichedCandidate{Candidate: cand, Activity: *w, FromCache: true}, ok: true, cached: true}
		}
	}

	failed := slot{
		enriched: models.EnrichedCandidate{
			Candidate: cand,
			Activity: models.ActivityWindow{
				WindowDays: windowDays,
				ComputedAt: c.now().UTC(),
				Degraded:   true,
			},
		},
		degraded: true,
	}

	if ctx.Err() != nil {
		return failed
	}
	if denied.Load() {
		return failed
	}

	var token *quota.Token
	if c.quota != nil {
		t, err := c.quota.Reserve(c.config.FetchCost)
		if err != nil {
			denied.Store(true)
			warnOnce.Do(func() {
				c.logger.Warn("activity quota denied, remaining candidates served from cache only", map[string]interface{}{
					"candidateId": cand.ID,
					"error":       err.Error(),
				})
			})
			return failed
		}
		token = t
	}

	items, err := c.fetcher.FetchRecentActivity(ctx, cand.ID, windowDays)
	if errors.Is(err, quota.ErrProviderExhausted) {
		if c.quota != nil {
			c.quota.Exhaust()
		}
		denied.Store(true)
		warnOnce.Do(func() {
			c.logger.Warn("activity provider quota exhausted, remaining candidates served from cache only", map[string]interface{}{
				"candidateId": cand.ID,
				"error":       err.Error(),
			})
		})
		return failed
	}
	if err != nil {
		if c.quota != nil {
			c.quota.Release(token)
		}
		c.logger.Warn("activity fetch failed", map[string]interface{}{
			"candidateId": cand.ID,
			"error":       err.Error(),
		})
		return failed
	}

	w := Aggregate(items, windowDays, c.now(), c.places, c.config.TopTags, cand.Description)
	if c.cache != nil {
		if err := c.cache.PutEntity(ctx, cand.ID, w); err != nil {
			c.logger.Warn("failed to cache activity window", map[string]interface{}{
				"candidateId": cand.ID,
				"error":       err.Error(),
			})
		}
	}
	return slot{enriched: models.EnrichedCandidate{Candidate: cand, Activity: w}, ok: true}
}
