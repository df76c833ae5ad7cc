// internal/engine/discovery/discovery.go
package discovery

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"creator-match/internal/common/logger"
	"creator-match/internal/engine/quota"
	"creator-match/internal/models"
)

var ErrNoProviderResponse = errors.New("search provider did not answer any query")

// Searcher is the search side of the provider boundary.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.Candidate, error)
}

type QuotaReserver interface {
	Reserve(cost int) (*quota.Token, error)
	Release(token *quota.Token)
	Exhaust()
}

// QueryCache holds the candidate list each query produced.
type QueryCache interface {
	GetQuery(ctx context.Context, query string, maxResults int) ([]models.Candidate, bool)
	PutQuery(ctx context.Context, query string, maxResults int, candidates []models.Candidate) error
}

type Config struct {
	Workers         int
	MaxQueries      int
	PerQueryResults int
	QueryCost       int
}

type Options struct {
	MaxResults   int
	LookbackDays int
}

// Result carries the merged candidates and how they were obtained.
type Result struct {
	Candidates  []models.Candidate
	Queries     int
	Issued      int
	Failed      int
	CacheHits   int
	QuotaDenied bool
}

type Discovery struct {
	config   Config
	searcher Searcher
	quota    QuotaReserver
	cache    QueryCache
	logger   logger.Logger
}

func New(config Config, searcher Searcher, q QuotaReserver, cache QueryCache, log logger.Logger) *Discovery {
	if config.Workers < 1 {
		config.Workers = 4
	}
	if config.PerQueryResults < 1 {
		config.PerQueryResults = 10
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Discovery{
		config:   config,
		searcher: searcher,
		quota:    q,
		cache:    cache,
		logger:   log.WithFields(map[string]interface{}{"component": "discovery"}),
	}
}

type outcome struct {
	candidates []models.Candidate
	err        error
	issued     bool
	exhausted  bool
}

// Discover runs the profile's queries in bounded batches until MaxResults
// unique candidates are collected or queries run out. Quota denial switches
// the rest of the run to cache-only; it is never an error by itself.
func (d *Discovery) Discover(ctx context.Context, profile models.BusinessProfile, opts Options) (*Result, error) {
	queries := BuildQueries(profile, d.config.MaxQueries)
	res := &Result{Queries: len(queries)}
	if opts.MaxResults <= 0 {
		return res, nil
	}

	seen := make(map[string]struct{})
	var lastErr error

	for start := 0; start < len(queries) && len(res.Candidates) < opts.MaxResults; start += d.config.Workers {
		if ctx.Err() != nil {
			break
		}
		end := start + d.config.Workers
		if end > len(queries) {
			end = len(queries)
		}
		batch := queries[start:end]
		outcomes := d.runBatch(ctx, batch, res)

		for i, o := range outcomes {
			if o.issued {
				res.Issued++
			}
			if o.exhausted {
				res.QuotaDenied = true
				continue
			}
			if o.err != nil {
				res.Failed++
				lastErr = o.err
				d.logger.Warn("search query failed", map[string]interface{}{
					"query": batch[i],
					"error": o.err.Error(),
				})
				continue
			}
			for _, c := range o.candidates {
				if c.ID == "" || c.Followers < 0 {
					continue
				}
				if _, dup := seen[c.ID]; dup {
					continue
				}
				seen[c.ID] = struct{}{}
				res.Candidates = append(res.Candidates, c)
				if len(res.Candidates) == opts.MaxResults {
					break
				}
			}
			if len(res.Candidates) == opts.MaxResults {
				break
			}
		}
	}

	d.logger.Info("discovery finished", map[string]interface{}{
		"queries":     res.Queries,
		"issued":      res.Issued,
		"failed":      res.Failed,
		"cacheHits":   res.CacheHits,
		"quotaDenied": res.QuotaDenied,
		"candidates":  len(res.Candidates),
	})

	if res.Issued > 0 && res.Failed == res.Issued && len(res.Candidates) == 0 {
		return res, fmt.Errorf("%w: %v", ErrNoProviderResponse, lastErr)
	}
	return res, nil
}

func (d *Discovery) runBatch(ctx context.Context, batch []string, res *Result) []outcome {
	outcomes := make([]outcome, len(batch))
	var g errgroup.Group
	g.SetLimit(d.config.Workers)

	for i, q := range batch {
		if d.cache != nil {
			if cached, ok := d.cache.GetQuery(ctx, q, d.config.PerQueryResults); ok {
				outcomes[i].candidates = cached
				res.CacheHits++
				continue
			}
		}
		if res.QuotaDenied {
			continue
		}

		var token *quota.Token
		if d.quota != nil {
			t, err := d.quota.Reserve(d.config.QueryCost)
			if err != nil {
				res.QuotaDenied = true
				d.logger.Warn("search quota denied, continuing from cache", map[string]interface{}{
					"query": q,
					"error": err.Error(),
				})
				continue
			}
			token = t
		}

		outcomes[i].issued = true
		g.Go(func() error {
			cands, err := d.searcher.Search(ctx, q, d.config.PerQueryResults)
			if errors.Is(err, quota.ErrProviderExhausted) {
				// the provider's own count wins; the spent units stay spent
				if d.quota != nil {
					d.quota.Exhaust()
				}
				outcomes[i].exhausted = true
				d.logger.Warn("search provider quota exhausted, continuing from cache", map[string]interface{}{
					"query": q,
					"error": err.Error(),
				})
				return nil
			}
			if err != nil {
				if d.quota != nil {
					d.quota.Release(token)
				}
				outcomes[i].err = err
				return nil
			}
			outcomes[i].candidates = cands
			if d.cache != nil {
				if err := d.cache.PutQuery(ctx, q, d.config.PerQueryResults, cands); err != nil {
					d.logger.Warn("failed to cache query result", map[string]interface{}{
						"query": q,
						"error": err.Error(),
					})
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
