// internal/app/app.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"creator-match/internal/common/config"
	"creator-match/internal/common/database"
	apperrors "creator-match/internal/common/errors"
	"creator-match/internal/common/logger"
	"creator-match/internal/engine/cache"
	"creator-match/internal/engine/discovery"
	"creator-match/internal/engine/enrichment"
	"creator-match/internal/engine/geo"
	"creator-match/internal/engine/orchestrator"
	"creator-match/internal/engine/projection"
	"creator-match/internal/engine/quota"
	"creator-match/internal/engine/scoring"
	"creator-match/internal/engine/style"
	"creator-match/internal/providers/chatllm"
	"creator-match/internal/providers/genai"
	"creator-match/internal/providers/youtube"
	"creator-match/internal/storage"
)

const (
	styleCost   = 1
	redisPrefix = "creator-match:"
)

// App holds one fully wired matching engine.
type App struct {
	Config       *config.Config
	Taxonomy     *style.Taxonomy
	Places       *geo.Table
	Cache        *cache.Cache
	Store        storage.Store
	Orchestrator *orchestrator.Orchestrator
	Projector    *projection.Projector

	searchQuota *quota.Tracker
	styleQuota  *quota.Tracker
	memCache    *cache.MemoryStore
	checks      map[string]func(context.Context) error
	closers     []func() error
	logger      logger.Logger
}

type buildOptions struct {
	searcher        discovery.Searcher
	fetcher         enrichment.ActivityFetcher
	classifier      style.Classifier
	postgres        *sql.DB
	connectAttempts uint
	connectDelay    time.Duration
}

type Option func(*buildOptions)

// WithProviders replaces the YouTube client, mainly for tests and dry runs.
func WithProviders(s discovery.Searcher, f enrichment.ActivityFetcher) Option {
	return func(o *buildOptions) {
		o.searcher = s
		o.fetcher = f
	}
}

func WithClassifier(c style.Classifier) Option {
	return func(o *buildOptions) {
		o.classifier = c
	}
}

// WithPostgres uses db instead of opening a pool from configuration.
func WithPostgres(db *sql.DB) Option {
	return func(o *buildOptions) {
		o.postgres = db
	}
}

func WithConnectRetry(attempts uint, delay time.Duration) Option {
	return func(o *buildOptions) {
		o.connectAttempts = attempts
		o.connectDelay = delay
	}
}

// Build validates cfg and wires every collaborator it names. Any failure is
// an INVALID_CONFIGURATION analysis error; resources opened so far are closed.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	bo := buildOptions{connectAttempts: 5, connectDelay: time.Second}
	for _, opt := range opts {
		opt(&bo)
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInvalidConfigurationError(err)
	}

	a := &App{
		Config: cfg,
		checks: map[string]func(context.Context) error{},
		logger: log.WithFields(map[string]interface{}{"component": "app"}),
	}
	if err := a.build(ctx, bo); err != nil {
		_ = a.Close()
		if _, ok := apperrors.AsAnalysisError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewInvalidConfigurationError(err)
	}
	return a, nil
}

func (a *App) build(ctx context.Context, bo buildOptions) error {
	cfg := a.Config
	m := cfg.Matching

	tax, err := style.LoadTaxonomy(m.TaxonomyPath)
	if err != nil {
		return err
	}
	a.Taxonomy = tax
	a.Places = geo.Default()

	if a.searchQuota, err = quota.New("search", m.SearchQuota.DailyBudget, m.SearchQuota.ResetHourUTC); err != nil {
		return err
	}
	if a.styleQuota, err = quota.New("style", m.StyleQuota.DailyBudget, m.StyleQuota.ResetHourUTC); err != nil {
		return err
	}

	cacheStore, err := a.cacheStore(ctx, bo)
	if err != nil {
		return err
	}
	if a.Cache, err = cache.New(cacheStore, config.GetSeconds(m.ResultCacheTTL), config.GetSeconds(m.EntityCacheTTL), a.logger); err != nil {
		return err
	}

	if a.Store, err = a.recordStore(ctx, bo); err != nil {
		return err
	}

	searcher, fetcher := bo.searcher, bo.fetcher
	if searcher == nil || fetcher == nil {
		yt := youtube.NewClient(youtube.Config{
			BaseURL:           cfg.APIs.YouTube.BaseURL,
			APIKey:            cfg.APIs.YouTube.APIKey,
			Timeout:           config.GetDuration(cfg.APIs.YouTube.Timeout),
			RequestsPerMinute: cfg.APIs.YouTube.RequestsPerMinute,
			Burst:             cfg.APIs.YouTube.Burst,
			RegionCode:        cfg.APIs.YouTube.RegionCode,
			Language:          cfg.APIs.YouTube.Language,
		}, a.logger)
		if searcher == nil {
			searcher = yt
		}
		if fetcher == nil {
			fetcher = yt
		}
	}

	disc := discovery.New(discovery.Config{
		Workers:         m.DiscoveryWorkers,
		MaxQueries:      m.MaxQueries,
		PerQueryResults: m.PerQueryResults,
		QueryCost:       youtube.SearchCost,
	}, searcher, a.searchQuota, a.Cache, a.logger)

	enricher := enrichment.New(enrichment.Config{
		Workers:      m.EnrichmentWorkers,
		WindowDays:   m.LookbackDays,
		FetchCost:    youtube.ActivityCost,
		KeepDegraded: m.KeepDegraded,
	}, fetcher, a.searchQuota, a.Cache, a.Places, a.logger)

	analyzer, err := a.styleAnalyzer(ctx, bo)
	if err != nil {
		return err
	}

	scorer, err := scoring.NewEngine(scoring.WeightsFromConfig(m.Weights), tax, a.Places)
	if err != nil {
		return err
	}

	a.Orchestrator = orchestrator.New(orchestrator.Config{
		MaxResults:     m.MaxResults,
		MinScore:       m.MinScore,
		CandidateLimit: m.CandidateLimit,
		LookbackDays:   m.LookbackDays,
		ScoringWorkers: m.ScoringWorkers,
		RunTimeout:     config.GetDuration(m.RunTimeout),
		ResultTTL:      config.GetSeconds(m.ResultCacheTTL),
		RecordTTL:      config.GetSeconds(m.RecordTTL),
	}, disc, enricher, analyzer, scorer, a.Cache, a.logger, orchestrator.WithRecordStore(a.Store))

	a.Projector = projection.New(tax, a.Places)

	a.logger.Info("matching engine ready", map[string]interface{}{
		"cacheBackend":  m.CacheBackend,
		"storeBackends": m.StoreBackends,
		"styleProvider": cfg.APIs.StyleProvider,
	})
	return nil
}

func (a *App) cacheStore(ctx context.Context, bo buildOptions) (cache.Store, error) {
	if a.Config.Matching.CacheBackend != "redis" {
		a.memCache = cache.NewMemoryStore(a.Config.Matching.CacheMaxEntries)
		return a.memCache, nil
	}
	rc, err := database.NewRedis(a.Config.Database.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rc.Close)
	if err := a.connect(ctx, bo, "redis", rc.Ping); err != nil {
		return nil, err
	}
	return cache.NewRedisStore(rc.Client, redisPrefix), nil
}

func (a *App) recordStore(ctx context.Context, bo buildOptions) (storage.Store, error) {
	var stores []storage.Store
	for _, backend := range a.Config.Matching.StoreBackends {
		switch backend {
		case "memory":
			stores = append(stores, storage.NewMemoryStore())

		case "postgres":
			db := bo.postgres
			if db == nil {
				pg, err := database.NewPostgres(a.Config.Database.Postgres)
				if err != nil {
					return nil, err
				}
				a.closers = append(a.closers, pg.Close)
				db = pg.DB
			}
			ping := func(ctx context.Context) error { return db.PingContext(ctx) }
			if err := a.connect(ctx, bo, "postgres", ping); err != nil {
				return nil, err
			}
			pgStore := storage.NewPostgresStore(db)
			if err := pgStore.EnsureSchema(ctx); err != nil {
				return nil, err
			}
			stores = append(stores, pgStore)

		case "elasticsearch":
			es, err := database.NewElasticsearch(a.Config.Database.Elasticsearch)
			if err != nil {
				return nil, err
			}
			if err := a.connect(ctx, bo, "elasticsearch", es.Ping); err != nil {
				return nil, err
			}
			esStore := storage.NewElasticsearchStore(es, a.Config.Database.Elasticsearch.RecordIndex)
			if err := esStore.EnsureSchema(ctx); err != nil {
				return nil, err
			}
			stores = append(stores, esStore)
		}
	}
	if len(stores) == 1 {
		return stores[0], nil
	}
	return storage.NewMirrored(stores[0], a.logger, stores[1:]...), nil
}

func (a *App) styleAnalyzer(ctx context.Context, bo buildOptions) (style.Analyzer, error) {
	cfg := a.Config
	heuristic := style.NewHeuristic(a.Taxonomy)

	classifier := bo.classifier
	if classifier == nil {
		switch cfg.APIs.StyleProvider {
		case "genai":
			if cfg.APIs.GenAI.BaseURL == "" {
				return nil, fmt.Errorf("apis.genai.base_url is required for the genai style provider")
			}
			classifier = genai.NewClassifier(genai.Config{
				BaseURL: cfg.APIs.GenAI.BaseURL,
				APIKey:  cfg.APIs.GenAI.APIKey,
				Timeout: config.GetDuration(cfg.APIs.GenAI.Timeout),
			}, a.Taxonomy)
		case "chat":
			c, err := chatllm.New(ctx, chatllm.Config{
				BaseURL: cfg.APIs.Chat.BaseURL,
				APIKey:  cfg.APIs.Chat.APIKey,
				Model:   cfg.APIs.Chat.Model,
				Timeout: config.GetDuration(cfg.APIs.Chat.Timeout),
			}, a.Taxonomy)
			if err != nil {
				return nil, err
			}
			classifier = c
		default:
			return heuristic, nil
		}
	}
	return style.NewGenerative(classifier, a.styleQuota, styleCost, config.GetDuration(cfg.Matching.StyleTimeout), heuristic, a.logger), nil
}

// connect pings a backend with retries and registers it for readiness checks.
func (a *App) connect(ctx context.Context, bo buildOptions, name string, ping func(context.Context) error) error {
	attempts := bo.connectAttempts
	if attempts == 0 {
		attempts = 1
	}
	err := retry.Do(
		func() error { return ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(bo.connectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Warn("backend not reachable, retrying", map[string]interface{}{
				"backend": name,
				"attempt": n + 1,
				"error":   err.Error(),
			})
		}),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	a.checks[name] = ping
	return nil
}

// Ready pings every network backend and reports the failing ones.
func (a *App) Ready(ctx context.Context) map[string]error {
	failed := map[string]error{}
	for name, ping := range a.checks {
		if err := ping(ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// QuotaStatus is the remaining daily budget of one provider tracker.
type QuotaStatus struct {
	Provider  string    `json:"provider"`
	Budget    int       `json:"budget"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resetsAt"`
}

func (a *App) Quotas() []QuotaStatus {
	var out []QuotaStatus
	for _, t := range []*quota.Tracker{a.searchQuota, a.styleQuota} {
		out = append(out, QuotaStatus{
			Provider:  t.Name(),
			Budget:    t.Budget(),
			Remaining: t.Remaining(),
			ResetsAt:  t.ResetsAt(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// StartMaintenance sweeps the memory cache and deletes expired records
// until ctx is done.
func (a *App) StartMaintenance(ctx context.Context, recordGCInterval time.Duration) {
	if a.memCache != nil {
		a.Cache.StartSweeper(ctx, config.GetDuration(a.Config.Matching.CacheSweepInterval))
	}
	if recordGCInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(recordGCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.CollectExpired(ctx)
			}
		}
	}()
}

// CollectExpired removes expired analysis records from the store.
func (a *App) CollectExpired(ctx context.Context) int64 {
	n, err := a.Store.DeleteExpired(ctx)
	if err != nil {
		a.logger.Warn("expired record cleanup failed", map[string]interface{}{"error": err.Error()})
		return n
	}
	if n > 0 {
		a.logger.Info("expired records deleted", map[string]interface{}{"count": n})
	}
	return n
}

func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
