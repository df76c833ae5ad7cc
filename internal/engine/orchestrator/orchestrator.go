// internal/engine/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "creator-match/internal/common/errors"
	"creator-match/internal/common/logger"
	"creator-match/internal/common/metrics"
	"creator-match/internal/engine/cache"
	"creator-match/internal/engine/discovery"
	"creator-match/internal/engine/enrichment"
	"creator-match/internal/engine/scoring"
	"creator-match/internal/engine/style"
	"creator-match/internal/models"
)

type Discoverer interface {
	Discover(ctx context.Context, profile models.BusinessProfile, opts discovery.Options) (*discovery.Result, error)
}

type Enricher interface {
	Enrich(ctx context.Context, candidates []models.Candidate, opts enrichment.Options) ([]models.EnrichedCandidate, enrichment.Stats)
}

type ResultCache interface {
	GetResult(ctx context.Context, fingerprint string) (*models.AnalysisRecord, bool)
	PutResult(ctx context.Context, rec *models.AnalysisRecord) error
}

// RecordStore is the persistence collaborator. LoadByFingerprint returns
// nil, nil when no live record exists.
type RecordStore interface {
	Save(ctx context.Context, rec *models.AnalysisRecord) error
	LoadByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error)
}

type Config struct {
	MaxResults     int
	MinScore       int
	CandidateLimit int
	LookbackDays   int
	ScoringWorkers int
	RunTimeout     time.Duration
	ResultTTL      time.Duration
	RecordTTL      time.Duration
}

// Options tune a single run. Zero values fall back to Config.
type Options struct {
	MaxResults   int
	MinScore     int
	Deadline     time.Duration
	ForceRefresh bool
}

type Orchestrator struct {
	config    Config
	discovery Discoverer
	enricher  Enricher
	analyzer  style.Analyzer
	scorer    *scoring.Engine
	cache     ResultCache
	store     RecordStore
	logger    logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func WithRecordStore(store RecordStore) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

func New(config Config, d Discoverer, e Enricher, a style.Analyzer, s *scoring.Engine, c ResultCache, log logger.Logger, opts ...Option) *Orchestrator {
	if config.MaxResults < 1 {
		config.MaxResults = 20
	}
	if config.CandidateLimit < 1 {
		config.CandidateLimit = 50
	}
	if config.LookbackDays < 1 {
		config.LookbackDays = 30
	}
	if config.ScoringWorkers < 1 {
		config.ScoringWorkers = 8
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 60 * time.Second
	}
	if config.RecordTTL <= 0 {
		config.RecordTTL = 30 * 24 * time.Hour
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Orchestrator{
		config:    config,
		discovery: d,
		enricher:  e,
		analyzer:  a,
		scorer:    s,
		cache:     c,
		logger:    log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		tracer:    otel.Tracer("creator-match/orchestrator"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunAnalysis returns the cached record for the profile when one is fresh,
// otherwise discovers, enriches, scores and ranks candidates. Callers get a
// record, possibly empty or partial, or an *errors.AnalysisError.
func (o *Orchestrator) RunAnalysis(ctx context.Context, profile models.BusinessProfile, opts Options) (*models.AnalysisRecord, error) {
	start := o.now()
	timer := time.Now()

	if err := profile.Validate(); err != nil {
		metrics.AnalysisRuns.WithLabelValues(outcomeLabel(apperrors.ErrCodeInvalidProfile)).Inc()
		return nil, apperrors.NewInvalidProfileError(err)
	}
	fp := cache.ProfileFingerprint(profile)
	log := o.logger.WithFields(map[string]interface{}{"fingerprint": fp})

	ctx, span := o.tracer.Start(ctx, "analysis.run", trace.WithAttributes(attribute.String("fingerprint", fp)))
	defer span.End()

	if !opts.ForceRefresh {
		if rec := o.lookup(ctx, fp, start); rec != nil {
			span.SetAttributes(attribute.Bool("cached", true))
			log.Debug("analysis served from cache", nil)
			return rec, nil
		}
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = o.config.RunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	rec, err := o.run(runCtx, profile, fp, opts, start, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ae, ok := apperrors.AsAnalysisError(err); ok {
			metrics.AnalysisRuns.WithLabelValues(outcomeLabel(ae.Kind)).Inc()
		}
		log.Warn("analysis failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	rec.Stats.DurationMs = time.Since(timer).Milliseconds()

	if rec.Stats.Partial {
		metrics.AnalysisRuns.WithLabelValues("partial").Inc()
	} else {
		if o.cache != nil {
			if err := o.cache.PutResult(ctx, rec); err != nil {
				log.Warn("failed to cache analysis record", map[string]interface{}{"error": err.Error()})
			}
		}
		metrics.AnalysisRuns.WithLabelValues("completed").Inc()
	}
	if o.store != nil {
		if err := o.store.Save(ctx, rec); err != nil {
			saveErr := apperrors.NewRecordSaveFailedError(err)
			log.Error("failed to persist analysis record", map[string]interface{}{
				"analysisId": rec.ID,
				"code":       string(saveErr.Code),
				"error":      saveErr.Details,
			})
		}
	}

	metrics.AnalysisDuration.Observe(time.Since(timer).Seconds())
	metrics.MatchesReturned.Observe(float64(len(rec.Matches)))
	log.Info("analysis completed", map[string]interface{}{
		"analysisId": rec.ID,
		"matches":    len(rec.Matches),
		"discovered": rec.Stats.Discovered,
		"enriched":   rec.Stats.Enriched,
		"partial":    rec.Stats.Partial,
		"durationMs": rec.Stats.DurationMs,
	})
	return rec, nil
}

func (o *Orchestrator) lookup(ctx context.Context, fp string, now time.Time) *models.AnalysisRecord {
	if o.cache != nil {
		if rec, ok := o.cache.GetResult(ctx, fp); ok {
			metrics.AnalysisRuns.WithLabelValues("cache_hit").Inc()
			return rec
		}
	}
	if o.store == nil || o.config.ResultTTL <= 0 {
		return nil
	}
	rec, err := o.store.LoadByFingerprint(ctx, fp)
	if err != nil {
		o.logger.Warn("record store lookup failed", map[string]interface{}{"fingerprint": fp, "error": err.Error()})
		return nil
	}
	if rec == nil || rec.Expired(now) || now.Sub(rec.CreatedAt) >= o.config.ResultTTL {
		return nil
	}
	if o.cache != nil {
		_ = o.cache.PutResult(ctx, rec)
	}
	metrics.AnalysisRuns.WithLabelValues("store_hit").Inc()
	return rec
}

func (o *Orchestrator) run(ctx context.Context, profile models.BusinessProfile, fp string, opts Options, start time.Time, log logger.Logger) (*models.AnalysisRecord, error) {
	rec := &models.AnalysisRecord{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		Profile:     profile,
		Matches:     []models.MatchResult{},
		CreatedAt:   start.UTC(),
		ExpiresAt:   start.Add(o.config.RecordTTL).UTC(),
	}
	stats := &rec.Stats

	dctx, dspan := o.tracer.Start(ctx, "analysis.discover")
	disc, err := o.discovery.Discover(dctx, profile, discovery.Options{
		MaxResults:   o.config.CandidateLimit,
		LookbackDays: o.config.LookbackDays,
	})
	dspan.End()
	if disc != nil {
		stats.QueriesIssued = disc.Issued
		stats.QueriesFailed = disc.Failed
		stats.QuotaDenied = disc.QuotaDenied
		stats.Discovered = len(disc.Candidates)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewAnalysisTimeoutError(err)
		}
		return nil, apperrors.NewProviderUnavailableError(err)
	}
	if len(disc.Candidates) == 0 {
		switch {
		case disc.QuotaDenied:
			return nil, apperrors.NewQuotaExceededError(discovery.ErrNoProviderResponse)
		case ctx.Err() != nil:
			return nil, apperrors.NewAnalysisTimeoutError(ctx.Err())
		}
		log.Info("no candidates discovered", nil)
		return rec, nil
	}

	ectx, espan := o.tracer.Start(ctx, "analysis.enrich", trace.WithAttributes(attribute.Int("candidates", len(disc.Candidates))))
	enriched, estats := o.enricher.Enrich(ectx, disc.Candidates, enrichment.Options{WindowDays: o.config.LookbackDays})
	espan.End()
	stats.Enriched = estats.Enriched
	stats.Degraded = estats.Degraded
	stats.EnrichmentFailed = estats.Failed
	stats.QuotaDenied = stats.QuotaDenied || estats.QuotaDenied
	if stats.Discovered > 0 {
		stats.Completeness = float64(estats.Enriched) / float64(stats.Discovered)
	}
	if len(enriched) == 0 {
		switch {
		case ctx.Err() != nil:
			return nil, apperrors.NewAnalysisTimeoutError(ctx.Err())
		case estats.QuotaDenied:
			return nil, apperrors.NewQuotaExceededError(nil)
		}
		log.Info("no candidates could be enriched", map[string]interface{}{"discovered": stats.Discovered})
		return rec, nil
	}

	sctx, sspan := o.tracer.Start(ctx, "analysis.score")
	results := o.score(sctx, profile, enriched)
	sspan.End()

	for _, r := range results {
		if r.Style.Source == models.StyleSourceGenerative {
			stats.GenerativeStyled++
		}
	}
	stats.Scored = len(results)

	scoring.Rank(results)
	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = o.config.MinScore
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = o.config.MaxResults
	}
	rec.Matches, stats.BelowThreshold = scoring.Select(results, minScore, maxResults)
	stats.Partial = ctx.Err() != nil
	return rec, nil
}

// score runs style analysis and scoring per candidate. Results land in
// input order; ranking happens afterwards.
func (o *Orchestrator) score(ctx context.Context, profile models.BusinessProfile, enriched []models.EnrichedCandidate) []models.MatchResult {
	results := make([]models.MatchResult, len(enriched))
	var g errgroup.Group
	g.SetLimit(o.config.ScoringWorkers)
	for i, ec := range enriched {
		g.Go(func() error {
			signals := o.analyzer.Analyze(ctx, ec)
			results[i] = o.scorer.Score(profile, ec, signals)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func outcomeLabel(code apperrors.ErrorCode) string {
	return strings.ToLower(string(code))
}
