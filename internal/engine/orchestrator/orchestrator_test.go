// internal/engine/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "creator-match/internal/common/errors"
	"creator-match/internal/common/logger"
	"creator-match/internal/engine/cache"
	"creator-match/internal/engine/discovery"
	"creator-match/internal/engine/enrichment"
	"creator-match/internal/engine/quota"
	"creator-match/internal/engine/scoring"
	"creator-match/internal/engine/style"
	"creator-match/internal/models"
)

type fakeDiscoverer struct {
	calls  atomic.Int32
	result *discovery.Result
	err    error
	block  bool
}

func (f *fakeDiscoverer) Discover(ctx context.Context, _ models.BusinessProfile, _ discovery.Options) (*discovery.Result, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return &discovery.Result{Issued: 1, Failed: 1}, discovery.ErrNoProviderResponse
	}
	if f.result == nil {
		return &discovery.Result{}, f.err
	}
	res := *f.result
	res.Candidates = append([]models.Candidate(nil), f.result.Candidates...)
	return &res, f.err
}

type fakeEnricher struct {
	windows map[string]models.ActivityWindow
	delay   time.Duration
	denied  bool
}

func (f *fakeEnricher) Enrich(ctx context.Context, cands []models.Candidate, _ enrichment.Options) ([]models.EnrichedCandidate, enrichment.Stats) {
	stats := enrichment.Stats{Requested: len(cands), QuotaDenied: f.denied}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	var out []models.EnrichedCandidate
	for _, c := range cands {
		w, ok := f.windows[c.ID]
		if !ok {
			stats.Failed++
			continue
		}
		stats.Enriched++
		out = append(out, models.EnrichedCandidate{Candidate: c, Activity: w})
	}
	return out, stats
}

type memoryRecords struct {
	mu      sync.Mutex
	records map[string]*models.AnalysisRecord
	saves   int
	saveErr error
}

func (m *memoryRecords) Save(_ context.Context, rec *models.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.records == nil {
		m.records = map[string]*models.AnalysisRecord{}
	}
	m.records[rec.Fingerprint] = rec
	return nil
}

func (m *memoryRecords) LoadByFingerprint(_ context.Context, fp string) (*models.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[fp], nil
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func profile() models.BusinessProfile {
	return models.BusinessProfile{
		Name:            "강남 바삭치킨",
		PrimaryCategory: "치킨",
		Location:        models.Location{Region: "수도권", City: "서울", District: "강남구"},
		PriceTier:       models.PriceModerate,
		AgeBands:        []string{"20s"},
	}
}

func window(tags []string, mentions []string, items int) models.ActivityWindow {
	return models.ActivityWindow{
		WindowDays:       30,
		ComputedAt:       testNow,
		ItemCount:        items,
		AvgReach:         12000,
		AvgEngagement:    0.04,
		Cadence:          float64(items) / 4,
		ContentTags:      tags,
		SampleTitles:     []string{"강남 치킨 먹방 리뷰"},
		LocationMentions: mentions,
	}
}

func fixture() (*fakeDiscoverer, *fakeEnricher) {
	cands := []models.Candidate{
		{ID: "UC-a", DisplayName: "강남치킨러버", Followers: 250000},
		{ID: "UC-b", DisplayName: "부산먹방", Followers: 8000},
		{ID: "UC-c", DisplayName: "여행일기", Followers: 1200},
		{ID: "UC-d", DisplayName: "실패채널", Followers: 50000},
	}
	d := &fakeDiscoverer{result: &discovery.Result{Candidates: cands, Queries: 3, Issued: 3}}
	e := &fakeEnricher{windows: map[string]models.ActivityWindow{
		"UC-a": window([]string{"치킨", "mukbang"}, []string{"수도권/서울/강남구"}, 8),
		"UC-b": window([]string{"치킨"}, []string{"영남/부산/해운대구"}, 3),
		"UC-c": window([]string{"travel"}, nil, 1),
	}}
	return d, e
}

func newOrchestrator(t *testing.T, d Discoverer, e Enricher, cfg Config, opts ...Option) (*Orchestrator, *cache.Cache) {
	t.Helper()
	now := func() time.Time { return testNow }
	c, err := cache.New(cache.NewMemoryStore(100), time.Hour, 24*time.Hour, logger.NewNoOpLogger(), cache.WithClock(now))
	require.NoError(t, err)
	engine, err := scoring.NewEngine(scoring.DefaultWeights(), nil, nil)
	require.NoError(t, err)
	opts = append([]Option{WithClock(now)}, opts...)
	return New(cfg, d, e, style.NewHeuristic(style.DefaultTaxonomy()), engine, c, logger.NewTestLogger(t), opts...), c
}

func TestRunAnalysis_RanksAndRecords(t *testing.T) {
	d, e := fixture()
	o, _ := newOrchestrator(t, d, e, Config{MaxResults: 10, MinScore: 1})

	rec, err := o.RunAnalysis(context.Background(), profile(), Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, cache.ProfileFingerprint(profile()), rec.Fingerprint)
	assert.Equal(t, testNow, rec.CreatedAt)
	assert.Equal(t, testNow.Add(30*24*time.Hour), rec.ExpiresAt)
	require.Len(t, rec.Matches, 3)
	assert.Equal(t, "UC-a", rec.Matches[0].Candidate.ID)
	for i := 1; i < len(rec.Matches); i++ {
		assert.GreaterOrEqual(t, rec.Matches[i-1].TotalScore, rec.Matches[i].TotalScore)
	}

	assert.Equal(t, 4, rec.Stats.Discovered)
	assert.Equal(t, 3, rec.Stats.Enriched)
	assert.Equal(t, 1, rec.Stats.EnrichmentFailed)
	assert.Equal(t, 3, rec.Stats.Scored)
	assert.InDelta(t, 0.75, rec.Stats.Completeness, 1e-9)
	assert.False(t, rec.Stats.Partial)
}

func TestRunAnalysis_MinScoreAndMaxResults(t *testing.T) {
	d, e := fixture()
	o, _ := newOrchestrator(t, d, e, Config{MaxResults: 10})

	all, err := o.RunAnalysis(context.Background(), profile(), Options{ForceRefresh: true, MinScore: 1})
	require.NoError(t, err)
	require.Len(t, all.Matches, 3)

	capped, err := o.RunAnalysis(context.Background(), profile(), Options{ForceRefresh: true, MinScore: 1, MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, capped.Matches, 2)
	assert.Equal(t, all.Matches[0].Candidate.ID, capped.Matches[0].Candidate.ID)
	assert.Equal(t, all.Matches[1].Candidate.ID, capped.Matches[1].Candidate.ID)

	threshold := all.Matches[0].TotalScore
	top, err := o.RunAnalysis(context.Background(), profile(), Options{ForceRefresh: true, MinScore: threshold})
	require.NoError(t, err)
	for _, m := range top.Matches {
		assert.GreaterOrEqual(t, m.TotalScore, threshold)
	}
	assert.Equal(t, 3-len(top.Matches), top.Stats.BelowThreshold)
}

func TestRunAnalysis_Idempotent(t *testing.T) {
	d, e := fixture()
	o, _ := newOrchestrator(t, d, e, Config{})

	first, err := o.RunAnalysis(context.Background(), profile(), Options{})
	require.NoError(t, err)

	reordered := profile()
	reordered.Name = "다른 이름"
	reordered.AgeBands = []string{" 20S "}
	second, err := o.RunAnalysis(context.Background(), reordered, Options{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), d.calls.Load())
	if diff := cmp.Diff(first, second, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("cached record differs (-first +second):\n%s", diff)
	}

	_, err = o.RunAnalysis(context.Background(), profile(), Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.calls.Load())
}

func TestRunAnalysis_Deterministic(t *testing.T) {
	d1, e1 := fixture()
	d2, e2 := fixture()
	o1, _ := newOrchestrator(t, d1, e1, Config{})
	o2, _ := newOrchestrator(t, d2, e2, Config{})

	a, err := o1.RunAnalysis(context.Background(), profile(), Options{})
	require.NoError(t, err)
	b, err := o2.RunAnalysis(context.Background(), profile(), Options{})
	require.NoError(t, err)

	ignore := cmpopts.IgnoreFields(models.AnalysisRecord{}, "ID", "Stats")
	if diff := cmp.Diff(a, b, ignore, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("runs differ (-a +b):\n%s", diff)
	}
}

func TestRunAnalysis_Errors(t *testing.T) {
	tests := []struct {
		name      string
		profile   models.BusinessProfile
		disc      *fakeDiscoverer
		enrich    *fakeEnricher
		deadline  time.Duration
		kind      apperrors.ErrorCode
		retryable bool
		calls     int32
	}{
		{
			name:    "invalid profile",
			profile: models.BusinessProfile{Location: models.Location{City: "서울"}},
			disc:    &fakeDiscoverer{},
			kind:    apperrors.ErrCodeInvalidProfile,
			calls:   0,
		},
		{
			name:      "quota exhausted before discovery",
			profile:   profile(),
			disc:      &fakeDiscoverer{result: &discovery.Result{Queries: 3, QuotaDenied: true}},
			kind:      apperrors.ErrCodeQuotaExceeded,
			retryable: true,
			calls:     1,
		},
		{
			name:      "provider unreachable",
			profile:   profile(),
			disc:      &fakeDiscoverer{result: &discovery.Result{Queries: 3, Issued: 3, Failed: 3}, err: discovery.ErrNoProviderResponse},
			kind:      apperrors.ErrCodeProviderUnavailable,
			retryable: true,
			calls:     1,
		},
		{
			name:      "deadline during discovery",
			profile:   profile(),
			disc:      &fakeDiscoverer{block: true},
			deadline:  20 * time.Millisecond,
			kind:      apperrors.ErrCodeAnalysisTimeout,
			retryable: true,
			calls:     1,
		},
		{
			name:    "enrichment quota exhausted",
			profile: profile(),
			disc: &fakeDiscoverer{result: &discovery.Result{
				Candidates: []models.Candidate{{ID: "UC-x", Followers: 10}},
				Issued:     1,
			}},
			enrich:    &fakeEnricher{denied: true},
			kind:      apperrors.ErrCodeQuotaExceeded,
			retryable: true,
			calls:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enrich := tt.enrich
			if enrich == nil {
				enrich = &fakeEnricher{}
			}
			o, _ := newOrchestrator(t, tt.disc, enrich, Config{})

			rec, err := o.RunAnalysis(context.Background(), tt.profile, Options{Deadline: tt.deadline})
			require.Error(t, err)
			assert.Nil(t, rec)

			ae, ok := apperrors.AsAnalysisError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, ae.Kind)
			assert.Equal(t, tt.retryable, ae.Retryable)
			assert.Equal(t, tt.calls, tt.disc.calls.Load())
		})
	}
}

type spentSearcher struct {
	calls atomic.Int32
}

func (s *spentSearcher) Search(context.Context, string, int) ([]models.Candidate, error) {
	s.calls.Add(1)
	return nil, fmt.Errorf("youtube: %w", quota.ErrProviderExhausted)
}

func TestRunAnalysis_ProviderExhaustionIsQuotaExceeded(t *testing.T) {
	tr, err := quota.New("search", 10000, 8)
	require.NoError(t, err)
	s := &spentSearcher{}
	d := discovery.New(discovery.Config{Workers: 2, QueryCost: 101}, s, tr, nil, logger.NewTestLogger(t))
	o, _ := newOrchestrator(t, d, &fakeEnricher{}, Config{})

	rec, err := o.RunAnalysis(context.Background(), profile(), Options{})
	require.Error(t, err)
	assert.Nil(t, rec)

	ae, ok := apperrors.AsAnalysisError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeQuotaExceeded, ae.Kind)
	assert.True(t, ae.Retryable)
	assert.Equal(t, int32(2), s.calls.Load())
	assert.Equal(t, 0, tr.Remaining())
}

func TestRunAnalysis_EmptyDiscovery(t *testing.T) {
	d := &fakeDiscoverer{result: &discovery.Result{Queries: 3, Issued: 3}}
	o, _ := newOrchestrator(t, d, &fakeEnricher{}, Config{})

	rec, err := o.RunAnalysis(context.Background(), profile(), Options{})
	require.NoError(t, err)
	require.NotNil(t, rec.Matches)
	assert.Empty(t, rec.Matches)
	assert.Equal(t, 0, rec.Stats.Discovered)
	assert.Equal(t, 3, rec.Stats.QueriesIssued)
}

func TestRunAnalysis_AllEnrichmentFailedIsEmpty(t *testing.T) {
	d, _ := fixture()
	o, _ := newOrchestrator(t, d, &fakeEnricher{}, Config{})

	rec, err := o.RunAnalysis(context.Background(), profile(), Options{})
	require.NoError(t, err)
	assert.Empty(t, rec.Matches)
	assert.Equal(t, 4, rec.Stats.EnrichmentFailed)
	assert.Zero(t, rec.Stats.Completeness)
}

func TestRunAnalysis_PartialNotCached(t *testing.T) {
	d, e := fixture()
	e.delay = time.Second
	o, c := newOrchestrator(t, d, e, Config{})

	rec, err := o.RunAnalysis(context.Background(), profile(), Options{Deadline: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, rec.Stats.Partial)
	assert.NotEmpty(t, rec.Matches)

	_, ok := c.GetResult(context.Background(), rec.Fingerprint)
	assert.False(t, ok)
}

func TestRunAnalysis_RecordStore(t *testing.T) {
	t.Run("saves computed records", func(t *testing.T) {
		d, e := fixture()
		store := &memoryRecords{}
		o, _ := newOrchestrator(t, d, e, Config{ResultTTL: time.Hour}, WithRecordStore(store))

		rec, err := o.RunAnalysis(context.Background(), profile(), Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, store.saves)
		assert.Same(t, rec, store.records[rec.Fingerprint])
	})

	t.Run("serves fresh stored record", func(t *testing.T) {
		d, e := fixture()
		fp := cache.ProfileFingerprint(profile())
		stored := &models.AnalysisRecord{
			ID:          "stored-1",
			Fingerprint: fp,
			Profile:     profile(),
			Matches:     []models.MatchResult{},
			CreatedAt:   testNow.Add(-10 * time.Minute),
			ExpiresAt:   testNow.Add(24 * time.Hour),
		}
		store := &memoryRecords{records: map[string]*models.AnalysisRecord{fp: stored}}
		o, c := newOrchestrator(t, d, e, Config{ResultTTL: time.Hour}, WithRecordStore(store))

		rec, err := o.RunAnalysis(context.Background(), profile(), Options{})
		require.NoError(t, err)
		assert.Equal(t, "stored-1", rec.ID)
		assert.Zero(t, d.calls.Load())

		cached, ok := c.GetResult(context.Background(), fp)
		require.True(t, ok)
		assert.Equal(t, "stored-1", cached.ID)
	})

	t.Run("ignores stale stored record", func(t *testing.T) {
		d, e := fixture()
		fp := cache.ProfileFingerprint(profile())
		stored := &models.AnalysisRecord{
			ID:          "stored-old",
			Fingerprint: fp,
			CreatedAt:   testNow.Add(-2 * time.Hour),
			ExpiresAt:   testNow.Add(24 * time.Hour),
		}
		store := &memoryRecords{records: map[string]*models.AnalysisRecord{fp: stored}}
		o, _ := newOrchestrator(t, d, e, Config{ResultTTL: time.Hour}, WithRecordStore(store))

		rec, err := o.RunAnalysis(context.Background(), profile(), Options{})
		require.NoError(t, err)
		assert.NotEqual(t, "stored-old", rec.ID)
		assert.Equal(t, int32(1), d.calls.Load())
	})

	t.Run("save failure does not fail the run", func(t *testing.T) {
		d, e := fixture()
		store := &memoryRecords{saveErr: errors.New("connection reset")}
		o, _ := newOrchestrator(t, d, e, Config{}, WithRecordStore(store))

		rec, err := o.RunAnalysis(context.Background(), profile(), Options{})
		require.NoError(t, err)
		assert.NotNil(t, rec)
		assert.Equal(t, 1, store.saves)
	})
}

func TestRunAnalysis_ConcurrentCallers(t *testing.T) {
	d, e := fixture()
	o, _ := newOrchestrator(t, d, e, Config{})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := profile()
			p.Name = fmt.Sprintf("지점 %d", i)
			if _, err := o.RunAnalysis(context.Background(), p, Options{}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}
