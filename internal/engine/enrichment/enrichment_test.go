// internal/engine/enrichment/enrichment_test.go
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-match/internal/common/logger"
	"creator-match/internal/engine/cache"
	"creator-match/internal/engine/geo"
	"creator-match/internal/engine/quota"
	"creator-match/internal/models"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu     sync.Mutex
	items  map[string][]models.ActivityItem
	fail   map[string]bool
	spent  map[string]bool
	calls  map[string]int
	jitter bool
}

func (f *fakeFetcher) FetchRecentActivity(ctx context.Context, id string, windowDays int) ([]models.ActivityItem, error) {
	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[id]++
	if f.spent[id] {
		return nil, fmt.Errorf("activity: %w", quota.ErrProviderExhausted)
	}
	if f.fail[id] {
		return nil, errors.New("provider unavailable")
	}
	return f.items[id], nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func item(daysAgo int, views, reactions, comments int64, title string, tags ...string) models.ActivityItem {
	return models.ActivityItem{
		ID:          fmt.Sprintf("v-%d-%s", daysAgo, title),
		Title:       title,
		Tags:        tags,
		PublishedAt: now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
		Views:       views,
		Reactions:   reactions,
		Comments:    comments,
	}
}

func candidates(n int) []models.Candidate {
	out := make([]models.Candidate, n)
	for i := range out {
		out[i] = models.Candidate{ID: fmt.Sprintf("UC%02d", i), DisplayName: fmt.Sprintf("ch-%d", i), Followers: int64(1000 * (i + 1))}
	}
	return out
}

func ids(in []models.EnrichedCandidate) []string {
	out := make([]string, len(in))
	for i, e := range in {
		out[i] = e.Candidate.ID
	}
	return out
}

// ==========================
// Aggregate
// ==========================

func TestAggregate(t *testing.T) {
	items := []models.ActivityItem{
		item(1, 1000, 80, 20, "강남 치킨 먹방 #먹방", "치킨", "먹방"),
		item(8, 3000, 90, 0, "양념치킨 리뷰", "치킨", "리뷰"),
		// no views: counted for reach, skipped for engagement
		item(15, 0, 5, 5, "live"),
		// ratio above one is clamped
		item(20, 100, 500, 0, "hype", "치킨"),
		// outside the window
		item(45, 99999, 0, 0, "too old", "old"),
	}

	w := Aggregate(items, 30, now, geo.Default(), 3)

	assert.Equal(t, 30, w.WindowDays)
	assert.Equal(t, 4, w.ItemCount)
	assert.InDelta(t, (1000.0+3000+0+100)/4, w.AvgReach, 1e-9)
	assert.InDelta(t, (0.1+0.03+1.0)/3, w.AvgEngagement, 1e-9)
	assert.InDelta(t, 4/(30.0/7), w.Cadence, 1e-9)
	assert.Equal(t, []string{"치킨", "먹방", "리뷰"}, w.ContentTags)
	assert.Equal(t, []string{"강남 치킨 먹방 #먹방", "양념치킨 리뷰", "live", "hype"}, w.SampleTitles)
	assert.Equal(t, []string{"수도권/서울/강남구"}, w.LocationMentions)
	assert.False(t, w.Degraded)
}

func TestAggregate_Empty(t *testing.T) {
	w := Aggregate(nil, 30, now, nil, 0)
	assert.Equal(t, 0, w.ItemCount)
	assert.Zero(t, w.AvgReach)
	assert.Zero(t, w.AvgEngagement)
	assert.Zero(t, w.Cadence)
}

// ==========================
// Enrich
// ==========================

func newCollector(t *testing.T, cfg Config, f ActivityFetcher, q QuotaReserver, c EntityCache) *Collector {
	t.Helper()
	return New(cfg, f, q, c, geo.Default(), logger.NewTestLogger(t), WithClock(func() time.Time { return now }))
}

func TestEnrich_PreservesInputOrder(t *testing.T) {
	cands := candidates(20)
	f := &fakeFetcher{items: map[string][]models.ActivityItem{}, jitter: true}
	for _, c := range cands {
		f.items[c.ID] = []models.ActivityItem{item(2, 100, 5, 1, "t")}
	}

	col := newCollector(t, Config{Workers: 6, WindowDays: 30}, f, nil, nil)
	out, stats := col.Enrich(context.Background(), cands, Options{})

	want := make([]string, len(cands))
	for i, c := range cands {
		want[i] = c.ID
	}
	if diff := cmp.Diff(want, ids(out)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 20, stats.Enriched)
}

func TestEnrich_PartialFailureKeepsSuccessfulSubsetInOrder(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		cands := candidates(30)
		f := &fakeFetcher{items: map[string][]models.ActivityItem{}, fail: map[string]bool{}, jitter: true}

		var want []string
		for _, c := range cands {
			if rng.Intn(2) == 0 {
				f.fail[c.ID] = true
				continue
			}
			f.items[c.ID] = []models.ActivityItem{item(3, 200, 10, 2, "ok")}
			want = append(want, c.ID)
		}

		col := newCollector(t, Config{Workers: 4}, f, nil, nil)
		out, stats := col.Enrich(context.Background(), cands, Options{WindowDays: 30})

		assert.Equal(t, want, ids(out), "seed %d", seed)
		assert.Equal(t, len(cands)-len(want), stats.Failed, "seed %d", seed)
	}
}

func TestEnrich_KeepDegraded(t *testing.T) {
	cands := candidates(3)
	f := &fakeFetcher{
		items: map[string][]models.ActivityItem{"UC00": {item(1, 10, 1, 0, "a")}, "UC02": {item(1, 10, 1, 0, "b")}},
		fail:  map[string]bool{"UC01": true},
	}

	col := newCollector(t, Config{Workers: 2, KeepDegraded: true}, f, nil, nil)
	out, stats := col.Enrich(context.Background(), cands, Options{})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"UC00", "UC01", "UC02"}, ids(out))
	assert.True(t, out[1].Activity.Degraded)
	assert.Equal(t, 0, out[1].Activity.ItemCount)
	assert.Equal(t, 1, stats.Degraded)
	assert.Equal(t, 0, stats.Failed)
}

func TestEnrich_CacheFirstAndWriteBack(t *testing.T) {
	ec, err := cache.New(cache.NewMemoryStore(0), time.Hour, 24*time.Hour, nil, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	ctx := context.Background()

	cands := candidates(2)
	f := &fakeFetcher{items: map[string][]models.ActivityItem{
		"UC00": {item(1, 100, 10, 0, "a")},
		"UC01": {item(1, 100, 10, 0, "b")},
	}}
	col := newCollector(t, Config{Workers: 2, WindowDays: 30}, f, nil, ec)

	first, _ := col.Enrich(ctx, cands, Options{})
	assert.Equal(t, 2, f.total())

	second, stats := col.Enrich(ctx, cands, Options{})
	assert.Equal(t, 2, f.total())
	assert.Equal(t, 2, stats.FromCache)
	for i := range first {
		assert.Equal(t, first[i].Activity, second[i].Activity)
		assert.True(t, second[i].FromCache)
	}
}

func TestEnrich_QuotaDeniedFallsBackToCache(t *testing.T) {
	ec, err := cache.New(cache.NewMemoryStore(0), time.Hour, 24*time.Hour, nil, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, ec.PutEntity(ctx, "UC03", models.ActivityWindow{WindowDays: 30, ItemCount: 9}))

	tr, err := quota.New("search", 6, 8, quota.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	cands := candidates(5)
	f := &fakeFetcher{items: map[string][]models.ActivityItem{}}
	col := newCollector(t, Config{Workers: 1, FetchCost: 3}, f, tr, ec)

	out, stats := col.Enrich(ctx, cands, Options{WindowDays: 30})
	assert.True(t, stats.QuotaDenied)
	assert.Equal(t, 2, f.total())
	assert.Equal(t, []string{"UC00", "UC01", "UC03"}, ids(out))
	assert.Equal(t, 0, tr.Remaining())
}

func TestEnrich_FailedFetchRefundsQuota(t *testing.T) {
	tr, err := quota.New("search", 30, 8)
	require.NoError(t, err)

	f := &fakeFetcher{fail: map[string]bool{"UC00": true, "UC01": true}}
	col := newCollector(t, Config{Workers: 2, FetchCost: 3}, f, tr, nil)

	out, stats := col.Enrich(context.Background(), candidates(2), Options{})
	assert.Empty(t, out)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 30, tr.Remaining())
}

func TestEnrich_ProviderExhaustionKeepsUnitsSpent(t *testing.T) {
	ec, err := cache.New(cache.NewMemoryStore(0), time.Hour, 24*time.Hour, nil, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, ec.PutEntity(ctx, "UC03", models.ActivityWindow{WindowDays: 30, ItemCount: 4}))

	tr, err := quota.New("search", 10000, 8, quota.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	f := &fakeFetcher{
		items: map[string][]models.ActivityItem{"UC00": {item(1, 100, 10, 0, "a")}},
		spent: map[string]bool{"UC01": true},
	}
	col := newCollector(t, Config{Workers: 1, FetchCost: 3}, f, tr, ec)

	out, stats := col.Enrich(ctx, candidates(5), Options{WindowDays: 30})
	assert.True(t, stats.QuotaDenied)
	// UC02 and UC04 are never fetched once the provider reports exhaustion
	assert.Equal(t, 2, f.total())
	assert.Equal(t, []string{"UC00", "UC03"}, ids(out))
	assert.Equal(t, 0, tr.Remaining())
}

func TestEnrich_CancelledContextNeverErrors(t *testing.T) {
	f := &fakeFetcher{}
	col := newCollector(t, Config{Workers: 2}, f, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, stats := col.Enrich(ctx, candidates(4), Options{})
	assert.Empty(t, out)
	assert.Equal(t, 4, stats.Failed)
	assert.Equal(t, 0, f.total())
}
