// internal/engine/scoring/engine.go
package scoring

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"creator-match/internal/engine/geo"
	"creator-match/internal/engine/style"
	"creator-match/internal/models"
)

const (
	criterionCategory = iota
	criterionLocation
	criterionAudience
	criterionStyle
	criterionInfluence
	criteriaCount
)

const maxReasons = 3

var koreanAgeBand = regexp.MustCompile(`^(\d0)대$`)

// Engine computes sub-scores, totals and reasons. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	weights  Weights
	taxonomy *style.Taxonomy
	places   *geo.Table
}

func NewEngine(w Weights, tax *style.Taxonomy, places *geo.Table) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if tax == nil {
		tax = style.DefaultTaxonomy()
	}
	if places == nil {
		places = geo.Default()
	}
	return &Engine{weights: w, taxonomy: tax, places: places}, nil
}

func (e *Engine) Weights() Weights { return e.weights }

// Breakdown computes the five sub-scores, each within [0,100].
func (e *Engine) Breakdown(p models.BusinessProfile, c models.EnrichedCandidate, s models.StyleSignals) models.ScoreBreakdown {
	tags := e.candidateTags(c, s)
	influence, _ := Influence(c.Candidate.Followers)
	return models.ScoreBreakdown{
		Category:  e.categoryScore(p, tags),
		Location:  e.locationTier(p, c).Score(),
		Audience:  e.audienceScore(p, c, s, tags),
		Style:     e.styleScore(p, c, s),
		Influence: influence,
	}
}

// Score produces a full match result for one candidate.
func (e *Engine) Score(p models.BusinessProfile, c models.EnrichedCandidate, s models.StyleSignals) models.MatchResult {
	b := e.Breakdown(p, c, s)
	_, tier := Influence(c.Candidate.Followers)
	return models.MatchResult{
		Candidate:     c.Candidate,
		Breakdown:     b,
		TotalScore:    Total(b, e.weights),
		Reasons:       e.reasons(p, c, s, b),
		Confidence:    Confidence(c, s),
		InfluenceTier: tier,
		Style:         s,
		Activity:      c.Activity,
	}
}

// Total is round(Σ subscore × weight).
func Total(b models.ScoreBreakdown, w Weights) int {
	subs := subScores(b)
	ws := w.values()
	sum := 0.0
	for i := range subs {
		sum += float64(subs[i]) * ws[i]
	}
	return clampInt(int(math.Round(sum)))
}

// Influence buckets follower counts into five fixed tiers.
func Influence(followers int64) (int, string) {
	switch {
	case followers < 1_000:
		return 20, "starter"
	case followers < 10_000:
		return 40, "nano"
	case followers < 100_000:
		return 60, "micro"
	case followers < 1_000_000:
		return 80, "macro"
	}
	return 100, "mega"
}

// Confidence reflects how complete the data behind a score is: a full
// activity window, how many items it holds and whether style came from the
// generative analyzer.
func Confidence(c models.EnrichedCandidate, s models.StyleSignals) int {
	conf := 0.0
	if !c.Activity.Degraded {
		conf += 50
	}
	conf += 20 * math.Min(1, float64(c.Activity.ItemCount)/3)
	if s.Source == models.StyleSourceGenerative {
		conf += 30
	} else {
		conf += 15
	}
	return clampInt(int(math.Round(conf)))
}

// Rank orders results by total, then influence, then candidate ID.
func Rank(results []models.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Breakdown.Influence != b.Breakdown.Influence {
			return a.Breakdown.Influence > b.Breakdown.Influence
		}
		return a.Candidate.ID < b.Candidate.ID
	})
}

// Select keeps ranked results scoring at least minScore, capped at n.
// It returns how many were dropped by the threshold.
func Select(ranked []models.MatchResult, minScore, n int) ([]models.MatchResult, int) {
	out := make([]models.MatchResult, 0, len(ranked))
	below := 0
	for _, r := range ranked {
		if r.TotalScore < minScore {
			below++
			continue
		}
		if len(out) < n {
			out = append(out, r)
		}
	}
	return out, below
}

// --- sub-scores ---

func (e *Engine) candidateTags(c models.EnrichedCandidate, s models.StyleSignals) map[string]bool {
	set := map[string]bool{}
	for _, t := range e.taxonomy.CanonicalSet(c.Activity.ContentTags) {
		set[t] = true
	}
	for _, t := range e.taxonomy.CanonicalSet(s.ContentTags) {
		set[t] = true
	}
	return set
}

func (e *Engine) categoryScore(p models.BusinessProfile, tags map[string]bool) int {
	if tags[e.taxonomy.Canonical(p.PrimaryCategory)] {
		return 100
	}
	secondary := e.taxonomy.CanonicalSet(p.SecondaryTags)
	if len(secondary) == 0 {
		return 0
	}
	hit := 0
	for _, t := range secondary {
		if tags[t] {
			hit++
		}
	}
	return clampInt(int(math.Round(100 * float64(hit) / float64(len(secondary)))))
}

func (e *Engine) candidatePlaces(c models.EnrichedCandidate) []geo.Place {
	var places []geo.Place
	if !c.Candidate.Location.IsZero() {
		places = append(places, e.places.Resolve(c.Candidate.Location))
	}
	for _, m := range c.Activity.LocationMentions {
		places = append(places, geo.ParsePlace(m))
	}
	return places
}

func (e *Engine) locationTier(p models.BusinessProfile, c models.EnrichedCandidate) geo.Tier {
	return geo.Closest(e.places.Resolve(p.Location), e.candidatePlaces(c))
}

func (e *Engine) audienceScore(p models.BusinessProfile, c models.EnrichedCandidate, s models.StyleSignals, tags map[string]bool) int {
	wantAges := ageBands(p.AgeBands)
	wantInterests := e.taxonomy.CanonicalSet(p.InterestTags)

	var ageRatio, interestRatio float64
	if len(wantAges) > 0 {
		have := map[string]bool{}
		for _, a := range ageBands(s.AudienceAgeBands) {
			have[a] = true
		}
		hit := 0
		for _, a := range wantAges {
			if have[a] {
				hit++
			}
		}
		ageRatio = float64(hit) / float64(len(wantAges))
	}
	if len(wantInterests) > 0 {
		text := strings.ToLower(style.CandidateText(c))
		hit := 0
		for _, t := range wantInterests {
			if tags[t] || strings.Contains(text, t) {
				hit++
			}
		}
		interestRatio = float64(hit) / float64(len(wantInterests))
	}

	var score float64
	switch {
	case len(wantAges) > 0 && len(wantInterests) > 0:
		score = 60*ageRatio + 40*interestRatio
	case len(wantAges) > 0:
		score = 100 * ageRatio
	case len(wantInterests) > 0:
		score = 100 * interestRatio
	default:
		// nothing to compare against
		score = 50
	}
	return clampInt(int(math.Round(score)))
}

func (e *Engine) styles(c models.EnrichedCandidate, s models.StyleSignals) []string {
	var out []string
	for _, t := range s.ContentTags {
		if e.taxonomy.IsStyle(t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = e.taxonomy.StylesIn(style.CandidateText(c))
	}
	return out
}

func (e *Engine) styleScore(p models.BusinessProfile, c models.EnrichedCandidate, s models.StyleSignals) int {
	compat := e.taxonomy.Compatibility(p.PrimaryCategory, e.styles(c, s))
	return clampInt(int(math.Round(s.QualityEstimate * compat)))
}

// --- reasons ---

func (e *Engine) reasons(p models.BusinessProfile, c models.EnrichedCandidate, s models.StyleSignals, b models.ScoreBreakdown) []string {
	subs := subScores(b)
	ws := e.weights.values()
	order := make([]int, criteriaCount)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return float64(subs[order[i]])*ws[order[i]] > float64(subs[order[j]])*ws[order[j]]
	})

	var out []string
	for _, crit := range order {
		if len(out) == maxReasons {
			break
		}
		if float64(subs[crit])*ws[crit] <= 0 {
			continue
		}
		out = append(out, e.reason(crit, p, c, s, b))
	}
	return out
}

func (e *Engine) reason(crit int, p models.BusinessProfile, c models.EnrichedCandidate, s models.StyleSignals, b models.ScoreBreakdown) string {
	switch crit {
	case criterionCategory:
		if b.Category == 100 {
			return fmt.Sprintf("Publishes %s content", e.taxonomy.Canonical(p.PrimaryCategory))
		}
		return fmt.Sprintf("Covers %d%% of related categories", b.Category)
	case criterionLocation:
		target := e.places.Resolve(p.Location)
		switch e.locationTier(p, c) {
		case geo.TierDistrict:
			return fmt.Sprintf("Active in %s", target.District)
		case geo.TierCity:
			return fmt.Sprintf("Active in %s", target.City)
		default:
			return fmt.Sprintf("Active in the %s area", target.Region)
		}
	case criterionAudience:
		return fmt.Sprintf("Audience fit %d/100", b.Audience)
	case criterionStyle:
		if st := e.styles(c, s); len(st) > 0 {
			return fmt.Sprintf("%s-style content, quality %d/100", st[0], int(math.Round(s.QualityEstimate)))
		}
		return fmt.Sprintf("Content quality %d/100", int(math.Round(s.QualityEstimate)))
	default:
		_, tier := Influence(c.Candidate.Followers)
		return fmt.Sprintf("%s creator with %d subscribers", tier, c.Candidate.Followers)
	}
}

func subScores(b models.ScoreBreakdown) [criteriaCount]int {
	return [criteriaCount]int{b.Category, b.Location, b.Audience, b.Style, b.Influence}
}

func ageBands(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if m := koreanAgeBand.FindStringSubmatch(a); m != nil {
			a = m[1] + "s"
		}
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
