// internal/engine/style/analyzer.go
package style

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"creator-match/internal/common/logger"
	"creator-match/internal/common/metrics"
	"creator-match/internal/engine/quota"
	"creator-match/internal/models"
)

var ErrNoClassification = errors.New("classifier returned no usable classification")

// Analyzer derives style signals for an enriched candidate. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, c models.EnrichedCandidate) models.StyleSignals
}

// Classification is what an external text-analysis capability returns.
type Classification struct {
	Tags     []string `json:"tags"`
	Quality  float64  `json:"quality"`
	AgeBands []string `json:"ageBands,omitempty"`
}

// Classifier is the style-analysis side of the provider boundary.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

type QuotaReserver interface {
	Reserve(cost int) (*quota.Token, error)
	Release(token *quota.Token)
}

// Heuristic matches candidate text against the taxonomy. It needs no I/O.
type Heuristic struct {
	taxonomy *Taxonomy
}

func NewHeuristic(t *Taxonomy) *Heuristic {
	if t == nil {
		t = DefaultTaxonomy()
	}
	return &Heuristic{taxonomy: t}
}

func (h *Heuristic) Analyze(_ context.Context, c models.EnrichedCandidate) models.StyleSignals {
	metrics.StyleAnalyses.WithLabelValues(string(models.StyleSourceHeuristic)).Inc()
	return h.signals(c)
}

func (h *Heuristic) signals(c models.EnrichedCandidate) models.StyleSignals {
	text := CandidateText(c)

	var tags []string
	tags = append(tags, h.taxonomy.CanonicalSet(c.Activity.ContentTags)...)
	tags = append(tags, h.taxonomy.CategoriesIn(text)...)
	tags = append(tags, h.taxonomy.StylesIn(text)...)

	return models.StyleSignals{
		ContentTags:      h.taxonomy.CanonicalSet(tags),
		QualityEstimate:  HeuristicQuality(c.Activity),
		AudienceAgeBands: h.taxonomy.AgeBandsIn(text),
		Source:           models.StyleSourceHeuristic,
	}
}

// HeuristicQuality rates production consistency from engagement, cadence
// and volume. A window with no items scores 30.
func HeuristicQuality(w models.ActivityWindow) float64 {
	if w.ItemCount == 0 {
		return 30
	}
	q := 40.0
	q += math.Min(30, w.AvgEngagement*600)
	q += math.Min(20, w.Cadence*5)
	if w.ItemCount >= 4 {
		q += 10
	}
	return clamp(q)
}

// CandidateText concatenates the text an analysis looks at.
func CandidateText(c models.EnrichedCandidate) string {
	parts := []string{c.Candidate.DisplayName, c.Candidate.Description}
	parts = append(parts, c.Activity.SampleTitles...)
	parts = append(parts, c.Activity.ContentTags...)
	return strings.Join(parts, "\n")
}

// Generative asks a Classifier first and falls back to the heuristic on
// quota denial, timeout, error or an unusable answer. Fallback is silent to
// callers; only the signal source reveals it.
type Generative struct {
	classifier Classifier
	quota      QuotaReserver
	cost       int
	timeout    time.Duration
	fallback   *Heuristic
	logger     logger.Logger
}

func NewGenerative(classifier Classifier, q QuotaReserver, cost int, timeout time.Duration, fallback *Heuristic, log logger.Logger) *Generative {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if fallback == nil {
		fallback = NewHeuristic(nil)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Generative{
		classifier: classifier,
		quota:      q,
		cost:       cost,
		timeout:    timeout,
		fallback:   fallback,
		logger:     log.WithFields(map[string]interface{}{"component": "style"}),
	}
}

func (g *Generative) Analyze(ctx context.Context, c models.EnrichedCandidate) models.StyleSignals {
	signals, err := g.classify(ctx, c)
	if err != nil {
		g.logger.Debug("generative style analysis unavailable, using heuristic", map[string]interface{}{
			"candidateId": c.Candidate.ID,
			"error":       err.Error(),
		})
		return g.fallback.Analyze(ctx, c)
	}
	metrics.StyleAnalyses.WithLabelValues(string(models.StyleSourceGenerative)).Inc()
	return signals
}

func (g *Generative) classify(ctx context.Context, c models.EnrichedCandidate) (models.StyleSignals, error) {
	var token *quota.Token
	if g.quota != nil {
		t, err := g.quota.Reserve(g.cost)
		if err != nil {
			return models.StyleSignals{}, err
		}
		token = t
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cls, err := g.classifier.Classify(cctx, CandidateText(c))
	if err == nil {
		err = validate(cls)
	}
	if err != nil {
		if g.quota != nil {
			g.quota.Release(token)
		}
		return models.StyleSignals{}, err
	}

	tax := g.fallback.taxonomy
	ageBands := normalizeAll(cls.AgeBands)
	if len(ageBands) == 0 {
		ageBands = tax.AgeBandsIn(CandidateText(c))
	}
	return models.StyleSignals{
		ContentTags:      tax.CanonicalSet(cls.Tags),
		QualityEstimate:  clamp(cls.Quality),
		AudienceAgeBands: ageBands,
		Source:           models.StyleSourceGenerative,
	}, nil
}

func validate(cls Classification) error {
	if len(cls.Tags) == 0 {
		return ErrNoClassification
	}
	if math.IsNaN(cls.Quality) || cls.Quality < 0 || cls.Quality > 100 {
		return ErrNoClassification
	}
	return nil
}

func normalizeAll(in []string) []string {
	var out []string
	for _, s := range in {
		if n := normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
