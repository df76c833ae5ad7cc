// internal/models/match.go
package models

import "time"

// ScoreBreakdown holds the five sub-scores, each in [0,100].
type ScoreBreakdown struct {
	Category  int `json:"category"`
	Location  int `json:"location"`
	Audience  int `json:"audience"`
	Style     int `json:"style"`
	Influence int `json:"influence"`
}

type MatchResult struct {
	Candidate     Candidate      `json:"candidate"`
	Breakdown     ScoreBreakdown `json:"breakdown"`
	TotalScore    int            `json:"totalScore"`
	Reasons       []string       `json:"reasons"`
	Confidence    int            `json:"confidence"`
	InfluenceTier string         `json:"influenceTier"`
	Style         StyleSignals   `json:"style"`
	Activity      ActivityWindow `json:"activity"`
}

// RunStats summarises how an analysis record was produced.
type RunStats struct {
	QueriesIssued    int     `json:"queriesIssued"`
	QueriesFailed    int     `json:"queriesFailed"`
	QuotaDenied      bool    `json:"quotaDenied,omitempty"`
	Discovered       int     `json:"discovered"`
	Enriched         int     `json:"enriched"`
	Degraded         int     `json:"degraded"`
	EnrichmentFailed int     `json:"enrichmentFailed"`
	GenerativeStyled int     `json:"generativeStyled"`
	Scored           int     `json:"scored"`
	BelowThreshold   int     `json:"belowThreshold"`
	Completeness     float64 `json:"completeness"`
	Partial          bool    `json:"partial,omitempty"`
	DurationMs       int64   `json:"durationMs"`
}

// AnalysisRecord is the immutable outcome of one orchestration run.
type AnalysisRecord struct {
	ID          string          `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	Profile     BusinessProfile `json:"profile"`
	Matches     []MatchResult   `json:"matches"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	Stats       RunStats        `json:"stats"`
}

// Expired reports whether the record is past its expiry at now.
func (r *AnalysisRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
