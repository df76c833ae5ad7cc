// internal/models/candidate.go
package models

import "time"

// Candidate is a creator channel returned by a search provider.
type Candidate struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Followers   int64    `json:"followers"`
	Description string   `json:"description,omitempty"`
	Country     string   `json:"country,omitempty"`
	URL         string   `json:"url,omitempty"`
	Location    Location `json:"location,omitempty"`
}

// ActivityItem is one piece of content published by a candidate.
type ActivityItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Views       int64     `json:"views"`
	Reactions   int64     `json:"reactions"`
	Comments    int64     `json:"comments"`
}

// ActivityWindow aggregates a candidate's activity over a trailing window
// computed at ComputedAt. A window is replaced wholesale, never edited.
type ActivityWindow struct {
	WindowDays       int       `json:"windowDays"`
	ComputedAt       time.Time `json:"computedAt"`
	ItemCount        int       `json:"itemCount"`
	AvgReach         float64   `json:"avgReach"`
	AvgEngagement    float64   `json:"avgEngagement"`
	Cadence          float64   `json:"cadence"`
	ContentTags      []string  `json:"contentTags,omitempty"`
	SampleTitles     []string  `json:"sampleTitles,omitempty"`
	LocationMentions []string  `json:"locationMentions,omitempty"`
	Degraded         bool      `json:"degraded,omitempty"`
}

// EnrichedCandidate pairs a candidate with its activity window.
type EnrichedCandidate struct {
	Candidate Candidate      `json:"candidate"`
	Activity  ActivityWindow `json:"activity"`
	FromCache bool           `json:"-"`
}

type StyleSource string

const (
	StyleSourceHeuristic  StyleSource = "heuristic"
	StyleSourceGenerative StyleSource = "generative"
)

// StyleSignals are qualitative signals derived from a candidate's content.
type StyleSignals struct {
	ContentTags      []string    `json:"contentTags,omitempty"`
	QualityEstimate  float64     `json:"qualityEstimate"`
	AudienceAgeBands []string    `json:"audienceAgeBands,omitempty"`
	Source           StyleSource `json:"source"`
}
