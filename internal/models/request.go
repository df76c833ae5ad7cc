// internal/models/request.go
package models

// RunOptions tune one analysis. Zero values use the configured defaults.
type RunOptions struct {
	MaxResults   int  `json:"maxResults,omitempty"`
	MinScore     int  `json:"minScore,omitempty"`
	ForceRefresh bool `json:"forceRefresh,omitempty"`
}

type RunRequest struct {
	Profile BusinessProfile `json:"profile"`
	Options RunOptions      `json:"options"`
}

type ProjectRequest struct {
	Payload StorePayload `json:"payload"`
	Hints   ProfileHints `json:"hints"`
}
