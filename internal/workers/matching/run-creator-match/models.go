// internal/workers/matching/run-creator-match/models.go
package runcreatormatch

import (
	"time"

	"creator-match/internal/models"
)

type Input = models.RunRequest

type Output struct {
	AnalysisID  string               `json:"analysisId"`
	Fingerprint string               `json:"fingerprint"`
	MatchCount  int                  `json:"matchCount"`
	Matches     []models.MatchResult `json:"matches"`
	CreatedAt   time.Time            `json:"createdAt"`
	ExpiresAt   time.Time            `json:"expiresAt"`
	Stats       models.RunStats      `json:"stats"`
	Cached      bool                 `json:"cached"`
}
