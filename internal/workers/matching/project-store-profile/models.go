// internal/workers/matching/project-store-profile/models.go
package projectstoreprofile

import "creator-match/internal/models"

type Input = models.ProjectRequest

// Output is shaped so run-creator-match can consume it as its input.
type Output struct {
	Profile  models.BusinessProfile `json:"profile"`
	StoreURL string                 `json:"storeUrl,omitempty"`
}
