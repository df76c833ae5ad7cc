// internal/engine/cache/fingerprint_test.go
package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"creator-match/internal/models"
)

func baseProfile() models.BusinessProfile {
	return models.BusinessProfile{
		Name:            "바삭치킨 강남점",
		PrimaryCategory: "치킨",
		SecondaryTags:   []string{"호프", "배달"},
		Location:        models.Location{City: "서울", District: "강남구"},
		PriceTier:       models.PriceModerate,
		AgeBands:        []string{"20s", "30s"},
		InterestTags:    []string{"맛집"},
	}
}

func TestProfileFingerprint(t *testing.T) {
	base := ProfileFingerprint(baseProfile())
	assert.Len(t, base, 64)

	tests := []struct {
		name   string
		mutate func(p *models.BusinessProfile)
		same   bool
	}{
		{"identical", func(p *models.BusinessProfile) {}, true},
		{"display name ignored", func(p *models.BusinessProfile) { p.Name = "다른 이름" }, true},
		{"tag order ignored", func(p *models.BusinessProfile) { p.SecondaryTags = []string{"배달", "호프"} }, true},
		{"duplicate tags ignored", func(p *models.BusinessProfile) { p.SecondaryTags = []string{"호프", "배달", "호프"} }, true},
		{"case and spacing ignored", func(p *models.BusinessProfile) { p.AgeBands = []string{" 20S", "30s "} }, true},
		{"category matters", func(p *models.BusinessProfile) { p.PrimaryCategory = "피자" }, false},
		{"district matters", func(p *models.BusinessProfile) { p.Location.District = "서초구" }, false},
		{"price tier matters", func(p *models.BusinessProfile) { p.PriceTier = models.PricePremium }, false},
		{"keywords matter", func(p *models.BusinessProfile) { p.Keywords = []string{"양념"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			tt.mutate(&p)
			if tt.same {
				assert.Equal(t, base, ProfileFingerprint(p))
			} else {
				assert.NotEqual(t, base, ProfileFingerprint(p))
			}
		})
	}
}
