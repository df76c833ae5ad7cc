// internal/engine/projection/projection.go
package projection

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	apperrors "creator-match/internal/common/errors"
	"creator-match/internal/engine/geo"
	"creator-match/internal/engine/style"
	"creator-match/internal/models"
)

const maxMenuKeywords = 5

// Price tier boundaries in KRW, applied to the midpoint of a price range.
const (
	budgetBelow   = 10000
	moderateBelow = 25000
	premiumBelow  = 50000
)

var (
	categorySeparators = regexp.MustCompile(`[,>/|]`)
	amountPattern      = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(만)?`)
)

// Projector turns a scraped store page into a BusinessProfile.
type Projector struct {
	taxonomy *style.Taxonomy
	places   *geo.Table
}

func New(tax *style.Taxonomy, places *geo.Table) *Projector {
	if tax == nil {
		tax = style.DefaultTaxonomy()
	}
	if places == nil {
		places = geo.Default()
	}
	return &Projector{taxonomy: tax, places: places}
}

// Project validates payload and builds the profile. Unusable payloads yield
// a PAYLOAD_INVALID error; an address outside the region table yields
// PROFILE_PROJECTION_FAILED.
func (p *Projector) Project(payload models.StorePayload, hints models.ProfileHints) (models.BusinessProfile, error) {
	info := payload.Data.BasicInfo
	switch {
	case !payload.Success:
		reason := payload.Error
		if reason == "" {
			reason = "scrape was not successful"
		}
		return models.BusinessProfile{}, apperrors.NewPayloadInvalidError(reason)
	case strings.TrimSpace(info.Name) == "":
		return models.BusinessProfile{}, apperrors.NewPayloadInvalidError("basicInfo.name is required")
	case strings.TrimSpace(info.Category) == "":
		return models.BusinessProfile{}, apperrors.NewPayloadInvalidError("basicInfo.category is required")
	case strings.TrimSpace(info.Address) == "":
		return models.BusinessProfile{}, apperrors.NewPayloadInvalidError("basicInfo.address is required")
	}

	categories := p.categories(info.Category)
	if len(categories) == 0 {
		return models.BusinessProfile{}, apperrors.NewPayloadInvalidError("basicInfo.category has no usable value")
	}

	loc, ok := p.places.ParseAddress(info.Address)
	if !ok {
		return models.BusinessProfile{}, apperrors.NewProjectionFailedError(fmt.Sprintf("address not recognised: %s", info.Address))
	}
	loc.RadiusKm = hints.RadiusKm

	keywords := append([]string{}, hints.Keywords...)
	for i, item := range payload.Data.MenuItems {
		if i == maxMenuKeywords {
			break
		}
		keywords = append(keywords, item.Name)
	}
	keywords = append(keywords, info.Name)

	profile := models.BusinessProfile{
		Name:            strings.TrimSpace(info.Name),
		PrimaryCategory: categories[0],
		SecondaryTags:   categories[1:],
		Location:        loc,
		PriceTier:       PriceTier(info.PriceRange, payload.Data.MenuItems),
		AgeBands:        dedupe(hints.AgeBands),
		InterestTags:    dedupe(append(append([]string{}, hints.InterestTags...), categories...)),
		Keywords:        dedupe(keywords),
	}
	if len(profile.SecondaryTags) == 0 {
		profile.SecondaryTags = nil
	}
	if err := profile.Validate(); err != nil {
		return models.BusinessProfile{}, apperrors.NewProjectionFailedError(err.Error())
	}
	return profile, nil
}

// categories splits a category path and canonicalises each part, primary first.
func (p *Projector) categories(raw string) []string {
	var parts []string
	for _, part := range categorySeparators.Split(raw, -1) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, p.taxonomy.Canonical(part))
		}
	}
	return dedupe(parts)
}

// PriceTier derives the tier from a price range string, falling back to the
// median menu price and finally to moderate.
func PriceTier(priceRange string, menu []models.StoreMenuItem) models.PriceTier {
	if amounts := ParseAmounts(priceRange); len(amounts) > 0 {
		lo, hi := amounts[0], amounts[0]
		for _, a := range amounts {
			if a < lo {
				lo = a
			}
			if a > hi {
				hi = a
			}
		}
		return tierFor((lo + hi) / 2)
	}

	var prices []int
	for _, item := range menu {
		if amounts := ParseAmounts(item.Price); len(amounts) > 0 {
			prices = append(prices, amounts[0])
		}
	}
	if len(prices) == 0 {
		return models.PriceModerate
	}
	sort.Ints(prices)
	mid := len(prices) / 2
	if len(prices)%2 == 0 {
		return tierFor((prices[mid-1] + prices[mid]) / 2)
	}
	return tierFor(prices[mid])
}

// ParseAmounts extracts KRW amounts such as "18,000원" or "2만원".
func ParseAmounts(s string) []int {
	var out []int
	for _, m := range amountPattern.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if m[2] == "만" {
			v *= 10000
		}
		if v > 0 {
			out = append(out, int(v))
		}
	}
	return out
}

func tierFor(amount int) models.PriceTier {
	switch {
	case amount < budgetBelow:
		return models.PriceBudget
	case amount < moderateBelow:
		return models.PriceModerate
	case amount < premiumBelow:
		return models.PricePremium
	default:
		return models.PriceLuxury
	}
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
