// internal/engine/discovery/queries.go
package discovery

import (
	"regexp"
	"strings"

	"creator-match/internal/models"
)

var ageBandPattern = regexp.MustCompile(`^(\d0)s$`)

// BuildQueries derives search queries from a profile in priority order:
// location with category, then keywords alone, then audience descriptors
// with the category. Duplicates are removed and at most limit are returned;
// limit <= 0 means no cap.
func BuildQueries(p models.BusinessProfile, limit int) []string {
	primary := clean(p.PrimaryCategory)
	places := placeTerms(p.Location)

	var qs []string
	for _, place := range places {
		qs = append(qs, join(place, primary))
	}
	for _, place := range places {
		for _, tag := range p.SecondaryTags {
			qs = append(qs, join(place, clean(tag)))
		}
	}

	for _, kw := range p.Keywords {
		qs = append(qs, clean(kw))
	}

	for _, interest := range p.InterestTags {
		qs = append(qs, join(clean(interest), primary))
	}
	for _, band := range p.AgeBands {
		qs = append(qs, join(ageBandTerm(band), primary))
	}

	out := make([]string, 0, len(qs))
	seen := map[string]bool{}
	for _, q := range qs {
		k := strings.ToLower(q)
		if q == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// placeTerms lists location names from most to least specific.
func placeTerms(loc models.Location) []string {
	var terms []string
	for _, s := range []string{loc.District, loc.City} {
		if s = clean(s); s != "" {
			terms = append(terms, s)
		}
	}
	if len(terms) == 0 {
		if r := clean(loc.Region); r != "" {
			terms = append(terms, r)
		}
	}
	return terms
}

func ageBandTerm(band string) string {
	band = clean(band)
	if m := ageBandPattern.FindStringSubmatch(strings.ToLower(band)); m != nil {
		return m[1] + "대"
	}
	return band
}

func join(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	return a + " " + b
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
