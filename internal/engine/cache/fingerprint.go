// internal/engine/cache/fingerprint.go
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"creator-match/internal/models"
)

// canonicalProfile is the normalized projection that defines profile identity.
// Field order is fixed by the struct so the encoding is stable.
type canonicalProfile struct {
	Primary   string   `json:"p"`
	Secondary []string `json:"s"`
	Region    string   `json:"r"`
	City      string   `json:"c"`
	District  string   `json:"d"`
	Lat       string   `json:"lat"`
	Lng       string   `json:"lng"`
	RadiusKm  string   `json:"rad"`
	Price     string   `json:"t"`
	AgeBands  []string `json:"a"`
	Interests []string `json:"i"`
	Keywords  []string `json:"k"`
}

// ProfileFingerprint hashes the semantically relevant profile fields. Case,
// surrounding whitespace, tag order and duplicate tags do not change it; the
// display name does not take part.
func ProfileFingerprint(p models.BusinessProfile) string {
	cp := canonicalProfile{
		Primary:   norm(p.PrimaryCategory),
		Secondary: normSet(p.SecondaryTags),
		Region:    norm(p.Location.Region),
		City:      norm(p.Location.City),
		District:  norm(p.Location.District),
		Lat:       coord(p.Location.Lat),
		Lng:       coord(p.Location.Lng),
		RadiusKm:  fmt.Sprintf("%.3f", p.Location.RadiusKm),
		Price:     p.PriceTier.String(),
		AgeBands:  normSet(p.AgeBands),
		Interests: normSet(p.InterestTags),
		Keywords:  normSet(p.Keywords),
	}
	raw, _ := json.Marshal(cp)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// EntityKey identifies a candidate's activity window of a given length.
func EntityKey(candidateID string, windowDays int) string {
	return fmt.Sprintf("activity:%s:%d", candidateID, windowDays)
}

// QueryKey identifies the candidate list a search query returned.
func QueryKey(query string, maxResults int) string {
	sum := sha256.Sum256([]byte(norm(query)))
	return fmt.Sprintf("query:%s:%d", hex.EncodeToString(sum[:8]), maxResults)
}

func norm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func normSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		n := norm(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.5f", *v)
}
