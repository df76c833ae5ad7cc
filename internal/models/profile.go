// internal/models/profile.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PriceTier is the ordinal price level of a business.
type PriceTier int

const (
	PriceUnknown PriceTier = iota
	PriceBudget
	PriceModerate
	PricePremium
	PriceLuxury
)

var priceTierNames = map[PriceTier]string{
	PriceUnknown:  "",
	PriceBudget:   "budget",
	PriceModerate: "moderate",
	PricePremium:  "premium",
	PriceLuxury:   "luxury",
}

func (p PriceTier) String() string {
	return priceTierNames[p]
}

// ParsePriceTier accepts the tier name in any case. Empty input is PriceUnknown.
func ParsePriceTier(s string) (PriceTier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for tier, name := range priceTierNames {
		if name == s {
			return tier, nil
		}
	}
	return PriceUnknown, fmt.Errorf("unknown price tier %q", s)
}

func (p PriceTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PriceTier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tier, err := ParsePriceTier(s)
	if err != nil {
		return err
	}
	*p = tier
	return nil
}

// Location places a business or a creator. Region is the broad area
// (e.g. 수도권), City the metropolitan city (e.g. 서울) and District the
// 구/군 level unit (e.g. 강남구).
type Location struct {
	Region   string   `json:"region,omitempty"`
	City     string   `json:"city,omitempty"`
	District string   `json:"district,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	RadiusKm float64  `json:"radiusKm,omitempty"`
}

func (l Location) IsZero() bool {
	return l.Region == "" && l.City == "" && l.District == ""
}

// BusinessProfile describes the physical business an analysis is run for.
// It is an immutable input and is never modified by the engine.
type BusinessProfile struct {
	Name            string    `json:"name,omitempty"`
	PrimaryCategory string    `json:"primaryCategory"`
	SecondaryTags   []string  `json:"secondaryTags,omitempty"`
	Location        Location  `json:"location"`
	PriceTier       PriceTier `json:"priceTier"`
	AgeBands        []string  `json:"ageBands,omitempty"`
	InterestTags    []string  `json:"interestTags,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
}

// Validate reports the first missing or malformed field.
func (p BusinessProfile) Validate() error {
	if strings.TrimSpace(p.PrimaryCategory) == "" {
		return fmt.Errorf("primaryCategory is required")
	}
	if p.Location.IsZero() {
		return fmt.Errorf("location requires at least one of region, city or district")
	}
	if (p.Location.Lat == nil) != (p.Location.Lng == nil) {
		return fmt.Errorf("location lat and lng must be set together")
	}
	if p.Location.Lat != nil && (*p.Location.Lat < -90 || *p.Location.Lat > 90) {
		return fmt.Errorf("location lat %f out of range", *p.Location.Lat)
	}
	if p.Location.Lng != nil && (*p.Location.Lng < -180 || *p.Location.Lng > 180) {
		return fmt.Errorf("location lng %f out of range", *p.Location.Lng)
	}
	if p.Location.RadiusKm < 0 {
		return fmt.Errorf("location radiusKm must not be negative")
	}
	if p.PriceTier < PriceUnknown || p.PriceTier > PriceLuxury {
		return fmt.Errorf("priceTier %d out of range", int(p.PriceTier))
	}
	return nil
}
