// internal/models/store_payload.go
package models

// StorePayload is the parsed output of the store page scraper.
type StorePayload struct {
	Success   bool          `json:"success"`
	URL       string        `json:"url,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
	Error     string        `json:"error,omitempty"`
	Data      StorePageData `json:"data"`
}

type StorePageData struct {
	BasicInfo  StoreBasicInfo  `json:"basicInfo"`
	MenuItems  []StoreMenuItem `json:"menuItems,omitempty"`
	Reviews    []StoreReview   `json:"reviews,omitempty"`
	Images     []string        `json:"images,omitempty"`
	Statistics StoreStatistics `json:"statistics"`
}

type StoreBasicInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Address     string  `json:"address"`
	Telephone   string  `json:"telephone,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	PriceRange  string  `json:"priceRange,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"reviewCount,omitempty"`
	Category    string  `json:"category"`
}

type StoreMenuItem struct {
	Name  string `json:"name"`
	Price string `json:"price,omitempty"`
}

type StoreReview struct {
	Rating float64 `json:"rating,omitempty"`
	Text   string  `json:"text"`
	Date   string  `json:"date,omitempty"`
}

type StoreStatistics struct {
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"reviewCount,omitempty"`
}

// ProfileHints are operator-supplied descriptors the scraper cannot infer.
type ProfileHints struct {
	AgeBands     []string `json:"ageBands,omitempty"`
	InterestTags []string `json:"interestTags,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	RadiusKm     float64  `json:"radiusKm,omitempty"`
}
