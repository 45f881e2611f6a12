package airfare

import (
	"time"
)

const ListingStatusActive = "active"

type MarketplaceListing struct {
	ID             string   `json:"id"`
	Airline        string   `json:"airline"`
	LoyaltyProgram string   `json:"loyaltyProgram,omitempty"`
	MilesAvailable int      `json:"milesAvailable"`
	PricePerMile   float64  `json:"pricePerMile"`
	TotalPrice     *float64 `json:"totalPrice,omitempty"`
	SellerName     string   `json:"sellerDisplayName,omitempty"`
	SellerRating   *float64 `json:"sellerRating,omitempty"`
	Status         string   `json:"listingStatus"`
	PostedDate     string   `json:"postedDate,omitempty"`
}

type ListingSearchParams struct {
	Airline        string `json:"airline,omitempty"`
	MilesRange     string `json:"milesRange,omitempty"`
	UnitPriceRange string `json:"unitPriceRange,omitempty"`
}

// Key is the listings cache key, empty filters are treated as their defaults.
func (p ListingSearchParams) Key() string {
	n := p.Normalized()
	return n.Airline + "|" + n.MilesRange + "|" + n.UnitPriceRange
}

// Normalized fills default filter values: airline "all" and ranges
// "unlimited".
func (p ListingSearchParams) Normalized() ListingSearchParams {
	if p.Airline == "" {
		p.Airline = "all"
	}
	if p.MilesRange == "" {
		p.MilesRange = "unlimited"
	}
	if p.UnitPriceRange == "" {
		p.UnitPriceRange = "unlimited"
	}
	return p
}

type ListingSearchResult struct {
	Listings     []MarketplaceListing `json:"listings"`
	SearchParams ListingSearchParams  `json:"searchParams"`
	Provider     string               `json:"provider"`
	Timestamp    time.Time            `json:"timestamp"`
}
