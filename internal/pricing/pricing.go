// Package pricing merges cash and award records and decides, per itinerary,
// whether paying cash, redeeming held miles or buying miles is cheapest.
package pricing

import (
	"math"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/lib/textutil"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Merge copies the miles price of the matching award record (same flight
// number and departure date) onto each cash record that has none. Records
// that already carry a miles price are left untouched.
func Merge(cash, award []airfare.UnifiedFlightRecord) []airfare.UnifiedFlightRecord {
	type key struct {
		flightNumber string
		departDate   string
	}
	awardByKey := map[key]airfare.UnifiedFlightRecord{}
	for _, a := range award {
		k := key{textutil.NormalizeFlightNumber(a.FlightNumber), a.DepartDate}
		if _, ok := awardByKey[k]; !ok {
			awardByKey[k] = a
		}
	}

	merged := make([]airfare.UnifiedFlightRecord, len(cash))
	for i, c := range cash {
		merged[i] = c
		if c.MilesPrice != nil {
			continue
		}
		a, ok := awardByKey[key{textutil.NormalizeFlightNumber(c.FlightNumber), c.DepartDate}]
		if !ok || a.MilesPrice == nil {
			continue
		}
		merged[i].MilesPrice = a.MilesPrice
		merged[i].MilesTaxes = a.MilesTaxes
	}
	return merged
}

// CalculateCPP returns the cents each mile is worth when redeemed instead
// of paying cash, nil unless milesPrice is positive.
func CalculateCPP(cashPrice float64, milesPrice *int, milesTaxes *float64) *float64 {
	if milesPrice == nil || *milesPrice <= 0 {
		return nil
	}
	taxes := 0.0
	if milesTaxes != nil {
		taxes = *milesTaxes
	}
	cpp := (cashPrice - taxes) / float64(*milesPrice) * 100
	return &cpp
}

func Rating(cpp *float64) *airfare.CPPRating {
	if cpp == nil {
		return nil
	}
	var rating airfare.CPPRating
	switch {
	case *cpp >= 2.5:
		rating = airfare.RatingExcellent
	case *cpp >= 2.0:
		rating = airfare.RatingGood
	case *cpp >= 1.5:
		rating = airfare.RatingFair
	default:
		rating = airfare.RatingPoor
	}
	return &rating
}

// BestRate is the lowest price per mile among listings that can cover
// milesNeeded on their own.
func BestRate(milesNeeded int, listings []airfare.MarketplaceListing) *float64 {
	var best *float64
	for _, l := range listings {
		if l.MilesAvailable < milesNeeded {
			continue
		}
		if best == nil || l.PricePerMile < *best {
			rate := l.PricePerMile
			best = &rate
		}
	}
	return best
}

// Decide fills the buy-miles fields and the best deal of record.
func Decide(record airfare.UnifiedFlightRecord, listings []airfare.MarketplaceListing) airfare.UnifiedFlightRecord {
	deal := func(d airfare.BestDeal) *airfare.BestDeal { return &d }

	if record.MilesPrice == nil {
		record.BestDeal = deal(airfare.DealCash)
		record.Savings = nil
		return record
	}

	taxes := 0.0
	if record.MilesTaxes != nil {
		taxes = *record.MilesTaxes
	}

	record.BuyMilesRate = nil
	record.BuyMilesTotal = nil
	record.BuyMilesPlusTaxes = nil
	record.Savings = nil
	if rate := BestRate(*record.MilesPrice, listings); rate != nil {
		total := round2(float64(*record.MilesPrice) * *rate)
		plusTaxes := round2(total + taxes)
		record.BuyMilesRate = rate
		record.BuyMilesTotal = &total
		record.BuyMilesPlusTaxes = &plusTaxes
	}

	switch {
	case record.BuyMilesPlusTaxes != nil && *record.BuyMilesPlusTaxes < record.CashPrice:
		savings := round2(record.CashPrice - *record.BuyMilesPlusTaxes)
		record.BestDeal = deal(airfare.DealBuy)
		record.Savings = &savings
	case record.BuyMilesPlusTaxes == nil:
		record.BestDeal = deal(airfare.DealRedeem)
	default:
		record.BestDeal = deal(airfare.DealCash)
	}
	return record
}

// Decorate adds the cents-per-point value and rating, then the best deal,
// to every record. The rating is taken from the unrounded value.
func Decorate(records []airfare.UnifiedFlightRecord, listings []airfare.MarketplaceListing) []airfare.UnifiedFlightRecord {
	out := make([]airfare.UnifiedFlightRecord, len(records))
	for i, record := range records {
		cpp := CalculateCPP(record.CashPrice, record.MilesPrice, record.MilesTaxes)
		record.CentsPerPoint = nil
		if cpp != nil {
			rounded := round2(*cpp)
			record.CentsPerPoint = &rounded
		}
		record.CPPRating = Rating(cpp)
		out[i] = Decide(record, listings)
	}
	return out
}
