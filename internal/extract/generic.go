package extract

import (
	"context"

	"milesfare-backend/internal/airfare"
)

var CashKeys = []string{
	"flights",
	"flightOptions",
	"itineraries",
	"results",
	"outbound",
	"recommendations",
	"offers",
	"journeys",
	"boundList",
	"availabilities",
}

var AwardKeys = []string{
	"flights",
	"flightOptions",
	"itineraries",
	"results",
	"outbound",
	"recommendations",
	"offers",
	"journeys",
	"availabilities",
	"awardFlights",
	"awardOptions",
	"mileageFlights",
	"seatResults",
}

// Mapper turns one element of a flight array into an option, false skips it.
type Mapper func(item map[string]any) (airfare.FlightOption, bool)

// GenericJSON searches captured responses for a flight array under one of
// Keys, at the top level first and then one object level deeper, and maps
// each element with Mapper.
type GenericJSON struct {
	Label  string
	Keys   []string
	Mapper Mapper
}

func (g GenericJSON) Name() string {
	return g.Label
}

func (g GenericJSON) Extract(ctx context.Context, in Input) ([]airfare.FlightOption, error) {
	return ForEachResponse(in.Responses, nil, g.Parse)
}

func (g GenericJSON) Parse(body any) []airfare.FlightOption {
	return g.search(body, 0)
}

func (g GenericJSON) search(v any, depth int) []airfare.FlightOption {
	obj, ok := Object(v)
	if !ok {
		return nil
	}
	for _, key := range g.Keys {
		items, ok := Array(obj[key])
		if !ok || len(items) == 0 {
			continue
		}
		options := []airfare.FlightOption{}
		for _, item := range items {
			m, ok := Object(item)
			if !ok {
				continue
			}
			option, ok := g.Mapper(m)
			if ok {
				options = append(options, option)
			}
		}
		if len(options) > 0 {
			return options
		}
	}
	if depth >= 1 {
		return nil
	}
	for _, key := range sortedKeys(obj) {
		if _, isObj := Object(obj[key]); !isObj {
			continue
		}
		options := g.search(obj[key], depth+1)
		if len(options) > 0 {
			return options
		}
	}
	return nil
}

func guessSegments(item map[string]any) []airfare.FlightSegment {
	raw := []any{item}
	for _, key := range []string{"segments", "legs", "flights"} {
		if arr, ok := Array(item[key]); ok {
			raw = arr
			break
		}
	}

	segments := []airfare.FlightSegment{}
	for _, r := range raw {
		s, ok := Object(r)
		if !ok {
			continue
		}
		segment := airfare.FlightSegment{
			FlightNumber:     Truthy(s, "flightNumber", "flight_number", "flightNo", "number"),
			Airline:          TruthyOr(s, "China Airlines", "airline", "carrier", "airlineName"),
			DepartureAirport: Truthy(s, "departureAirport", "origin", "departure"),
			ArrivalAirport:   Truthy(s, "arrivalAirport", "destination", "arrival"),
			DepartureTime:    Truthy(s, "departureTime", "departure_time", "depTime"),
			ArrivalTime:      Truthy(s, "arrivalTime", "arrival_time", "arrTime"),
			Duration:         Truthy(s, "duration"),
			Aircraft:         Truthy(s, "aircraft"),
		}
		if segment.FlightNumber == "" && segment.DepartureTime == "" {
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}

func guessCommon(item map[string]any) airfare.FlightOption {
	segments := guessSegments(item)
	option := airfare.FlightOption{
		Segments:      segments,
		TotalDuration: Truthy(item, "totalDuration", "duration"),
		Cabin:         TruthyOr(item, "Economy", "cabinClass", "cabin", "fareClass"),
	}
	if stops, ok := Number(item, "stops"); ok {
		option.Stops = int(stops)
	} else if len(segments) > 0 {
		option.Stops = len(segments) - 1
	}
	return option
}

// MapCash guesses a cash-priced option from common field names.
func MapCash(item map[string]any) (airfare.FlightOption, bool) {
	option := guessCommon(item)
	option.FareFamily = Truthy(item, "fareType")

	price := FirstObject(item, "price", "fare", "pricing")
	amount, ok := Number(price, "amount", "total")
	if !ok {
		amount, ok = Number(item, "price")
	}
	if ok {
		option.CashPrice = &airfare.Money{
			Amount:   amount,
			Currency: TruthyOr(price, "USD", "currency"),
		}
	}
	return option, true
}

// MapAward guesses a miles-priced option from common field names.
func MapAward(item map[string]any) (airfare.FlightOption, bool) {
	option := guessCommon(item)
	option.BookingClass = Truthy(item, "bookingClass", "fareClass")
	option.FareFamily = Truthy(item, "fareFamily", "fareFamilyCode")

	if seats, ok := Number(item, "seats", "availability", "quota"); ok {
		n := int(seats)
		option.SeatsAvailable = &n
	}

	miles, ok := Number(item, "miles", "milesPrice", "mileage", "points")
	if !ok {
		return option, true
	}
	price := &airfare.MilesPrice{Miles: int(miles)}

	taxes := FirstObject(item, "taxes", "taxesAndFees", "fee")
	tax, ok := Number(taxes, "amount")
	if !ok {
		tax, ok = Number(item, "tax", "fees")
	}
	if ok {
		price.Taxes = &airfare.Money{
			Amount:   tax,
			Currency: TruthyOr(taxes, "USD", "currency"),
		}
	}
	option.MilesPrice = price
	return option, true
}
