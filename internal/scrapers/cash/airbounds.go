package cash

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/extract"
)

type airBoundsResponse struct {
	Data struct {
		AirBoundGroups []airBoundGroup `json:"airBoundGroups"`
	} `json:"data"`
	Dictionaries struct {
		Flight   map[string]flightEntry `json:"flight"`
		Airline  map[string]string      `json:"airline"`
		Aircraft map[string]string      `json:"aircraft"`
	} `json:"dictionaries"`
}

type airBoundGroup struct {
	BoundDetails struct {
		OriginLocationCode      string `json:"originLocationCode"`
		DestinationLocationCode string `json:"destinationLocationCode"`
		Duration                int    `json:"duration"`
		Segments                []struct {
			FlightID string `json:"flightId"`
		} `json:"segments"`
	} `json:"boundDetails"`
	AirBounds []airBound `json:"airBounds"`
}

type airBound struct {
	IsCheapestOffer     bool   `json:"isCheapestOffer"`
	FareFamilyCode      string `json:"fareFamilyCode"`
	AvailabilityDetails []struct {
		FlightID     string `json:"flightId"`
		Cabin        string `json:"cabin"`
		BookingClass string `json:"bookingClass"`
		Quota        *int   `json:"quota"`
	} `json:"availabilityDetails"`
	Prices struct {
		TotalPrices []struct {
			Total        *float64 `json:"total"`
			CurrencyCode string   `json:"currencyCode"`
		} `json:"totalPrices"`
	} `json:"prices"`
	FareInfos []struct {
		FareClass string `json:"fareClass"`
	} `json:"fareInfos"`
}

type flightEntry struct {
	MarketingAirlineCode  string `json:"marketingAirlineCode"`
	MarketingFlightNumber string `json:"marketingFlightNumber"`
	Departure             struct {
		LocationCode string `json:"locationCode"`
		DateTime     string `json:"dateTime"`
	} `json:"departure"`
	Arrival struct {
		LocationCode string `json:"locationCode"`
		DateTime     string `json:"dateTime"`
	} `json:"arrival"`
	AircraftCode string `json:"aircraftCode"`
	Duration     int    `json:"duration"`
}

var cabinNames = map[string]string{
	"eco":         "Economy",
	"premium_eco": "Premium Economy",
	"business":    "Business",
}

var isoTimeRegex = regexp.MustCompile(`T(\d{2}:\d{2})`)

// AirBounds maps the booking site's air-bounds search response.
type AirBounds struct{}

func (AirBounds) Name() string {
	return "air-bounds"
}

func (a AirBounds) Extract(ctx context.Context, in extract.Input) ([]airfare.FlightOption, error) {
	for _, res := range in.Responses {
		if !strings.Contains(res.URL, airBoundsPath) {
			continue
		}
		var body airBoundsResponse
		err := json.Unmarshal(res.Body, &body)
		if err != nil {
			return nil, airfare.Wrap(airfare.KindParseError, "decode air-bounds response", err)
		}
		options := parseAirBounds(body)
		if len(options) > 0 {
			return options, nil
		}
	}
	return nil, extract.ErrNoMatch
}

// parseAirBounds builds one option per bound group priced at the group's
// cheapest offer. Groups whose segments are all missing from the flight
// dictionary are skipped.
func parseAirBounds(res airBoundsResponse) []airfare.FlightOption {
	options := []airfare.FlightOption{}
	for _, group := range res.Data.AirBoundGroups {
		bound := group.BoundDetails
		if len(bound.Segments) == 0 {
			continue
		}

		segments := []airfare.FlightSegment{}
		for _, ref := range bound.Segments {
			entry, ok := res.Dictionaries.Flight[ref.FlightID]
			if !ok {
				continue
			}
			segments = append(segments, segmentFrom(entry, res, bound.OriginLocationCode, bound.DestinationLocationCode, bound.Duration))
		}
		if len(segments) == 0 {
			continue
		}

		option := airfare.FlightOption{
			Segments:      segments,
			Stops:         len(segments) - 1,
			TotalDuration: formatDuration(bound.Duration),
			Cabin:         "Economy",
		}

		cheapest := cheapestOffer(group.AirBounds)
		if cheapest != nil {
			if len(cheapest.Prices.TotalPrices) > 0 {
				price := cheapest.Prices.TotalPrices[0]
				currency := price.CurrencyCode
				if currency == "" {
					currency = "TWD"
				}
				if price.Total != nil {
					option.CashPrice = &airfare.Money{Amount: *price.Total, Currency: currency}
				}
			}
			if len(cheapest.AvailabilityDetails) > 0 {
				availability := cheapest.AvailabilityDetails[0]
				option.Cabin = cabinName(availability.Cabin)
				option.BookingClass = availability.BookingClass
				option.SeatsAvailable = availability.Quota
			}
			if len(cheapest.FareInfos) > 0 {
				option.FareFamily = cheapest.FareInfos[0].FareClass
			}
		}
		options = append(options, option)
	}
	return options
}

func cheapestOffer(bounds []airBound) *airBound {
	for i := range bounds {
		if bounds[i].IsCheapestOffer {
			return &bounds[i]
		}
	}
	if len(bounds) > 0 {
		return &bounds[0]
	}
	return nil
}

func segmentFrom(entry flightEntry, res airBoundsResponse, origin, destination string, boundDuration int) airfare.FlightSegment {
	airlineCode := entry.MarketingAirlineCode
	if airlineCode == "" {
		airlineCode = "CI"
	}
	airline, ok := res.Dictionaries.Airline[airlineCode]
	if !ok {
		airline = "China Airlines"
	}

	segment := airfare.FlightSegment{
		FlightNumber:     airlineCode + entry.MarketingFlightNumber,
		Airline:          airline,
		DepartureAirport: firstNonEmpty(entry.Departure.LocationCode, origin),
		ArrivalAirport:   firstNonEmpty(entry.Arrival.LocationCode, destination),
		DepartureTime:    formatTime(entry.Departure.DateTime),
		ArrivalTime:      formatTime(entry.Arrival.DateTime),
	}

	duration := entry.Duration
	if duration == 0 {
		duration = boundDuration
	}
	segment.Duration = formatDuration(duration)

	if entry.AircraftCode != "" {
		segment.Aircraft = firstNonEmpty(res.Dictionaries.Aircraft[entry.AircraftCode], entry.AircraftCode)
	}
	return segment
}

func cabinName(raw string) string {
	if raw == "" {
		return "Economy"
	}
	if name, ok := cabinNames[raw]; ok {
		return name
	}
	return raw
}

func formatTime(iso string) string {
	m := isoTimeRegex.FindStringSubmatch(iso)
	if m == nil {
		return ""
	}
	return m[1]
}

// formatDuration renders seconds as "Xh Ym", dropping a zero part.
func formatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
