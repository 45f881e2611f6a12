package award

import (
	"context"
	"fmt"
	"strings"

	"milesfare-backend/internal/airfare"
)

type searcher interface {
	Search(ctx context.Context, req airfare.SearchRequest) ([]airfare.FlightOption, error)
	DebugURL() string
}

// Source adapts the scraper to unified flight records. Award records carry
// miles and taxes but no cash price.
type Source struct {
	scraper searcher
}

func NewSource(scraper *Scraper) Source {
	return Source{scraper: scraper}
}

func (Source) Name() string {
	return SourceName
}

func (s Source) DebugURL() string {
	return s.scraper.DebugURL()
}

func (s Source) Search(ctx context.Context, req airfare.SearchRequest) ([]airfare.UnifiedFlightRecord, error) {
	if req.Cabin == airfare.CabinFirst {
		req.Cabin = airfare.CabinBusiness
	}
	options, err := s.scraper.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	records := make([]airfare.UnifiedFlightRecord, len(options))
	for i, option := range options {
		records[i] = ToRecord(option, req, i)
	}
	return records, nil
}

func ToRecord(option airfare.FlightOption, req airfare.SearchRequest, index int) airfare.UnifiedFlightRecord {
	first := option.First()
	last := option.Last()
	date := req.DepartDateString()

	record := airfare.UnifiedFlightRecord{
		ID:           fmt.Sprintf("award-%s-%s-%s-%d", req.Origin, req.Destination, date, index),
		Airline:      orDefault(first.Airline, "China Airlines"),
		FlightNumber: orDefault(first.FlightNumber, "Unknown"),
		Origin:       orDefault(first.DepartureAirport, req.Origin),
		Destination:  orDefault(last.ArrivalAirport, req.Destination),
		DepartDate:   date,
		DepartTime:   first.DepartureTime,
		ArriveTime:   last.ArrivalTime,
		Duration:     option.TotalDuration,
		Stops:        option.Stops,
		Cabin:        strings.ToLower(option.Cabin),
		CashPrice:    0,
		CashCurrency: "USD",
	}
	if option.MilesPrice != nil {
		miles := option.MilesPrice.Miles
		record.MilesPrice = &miles
		if option.MilesPrice.Taxes != nil {
			taxes := option.MilesPrice.Taxes.Amount
			record.MilesTaxes = &taxes
		}
	}
	return record
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
