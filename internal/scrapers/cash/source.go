package cash

import (
	"context"
	"math"
	"regexp"
	"strings"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/lib/textutil"
)

// twdToUSD is a fixed conversion rate for fares the site prices in TWD.
const twdToUSD = 0.031

var companySuffixRegex = regexp.MustCompile(`(?i)\bLTD\.?$`)

type searcher interface {
	Search(ctx context.Context, req airfare.SearchRequest) ([]airfare.FlightOption, error)
	DebugURL() string
}

// Source adapts the scraper to unified flight records priced in USD.
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
	// the site has no first class, it is searched as business
	if req.Cabin == airfare.CabinFirst {
		req.Cabin = airfare.CabinBusiness
	}
	options, err := s.scraper.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	records := make([]airfare.UnifiedFlightRecord, len(options))
	for i, option := range options {
		records[i] = ToRecord(option, req)
	}
	return records, nil
}

func ToRecord(option airfare.FlightOption, req airfare.SearchRequest) airfare.UnifiedFlightRecord {
	first := option.First()
	last := option.Last()
	date := req.DepartDateString()

	return airfare.UnifiedFlightRecord{
		ID:           "ci-" + first.FlightNumber + "-" + date,
		Airline:      CleanAirlineName(first.Airline),
		FlightNumber: first.FlightNumber,
		Origin:       first.DepartureAirport,
		Destination:  last.ArrivalAirport,
		DepartDate:   date,
		DepartTime:   first.DepartureTime,
		ArriveTime:   last.ArrivalTime,
		Duration:     option.TotalDuration,
		Stops:        option.Stops,
		Cabin:        strings.ToLower(option.Cabin),
		CashPrice:    usdAmount(option.CashPrice),
		CashCurrency: "USD",
	}
}

func usdAmount(price *airfare.Money) float64 {
	if price == nil {
		return 0
	}
	if price.Currency != "" && !strings.EqualFold(price.Currency, "USD") {
		return math.Round(price.Amount * twdToUSD)
	}
	return price.Amount
}

// CleanAirlineName turns "CHINA AIRLINES LTD." into "China Airlines".
func CleanAirlineName(raw string) string {
	return textutil.TitleCase(strings.TrimSpace(companySuffixRegex.ReplaceAllString(raw, "")))
}
