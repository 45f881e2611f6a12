package cash

import (
	"context"
	"testing"
	"time"

	"milesfare-backend/internal/airfare"

	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	options []airfare.FlightOption
	got     airfare.SearchRequest
}

func (f *fakeSearcher) Search(ctx context.Context, req airfare.SearchRequest) ([]airfare.FlightOption, error) {
	f.got = req
	return f.options, nil
}

func (f *fakeSearcher) DebugURL() string {
	return ""
}

func TestSourceSearch(t *testing.T) {
	fake := &fakeSearcher{options: []airfare.FlightOption{
		{
			Segments: []airfare.FlightSegment{
				{FlightNumber: "CI8", Airline: "CHINA AIRLINES LTD.", DepartureAirport: "TPE", DepartureTime: "08:00"},
				{FlightNumber: "CI12", Airline: "CHINA AIRLINES LTD.", ArrivalAirport: "LAX", ArrivalTime: "06:00"},
			},
			Stops:         1,
			TotalDuration: "16h",
			CashPrice:     &airfare.Money{Amount: 25000, Currency: "TWD"},
			Cabin:         "Business",
		},
		{
			Segments:  []airfare.FlightSegment{{FlightNumber: "CI4", Airline: "China Airlines"}},
			CashPrice: &airfare.Money{Amount: 812.4, Currency: "USD"},
			Cabin:     "Economy",
		},
		{
			Segments: []airfare.FlightSegment{{FlightNumber: "Unknown"}},
			Cabin:    "Economy",
		},
	}}
	source := Source{scraper: fake}

	req := airfare.SearchRequest{
		Origin:      "TPE",
		Destination: "LAX",
		DepartDate:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Cabin:       airfare.CabinFirst,
		Passengers:  1,
	}
	records, err := source.Search(context.Background(), req)
	require.Nil(t, err)
	require.Equal(t, airfare.CabinBusiness, fake.got.Cabin)
	require.Len(t, records, 3)

	require.Equal(t, airfare.UnifiedFlightRecord{
		ID:           "ci-CI8-2026-06-01",
		Airline:      "China Airlines",
		FlightNumber: "CI8",
		Origin:       "TPE",
		Destination:  "LAX",
		DepartDate:   "2026-06-01",
		DepartTime:   "08:00",
		ArriveTime:   "06:00",
		Duration:     "16h",
		Stops:        1,
		Cabin:        "business",
		CashPrice:    775,
		CashCurrency: "USD",
	}, records[0])
	require.Equal(t, 812.4, records[1].CashPrice)
	require.Equal(t, float64(0), records[2].CashPrice)
	require.Nil(t, records[0].MilesPrice)
}

func TestCleanAirlineName(t *testing.T) {
	require.Equal(t, "China Airlines", CleanAirlineName("CHINA AIRLINES LTD."))
	require.Equal(t, "China Airlines", CleanAirlineName("china airlines ltd"))
	require.Equal(t, "Eva Air", CleanAirlineName("EVA AIR"))
}
