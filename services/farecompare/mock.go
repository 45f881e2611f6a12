package farecompare

import (
	"context"
	"fmt"
	"strings"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/scrapers/award"
	"milesfare-backend/internal/scrapers/marketplace"
)

const (
	MockSourceName = "mock"
	mockDelay      = 500 * time.Millisecond
)

type mockTemplate struct {
	flightNumber string
	departTime   string
	arriveTime   string
	duration     string
	stops        int
	cash         map[airfare.Cabin]float64
	miles        int
	taxes        float64
}

func fares(economy, premium, business, first float64) map[airfare.Cabin]float64 {
	return map[airfare.Cabin]float64{
		airfare.CabinEconomy:        economy,
		airfare.CabinPremiumEconomy: premium,
		airfare.CabinBusiness:       business,
		airfare.CabinFirst:          first,
	}
}

func ci005(f map[airfare.Cabin]float64) mockTemplate {
	return mockTemplate{"CI 005", "23:40", "05:20+1", "13h 40m", 0, f, 35000, 45}
}

func ci007(f map[airfare.Cabin]float64) mockTemplate {
	return mockTemplate{"CI 007", "01:05", "06:50+1", "13h 45m", 0, f, 35000, 45}
}

func ci031(f map[airfare.Cabin]float64) mockTemplate {
	return mockTemplate{"CI 031", "11:30", "06:15+1", "18h 45m", 1, f, 25000, 38}
}

// one template per day, starting at the requested date
var mockTemplates = []mockTemplate{
	ci005(fares(850, 1350, 3200, 8500)),
	ci007(fares(780, 1280, 3100, 8200)),
	ci031(fares(620, 1050, 2600, 7000)),
	ci005(fares(920, 1450, 3400, 9000)),
	ci007(fares(720, 1200, 2900, 7800)),
	ci031(fares(580, 980, 2400, 6500)),
	ci005(fares(950, 1500, 3500, 9200)),
	// no award space
	{"CI 007", "01:05", "06:50+1", "13h 45m", 0, fares(680, 1150, 2800, 7500), 0, 0},
	ci031(fares(550, 950, 2300, 6200)),
	ci005(fares(1050, 1600, 3800, 9800)),
	ci007(fares(790, 1300, 3050, 8100)),
	ci031(fares(490, 880, 2200, 5800)),
}

// MockFlights serves deterministic fares carrying both a cash and a miles
// price.
type MockFlights struct {
	clock chrono.API
}

func NewMockFlights(clock chrono.API) MockFlights {
	return MockFlights{clock: clock}
}

func (MockFlights) Name() string {
	return MockSourceName
}

func (MockFlights) DebugURL() string {
	return ""
}

func (m MockFlights) Search(ctx context.Context, req airfare.SearchRequest) ([]airfare.UnifiedFlightRecord, error) {
	err := m.clock.Sleep(ctx, mockDelay)
	if err != nil {
		return nil, airfare.Wrap(airfare.KindTimeout, "search cancelled", err)
	}
	return MockFlightRecords(req), nil
}

func MockFlightRecords(req airfare.SearchRequest) []airfare.UnifiedFlightRecord {
	records := make([]airfare.UnifiedFlightRecord, len(mockTemplates))
	for i, t := range mockTemplates {
		date := req.DepartDate.AddDate(0, 0, i).Format(airfare.DateLayout)
		price, ok := t.cash[req.Cabin]
		if !ok {
			price = t.cash[airfare.CabinEconomy]
		}

		record := airfare.UnifiedFlightRecord{
			ID:           fmt.Sprintf("mock-%s-%s-%s", date, strings.ReplaceAll(t.flightNumber, " ", ""), req.Cabin),
			Airline:      "China Airlines",
			FlightNumber: t.flightNumber,
			Origin:       req.Origin,
			Destination:  req.Destination,
			DepartDate:   date,
			DepartTime:   t.departTime,
			ArriveTime:   t.arriveTime,
			Duration:     t.duration,
			Stops:        t.stops,
			Cabin:        string(req.Cabin),
			CashPrice:    price,
			CashCurrency: "USD",
		}
		if t.miles > 0 {
			miles := t.miles
			taxes := t.taxes
			record.MilesPrice = &miles
			record.MilesTaxes = &taxes
		}
		records[i] = record
	}
	return records
}

func mockListing(id, airline, program string, miles int, ppm, total float64, seller string, rating float64, posted string) airfare.MarketplaceListing {
	return airfare.MarketplaceListing{
		ID:             id,
		Airline:        airline,
		LoyaltyProgram: program,
		MilesAvailable: miles,
		PricePerMile:   ppm,
		TotalPrice:     &total,
		SellerName:     seller,
		SellerRating:   &rating,
		Status:         airfare.ListingStatusActive,
		PostedDate:     posted,
	}
}

var mockListings = []airfare.MarketplaceListing{
	mockListing("pb-mock-001", "American Airlines", "AAdvantage", 50000, 0.013, 650, "MilesTrader88", 4.8, "2026-02-19"),
	mockListing("pb-mock-002", "United Airlines", "MileagePlus", 100000, 0.012, 1200, "FrequentFlyer42", 4.9, "2026-02-18"),
	mockListing("pb-mock-003", "Delta Air Lines", "SkyMiles", 75000, 0.011, 825, "PointsKing", 4.7, "2026-02-20"),
	mockListing("pb-mock-004", "China Airlines", "Dynasty Flyer", 35000, 0.014, 490, "AsiaFlyer", 4.6, "2026-02-17"),
	mockListing("pb-mock-005", "China Airlines", "Dynasty Flyer", 80000, 0.0125, 1000, "TaipeiTraveler", 4.5, "2026-02-16"),
	mockListing("pb-mock-006", "British Airways", "Executive Club", 60000, 0.015, 900, "LondonMiles", 4.9, "2026-02-19"),
	mockListing("pb-mock-007", "Singapore Airlines", "KrisFlyer", 120000, 0.018, 2160, "SuitesDreamer", 5.0, "2026-02-15"),
	mockListing("pb-mock-008", "Alaska Airlines", "Mileage Plan", 25000, 0.0155, 387.5, "PNWExplorer", 4.3, "2026-02-20"),
	mockListing("pb-mock-009", "American Airlines", "AAdvantage", 200000, 0.0105, 2100, "BulkMilesHQ", 4.4, "2026-02-14"),
	mockListing("pb-mock-010", "Cathay Pacific", "Asia Miles", 45000, 0.016, 720, "HKTraveler", 4.7, "2026-02-18"),
	mockListing("pb-mock-011", "China Airlines", "Dynasty Flyer", 150000, 0.011, 1650, "MilesBroker", 4.8, "2026-02-13"),
	mockListing("pb-mock-012", "EVA Air", "Infinity MileageLands", 40000, 0.0135, 540, "StarAllianceFan", 4.6, "2026-02-21"),
}

type MockListings struct {
	clock chrono.API
}

func NewMockListings(clock chrono.API) MockListings {
	return MockListings{clock: clock}
}

func (MockListings) Name() string {
	return MockSourceName
}

func (m MockListings) Search(ctx context.Context, params airfare.ListingSearchParams) ([]airfare.MarketplaceListing, error) {
	err := m.clock.Sleep(ctx, mockDelay)
	if err != nil {
		return nil, airfare.Wrap(airfare.KindTimeout, "search cancelled", err)
	}
	return MockListingsFor(params.Airline), nil
}

// MockListingsFor filters the mock listings by IATA code or, for anything
// that is not a known code, by a fragment of the airline name.
func MockListingsFor(airline string) []airfare.MarketplaceListing {
	airline = strings.TrimSpace(airline)
	if airline == "" || strings.EqualFold(airline, "all") {
		return append([]airfare.MarketplaceListing(nil), mockListings...)
	}
	name, isCode := marketplace.AirlineName(airline)
	needle := strings.ToLower(airline)
	out := []airfare.MarketplaceListing{}
	for _, listing := range mockListings {
		var match bool
		if isCode {
			match = listing.Airline == name
		} else {
			match = strings.Contains(strings.ToLower(listing.Airline), needle)
		}
		if match {
			out = append(out, listing)
		}
	}
	return out
}

// MockAuthenticator reports a successful login without opening a browser.
type MockAuthenticator struct{}

func (MockAuthenticator) Login(context.Context) award.LoginResult {
	return award.LoginResult{
		Success: true,
		Message: "Mock mode: no login required.",
	}
}
