// Package farecompare combines cash fares, award fares and marketplace
// listings into one priced answer per itinerary.
package farecompare

import (
	"context"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/pricing"
	"milesfare-backend/internal/scrapers/award"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("milesfare.services.farecompare")

const (
	report_service_award       = "service.award"
	report_service_marketplace = "service.marketplace"
	report_service_cash        = "service.cash"
)

const (
	FlightCacheTTL  = 10 * time.Minute
	ListingCacheTTL = 5 * time.Minute
	cacheSize       = 256
)

// marketplaceAirline is the airline whose listings price the buy option,
// every flight source searches the same carrier.
const marketplaceAirline = "CI"

type FlightSource interface {
	Name() string
	Search(ctx context.Context, req airfare.SearchRequest) ([]airfare.UnifiedFlightRecord, error)
	// DebugURL is the live view of the source's active browser session, or
	// "" when there is none.
	DebugURL() string
}

type ListingSource interface {
	Name() string
	Search(ctx context.Context, params airfare.ListingSearchParams) ([]airfare.MarketplaceListing, error)
}

type Authenticator interface {
	Login(ctx context.Context) award.LoginResult
}

type ActiveSessions struct {
	CashBrowserURL  *string `json:"cashBrowserUrl"`
	AwardBrowserURL *string `json:"awardBrowserUrl"`
}

type Service struct {
	cash     FlightSource
	award    FlightSource
	listings ListingSource
	auth     Authenticator
	clock    chrono.API
	tel      telemetry.API

	flightCache  *expirable.LRU[string, airfare.FlightSearchResult]
	listingCache *expirable.LRU[string, airfare.ListingSearchResult]
}

func NewService(
	cash, award FlightSource,
	listings ListingSource,
	auth Authenticator,
	clock chrono.API,
	tel telemetry.API,
) *Service {
	assert.NotNil(cash)
	assert.NotNil(award)
	assert.NotNil(listings)
	assert.NotNil(auth)
	assert.NotNil(clock)
	assert.NotNil(tel)
	return &Service{
		cash:         cash,
		award:        award,
		listings:     listings,
		auth:         auth,
		clock:        clock,
		tel:          telemetry.NewScopedAPI("farecompare", tel),
		flightCache:  expirable.NewLRU[string, airfare.FlightSearchResult](cacheSize, nil, FlightCacheTTL),
		listingCache: expirable.NewLRU[string, airfare.ListingSearchResult](cacheSize, nil, ListingCacheTTL),
	}
}

// Search validates raw and searches all three sources in parallel. Only a
// cash failure fails the search, missing award fares or listings leave the
// corresponding fields empty.
func (s *Service) Search(ctx context.Context, raw airfare.RawSearchRequest) (airfare.FlightSearchResult, error) {
	req, err := airfare.ParseSearchRequest(raw)
	if err != nil {
		return airfare.FlightSearchResult{}, err
	}
	key := req.Key()
	cached, ok := s.flightCache.Get(key)
	if ok {
		return cached, nil
	}

	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()
	span.SetAttributes(attribute.String("request", key))

	var cashRecords, awardRecords []airfare.UnifiedFlightRecord
	var listings []airfare.MarketplaceListing

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		records, err := s.cash.Search(groupCtx, req)
		if err != nil {
			s.tel.ReportWarning(report_service_cash, err)
			return err
		}
		cashRecords = records
		return nil
	})
	group.Go(func() error {
		records, err := s.award.Search(groupCtx, req)
		if err != nil {
			s.tel.ReportWarning(report_service_award, "continuing without award data", err)
			return nil
		}
		awardRecords = records
		return nil
	})
	group.Go(func() error {
		found, err := s.listings.Search(groupCtx, airfare.ListingSearchParams{Airline: marketplaceAirline})
		if err != nil {
			s.tel.ReportWarning(report_service_marketplace, "continuing without marketplace data", err)
			return nil
		}
		listings = found
		return nil
	})
	err = group.Wait()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return airfare.FlightSearchResult{}, err
	}

	merged := pricing.Merge(cashRecords, awardRecords)
	result := airfare.FlightSearchResult{
		Flights:      pricing.Decorate(merged, listings),
		SearchParams: req.Raw(),
		Provider:     s.cash.Name(),
		Timestamp:    s.clock.Now(),
	}
	span.SetAttributes(
		attribute.Int("flights", len(result.Flights)),
		attribute.Int("award_flights", len(awardRecords)),
		attribute.Int("listings", len(listings)),
	)
	s.flightCache.Add(key, result)
	return result, nil
}

func (s *Service) SearchListings(ctx context.Context, params airfare.ListingSearchParams) (airfare.ListingSearchResult, error) {
	params = params.Normalized()
	key := params.Key()
	cached, ok := s.listingCache.Get(key)
	if ok {
		return cached, nil
	}

	listings, err := s.listings.Search(ctx, params)
	if err != nil {
		return airfare.ListingSearchResult{}, err
	}
	result := airfare.ListingSearchResult{
		Listings:     listings,
		SearchParams: params,
		Provider:     s.listings.Name(),
		Timestamp:    s.clock.Now(),
	}
	s.listingCache.Add(key, result)
	return result, nil
}

// GetFlightByID looks the flight up in the results of recent searches.
func (s *Service) GetFlightByID(id string) (airfare.UnifiedFlightRecord, bool) {
	for _, result := range s.flightCache.Values() {
		for _, flight := range result.Flights {
			if flight.ID == id {
				return flight, true
			}
		}
	}
	return airfare.UnifiedFlightRecord{}, false
}

func (s *Service) GetListingByID(id string) (airfare.MarketplaceListing, bool) {
	for _, result := range s.listingCache.Values() {
		for _, listing := range result.Listings {
			if listing.ID == id {
				return listing, true
			}
		}
	}
	return airfare.MarketplaceListing{}, false
}

func (s *Service) Login(ctx context.Context) award.LoginResult {
	return s.auth.Login(ctx)
}

func (s *Service) ActiveSessions() ActiveSessions {
	return ActiveSessions{
		CashBrowserURL:  optional(s.cash.DebugURL()),
		AwardBrowserURL: optional(s.award.DebugURL()),
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
