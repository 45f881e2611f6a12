// Package marketplace searches a peer-to-peer miles marketplace for miles
// offered for sale.
package marketplace

import (
	"context"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/search"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("milesfare.internal.scrapers.marketplace")

type Scraper struct {
	fetcher      Fetcher
	orchestrator search.Orchestrator
	tel          telemetry.API
}

func NewScraper(fetcher Fetcher, clock chrono.API, tel telemetry.API) *Scraper {
	assert.NotNil(fetcher)
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("marketplace", tel)
	return &Scraper{
		fetcher:      fetcher,
		orchestrator: search.NewOrchestrator(SourceName, search.MarketplacePermanent, clock, tel),
		tel:          tel,
	}
}

func (*Scraper) Name() string {
	return SourceName
}

// Search returns the listings matching params. An empty marketplace is
// NO_RESULTS, never an empty success.
func (s *Scraper) Search(ctx context.Context, params airfare.ListingSearchParams) ([]airfare.MarketplaceListing, error) {
	params = params.Normalized()
	airline, err := ResolveAirlineCode(params.Airline)
	if err != nil {
		return nil, err
	}
	url := BuildSearchURL(airline, params.MilesRange, params.UnitPriceRange)

	return search.Run(ctx, s.orchestrator, func(ctx context.Context) ([]airfare.MarketplaceListing, error) {
		ctx, span := tracer.Start(ctx, "Scrape")
		defer span.End()
		span.SetAttributes(attribute.String("url", url))

		page, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		listings := Parse(ctx, page, airline, url)
		span.SetAttributes(attribute.Int("listings", len(listings)))
		if len(listings) == 0 {
			return nil, airfare.Errorf(airfare.KindNoResults, "No listings found for airline: %s", airline)
		}
		s.tel.ReportCount("listings", int64(len(listings)))
		return listings, nil
	})
}
