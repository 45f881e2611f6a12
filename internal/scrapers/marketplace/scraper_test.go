package marketplace

import (
	"context"
	"testing"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	pages []ScrapedPage
	errs  []error
	urls  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (ScrapedPage, error) {
	i := len(f.urls)
	f.urls = append(f.urls, url)
	if i < len(f.errs) && f.errs[i] != nil {
		return ScrapedPage{}, f.errs[i]
	}
	if i < len(f.pages) {
		return f.pages[i], nil
	}
	return ScrapedPage{}, nil
}

func newScraper(fetcher Fetcher) (*Scraper, *chrono.Manual) {
	clock := chrono.NewManual(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	return NewScraper(fetcher, clock, &telemetry.Recorder{}), clock
}

const listingTable = `| Airline | Miles | Price per Mile |
|---|---|---|
| China Airlines | 50,000 | $0.0215 |`

func TestSearchRetriesThenSucceeds(t *testing.T) {
	fetcher := &fakeFetcher{
		errs:  []error{airfare.Errorf(airfare.KindTimeout, "slow")},
		pages: []ScrapedPage{{}, {Markdown: listingTable}},
	}
	scraper, clock := newScraper(fetcher)

	listings, err := scraper.Search(context.Background(), airfare.ListingSearchParams{Airline: "China Airlines"})
	require.Nil(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, 0.0215, listings[0].PricePerMile)

	require.Len(t, fetcher.urls, 2)
	require.Equal(t, "https://pointsbazaar.com/mileage/selling?airline=CI&milesRange=unlimited&unitPriceRange=unlimited", fetcher.urls[0])
	require.Equal(t, []time.Duration{3 * time.Second}, clock.Sleeps())
}

func TestSearchEmptyIsNoResults(t *testing.T) {
	fetcher := &fakeFetcher{}
	scraper, clock := newScraper(fetcher)

	_, err := scraper.Search(context.Background(), airfare.ListingSearchParams{})
	require.Equal(t, airfare.KindNoResults, airfare.KindOf(err))
	require.Contains(t, err.Error(), "No listings found for airline: all")
	require.Len(t, fetcher.urls, 3)
	require.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, clock.Sleeps())
}

func TestSearchUnknownAirline(t *testing.T) {
	fetcher := &fakeFetcher{}
	scraper, _ := newScraper(fetcher)

	_, err := scraper.Search(context.Background(), airfare.ListingSearchParams{Airline: "Nowhere Express"})
	require.Equal(t, airfare.KindInvalidInput, airfare.KindOf(err))
	require.Empty(t, fetcher.urls)
}
