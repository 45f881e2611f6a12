package award

import (
	"context"
	"strings"
	"testing"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/browser/browsertest"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/debugdump"
	"milesfare-backend/internal/session"
	"milesfare-backend/internal/sessionstore"

	"github.com/stretchr/testify/require"
)

const awardURL = "https://membersonair.china-airlines.com/AwardTicketSeat/Search"

type fakeSessions struct {
	session   *session.Session
	requested []string
	acquired  int
	released  int
}

func (f *fakeSessions) Acquire(ctx context.Context, sessionID string) (*session.Session, func(), error) {
	f.requested = append(f.requested, sessionID)
	f.acquired++
	return f.session, func() { f.released++ }, nil
}

func (f *fakeSessions) Active() *session.Session {
	return nil
}

func awardForm(id string) *browsertest.Page {
	page := browsertest.NewPage(id, awardURL)
	for _, selector := range []string{
		agreeCheckbox,
		oneWayRadio,
		originInput,
		destinationInput,
		departDateInput,
		"#rbnBUSINESSAS",
		searchButton,
	} {
		page.Show(selector, "")
	}
	page.OnEvaluate = func(script string) (any, error) {
		if strings.Contains(script, "createTreeWalker") {
			return false, nil
		}
		return true, nil
	}
	return page
}

// dashboard opens award in a new tab of handle when the reward link is
// clicked.
func dashboard(handle *browsertest.Handle, award *browsertest.Page) *browsertest.Page {
	page := browsertest.NewPage("dashboard", "about:blank")
	page.Show("a", "Home", "Reward Ticket")
	page.OnClick = func(p *browsertest.Page, selector string, index int) error {
		if selector == "a" && index == 1 {
			handle.AddPage(award)
		}
		return nil
	}
	return page
}

func newScraper(sessions Sessions, profiles Profiles) (*Scraper, *chrono.Manual) {
	clock := chrono.NewManual(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	tel := &telemetry.Recorder{}
	return NewScraper(DefaultConfig(), sessions, profiles, newDriver(clock, tel), clock, debugdump.New("", tel), tel), clock
}

func request() airfare.SearchRequest {
	return airfare.SearchRequest{
		Origin:      "TPE",
		Destination: "LAX",
		DepartDate:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Cabin:       airfare.CabinBusiness,
		Passengers:  1,
	}
}

func TestSearchThroughNewTab(t *testing.T) {
	award := awardForm("award")
	award.Responses = []browser.Response{{
		URL: "https://membersonair.china-airlines.com/AwardTicketSeat/api/search",
		Body: []byte(`{"data": {"awardFlights": [
			{"flightNumber": "CI6", "departureTime": "23:55", "arrivalTime": "19:35", "miles": 75000, "taxes": {"amount": 45.2}, "cabin": "Business"}
		]}}`),
	}}
	handle := browsertest.NewHandle()
	dash := dashboard(handle, award)
	handle.AddPage(dash)

	sessions := &fakeSessions{session: &session.Session{ID: "s-2", ContextID: "ctx-1", Handle: handle, Page: dash}}
	profiles := newFakeProfiles()
	profiles.profiles[SourceName] = sessionstore.Profile{ContextID: "ctx-1", SessionID: "s-1"}
	scraper, _ := newScraper(sessions, profiles)

	options, err := scraper.Search(context.Background(), request())
	require.Nil(t, err)
	require.Len(t, options, 1)
	require.Equal(t, "CI6", options[0].First().FlightNumber)
	require.Equal(t, "TPE", options[0].First().DepartureAirport)
	require.Equal(t, 75000, options[0].MilesPrice.Miles)

	require.Equal(t, []string{"s-1"}, sessions.requested)
	require.Equal(t, "s-2", profiles.profiles[SourceName].SessionID)

	require.Equal(t, []string{DefaultDashboardURL}, dash.Navigations)
	require.Equal(t, 0, award.NavigationCount())
	require.Equal(t, "TPE", award.Typed[originInput])
	require.Equal(t, "LAX", award.Typed[destinationInput])
	require.Equal(t, []browser.Key{browser.KeyTab, browser.KeyTab}, award.Pressed)
	require.Contains(t, award.Clicks, browsertest.Click{Selector: oneWayRadio, Index: 0})
	require.Contains(t, award.Clicks, browsertest.Click{Selector: "#rbnBUSINESSAS", Index: 0})
	require.Equal(t, browsertest.Click{Selector: searchButton, Index: 0}, award.Clicks[len(award.Clicks)-1])

	dateScripts := 0
	for _, script := range award.Scripts {
		if strings.Contains(script, `"06/01/2026"`) {
			dateScripts++
		}
	}
	require.Equal(t, 1, dateScripts)
	require.Equal(t, 1, sessions.released)
}

func TestSearchFallsBackToPageText(t *testing.T) {
	award := awardForm("award")
	award.Content = `<html><body>
		<div>CI 006 23:55 19:35</div>
		<div>75,000 miles USD 45.20 2 seats</div>
	</body></html>`
	handle := browsertest.NewHandle()
	dash := dashboard(handle, award)
	handle.AddPage(dash)
	sessions := &fakeSessions{session: &session.Session{ID: "s-1", Handle: handle, Page: dash}}
	scraper, _ := newScraper(sessions, nil)

	options, err := scraper.Search(context.Background(), request())
	require.Nil(t, err)
	require.Len(t, options, 1)
	require.Equal(t, "CI006", options[0].First().FlightNumber)
	require.Equal(t, &airfare.MilesPrice{Miles: 75000, Taxes: &airfare.Money{Amount: 45.2, Currency: "USD"}}, options[0].MilesPrice)
	require.Equal(t, 2, *options[0].SeatsAvailable)
	require.Equal(t, []string{""}, sessions.requested)
}

func TestSearchUsesExistingAwardTab(t *testing.T) {
	award := awardForm("award")
	award.Content = `<div>CI 006 23:55 19:35 75,000 miles</div>`
	dash := browsertest.NewPage("dashboard", "about:blank")
	handle := browsertest.NewHandle(dash, award)
	sessions := &fakeSessions{session: &session.Session{ID: "s-1", Handle: handle, Page: dash}}
	scraper, _ := newScraper(sessions, nil)

	options, err := scraper.Search(context.Background(), request())
	require.Nil(t, err)
	require.Len(t, options, 1)
}

func TestSearchDashboardRedirectsToLogin(t *testing.T) {
	dash := &redirectPage{
		Page:      browsertest.NewPage("dashboard", "about:blank"),
		redirects: map[string][]string{DefaultDashboardURL: {authURL}},
	}
	sessions := &fakeSessions{session: &session.Session{ID: "s-1", Handle: browsertest.NewHandle(dash.Page), Page: dash}}
	scraper, clock := newScraper(sessions, nil)

	_, err := scraper.Search(context.Background(), request())
	require.Equal(t, airfare.KindAuthRequired, airfare.KindOf(err))
	require.Equal(t, sessionExpiredMessage, airfare.MessageOf(err))
	require.Equal(t, 1, sessions.acquired)
	require.NotContains(t, clock.Sleeps(), 3*time.Second)
}

func TestSearchNoRewardLink(t *testing.T) {
	dash := browsertest.NewPage("dashboard", "about:blank")
	sessions := &fakeSessions{session: &session.Session{ID: "s-1", Handle: browsertest.NewHandle(dash), Page: dash}}
	scraper, _ := newScraper(sessions, nil)

	_, err := scraper.Search(context.Background(), request())
	require.Equal(t, airfare.KindNavigationFailed, airfare.KindOf(err))
	require.Contains(t, err.Error(), "Could not find 'Reward Ticket' link")
	require.Equal(t, 3, sessions.acquired)
	require.Equal(t, 3, sessions.released)
}
