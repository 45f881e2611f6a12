package farecompare

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/scrapers/award"

	"github.com/stretchr/testify/require"
)

func mockServer(t *testing.T, auth Authenticator) *httptest.Server {
	clock := chrono.NewManual(now)
	service := NewService(
		NewMockFlights(clock),
		NewMockFlights(clock),
		NewMockListings(clock),
		auth,
		clock,
		&telemetry.Recorder{},
	)
	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, out any) int {
	res, err := http.Get(url)
	require.Nil(t, err)
	defer res.Body.Close()
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))
	require.Nil(t, json.NewDecoder(res.Body).Decode(out))
	return res.StatusCode
}

func TestHTTPFlights(t *testing.T) {
	server := mockServer(t, MockAuthenticator{})

	var result airfare.FlightSearchResult
	status := getJSON(t, server.URL+"/flights/search?origin=TPE&destination=LAX&departDate=2026-06-01&cabinClass=business&passengers=2", &result)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, MockSourceName, result.Provider)
	require.NotNil(t, result.SearchParams.Passengers)
	require.Equal(t, 2, *result.SearchParams.Passengers)
	require.Len(t, result.Flights, 12)

	first := result.Flights[0]
	require.Equal(t, 3200.0, first.CashPrice)
	require.Equal(t, airfare.DealBuy, *first.BestDeal)

	var flight airfare.UnifiedFlightRecord
	status = getJSON(t, server.URL+"/flights/"+first.ID, &flight)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, first.ID, flight.ID)

	var missing errorResponse
	status = getJSON(t, server.URL+"/flights/nope", &missing)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, airfare.KindNoResults, missing.Error.Kind)
}

func TestHTTPInvalidInput(t *testing.T) {
	server := mockServer(t, MockAuthenticator{})

	table := []string{
		"/flights/search?origin=TPE&destination=LAX",
		"/flights/search?origin=TPE&destination=LAX&departDate=2026-06-01&passengers=two",
		"/flights/search?origin=TPE&destination=LAX&departDate=2026-06-01&passengers=0",
		"/flights/search?origin=TPE&destination=LAX&departDate=2026-06-01&cabinClass=steerage",
	}
	for _, path := range table {
		t.Run(path, func(t *testing.T) {
			var body errorResponse
			status := getJSON(t, server.URL+path, &body)
			require.Equal(t, http.StatusBadRequest, status)
			require.Equal(t, airfare.KindInvalidInput, body.Error.Kind)
			require.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestHTTPListings(t *testing.T) {
	server := mockServer(t, MockAuthenticator{})

	var result airfare.ListingSearchResult
	status := getJSON(t, server.URL+"/listings/search?airline=SQ", &result)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, result.Listings, 1)
	require.Equal(t, "unlimited", result.SearchParams.MilesRange)

	var listing airfare.MarketplaceListing
	status = getJSON(t, server.URL+"/listings/pb-mock-007", &listing)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "KrisFlyer", listing.LoyaltyProgram)
}

func TestHTTPLogin(t *testing.T) {
	table := []struct {
		name   string
		auth   Authenticator
		status int
	}{
		{name: "mock", auth: MockAuthenticator{}, status: http.StatusOK},
		{
			name:   "failed",
			auth:   fakeAuth{result: award.LoginResult{Message: "Login failed: timed out"}},
			status: http.StatusUnauthorized,
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			server := mockServer(t, test.auth)
			res, err := http.Post(server.URL+"/login", "application/json", nil)
			require.Nil(t, err)
			defer res.Body.Close()
			require.Equal(t, test.status, res.StatusCode)

			var result award.LoginResult
			require.Nil(t, json.NewDecoder(res.Body).Decode(&result))
			require.Equal(t, test.status == http.StatusOK, result.Success)
		})
	}
}

func TestHTTPSessions(t *testing.T) {
	server := mockServer(t, MockAuthenticator{})

	var sessions ActiveSessions
	status := getJSON(t, server.URL+"/sessions", &sessions)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, sessions.CashBrowserURL)
	require.Nil(t, sessions.AwardBrowserURL)
}

func TestStatusOf(t *testing.T) {
	table := []struct {
		kind   airfare.Kind
		status int
	}{
		{airfare.KindInvalidInput, http.StatusBadRequest},
		{airfare.KindAuthExpired, http.StatusUnauthorized},
		{airfare.KindNoResults, http.StatusNotFound},
		{airfare.KindCaptchaDetected, http.StatusBadGateway},
		{"", http.StatusBadGateway},
	}
	for _, test := range table {
		require.Equal(t, test.status, StatusOf(test.kind), test.kind)
	}
}
