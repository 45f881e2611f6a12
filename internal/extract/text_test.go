package extract

import (
	"context"
	"regexp"
	"testing"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser/browsertest"

	"github.com/stretchr/testify/require"
)

var ciFlight = regexp.MustCompile(`CI\s*\d{3,4}`)

func TestCardText(t *testing.T) {
	cards := CardText{
		Label:        "cards",
		Cards:        []string{".flight-card", ".flight-item"},
		FlightNumber: ciFlight,
		Airline:      "China Airlines",
	}
	page := browsertest.NewPage("p", "https://example.com")
	page.Show(".flight-card, .flight-item",
		"CI 003 08:35 13:20 Nonstop 11h 45m USD 1,234.50",
		"CI 005 23:40 05:15 1 stop 14h NT$ 25,000",
		"Sold out",
	)

	options, err := cards.Extract(context.Background(), Input{Page: page})
	require.Nil(t, err)
	require.Len(t, options, 3)

	require.Equal(t, airfare.FlightSegment{
		FlightNumber:  "CI003",
		Airline:       "China Airlines",
		DepartureTime: "08:35",
		ArrivalTime:   "13:20",
		Duration:      "11h 45m",
	}, options[0].First())
	require.Equal(t, 0, options[0].Stops)
	require.Equal(t, &airfare.Money{Amount: 1234.5, Currency: "USD"}, options[0].CashPrice)

	require.Equal(t, "CI005", options[1].First().FlightNumber)
	require.Equal(t, "14h", options[1].TotalDuration)
	require.Equal(t, 1, options[1].Stops)
	require.Equal(t, &airfare.Money{Amount: 25000, Currency: "TWD"}, options[1].CashPrice)

	require.Equal(t, "Unknown", options[2].First().FlightNumber)
	require.Nil(t, options[2].CashPrice)
}

func TestCardTextNoCards(t *testing.T) {
	cards := CardText{Label: "cards", Cards: []string{".flight-card"}, FlightNumber: ciFlight}
	_, err := cards.Extract(context.Background(), Input{Page: browsertest.NewPage("p", "")})
	require.ErrorIs(t, err, ErrNoMatch)

	_, err = cards.Extract(context.Background(), Input{})
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestPageText(t *testing.T) {
	strategy := PageText{Label: "text", FlightNumber: ciFlight, Airline: "China Airlines"}
	page := browsertest.NewPage("p", "https://example.com")
	page.Content = `<html><body>
		<script>var x = "99,999 miles";</script>
		<div>CI 004 10:00 18:30</div>
		<div>35,000 miles USD 45.00 4 seats</div>
		<div>CI 006 12:00 20:15</div>
		<div>70,000 miles USD 60.00 2 seats</div>
		<div>500 miles</div>
	</body></html>`

	options, err := strategy.Extract(context.Background(), Input{Page: page})
	require.Nil(t, err)
	require.Len(t, options, 2)

	require.Equal(t, airfare.FlightSegment{
		FlightNumber:  "CI004",
		Airline:       "China Airlines",
		DepartureTime: "10:00",
		ArrivalTime:   "18:30",
	}, options[0].First())
	require.Equal(t, &airfare.MilesPrice{
		Miles: 35000,
		Taxes: &airfare.Money{Amount: 45, Currency: "USD"},
	}, options[0].MilesPrice)
	require.Equal(t, 4, *options[0].SeatsAvailable)

	require.Equal(t, "CI006", options[1].First().FlightNumber)
	require.Equal(t, "12:00", options[1].First().DepartureTime)
	require.Equal(t, 70000, options[1].MilesPrice.Miles)
	require.Equal(t, 2, *options[1].SeatsAvailable)
}

func TestPageTextDuplicateMilesKeepIndex(t *testing.T) {
	strategy := PageText{Label: "text", FlightNumber: ciFlight, Airline: "China Airlines"}
	options := strategy.Parse("CI 001 CI 002 CI 003\n30,000 miles 30,000 miles 40,000 miles")
	require.Len(t, options, 2)
	require.Equal(t, "CI001", options[0].First().FlightNumber)
	require.Equal(t, "CI003", options[1].First().FlightNumber)
}
