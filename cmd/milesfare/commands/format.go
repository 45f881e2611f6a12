package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"milesfare-backend/internal/airfare"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func formatMoney(n float64) string {
	return "$" + humanize.FormatFloat("#,###.##", n)
}

func formatMoneyPtr(n *float64) string {
	if n == nil {
		return "-"
	}
	return formatMoney(*n)
}

func formatMiles(miles *int) string {
	if miles == nil {
		return "-"
	}
	return humanize.Comma(int64(*miles))
}

func formatRate(rate float64) string {
	return fmt.Sprintf("$%.4f", rate)
}

func optionalString[T ~string](v *T) string {
	if v == nil {
		return "-"
	}
	return string(*v)
}

func printFlights(result airfare.FlightSearchResult) {
	t := newTable()
	t.SetTitle(fmt.Sprintf(
		"%s → %s, %s (%s)",
		result.SearchParams.Origin,
		result.SearchParams.Destination,
		result.SearchParams.DepartDate,
		result.Provider,
	))
	t.AppendHeader(table.Row{
		"ID", "Flight", "Date", "Depart", "Arrive", "Stops", "Cash", "Miles", "Taxes", "CPP", "Buy miles", "Best", "Savings",
	})
	for _, f := range result.Flights {
		cpp := "-"
		if f.CentsPerPoint != nil {
			cpp = fmt.Sprintf("%.2f¢ %s", *f.CentsPerPoint, optionalString(f.CPPRating))
		}
		t.AppendRow(table.Row{
			f.ID,
			f.FlightNumber,
			f.DepartDate,
			f.DepartTime,
			f.ArriveTime,
			f.Stops,
			formatMoney(f.CashPrice),
			formatMiles(f.MilesPrice),
			formatMoneyPtr(f.MilesTaxes),
			cpp,
			formatMoneyPtr(f.BuyMilesPlusTaxes),
			optionalString(f.BestDeal),
			formatMoneyPtr(f.Savings),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "", "", "", "", "Found", len(result.Flights)})
	t.Render()
}

func printListings(result airfare.ListingSearchResult) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("Listings for %s (%s)", result.SearchParams.Airline, result.Provider))
	t.AppendHeader(table.Row{"ID", "Airline", "Program", "Miles", "Per mile", "Total", "Seller", "Rating", "Posted"})
	for _, l := range result.Listings {
		miles := l.MilesAvailable
		rating := "-"
		if l.SellerRating != nil {
			rating = fmt.Sprintf("%.1f", *l.SellerRating)
		}
		t.AppendRow(table.Row{
			l.ID,
			l.Airline,
			l.LoyaltyProgram,
			formatMiles(&miles),
			formatRate(l.PricePerMile),
			formatMoneyPtr(l.TotalPrice),
			l.SellerName,
			rating,
			l.PostedDate,
		})
	}
	t.Render()
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
