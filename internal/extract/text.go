package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/lib/htmlutil"
)

var (
	timeRegex      = regexp.MustCompile(`\d{1,2}:\d{2}`)
	moneyRegex     = regexp.MustCompile(`(USD|US\$|\$|TWD|NT\$)\s*([\d,]+(?:\.\d{2})?)`)
	durationRegex  = regexp.MustCompile(`(?i)(\d+)\s*h\s*(\d+)?\s*m?`)
	stopsRegex     = regexp.MustCompile(`(?i)(\d+)\s*stop`)
	nonstopRegex   = regexp.MustCompile(`(?i)non-?stop|direct`)
	milesRegex     = regexp.MustCompile(`(?i)(?:miles?|哩程)\s*([\d,]+)|([\d,]+)\s*(?:miles?|哩程)`)
	usdRegex       = regexp.MustCompile(`(?:USD|US\$|\$)\s*([\d,]+(?:\.\d{2})?)`)
	seatsRegex     = regexp.MustCompile(`(?i)(\d+)\s*seat`)
	whitespaceOnly = regexp.MustCompile(`\s`)
)

const minDOMMiles = 1000

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func formatDurationMatch(m []string) string {
	if m == nil {
		return ""
	}
	if m[2] != "" {
		return fmt.Sprintf("%sh %sm", m[1], m[2])
	}
	return m[1] + "h"
}

func currencyOf(symbol string) string {
	switch symbol {
	case "TWD", "NT$":
		return "TWD"
	}
	return "USD"
}

// CardText reads result cards off the rendered page, one option per card.
type CardText struct {
	Label        string
	Cards        []string
	FlightNumber *regexp.Regexp
	Airline      string
}

func (c CardText) Name() string {
	return c.Label
}

func (c CardText) Extract(ctx context.Context, in Input) ([]airfare.FlightOption, error) {
	if in.Page == nil {
		return nil, ErrNoMatch
	}
	elements, err := in.Page.Elements(ctx, strings.Join(c.Cards, ", "))
	if err != nil {
		return nil, fmt.Errorf("query result cards: %w", err)
	}
	if len(elements) == 0 {
		return nil, ErrNoMatch
	}
	texts := make([]string, len(elements))
	for i, el := range elements {
		texts[i] = el.Text
	}
	return c.Parse(texts), nil
}

func (c CardText) Parse(cards []string) []airfare.FlightOption {
	options := []airfare.FlightOption{}
	for _, text := range cards {
		flightNumber := "Unknown"
		if m := c.FlightNumber.FindString(text); m != "" {
			flightNumber = whitespaceOnly.ReplaceAllString(m, "")
		}
		times := timeRegex.FindAllString(text, 2)
		duration := formatDurationMatch(durationRegex.FindStringSubmatch(text))

		segment := airfare.FlightSegment{
			FlightNumber: flightNumber,
			Airline:      c.Airline,
			Duration:     duration,
		}
		if len(times) > 0 {
			segment.DepartureTime = times[0]
		}
		if len(times) > 1 {
			segment.ArrivalTime = times[1]
		}

		option := airfare.FlightOption{
			Segments:      []airfare.FlightSegment{segment},
			TotalDuration: duration,
			Cabin:         "Economy",
		}
		if !nonstopRegex.MatchString(text) {
			if m := stopsRegex.FindStringSubmatch(text); m != nil {
				option.Stops, _ = strconv.Atoi(m[1])
			}
		}
		if m := moneyRegex.FindStringSubmatch(text); m != nil {
			amount, err := parseAmount(m[2])
			if err == nil {
				option.CashPrice = &airfare.Money{Amount: amount, Currency: currencyOf(m[1])}
			}
		}
		options = append(options, option)
	}
	return options
}

// PageText reads award options off the whole page text. Each distinct miles
// amount anchors one option and is paired with the tax, seat count and flight
// number found at the same index, and with the index-th pair of times.
type PageText struct {
	Label        string
	FlightNumber *regexp.Regexp
	Airline      string
}

func (p PageText) Name() string {
	return p.Label
}

func (p PageText) Extract(ctx context.Context, in Input) ([]airfare.FlightOption, error) {
	if in.Page == nil {
		return nil, ErrNoMatch
	}
	html, err := in.Page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	text, err := htmlutil.DocumentText(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("read page text: %w", err)
	}
	if text == "" {
		return nil, ErrNoMatch
	}
	return p.Parse(text), nil
}

func (p PageText) Parse(text string) []airfare.FlightOption {
	miles := milesRegex.FindAllStringSubmatch(text, -1)
	taxes := usdRegex.FindAllStringSubmatch(text, -1)
	seats := seatsRegex.FindAllStringSubmatch(text, -1)
	flights := p.FlightNumber.FindAllString(text, -1)
	times := timeRegex.FindAllString(text, -1)

	seen := map[string]bool{}
	options := []airfare.FlightOption{}
	for i, m := range miles {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		digits = strings.ReplaceAll(digits, ",", "")
		if seen[digits] {
			continue
		}
		seen[digits] = true

		amount, err := strconv.Atoi(digits)
		if err != nil || amount < minDOMMiles {
			continue
		}

		price := &airfare.MilesPrice{Miles: amount}
		if i < len(taxes) {
			tax, err := parseAmount(taxes[i][1])
			if err == nil {
				price.Taxes = &airfare.Money{Amount: tax, Currency: "USD"}
			}
		}

		segment := airfare.FlightSegment{FlightNumber: "Unknown", Airline: p.Airline}
		if i < len(flights) {
			segment.FlightNumber = whitespaceOnly.ReplaceAllString(flights[i], "")
		}
		if 2*i < len(times) {
			segment.DepartureTime = times[2*i]
		}
		if 2*i+1 < len(times) {
			segment.ArrivalTime = times[2*i+1]
		}

		option := airfare.FlightOption{
			Segments:   []airfare.FlightSegment{segment},
			MilesPrice: price,
			Cabin:      "Economy",
		}
		if i < len(seats) {
			n, err := strconv.Atoi(seats[i][1])
			if err == nil {
				option.SeatsAvailable = &n
			}
		}
		options = append(options, option)
	}
	return options
}
