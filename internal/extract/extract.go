// Package extract turns what a search left behind (captured API responses
// and the rendered page) into flight options, through an ordered chain of
// strategies that each either parse a result or report no match.
package extract

import (
	"context"
	"errors"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/components/telemetry"
)

const report_chain_run = "chain.run"

// ErrNoMatch is returned by a strategy that found nothing it recognizes.
var ErrNoMatch = errors.New("no match")

type Input struct {
	Request   airfare.SearchRequest
	Responses []browser.Response
	// Page is the page results rendered on, nil when there is none.
	Page browser.Page
}

type Strategy interface {
	Name() string
	Extract(ctx context.Context, in Input) ([]airfare.FlightOption, error)
}

type Result struct {
	Options  []airfare.FlightOption
	Strategy string
}

type Chain struct {
	Strategies []Strategy
	Tel        telemetry.API
}

// Run tries each strategy in order and returns the first non-empty result
// with its endpoints filled from the request. Strategy failures are reported
// and skipped, NO_RESULTS is returned when every strategy misses.
func (c Chain) Run(ctx context.Context, in Input) (Result, error) {
	for _, strategy := range c.Strategies {
		options, err := strategy.Extract(ctx, in)
		if errors.Is(err, ErrNoMatch) {
			c.Tel.ReportDebug("strategy found nothing", strategy.Name())
			continue
		}
		if err != nil {
			c.Tel.ReportWarning(report_chain_run, strategy.Name(), err)
			continue
		}
		if len(options) == 0 {
			continue
		}
		FillEndpoints(options, in.Request)
		c.Tel.ReportDebug("strategy matched", strategy.Name(), len(options))
		return Result{Options: options, Strategy: strategy.Name()}, nil
	}
	return Result{}, airfare.Errorf(
		airfare.KindNoResults,
		"no flights found for %s to %s on %s (%d responses captured)",
		in.Request.Origin, in.Request.Destination, in.Request.DepartDateString(), len(in.Responses),
	)
}

// FillEndpoints fills the departure airport of the first segment and the
// arrival airport of the last segment from the request when missing.
func FillEndpoints(options []airfare.FlightOption, req airfare.SearchRequest) {
	for i := range options {
		segments := options[i].Segments
		if len(segments) == 0 {
			continue
		}
		if segments[0].DepartureAirport == "" {
			segments[0].DepartureAirport = req.Origin
		}
		if segments[len(segments)-1].ArrivalAirport == "" {
			segments[len(segments)-1].ArrivalAirport = req.Destination
		}
	}
}

// ForEachResponse decodes every response body in order and returns the
// options of the first one parse yields a non-empty result for.
func ForEachResponse(
	responses []browser.Response,
	accept func(url string) bool,
	parse func(body any) []airfare.FlightOption,
) ([]airfare.FlightOption, error) {
	decodeFailures := 0
	for _, res := range responses {
		if accept != nil && !accept(res.URL) {
			continue
		}
		body, err := decode(res.Body)
		if err != nil {
			decodeFailures++
			continue
		}
		options := parse(body)
		if len(options) > 0 {
			return options, nil
		}
	}
	if decodeFailures > 0 && decodeFailures == len(responses) {
		return nil, airfare.Errorf(airfare.KindParseError, "none of %d captured responses decoded", decodeFailures)
	}
	return nil, ErrNoMatch
}
