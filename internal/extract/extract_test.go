package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type fixedStrategy struct {
	name    string
	options []airfare.FlightOption
	err     error
	calls   int
}

func (f *fixedStrategy) Name() string {
	return f.name
}

func (f *fixedStrategy) Extract(ctx context.Context, in Input) ([]airfare.FlightOption, error) {
	f.calls++
	return f.options, f.err
}

func testRequest() airfare.SearchRequest {
	return airfare.SearchRequest{
		Origin:      "TPE",
		Destination: "LAX",
		DepartDate:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Cabin:       airfare.CabinEconomy,
		Passengers:  1,
	}
}

func TestChainFallsThrough(t *testing.T) {
	broken := &fixedStrategy{name: "broken", err: errors.New("boom")}
	empty := &fixedStrategy{name: "empty", err: ErrNoMatch}
	matched := &fixedStrategy{name: "matched", options: []airfare.FlightOption{
		{Segments: []airfare.FlightSegment{{FlightNumber: "CI4"}, {FlightNumber: "CI8"}}},
	}}
	unused := &fixedStrategy{name: "unused"}

	tel := &telemetry.Recorder{}
	chain := Chain{Strategies: []Strategy{broken, empty, matched, unused}, Tel: tel}
	result, err := chain.Run(context.Background(), Input{Request: testRequest()})
	require.Nil(t, err)
	require.Equal(t, "matched", result.Strategy)
	require.Equal(t, "TPE", result.Options[0].Segments[0].DepartureAirport)
	require.Equal(t, "", result.Options[0].Segments[0].ArrivalAirport)
	require.Equal(t, "LAX", result.Options[0].Segments[1].ArrivalAirport)
	require.Equal(t, 0, unused.calls)
	require.Len(t, tel.Reports("warning"), 1)
}

func TestChainNoResults(t *testing.T) {
	chain := Chain{
		Strategies: []Strategy{
			&fixedStrategy{name: "a", err: ErrNoMatch},
			&fixedStrategy{name: "b", options: []airfare.FlightOption{}},
		},
		Tel: &telemetry.Recorder{},
	}
	_, err := chain.Run(context.Background(), Input{
		Request:   testRequest(),
		Responses: []browser.Response{{URL: "x", Body: []byte(`{}`)}},
	})
	require.Equal(t, airfare.KindNoResults, airfare.KindOf(err))
	require.Contains(t, err.Error(), "1 responses captured")
}

func TestForEachResponse(t *testing.T) {
	parse := func(body any) []airfare.FlightOption {
		obj, _ := Object(body)
		if obj["ok"] == true {
			return []airfare.FlightOption{{Cabin: "Economy"}}
		}
		return nil
	}

	_, err := ForEachResponse([]browser.Response{
		{URL: "a", Body: []byte(`not json`)},
		{URL: "b", Body: []byte(`<html>`)},
	}, nil, parse)
	require.Equal(t, airfare.KindParseError, airfare.KindOf(err))

	_, err = ForEachResponse([]browser.Response{
		{URL: "a", Body: []byte(`not json`)},
		{URL: "b", Body: []byte(`{"ok":false}`)},
	}, nil, parse)
	require.ErrorIs(t, err, ErrNoMatch)

	options, err := ForEachResponse([]browser.Response{
		{URL: "skip", Body: []byte(`{"ok":true}`)},
		{URL: "b", Body: []byte(`{"ok":true}`)},
	}, func(url string) bool { return url != "skip" }, parse)
	require.Nil(t, err)
	require.Len(t, options, 1)
}
