// Package cash searches cash fares on the carrier booking site.
package cash

import (
	"context"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/debugdump"
	"milesfare-backend/internal/extract"
	"milesfare-backend/internal/formdrive"
	"milesfare-backend/internal/search"
	"milesfare-backend/internal/session"
)

const (
	report_scraper_form    = "scraper.form"
	report_scraper_capture = "scraper.capture"
)

// Sessions is the part of session.Manager the scraper uses.
type Sessions interface {
	Acquire(ctx context.Context, sessionID string) (*session.Session, func(), error)
	Active() *session.Session
}

type Scraper struct {
	cfg          Config
	sessions     Sessions
	driver       *formdrive.Driver
	orchestrator search.Orchestrator
	chain        extract.Chain
	dump         debugdump.Dir
	tel          telemetry.API
}

func NewScraper(
	cfg Config,
	sessions Sessions,
	driver *formdrive.Driver,
	clock chrono.API,
	dump debugdump.Dir,
	tel telemetry.API,
) *Scraper {
	assert.NotNil(sessions)
	assert.NotNil(driver)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("cash", tel)
	return &Scraper{
		cfg:          cfg,
		sessions:     sessions,
		driver:       driver,
		orchestrator: search.NewOrchestrator(SourceName, search.CashPermanent, clock, tel),
		chain: extract.Chain{
			Strategies: []extract.Strategy{
				AirBounds{},
				extract.GenericJSON{Label: "generic-json", Keys: extract.CashKeys, Mapper: extract.MapCash},
				extract.CardText{
					Label:        "flight-cards",
					Cards:        flightCards,
					FlightNumber: flightNumberRegex,
					Airline:      "China Airlines",
				},
			},
			Tel: tel,
		},
		dump: dump,
		tel:  tel,
	}
}

// Search returns the outbound cash options for req.
func (s *Scraper) Search(ctx context.Context, req airfare.SearchRequest) ([]airfare.FlightOption, error) {
	return search.Run(ctx, s.orchestrator, func(ctx context.Context) ([]airfare.FlightOption, error) {
		return s.attempt(ctx, req)
	})
}

func (s *Scraper) attempt(ctx context.Context, req airfare.SearchRequest) ([]airfare.FlightOption, error) {
	sess, release, err := s.sessions.Acquire(ctx, "")
	if err != nil {
		return nil, err
	}
	defer release()

	page := sess.Page
	collector := browser.NewCollector(browser.DefaultCollectorCapacity)
	stop, err := page.Capture(ctx, responsePatterns, collector)
	if err != nil {
		s.tel.ReportWarning(report_scraper_capture, err)
		stop = func() {}
	}
	defer stop()

	err = s.submitSearch(ctx, page, req)
	if err != nil {
		return nil, err
	}

	responses := collector.Drain()
	if dropped := collector.Dropped(); dropped > 0 {
		s.tel.ReportWarning(report_scraper_capture, "responses dropped", dropped)
	}
	s.dump.JSON(SourceName, "api-responses", responses)

	result, err := s.chain.Run(ctx, extract.Input{
		Request:   req,
		Responses: responses,
		Page:      page,
	})
	if err != nil {
		return nil, err
	}
	s.tel.ReportCount("options", int64(len(result.Options)))
	return result.Options, nil
}

// DebugURL is the live view of the active session, empty when idle.
func (s *Scraper) DebugURL() string {
	active := s.sessions.Active()
	if active == nil {
		return ""
	}
	return active.DebugURL
}
