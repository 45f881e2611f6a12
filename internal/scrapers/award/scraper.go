// Package award searches award (miles) fares on the loyalty-program site,
// which needs a logged-in profile.
package award

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
	"milesfare-backend/internal/sessionstore"
)

const (
	report_scraper_form     = "scraper.form"
	report_scraper_capture  = "scraper.capture"
	report_scraper_profiles = "scraper.profiles"
)

type Sessions interface {
	Acquire(ctx context.Context, sessionID string) (*session.Session, func(), error)
	Active() *session.Session
}

type Scraper struct {
	cfg          Config
	sessions     Sessions
	profiles     Profiles
	driver       *formdrive.Driver
	orchestrator search.Orchestrator
	chain        extract.Chain
	dump         debugdump.Dir
	tel          telemetry.API
}

func NewScraper(
	cfg Config,
	sessions Sessions,
	profiles Profiles,
	driver *formdrive.Driver,
	clock chrono.API,
	dump debugdump.Dir,
	tel telemetry.API,
) *Scraper {
	assert.NotNil(sessions)
	assert.NotNil(driver)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("award", tel)
	return &Scraper{
		cfg:          cfg,
		sessions:     sessions,
		profiles:     profiles,
		driver:       driver,
		orchestrator: search.NewOrchestrator(SourceName, search.AwardPermanent, clock, tel),
		chain: extract.Chain{
			Strategies: []extract.Strategy{
				extract.GenericJSON{Label: "generic-json", Keys: extract.AwardKeys, Mapper: extract.MapAward},
				extract.PageText{Label: "page-text", FlightNumber: flightNumberRegex, Airline: "China Airlines"},
			},
			Tel: tel,
		},
		dump: dump,
		tel:  tel,
	}
}

func (s *Scraper) Search(ctx context.Context, req airfare.SearchRequest) ([]airfare.FlightOption, error) {
	return search.Run(ctx, s.orchestrator, func(ctx context.Context) ([]airfare.FlightOption, error) {
		return s.attempt(ctx, req)
	})
}

// storedSessionID returns the keep-alive session saved by the last login,
// else the configured one.
func (s *Scraper) storedSessionID(ctx context.Context) string {
	if s.profiles != nil {
		profile, ok, err := s.profiles.Get(ctx, SourceName)
		if err != nil {
			s.tel.ReportWarning(report_scraper_profiles, err)
		}
		if ok && profile.SessionID != "" {
			return profile.SessionID
		}
	}
	return s.cfg.SessionID
}

func (s *Scraper) attempt(ctx context.Context, req airfare.SearchRequest) ([]airfare.FlightOption, error) {
	storedID := s.storedSessionID(ctx)
	sess, release, err := s.sessions.Acquire(ctx, storedID)
	if err != nil {
		return nil, err
	}
	defer release()

	if sess.ID != storedID && s.profiles != nil {
		err = s.profiles.Save(ctx, SourceName, sessionstore.Profile{ContextID: sess.ContextID, SessionID: sess.ID})
		if err != nil {
			s.tel.ReportWarning(report_scraper_profiles, err)
		}
	}

	collector := browser.NewCollector(browser.DefaultCollectorCapacity)
	stop := s.capture(ctx, sess.Page, collector)
	defer stop()

	page, err := s.openAwardPage(ctx, sess)
	if err != nil {
		return nil, err
	}
	if page.ID() != sess.Page.ID() {
		stopAward := s.capture(ctx, page, collector)
		defer stopAward()
	}

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

func (s *Scraper) capture(ctx context.Context, page browser.Page, collector *browser.Collector) func() {
	stop, err := page.Capture(ctx, responsePatterns, collector)
	if err != nil {
		s.tel.ReportWarning(report_scraper_capture, page.ID(), err)
		return func() {}
	}
	return stop
}

func (s *Scraper) DebugURL() string {
	active := s.sessions.Active()
	if active == nil {
		return ""
	}
	return active.DebugURL
}
