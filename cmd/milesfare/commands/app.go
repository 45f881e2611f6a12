package commands

import (
	"context"
	"fmt"
	"time"

	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/browser/provider"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
	"milesfare-backend/internal/debugdump"
	"milesfare-backend/internal/formdrive"
	"milesfare-backend/internal/scrapers/award"
	"milesfare-backend/internal/scrapers/cash"
	"milesfare-backend/internal/scrapers/marketplace"
	"milesfare-backend/internal/session"
	"milesfare-backend/internal/sessionstore"
	"milesfare-backend/services/farecompare"
)

// app holds everything a command needs, close releases what the live mode
// opened.
type app struct {
	service *farecompare.Service
	login   *award.LoginFlow
	close   func()
}

func newApp(ctx context.Context, cfg Config, verbose bool) (app, error) {
	tel := telemetry.SlogAPI{}
	clock := chrono.NewStandardImpl()

	switch cfg.DataMode {
	case DataModeMock:
		service := farecompare.NewService(
			farecompare.NewMockFlights(clock),
			farecompare.NewMockFlights(clock),
			farecompare.NewMockListings(clock),
			farecompare.MockAuthenticator{},
			clock,
			tel,
		)
		return app{service: service, close: func() {}}, nil
	case DataModeLive:
		return newLiveApp(ctx, cfg, verbose, clock, tel)
	}
	return app{}, fmt.Errorf("unknown data mode '%s', expected '%s' or '%s'", cfg.DataMode, DataModeMock, DataModeLive)
}

func newLiveApp(ctx context.Context, cfg Config, verbose bool, clock chrono.API, tel telemetry.API) (app, error) {
	dump := debugdump.New(cfg.Debug.Dir, tel)
	output := func(string) telemetry.MessageOutput { return nil }
	if verbose {
		output = dump.Messages
	}

	store, err := sessionstore.Open(ctx, cfg.StateDB.Path, time.Duration(cfg.StateDB.SessionTTLHours)*time.Hour, clock)
	if err != nil {
		return app{}, fmt.Errorf("open state db: %w", err)
	}

	var listings farecompare.ListingSource
	if cfg.Marketplace.Direct || cfg.Marketplace.APIKey == "" {
		listings = marketplace.NewScraper(
			marketplace.NewDirectFetcher(tel, output(marketplace.SourceName)),
			clock,
			tel,
		)
	} else {
		listings = marketplace.NewScraper(
			marketplace.NewExtractionClient(cfg.Marketplace.Config, tel, output(marketplace.SourceName)),
			clock,
			tel,
		)
	}

	if cfg.Browser.APIKey == "" || cfg.Browser.ProjectID == "" {
		store.Close()
		return app{}, fmt.Errorf("live mode needs BROWSERBASE_API_KEY and BROWSERBASE_PROJECT_ID")
	}
	client := provider.NewClient(cfg.Browser, tel, output("browser-provider"))
	dialer := browser.ChromeDialer{}
	driver := formdrive.NewDriver(formdrive.DefaultDelay, clock, tel)

	cashSessions := session.NewManager(session.Config{
		Name:      cash.SourceName,
		ContextID: cfg.Cash.ContextID,
		KeepAlive: cfg.Cash.KeepAlive,
		BlockAds:  true,
	}, client, dialer, store, clock, tel)
	awardSessions := session.NewManager(session.Config{
		Name:        award.SourceName,
		ContextID:   cfg.Award.ContextID,
		KeepAlive:   cfg.Award.KeepAlive,
		BlockAds:    true,
		ContextSync: 5 * time.Second,
	}, client, dialer, store, clock, tel)

	awardCfg := award.DefaultConfig()
	awardCfg.SessionID = cfg.Award.SessionID
	if cfg.Award.LoginTimeoutSeconds > 0 {
		awardCfg.LoginTimeout = time.Duration(cfg.Award.LoginTimeoutSeconds) * time.Second
	}

	cashSource := cash.NewSource(cash.NewScraper(cash.DefaultConfig(), cashSessions, driver, clock, dump, tel))
	awardSource := award.NewSource(award.NewScraper(awardCfg, awardSessions, store, driver, clock, dump, tel))
	login := award.NewLoginFlow(awardCfg, awardSessions, store, driver, clock, tel)

	service := farecompare.NewService(cashSource, awardSource, listings, login, clock, tel)
	return app{
		service: service,
		login:   login,
		close: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			for _, m := range []*session.Manager{cashSessions, awardSessions} {
				if m.KeepAlive() {
					m.Disconnect()
					continue
				}
				err := m.Close(ctx)
				if err != nil {
					tel.ReportWarning("app.close", m.Name(), err)
				}
			}
			store.Close()
		},
	}, nil
}
