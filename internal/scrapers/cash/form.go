package cash

import (
	"context"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/formdrive"
)

func (s *Scraper) submitSearch(ctx context.Context, page browser.Page, req airfare.SearchRequest) error {
	d := s.driver

	err := page.Navigate(ctx, s.cfg.URL)
	if err != nil {
		return airfare.Wrap(airfare.KindNavigationFailed, "open booking site", err)
	}
	if err = d.Settle(ctx, s.cfg.PageSettle); err != nil {
		return err
	}
	d.DismissBanner(ctx, page)
	if err = d.DetectCaptcha(ctx, page); err != nil {
		return err
	}

	err = s.selectOneWay(ctx, page)
	if err != nil {
		return err
	}

	for _, field := range []struct {
		label string
		input string
		code  string
	}{
		{label: "origin", input: originInput, code: req.Origin},
		{label: "destination", input: destinationInput, code: req.Destination},
	} {
		err = d.FillAutocomplete(ctx, page, formdrive.AutocompleteField{
			Label:       field.label,
			Input:       field.input,
			Value:       field.code,
			PopupSelect: airportPopupPick,
			Suggestions: airportSuggestions,
			FallbackKey: browser.KeyEnter,
		})
		if err != nil {
			return err
		}
	}

	err = d.FillDate(ctx, page, formdrive.DateField{
		Label:      "departure date",
		Input:      dateInput,
		Layout:     "02/01/2006",
		ConfirmKey: browser.KeyEnter,
		Calendar:   &calendar,
	}, req.DepartDate)
	if err != nil {
		return err
	}

	if req.Cabin != airfare.CabinEconomy {
		s.selectCabin(ctx, page, req.Cabin)
	}

	err = page.Click(ctx, searchButton, 0)
	if err != nil {
		return airfare.Wrap(airfare.KindFormInteractionFailed, "submit search", err)
	}
	arrived, err := d.WaitForURL(ctx, page, resultsURL, s.cfg.ResultsTimeout)
	if err != nil {
		return err
	}
	if !arrived {
		s.tel.ReportDebug("results url never appeared, continuing on current page")
	}
	if err = d.Settle(ctx, s.cfg.ResultsSettle); err != nil {
		return err
	}
	s.dump.Page(ctx, SourceName, "results", page)
	return d.DetectCaptcha(ctx, page)
}

func (s *Scraper) selectOneWay(ctx context.Context, page browser.Page) error {
	err := page.Click(ctx, tripTypeDropdown, 0)
	if err != nil {
		return airfare.Wrap(airfare.KindFormInteractionFailed, "open trip type", err)
	}
	if err = s.driver.HumanDelay(ctx, 0.5); err != nil {
		return err
	}
	err = page.Click(ctx, oneWayOption, 0)
	if err != nil {
		return airfare.Wrap(airfare.KindFormInteractionFailed, "select one way", err)
	}
	return s.driver.HumanDelay(ctx, 1)
}

// selectCabin is best-effort, an unknown cabin or a missing radio leaves the
// site default.
func (s *Scraper) selectCabin(ctx context.Context, page browser.Page, cabin airfare.Cabin) {
	radio, ok := cabinRadios[string(cabin)]
	if !ok {
		s.tel.ReportWarning(report_scraper_form, "no radio for cabin", cabin)
		return
	}

	err := page.Click(ctx, cabinTrigger, 0)
	if err == nil {
		_ = s.driver.HumanDelay(ctx, 0.5)
	}

	err = s.driver.ForceClick(ctx, page, radio)
	if err != nil {
		s.tel.ReportWarning(report_scraper_form, "cabin radio not clickable", cabin, err)
		return
	}
	_ = s.driver.HumanDelay(ctx, 1)
}
