package award

import (
	"context"
	"fmt"
	"strconv"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/formdrive"
	"milesfare-backend/internal/session"
)

// openAwardPage goes through the member dashboard to the award search form,
// which the site usually opens in a new tab.
func (s *Scraper) openAwardPage(ctx context.Context, sess *session.Session) (browser.Page, error) {
	d := s.driver
	page := sess.Page

	err := page.Navigate(ctx, s.cfg.DashboardURL)
	if err != nil {
		return nil, airfare.Wrap(airfare.KindNavigationFailed, "open member dashboard", err)
	}
	if err = d.Settle(ctx, s.cfg.PageSettle); err != nil {
		return nil, err
	}

	url, err := page.URL(ctx)
	if err != nil {
		return nil, airfare.Wrap(airfare.KindNavigationFailed, "read dashboard url", err)
	}
	err = formdrive.CheckLoginRedirect(url, loginPageRegex, sessionExpiredMessage)
	if err != nil {
		return nil, err
	}
	d.DismissBanner(ctx, page)
	s.dump.Page(ctx, SourceName, "dashboard", page)

	link, ok := d.Find(ctx, page, awardLinks...)
	if ok {
		awardPage, opened, err := d.FollowNewPage(ctx, sess.Handle, page, s.cfg.NewTabTimeout, func(ctx context.Context) error {
			err := page.Click(ctx, link.Target.Selector, link.Index)
			if err != nil {
				return err
			}
			return d.HumanDelay(ctx, 1)
		})
		if err == nil {
			if err = d.Settle(ctx, s.cfg.PageSettle); err != nil {
				return nil, err
			}
			if opened {
				s.tel.ReportDebug("award page opened in new tab", awardPage.ID())
				s.dump.Page(ctx, SourceName, "award-page", awardPage)
			}
			return awardPage, nil
		}
		s.tel.ReportWarning(report_scraper_form, "award link click failed", err)
	}

	pages, err := sess.Handle.Pages(ctx)
	if err == nil {
		for _, p := range pages {
			url, err := p.URL(ctx)
			if err == nil && awardPageRegex.MatchString(url) {
				s.tel.ReportDebug("found award page in existing tab", url)
				return p, nil
			}
		}
	}

	return nil, airfare.Errorf(
		airfare.KindNavigationFailed,
		"Could not find 'Reward Ticket' link on the Dynasty Flyer dashboard. The page layout may have changed.",
	)
}

const checkAgreementScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	if (!el.checked) el.click();
	return true;
})()`

func (s *Scraper) submitSearch(ctx context.Context, page browser.Page, req airfare.SearchRequest) error {
	d := s.driver

	if d.Visible(ctx, page, formdrive.Target{Selector: agreeCheckbox}) {
		var found bool
		err := page.Evaluate(ctx, fmt.Sprintf(checkAgreementScript, strconv.Quote(agreeCheckbox)), &found)
		if err != nil || !found {
			s.tel.ReportWarning(report_scraper_form, "agreement checkbox", err)
		}
		if err = d.HumanDelay(ctx, 1); err != nil {
			return err
		}
	}

	err := d.ForceClick(ctx, page, oneWayRadio)
	if err != nil {
		s.tel.ReportWarning(report_scraper_form, "one way radio", err)
	}
	if err = d.HumanDelay(ctx, 1); err != nil {
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
			Suggestions: stationSuggestions,
			FallbackKey: browser.KeyTab,
		})
		if err != nil {
			return err
		}
	}

	err = d.FillDate(ctx, page, formdrive.DateField{
		Label:     "departure date",
		Input:     departDateInput,
		Layout:    "01/02/2006",
		ViaScript: true,
	}, req.DepartDate)
	if err != nil {
		return err
	}

	if radio, ok := cabinRadios[string(req.Cabin)]; ok {
		err = d.ForceClick(ctx, page, radio)
		if err != nil {
			s.tel.ReportWarning(report_scraper_form, "cabin radio", req.Cabin, err)
		}
		if err = d.HumanDelay(ctx, 1); err != nil {
			return err
		}
	}

	err = page.Click(ctx, searchButton, 0)
	if err != nil {
		return airfare.Wrap(airfare.KindFormInteractionFailed, "submit award search", err)
	}
	_, err = d.WaitForResults(ctx, page, resultsWait)
	if err != nil {
		return err
	}
	s.dump.Page(ctx, SourceName, "results", page)
	return nil
}
