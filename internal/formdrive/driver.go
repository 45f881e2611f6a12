// Package formdrive holds the primitives the source scripts use to reach and
// submit a search form: human-like timing, autocomplete inputs, date inputs
// and calendars, loading waits and tab tracking.
package formdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"
)

const (
	report_driver_autocomplete = "driver.fill-autocomplete"
	report_driver_date         = "driver.fill-date"
	report_driver_wait         = "driver.wait-for-results"
	report_driver_query        = "driver.query"
)

const (
	keystrokeDelay  = 120 * time.Millisecond
	suggestionDelay = 1500 * time.Millisecond
	pollInterval    = time.Second
)

type Delay struct {
	Base   time.Duration
	Jitter time.Duration
}

var DefaultDelay = Delay{Base: 500 * time.Millisecond, Jitter: 300 * time.Millisecond}

// Target names elements matching Selector whose text contains Text, an
// empty Text matches any element.
type Target struct {
	Selector string
	Text     string
}

type Match struct {
	Target Target
	Index  int
	Text   string
}

var BannerTargets = []Target{
	{Selector: "button", Text: "Accept"},
	{Selector: "button", Text: "Got it"},
	{Selector: "button", Text: "OK"},
	{Selector: ".cookie-accept"},
}

var CaptchaTargets = []Target{
	{Selector: `iframe[src*="captcha"]`},
	{Selector: "#challenge-form"},
	{Selector: ".g-recaptcha"},
}

type Driver struct {
	Clock chrono.API
	Tel   telemetry.API
	Delay Delay
	// Jitter returns a uniform duration in [0, max), nil uses math/rand.
	Jitter func(max time.Duration) time.Duration
}

func NewDriver(delay Delay, clock chrono.API, tel telemetry.API) *Driver {
	assert.NotNil(clock)
	assert.NotNil(tel)
	return &Driver{
		Clock: clock,
		Tel:   telemetry.NewScopedAPI("form_driver", tel),
		Delay: delay,
	}
}

// HumanDelay sleeps (base + U[0, jitter)) * multiplier.
func (d *Driver) HumanDelay(ctx context.Context, multiplier float64) error {
	var jitter time.Duration
	if d.Delay.Jitter > 0 {
		if d.Jitter != nil {
			jitter = d.Jitter(d.Delay.Jitter)
		} else {
			jitter = time.Duration(rand.Int64N(int64(d.Delay.Jitter)))
		}
	}
	return d.Clock.Sleep(ctx, time.Duration(float64(d.Delay.Base+jitter)*multiplier))
}

func (d *Driver) Settle(ctx context.Context, duration time.Duration) error {
	return d.Clock.Sleep(ctx, duration)
}

// Find returns the first visible match of the targets, in target order.
// Query errors count as "not found".
func (d *Driver) Find(ctx context.Context, page browser.Page, targets ...Target) (Match, bool) {
	for _, target := range targets {
		elements, err := page.Elements(ctx, target.Selector)
		if err != nil {
			d.Tel.ReportDebug(report_driver_query, target.Selector, err)
			continue
		}
		idx := browser.FirstVisible(elements, target.Text)
		if idx >= 0 {
			return Match{Target: target, Index: idx, Text: elements[idx].Text}, true
		}
	}
	return Match{}, false
}

func (d *Driver) Visible(ctx context.Context, page browser.Page, targets ...Target) bool {
	_, ok := d.Find(ctx, page, targets...)
	return ok
}

// ClickFirst clicks the first visible match of the targets.
func (d *Driver) ClickFirst(ctx context.Context, page browser.Page, targets ...Target) (Match, error) {
	match, ok := d.Find(ctx, page, targets...)
	if !ok {
		return Match{}, fmt.Errorf("no visible element for %d candidate selectors", len(targets))
	}
	err := page.Click(ctx, match.Target.Selector, match.Index)
	if err != nil {
		return Match{}, err
	}
	return match, nil
}

const clickScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.click();
	return true;
})()`

// ForceClick clicks selector, falling back to a script click for inputs the
// site keeps hidden behind styled labels.
func (d *Driver) ForceClick(ctx context.Context, page browser.Page, selector string) error {
	err := page.Click(ctx, selector, 0)
	if err == nil {
		return nil
	}
	var clicked bool
	scriptErr := page.Evaluate(ctx, fmt.Sprintf(clickScript, jsString(selector)), &clicked)
	if scriptErr != nil {
		return fmt.Errorf("click '%s': %w", selector, scriptErr)
	}
	if !clicked {
		return fmt.Errorf("click '%s': %w", selector, err)
	}
	return nil
}

// DismissBanner clicks away a cookie or consent banner if one is visible.
func (d *Driver) DismissBanner(ctx context.Context, page browser.Page) {
	match, err := d.ClickFirst(ctx, page, BannerTargets...)
	if err != nil {
		return
	}
	d.Tel.ReportDebug("dismissed banner", match.Target.Selector, match.Text)
	_ = d.HumanDelay(ctx, 1)
}

func (d *Driver) DetectCaptcha(ctx context.Context, page browser.Page) error {
	match, ok := d.Find(ctx, page, CaptchaTargets...)
	if !ok {
		return nil
	}
	return airfare.Errorf(airfare.KindCaptchaDetected, "bot challenge '%s' is visible", match.Target.Selector)
}

// CheckLoginRedirect fails with AUTH_REQUIRED when url is a login page.
func CheckLoginRedirect(url string, loginPage *regexp.Regexp, message string) error {
	if loginPage.MatchString(url) {
		return airfare.Errorf(airfare.KindAuthRequired, "%s", message)
	}
	return nil
}

type AutocompleteField struct {
	Label string
	Input string
	Value string
	// PopupSelect is a confirmation button some sites show instead of a
	// suggestion list, it wins when visible.
	PopupSelect string
	Suggestions []string
	FallbackKey browser.Key
}

func (d *Driver) FillAutocomplete(ctx context.Context, page browser.Page, field AutocompleteField) error {
	fail := func(step string, err error) error {
		d.Tel.ReportWarning(report_driver_autocomplete, field.Label, step, err)
		return airfare.Wrap(airfare.KindFormInteractionFailed, fmt.Sprintf("%s: %s", field.Label, step), err)
	}

	err := page.Click(ctx, field.Input, 0)
	if err != nil {
		return fail("focus input", err)
	}
	if err = d.HumanDelay(ctx, 0.5); err != nil {
		return err
	}
	err = page.SetValue(ctx, field.Input, "")
	if err != nil {
		return fail("clear input", err)
	}
	if err = d.HumanDelay(ctx, 0.3); err != nil {
		return err
	}
	for _, r := range field.Value {
		err = page.Type(ctx, field.Input, string(r))
		if err != nil {
			return fail("type value", err)
		}
		if err = d.Clock.Sleep(ctx, keystrokeDelay); err != nil {
			return err
		}
	}
	if err = d.HumanDelay(ctx, 1); err != nil {
		return err
	}
	if err = d.Clock.Sleep(ctx, suggestionDelay); err != nil {
		return err
	}

	if field.PopupSelect != "" {
		_, err := d.ClickFirst(ctx, page, Target{Selector: field.PopupSelect})
		if err == nil {
			d.Tel.ReportDebug("selected via popup", field.Label, field.Value)
			return d.HumanDelay(ctx, 1)
		}
	}

	targets := make([]Target, len(field.Suggestions))
	for i, s := range field.Suggestions {
		targets[i] = Target{Selector: s, Text: field.Value}
	}
	_, err = d.ClickFirst(ctx, page, targets...)
	if err == nil {
		d.Tel.ReportDebug("selected suggestion", field.Label, field.Value)
		return d.HumanDelay(ctx, 1)
	}

	if field.FallbackKey == "" {
		return fail("select suggestion", fmt.Errorf("no suggestion contains '%s'", field.Value))
	}
	err = page.Press(ctx, field.FallbackKey)
	if err != nil {
		return fail("confirm with key", err)
	}
	d.Tel.ReportDebug("confirmed with key", field.Label, field.FallbackKey)
	return d.HumanDelay(ctx, 1)
}

type Calendar struct {
	// MonthSelect is a <select> whose option labels look like "January 2006".
	MonthSelect string
	Heading     string
	NextMonth   string
	// DayCells match every selectable day, the one whose text is the day
	// number is clicked.
	DayCells string
}

type DateField struct {
	Label  string
	Input  string
	Layout string
	// ViaScript writes the value with javascript, for readonly inputs backed
	// by a jQuery datepicker.
	ViaScript  bool
	ConfirmKey browser.Key
	Calendar   *Calendar
}

const setDateScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.removeAttribute("readonly");
	el.value = %s;
	const jq = window.$ || window.jQuery;
	if (jq && jq(el).datepicker) jq(el).datepicker("setDate", %s);
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})()`

const selectMonthScript = `(() => {
	const sel = document.querySelector(%s);
	if (!sel) return false;
	const opt = Array.from(sel.options).find((o) => o.label.trim() === %s || o.text.trim() === %s);
	if (!opt) return false;
	sel.value = opt.value;
	sel.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})()`

func (d *Driver) FillDate(ctx context.Context, page browser.Page, field DateField, date time.Time) error {
	formatted := date.Format(field.Layout)
	fail := func(step string, err error) error {
		d.Tel.ReportWarning(report_driver_date, field.Label, step, err)
		return airfare.Wrap(airfare.KindFormInteractionFailed, fmt.Sprintf("%s: %s", field.Label, step), err)
	}

	if field.ViaScript {
		var ok bool
		err := page.Evaluate(ctx, fmt.Sprintf(setDateScript, jsString(field.Input), jsString(formatted), jsString(formatted)), &ok)
		if err != nil {
			return fail("set date via script", err)
		}
		if !ok {
			return fail("set date via script", fmt.Errorf("no element for '%s'", field.Input))
		}
		return d.HumanDelay(ctx, 1)
	}

	if field.Input != "" && d.Visible(ctx, page, Target{Selector: field.Input}) {
		err := page.Click(ctx, field.Input, 0)
		if err != nil {
			return fail("focus date input", err)
		}
		if err = d.HumanDelay(ctx, 0.3); err != nil {
			return err
		}
		err = page.SetValue(ctx, field.Input, formatted)
		if err != nil {
			return fail("write date", err)
		}
		if err = d.HumanDelay(ctx, 0.3); err != nil {
			return err
		}
		if field.ConfirmKey != "" {
			err = page.Press(ctx, field.ConfirmKey)
			if err != nil {
				return fail("confirm date", err)
			}
		}
		return d.HumanDelay(ctx, 1)
	}

	if field.Calendar == nil {
		return fail("find date input", fmt.Errorf("'%s' is not visible and there is no calendar", field.Input))
	}
	return d.pickFromCalendar(ctx, page, *field.Calendar, date, fail)
}

func (d *Driver) pickFromCalendar(
	ctx context.Context,
	page browser.Page,
	cal Calendar,
	date time.Time,
	fail func(step string, err error) error,
) error {
	label := date.Format("January 2006")

	jumped := false
	if cal.MonthSelect != "" {
		err := page.Evaluate(ctx, fmt.Sprintf(selectMonthScript, jsString(cal.MonthSelect), jsString(label), jsString(label)), &jumped)
		if err != nil {
			d.Tel.ReportDebug("month select unavailable", err)
			jumped = false
		}
	}

	if !jumped {
		for i := 0; i < 12; i++ {
			if d.headingShows(ctx, page, cal.Heading, date) {
				break
			}
			err := page.Click(ctx, cal.NextMonth, 0)
			if err != nil {
				return fail("next month", err)
			}
			if err = d.HumanDelay(ctx, 0.5); err != nil {
				return err
			}
		}
	} else if err := d.HumanDelay(ctx, 1); err != nil {
		return err
	}

	elements, err := page.Elements(ctx, cal.DayCells)
	if err != nil {
		return fail("find day cell", err)
	}
	day := fmt.Sprint(date.Day())
	for i, el := range elements {
		if el.Visible && strings.TrimSpace(el.Text) == day {
			err = page.Click(ctx, cal.DayCells, i)
			if err != nil {
				return fail("click day cell", err)
			}
			return d.HumanDelay(ctx, 1)
		}
	}
	return fail("find day cell", fmt.Errorf("day %s of %s not selectable", day, label))
}

func (d *Driver) headingShows(ctx context.Context, page browser.Page, heading string, date time.Time) bool {
	elements, err := page.Elements(ctx, heading)
	if err != nil || len(elements) == 0 {
		return false
	}
	text := elements[0].Text
	return strings.Contains(text, date.Format("January")) && strings.Contains(text, date.Format("2006"))
}

type WaitSpec struct {
	Spinners []string
	// LoadingText counts as a loading indicator when a visible element shows it.
	LoadingText string
	StartDelay  time.Duration
	Interval    time.Duration
	Ceiling     time.Duration
	Settle      time.Duration
}

const loadingTextScript = `(() => {
	const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
	let node;
	while ((node = walker.nextNode())) {
		if (!node.textContent.includes(%s)) continue;
		const el = node.parentElement;
		if (el && el.offsetParent !== null) return true;
	}
	return false;
})()`

func (d *Driver) loading(ctx context.Context, page browser.Page, spec WaitSpec) bool {
	for _, spinner := range spec.Spinners {
		if d.Visible(ctx, page, Target{Selector: spinner}) {
			return true
		}
	}
	if spec.LoadingText != "" {
		var visible bool
		err := page.Evaluate(ctx, fmt.Sprintf(loadingTextScript, jsString(spec.LoadingText)), &visible)
		if err == nil && visible {
			return true
		}
	}
	return false
}

// WaitForResults polls until no loading indicator is visible or the ceiling
// elapses. Reaching the ceiling is not an error, the returned bool reports
// whether loading was observed to finish.
func (d *Driver) WaitForResults(ctx context.Context, page browser.Page, spec WaitSpec) (bool, error) {
	err := d.Clock.Sleep(ctx, spec.StartDelay)
	if err != nil {
		return false, err
	}

	cleared := false
	start := d.Clock.Now()
	for d.Clock.Now().Sub(start) < spec.Ceiling {
		if !d.loading(ctx, page, spec) {
			cleared = true
			break
		}
		d.Tel.ReportDebug("still loading", d.Clock.Now().Sub(start).String())
		err = d.Clock.Sleep(ctx, spec.Interval)
		if err != nil {
			return false, err
		}
	}
	if !cleared {
		d.Tel.ReportWarning(report_driver_wait, "loading indicator never cleared", spec.Ceiling.String())
	}

	err = d.Clock.Sleep(ctx, spec.Settle)
	if err != nil {
		return cleared, err
	}
	return cleared, nil
}

// WaitForURL polls the page url until it matches or timeout elapses.
func (d *Driver) WaitForURL(ctx context.Context, page browser.Page, patterns *browser.Patterns, timeout time.Duration) (bool, error) {
	start := d.Clock.Now()
	for {
		url, err := page.URL(ctx)
		if err == nil && patterns.Match(url) {
			return true, nil
		}
		if d.Clock.Now().Sub(start) >= timeout {
			return false, nil
		}
		err = d.Clock.Sleep(ctx, pollInterval)
		if err != nil {
			return false, err
		}
	}
}

// FollowNewPage runs click and returns the tab it opened, waiting up to
// timeout. When no tab opens, current is returned with opened false.
func (d *Driver) FollowNewPage(
	ctx context.Context,
	handle browser.Handle,
	current browser.Page,
	timeout time.Duration,
	click func(ctx context.Context) error,
) (page browser.Page, opened bool, err error) {
	before := map[string]bool{}
	pages, err := handle.Pages(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		before[p.ID()] = true
	}

	err = click(ctx)
	if err != nil {
		return nil, false, err
	}

	start := d.Clock.Now()
	for d.Clock.Now().Sub(start) < timeout {
		pages, err := handle.Pages(ctx)
		if err == nil {
			for _, p := range pages {
				if !before[p.ID()] {
					return p, true, nil
				}
			}
		}
		err = d.Clock.Sleep(ctx, pollInterval)
		if err != nil {
			return nil, false, err
		}
	}
	return current, false, nil
}

func jsString(s string) string {
	buf, _ := json.Marshal(s)
	return string(buf)
}
