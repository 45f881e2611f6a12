package award

import (
	"regexp"
	"time"

	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/formdrive"
)

const (
	SourceName = "china-airlines-award"

	DefaultDashboardURL = "https://dynasty-flyer.china-airlines.com/member/dashboard"
	DefaultLoginURL     = "https://dynasty-flyer.china-airlines.com/member/auth/login?clientType=part-chl&redirectTo=https://www.china-airlines.com/us/en/"
)

var (
	awardPageRegex  = regexp.MustCompile(`membersonair\.china-airlines\.com/AwardTicketSeat`)
	loginPageRegex  = regexp.MustCompile(`dynasty-flyer\.china-airlines\.com/member/auth/login`)
	authDomainRegex = regexp.MustCompile(`dynasty-flyer\.china-airlines\.com`)
	mainSiteRegex   = regexp.MustCompile(`www\.china-airlines\.com`)
	notLoggedIn     = regexp.MustCompile(`(?i)log\s*in|sign\s*in|register|dynasty\s*member`)

	flightNumberRegex = regexp.MustCompile(`CI\s*\d{3,4}`)
)

const sessionExpiredMessage = "Dynasty Flyer session has expired. Please run the dynasty-flyer-login tool to re-authenticate."

type Config struct {
	DashboardURL  string
	LoginURL      string
	PageSettle    time.Duration
	LoginSettle   time.Duration
	PollInterval  time.Duration
	LoginTimeout  time.Duration
	NewTabTimeout time.Duration
	// SessionID is an externally supplied keep-alive session to reconnect to,
	// used when no session id is stored.
	SessionID string
}

func DefaultConfig() Config {
	return Config{
		DashboardURL:  DefaultDashboardURL,
		LoginURL:      DefaultLoginURL,
		PageSettle:    5 * time.Second,
		LoginSettle:   3 * time.Second,
		PollInterval:  5 * time.Second,
		LoginTimeout:  300 * time.Second,
		NewTabTimeout: 30 * time.Second,
	}
}

var loggedInIndicators = []formdrive.Target{
	{Selector: "a, span, div", Text: "HI Member"},
	{Selector: ".member-name"},
	{Selector: ".user-name"},
	{Selector: ".login-member-info"},
}

// memberMenuTriggers show in the header whether or not someone is logged in,
// their text tells which.
var memberMenuTriggers = []formdrive.Target{
	{Selector: "a, button", Text: "HI Member"},
	{Selector: "a, button", Text: "Dynasty Member"},
	{Selector: ".member-menu-trigger"},
	{Selector: ".login-after"},
}

var awardLinks = []formdrive.Target{
	{Selector: "a", Text: "Reward Ticket"},
	{Selector: "a", Text: "Award Ticket"},
	{Selector: `a[href*="AwardTicket"]`},
	{Selector: `a[href*="reward-ticket"]`},
	{Selector: "a", Text: "Redeem"},
}

const (
	agreeCheckbox    = "#chkRead"
	oneWayRadio      = "#rbnOneWay"
	originInput      = "#txtDepStn"
	destinationInput = "#txtArvStn"
	departDateInput  = "#txtDepDatePicker"
	searchButton     = "#btnSubmit"
)

var stationSuggestions = []string{".ui-autocomplete li", ".ui-menu-item"}

var cabinRadios = map[string]string{
	"economy":         "#rbnECONOMYAS",
	"premium_economy": "#rbnPREMIUMAS",
	"business":        "#rbnBUSINESSAS",
}

var resultsWait = formdrive.WaitSpec{
	Spinners: []string{
		".loading-mask",
		".loading-spinner",
		".search-loading",
		`[data-loading="true"]`,
		".spinner",
		".loading",
	},
	LoadingText: "Loading",
	StartDelay:  3 * time.Second,
	Interval:    5 * time.Second,
	Ceiling:     90 * time.Second,
	Settle:      5 * time.Second,
}

var responsePatterns = browser.MustCompilePatterns(
	"**/AwardTicketSeat/**",
	"**/Award/**",
	"**/api/**/award**",
	"**/api/**/mileage**",
	"**/api/**/redeem**",
	"**/api/**/availability**",
	"**/SearchAward**",
	"**/GetAwardFlights**",
)
