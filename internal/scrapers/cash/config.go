package cash

import (
	"regexp"
	"time"

	"milesfare-backend/internal/browser"
	"milesfare-backend/internal/formdrive"
)

const (
	SourceName    = "china-airlines"
	DefaultURL    = "https://www.china-airlines.com/us/en"
	airBoundsPath = "/v2/search/air-bounds"
)

type Config struct {
	URL            string
	PageSettle     time.Duration
	ResultsTimeout time.Duration
	ResultsSettle  time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:            DefaultURL,
		PageSettle:     5 * time.Second,
		ResultsTimeout: 60 * time.Second,
		ResultsSettle:  5 * time.Second,
	}
}

const (
	tripTypeDropdown = "#fr-dropdownButton"
	oneWayOption     = `li[data-value="one-way"]`
	originInput      = "#From-booking"
	destinationInput = "#To-booking"
	airportPopupPick = "button.btn-brand-pink.search-btn"
	dateInput        = "#oneWayDate"
	cabinTrigger     = ".cal-group-drop-show"
	searchButton     = `a[ng-click="flightsearchresult()"]`
)

var airportSuggestions = []string{"li", ".airport-item"}

var calendar = formdrive.Calendar{
	MonthSelect: "#monthChanger",
	Heading:     ".calendar-datepicker strong",
	NextMonth:   ".left-button-cal button",
	DayCells:    `td[role="gridcell"]:not(.text-muted) button span`,
}

var cabinRadios = map[string]string{
	"economy":         "#simple-Economy-class",
	"premium_economy": "#simple-Premium-Economy-class",
	"business":        "#simple-Business-class",
}

var flightCards = []string{
	".flight-card",
	".flight-item",
	".flight-row",
	".itinerary-card",
}

var flightNumberRegex = regexp.MustCompile(`CI\s*\d{3,4}`)

var responsePatterns = browser.MustCompilePatterns(
	"**/v2/search/air-bounds**",
	"**/v2/search/air-calendars**",
	"**/api/**/flight**",
	"**/api/**/search**",
	"**/api/**/availability**",
	"**/booking/**/search**",
	"**/fare**",
	"**/FlightSearchResults**",
)

var resultsURL = browser.MustCompilePatterns("**/FlightSearchResults**")
