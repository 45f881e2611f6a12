package marketplace

import (
	"net/url"
	"strings"
	"time"

	"milesfare-backend/internal/airfare"

	"github.com/PuerkitoBio/purell"
	"github.com/antzucaro/matchr"
)

const (
	SourceName = "points-bazaar"

	BaseURL              = "https://pointsbazaar.com/mileage"
	DefaultExtractionURL = "https://api.firecrawl.dev"

	// ExtractionWait is how long the extraction service lets the page render
	// before taking its snapshot.
	ExtractionWait = 3 * time.Second
)

type Config struct {
	ExtractionURL string        `json:"extraction_url"`
	APIKey        string        `json:"api_key"`
	Timeout       time.Duration `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		ExtractionURL: DefaultExtractionURL,
		Timeout:       60 * time.Second,
	}
}

// BuildSearchURL returns the canonical listing-search url. Airline "all"
// (or empty) searches every airline.
func BuildSearchURL(airline, milesRange, unitPriceRange string) string {
	if airline == "all" {
		airline = ""
	}
	if milesRange == "" {
		milesRange = "unlimited"
	}
	if unitPriceRange == "" {
		unitPriceRange = "unlimited"
	}
	query := url.Values{}
	query.Set("airline", airline)
	query.Set("milesRange", milesRange)
	query.Set("unitPriceRange", unitPriceRange)

	raw := BaseURL + "/selling?" + query.Encode()
	normalized, err := purell.NormalizeURLString(raw, purell.FlagsSafe|purell.FlagSortQuery)
	if err != nil {
		return raw
	}
	return normalized
}

// KnownAirlines maps marketplace airline names to IATA codes.
var KnownAirlines = map[string]string{
	"China Airlines":     "CI",
	"American Airlines":  "AA",
	"United Airlines":    "UA",
	"Delta Air Lines":    "DL",
	"Alaska Airlines":    "AS",
	"British Airways":    "BA",
	"Singapore Airlines": "SQ",
	"Cathay Pacific":     "CX",
	"Emirates":           "EK",
	"Japan Airlines":     "JL",
	"ANA":                "NH",
	"Korean Air":         "KE",
	"Air France":         "AF",
	"Lufthansa":          "LH",
	"Qantas":             "QF",
	"Southwest Airlines": "WN",
	"JetBlue":            "B6",
	"Air Canada":         "AC",
	"Turkish Airlines":   "TK",
	"EVA Air":            "BR",
}

var airlineByCode = func() map[string]string {
	out := make(map[string]string, len(KnownAirlines))
	for name, code := range KnownAirlines {
		out[code] = name
	}
	return out
}()

// AirlineName returns the marketplace name of an IATA code.
func AirlineName(code string) (string, bool) {
	name, ok := airlineByCode[strings.ToUpper(code)]
	return name, ok
}

var loyaltyPrograms = []string{
	"AAdvantage",
	"MileagePlus",
	"SkyMiles",
	"Dynasty Flyer",
	"Executive Club",
	"KrisFlyer",
	"Asia Miles",
	"Skywards",
	"Mileage Bank",
}

const minAirlineSimilarity = 0.9

// ResolveAirlineCode turns user input into an airline filter: "all", an
// IATA code or an airline name, matched loosely. Two-character inputs are
// taken as codes even when unknown.
func ResolveAirlineCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "all") {
		return "all", nil
	}
	if len(input) == 2 {
		return strings.ToUpper(input), nil
	}

	best := ""
	bestScore := 0.0
	for name, code := range KnownAirlines {
		if strings.EqualFold(name, input) {
			return code, nil
		}
		score := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(input), false)
		if score > bestScore || (score == bestScore && code < best) {
			best = code
			bestScore = score
		}
	}
	if bestScore >= minAirlineSimilarity {
		return best, nil
	}
	return "", airfare.Errorf(airfare.KindInvalidInput, "unknown airline '%s'", input)
}
