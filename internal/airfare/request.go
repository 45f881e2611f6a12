package airfare

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Cabin string

const (
	CabinEconomy        Cabin = "economy"
	CabinPremiumEconomy Cabin = "premium_economy"
	CabinBusiness       Cabin = "business"
	CabinFirst          Cabin = "first"
)

// RawSearchRequest is a search request as it arrives from the CLI or HTTP
// layer, before validation. A nil Passengers means one passenger.
type RawSearchRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	DepartDate  string `json:"departDate"`
	ReturnDate  string `json:"returnDate,omitempty"`
	Cabin       string `json:"cabinClass,omitempty"`
	Passengers  *int   `json:"passengers,omitempty"`
}

// SearchRequest is a validated, normalized search request. Construct it with
// ParseSearchRequest.
type SearchRequest struct {
	Origin      string
	Destination string
	DepartDate  time.Time
	ReturnDate  *time.Time
	Cabin       Cabin
	Passengers  int
}

func ParseSearchRequest(raw RawSearchRequest) (SearchRequest, error) {
	origin, err := parseAirport("origin", raw.Origin)
	if err != nil {
		return SearchRequest{}, err
	}
	destination, err := parseAirport("destination", raw.Destination)
	if err != nil {
		return SearchRequest{}, err
	}
	depart, err := parseDate("departDate", raw.DepartDate)
	if err != nil {
		return SearchRequest{}, err
	}

	req := SearchRequest{
		Origin:      origin,
		Destination: destination,
		DepartDate:  depart,
		Cabin:       CabinEconomy,
		Passengers:  1,
	}

	if raw.ReturnDate != "" {
		ret, err := parseDate("returnDate", raw.ReturnDate)
		if err != nil {
			return SearchRequest{}, err
		}
		req.ReturnDate = &ret
	}

	if raw.Cabin != "" {
		cabin, err := ParseCabin(raw.Cabin)
		if err != nil {
			return SearchRequest{}, err
		}
		req.Cabin = cabin
	}

	if raw.Passengers != nil {
		n := *raw.Passengers
		if n < 1 || n > 9 {
			return SearchRequest{}, Errorf(KindInvalidInput, "passengers must be between 1 and 9, got %d", n)
		}
		req.Passengers = n
	}

	return req, nil
}

func ParseCabin(value string) (Cabin, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	switch Cabin(normalized) {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
		return Cabin(normalized), nil
	}
	return "", Errorf(KindInvalidInput, "unknown cabin class '%s'", value)
}

func parseAirport(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) != 3 {
		return "", Errorf(KindInvalidInput, "%s must be a 3-letter airport code, got '%s'", field, value)
	}
	for _, c := range value {
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return "", Errorf(KindInvalidInput, "%s must be a 3-letter airport code, got '%s'", field, value)
		}
	}
	return strings.ToUpper(value), nil
}

func parseDate(field, value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, Wrap(KindInvalidInput, fmt.Sprintf("%s must be a YYYY-MM-DD date, got '%s'", field, value), err)
	}
	return date, nil
}

func (r SearchRequest) DepartDateString() string {
	return r.DepartDate.Format(DateLayout)
}

func (r SearchRequest) ReturnDateString() string {
	if r.ReturnDate == nil {
		return ""
	}
	return r.ReturnDate.Format(DateLayout)
}

// Key is the cache key of the request, it covers every normalized field.
func (r SearchRequest) Key() string {
	return fmt.Sprintf(
		"%s|%s|%s|%s|%s|%d",
		r.Origin, r.Destination,
		r.DepartDateString(), r.ReturnDateString(),
		r.Cabin, r.Passengers,
	)
}

// Raw converts the request back into its wire form, used for the
// searchParams field of result envelopes.
func (r SearchRequest) Raw() RawSearchRequest {
	return RawSearchRequest{
		Origin:      r.Origin,
		Destination: r.Destination,
		DepartDate:  r.DepartDateString(),
		ReturnDate:  r.ReturnDateString(),
		Cabin:       string(r.Cabin),
		Passengers:  &r.Passengers,
	}
}
