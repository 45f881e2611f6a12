package airfare

import (
	"time"
)

type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type MilesPrice struct {
	Miles int    `json:"miles"`
	Taxes *Money `json:"taxes,omitempty"`
}

type FlightSegment struct {
	FlightNumber     string `json:"flightNumber"`
	Airline          string `json:"airline"`
	DepartureAirport string `json:"departureAirport"`
	ArrivalAirport   string `json:"arrivalAirport"`
	DepartureTime    string `json:"departureTime"`
	ArrivalTime      string `json:"arrivalTime"`
	Duration         string `json:"duration,omitempty"`
	Aircraft         string `json:"aircraft,omitempty"`
}

// FlightOption is one itinerary as a single source reported it. Sources other
// than the mock set exactly one of CashPrice and MilesPrice.
type FlightOption struct {
	Segments       []FlightSegment `json:"segments"`
	Stops          int             `json:"stops"`
	TotalDuration  string          `json:"totalDuration"`
	CashPrice      *Money          `json:"cashPrice,omitempty"`
	MilesPrice     *MilesPrice     `json:"milesPrice,omitempty"`
	Cabin          string          `json:"cabinClass"`
	FareFamily     string          `json:"fareFamily,omitempty"`
	BookingClass   string          `json:"bookingClass,omitempty"`
	SeatsAvailable *int            `json:"seatsAvailable,omitempty"`
}

func (o FlightOption) First() FlightSegment {
	if len(o.Segments) == 0 {
		return FlightSegment{}
	}
	return o.Segments[0]
}

func (o FlightOption) Last() FlightSegment {
	if len(o.Segments) == 0 {
		return FlightSegment{}
	}
	return o.Segments[len(o.Segments)-1]
}

type CPPRating string

const (
	RatingExcellent CPPRating = "excellent"
	RatingGood      CPPRating = "good"
	RatingFair      CPPRating = "fair"
	RatingPoor      CPPRating = "poor"
)

type BestDeal string

const (
	DealCash   BestDeal = "cash"
	DealRedeem BestDeal = "redeem"
	DealBuy    BestDeal = "buy"
)

type UnifiedFlightRecord struct {
	ID                string     `json:"id"`
	Airline           string     `json:"airline"`
	FlightNumber      string     `json:"flightNumber"`
	Origin            string     `json:"origin"`
	Destination       string     `json:"destination"`
	DepartDate        string     `json:"departDate"`
	DepartTime        string     `json:"departTime"`
	ArriveTime        string     `json:"arriveTime"`
	Duration          string     `json:"duration"`
	Stops             int        `json:"stops"`
	Cabin             string     `json:"cabinClass"`
	CashPrice         float64    `json:"cashPrice"`
	CashCurrency      string     `json:"cashCurrency"`
	MilesPrice        *int       `json:"milesPrice"`
	MilesTaxes        *float64   `json:"milesTaxes"`
	CentsPerPoint     *float64   `json:"centsPerPoint"`
	CPPRating         *CPPRating `json:"cppRating"`
	BuyMilesRate      *float64   `json:"buyMilesRate"`
	BuyMilesTotal     *float64   `json:"buyMilesTotal"`
	BuyMilesPlusTaxes *float64   `json:"buyMilesPlusTaxes"`
	BestDeal          *BestDeal  `json:"bestDeal"`
	Savings           *float64   `json:"savings"`
}

type FlightSearchResult struct {
	Flights      []UnifiedFlightRecord `json:"flights"`
	SearchParams RawSearchRequest      `json:"searchParams"`
	Provider     string                `json:"provider"`
	Timestamp    time.Time             `json:"timestamp"`
}
