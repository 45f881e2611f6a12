package farecompare

import (
	"encoding/json"
	"net/http"
	"strconv"

	"milesfare-backend/internal/airfare"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const report_http_encode = "http.encode"

type errorBody struct {
	Kind    airfare.Kind `json:"kind,omitempty"`
	Message string       `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// StatusOf maps an error kind to the HTTP status the API answers with.
func StatusOf(kind airfare.Kind) int {
	switch kind {
	case airfare.KindInvalidInput:
		return http.StatusBadRequest
	case airfare.KindAuthRequired, airfare.KindAuthExpired, airfare.KindLoginTimeout:
		return http.StatusUnauthorized
	case airfare.KindNoResults:
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// Handler serves the JSON API over s.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /flights/search", s.handleSearchFlights)
	mux.HandleFunc("GET /flights/{id}", s.handleFlight)
	mux.HandleFunc("GET /listings/search", s.handleSearchListings)
	mux.HandleFunc("GET /listings/{id}", s.handleListing)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	return otelhttp.NewHandler(mux, "farecompare")
}

func (s *Service) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		s.tel.ReportWarning(report_http_encode, err)
	}
}

func (s *Service) respondError(w http.ResponseWriter, err error) {
	kind := airfare.KindOf(err)
	s.respond(w, StatusOf(kind), errorResponse{
		Error: errorBody{Kind: kind, Message: airfare.MessageOf(err)},
	})
}

func (s *Service) handleSearchFlights(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	raw := airfare.RawSearchRequest{
		Origin:      query.Get("origin"),
		Destination: query.Get("destination"),
		DepartDate:  query.Get("departDate"),
		ReturnDate:  query.Get("returnDate"),
		Cabin:       query.Get("cabinClass"),
	}
	if passengers := query.Get("passengers"); passengers != "" {
		n, err := strconv.Atoi(passengers)
		if err != nil {
			s.respondError(w, airfare.Errorf(airfare.KindInvalidInput, "passengers must be a number, got '%s'", passengers))
			return
		}
		raw.Passengers = &n
	}

	result, err := s.Search(r.Context(), raw)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Service) handleFlight(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flight, ok := s.GetFlightByID(id)
	if !ok {
		s.respondError(w, airfare.Errorf(airfare.KindNoResults, "flight '%s' not found, search first", id))
		return
	}
	s.respond(w, http.StatusOK, flight)
}

func (s *Service) handleSearchListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := s.SearchListings(r.Context(), airfare.ListingSearchParams{
		Airline:        query.Get("airline"),
		MilesRange:     query.Get("milesRange"),
		UnitPriceRange: query.Get("unitPriceRange"),
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Service) handleListing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	listing, ok := s.GetListingByID(id)
	if !ok {
		s.respondError(w, airfare.Errorf(airfare.KindNoResults, "listing '%s' not found, search first", id))
		return
	}
	s.respond(w, http.StatusOK, listing)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	result := s.Login(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnauthorized
	}
	s.respond(w, status, result)
}

func (s *Service) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.ActiveSessions())
}
