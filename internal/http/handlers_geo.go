package http

import (
	"errors"
	"net/http"
	"time"

	"retailcast/internal/auth"
	"retailcast/internal/geo"
	applog "retailcast/internal/log"
)

const geocodeTimeout = 10 * time.Second

func (s *Server) lookup(r *http.Request, city string) (string, error) {
	if s.deps.Geocoder == nil {
		return "", errors.New("geocoding is not configured")
	}
	ctx, cancel := contextWithTimeout(r, geocodeTimeout)
	defer cancel()

	addr, err := s.deps.Geocoder.Lookup(ctx, city)
	if err != nil && !errors.Is(err, geo.ErrLocationNotFound) && !errors.Is(err, geo.ErrEmptyCity) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentGeo).
			WarnContext(r.Context(), "Geocode lookup failed", applog.FieldError, err, applog.FieldOperation, applog.OpGeocode)
	}
	return addr, err
}

// handleGeocodePartial renders "Detected Location" text. Lookup failures
// are shown inline and never fail the page. The dashboard sends the
// shared location field, so that is accepted in place of city.
func (s *Server) handleGeocodePartial(w http.ResponseWriter, r *http.Request, _ *auth.Session) {
	q := r.URL.Query()
	city := sanitizeInput(q.Get("city"))
	if city == "" {
		city = sanitizeInput(q.Get("location"))
	}
	if city == "" {
		s.renderPartial(w, r, NewHTMXResponse(), "geocode.html", map[string]string{})
		return
	}
	addr, err := s.lookup(r, city)
	s.renderPartial(w, r, NewHTMXResponse(), "geocode.html", map[string]string{
		"City":    city,
		"Message": geo.Message(addr, err),
	})
}

// handleGeocodeJSON answers {address} or {error}.
func (s *Server) handleGeocodeJSON(w http.ResponseWriter, r *http.Request, _ *auth.Session) {
	city := sanitizeInput(r.URL.Query().Get("city"))
	if city == "" {
		writeJSONError(w, http.StatusBadRequest, geo.Message("", geo.ErrEmptyCity))
		return
	}
	addr, err := s.lookup(r, city)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"city": city, "error": geo.Message(addr, err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"city": city, "address": addr})
}
