// Package geo resolves store locations to addresses through Nominatim.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"retailcast/internal/cache"
	applog "retailcast/internal/log"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultCountry   = "India"
	DefaultUserAgent = "RetailCast/1.0"
)

var (
	ErrLocationNotFound       = errors.New("location not found")
	ErrInsufficientPrivileges = errors.New("insufficient privileges for the geocoding service")
	ErrEmptyCity              = errors.New("city is required")
)

type Config struct {
	BaseURL   string
	Country   string
	UserAgent string
	Timeout   time.Duration
}

// Geocoder looks up the display address of a city.
type Geocoder struct {
	cfg    Config
	client *http.Client
	store  cache.Store
	group  singleflight.Group
	logger *slog.Logger
}

type place struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// New creates a Geocoder. A nil store disables caching.
func New(cfg Config, store cache.Store, logger *slog.Logger) *Geocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Geocoder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		store:  store,
		logger: logger,
	}
}

// Lookup returns the address Nominatim reports for "<city>, <country>".
func (g *Geocoder) Lookup(ctx context.Context, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", ErrEmptyCity
	}
	key := strings.ToLower(city + "|" + g.cfg.Country)

	if g.store != nil {
		addr, ok, err := g.store.Get(ctx, key)
		if err != nil {
			g.logger.WarnContext(ctx, "Geocode cache read failed", applog.FieldError, err)
		} else if ok {
			return addr, nil
		}
	}

	v, err, _ := g.group.Do(key, func() (interface{}, error) {
		addr, err := g.query(ctx, city)
		if err != nil {
			return "", err
		}
		if g.store != nil {
			if err := g.store.Set(ctx, key, addr); err != nil {
				g.logger.WarnContext(ctx, "Geocode cache write failed", applog.FieldError, err)
			}
		}
		return addr, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Geocoder) query(ctx context.Context, city string) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", city+", "+g.cfg.Country)
	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", g.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	g.logger.DebugContext(ctx, "Nominatim responded",
		applog.FieldCity, city,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrInsufficientPrivileges
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("geocode service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return "", fmt.Errorf("decode geocode response: %w", err)
	}
	if len(places) == 0 || places[0].DisplayName == "" {
		return "", ErrLocationNotFound
	}
	return places[0].DisplayName, nil
}

// Message renders a lookup result for inline display. Lookup errors never
// fail the page.
func Message(addr string, err error) string {
	switch {
	case err == nil:
		return "Address: " + addr
	case errors.Is(err, ErrLocationNotFound):
		return "Location not found"
	case errors.Is(err, ErrInsufficientPrivileges):
		return "Insufficient privileges for the geocoding service"
	case errors.Is(err, ErrEmptyCity):
		return "Enter a city name"
	default:
		return "An error occurred: " + err.Error()
	}
}
