// Package http serves the dashboard pages, HTMX partials and the JSON API.
//
// This file parses and validates the chart widget parameters shared by the
// HTML partials and the JSON endpoints.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"retailcast/internal/analytics"
	"retailcast/internal/export"
)

const (
	maxMonthsAhead = 12
	maxYear        = 2100
	maxBins        = 50
)

var errInvalidParam = errors.New("invalid parameter")

// ChartParams holds the widget state for one chart request.
type ChartParams struct {
	Type        ChartType
	Location    string
	StartMonth  int
	Year        int
	MonthsAhead int
	Order       analytics.MonthOrder
	Step        analytics.Step
	Bins        int
}

// ParseChartParams reads chart parameters from a query string. Missing
// values take the widget defaults; out-of-range values are rejected with the
// same bounds the input widgets enforce.
func ParseChartParams(query url.Values, now time.Time) (ChartParams, error) {
	p := ChartParams{
		Location: sanitizeInput(query.Get("location")),
		Order:    analytics.ParseMonthOrder(query.Get("order")),
		Step:     analytics.ParseStep(query.Get("step")),
	}

	var problems []string
	var err error

	if p.Type, err = ParseChartType(query.Get("type")); err != nil {
		problems = append(problems, err.Error())
	}
	if p.StartMonth, err = intParam(query, "start_month", 1, 1, 12); err != nil {
		problems = append(problems, err.Error())
	}
	if p.Year, err = intParam(query, "year", now.Year(), now.Year(), maxYear); err != nil {
		problems = append(problems, err.Error())
	}
	if p.MonthsAhead, err = intParam(query, "months_ahead", 1, 1, maxMonthsAhead); err != nil {
		problems = append(problems, err.Error())
	}
	if p.Bins, err = intParam(query, "bins", analytics.DefaultBins, 1, maxBins); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return p, fmt.Errorf("%w: %s", errInvalidParam, strings.Join(problems, "; "))
	}
	return p, nil
}

// intParam parses key as an integer in [lo, hi], using def when absent.
func intParam(query url.Values, key string, def, lo, hi int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a number", key)
	}
	if n < lo || n > hi {
		return def, fmt.Errorf("%s must be between %d and %d", key, lo, hi)
	}
	return n, nil
}

// parseCredentials reads the login/signup form.
func parseCredentials(r *http.Request) (username, password string, err error) {
	if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return sanitizeInput(r.PostForm.Get("username")), r.PostForm.Get("password"), nil
}

// parseExportFormats reads the requested export format, defaulting to both.
func parseExportFormats(r *http.Request) ([]export.Format, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return export.ParseFormats(r.PostForm.Get("format"))
}
