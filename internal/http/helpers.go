package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"retailcast/internal/core"
	applog "retailcast/internal/log"
)

// previewRows is how many transactions the upload preview shows.
const previewRows = 20

// formatNumber prints whole numbers without decimals and others with two.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// previewRow is a transaction formatted for the preview table.
type previewRow struct {
	Date, Cost, Location, Quantity, Item, Month string
}

func preview(t *core.Table, n int) []previewRow {
	rows := t.Rows()
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([]previewRow, len(rows))
	for i, r := range rows {
		out[i] = previewRow{
			Date:     r.Date.Format("2006-01-02"),
			Cost:     formatNumber(r.Cost),
			Location: r.Location,
			Quantity: formatNumber(r.Quantity),
			Item:     r.Item,
			Month:    r.MonthLabel(),
		}
	}
	return out
}

// writeJSON encodes v with the given status. An unencodable value becomes a
// 500 instead of a truncated body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		body, status = []byte(`{"error":"internal error"}`), http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// render executes a template into a buffer first so a failing template
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).
			ErrorContext(r.Context(), "Template execution failed", applog.FieldError, err, "template", name)
		InternalServerError("An error occurred: could not render page").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial is render for HTMX fragments, adding trigger headers.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).
			ErrorContext(r.Context(), "Template execution failed", applog.FieldError, err, "template", name)
		InternalServerError("An error occurred: could not render page").Write(w)
		return
	}
	resp.BodyHTML(buf.String()).Write(w)
}

// catchAll is the generic message for unexpected failures.
func catchAll(err error) string {
	return fmt.Sprintf("An error occurred: %v", err)
}
