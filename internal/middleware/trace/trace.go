// Package trace assigns request IDs and logs request start and completion.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	applog "retailcast/internal/log"
)

// HeaderRequestID is echoed on every response.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

var upstreamID = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

type Middleware struct {
	clientIP func(*http.Request) string
	logger   *applog.Logger

	total    atomic.Int64
	inFlight atomic.Int64
	failed   atomic.Int64
	lastMs   atomic.Int64
}

// Metrics is a snapshot of the request counters. Failed counts 5xx responses.
type Metrics struct {
	TotalRequests  int64 `json:"total"`
	InFlight       int64 `json:"in_flight"`
	Failed         int64 `json:"failed"`
	LastDurationMs int64 `json:"last_duration_ms"`
}

// NewMiddleware logs through logger tagged as the http component. clientIP
// may be nil.
func NewMiddleware(clientIP func(*http.Request) string, logger *applog.Logger) *Middleware {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Middleware{clientIP: clientIP, logger: logger.WithComponent(applog.ComponentHTTP)}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.total.Add(1)
		m.inFlight.Add(1)
		defer m.inFlight.Add(-1)

		// Keep a well-formed upstream ID so proxy and app logs line up.
		id := r.Header.Get(HeaderRequestID)
		if !upstreamID.MatchString(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		ip := ""
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}
		base := applog.NewFields().RequestID(id).ClientIP(ip).Request(r)
		m.logger.DebugContext(r.Context(), "HTTP request started", base.Args()...)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		m.lastMs.Store(elapsed.Milliseconds())
		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
			m.failed.Add(1)
		case rec.status >= 400:
			level = slog.LevelWarn
		}
		m.logger.Log(r.Context(), level, "HTTP request completed", base.Response(rec.status, elapsed).Args()...)
	})
}

func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:  m.total.Load(),
		InFlight:       m.inFlight.Load(),
		Failed:         m.failed.Load(),
		LastDurationMs: m.lastMs.Load(),
	}
}

// statusRecorder remembers the first status written.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// GenerateRequestID returns "req_" plus 16 hex characters.
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "req_" + strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return "req_" + hex.EncodeToString(b)
}

// GetRequestID returns the ID assigned by the middleware, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}
