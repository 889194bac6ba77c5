package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"retailcast/internal/auth"
	"retailcast/internal/export"
	applog "retailcast/internal/log"
	"retailcast/internal/middleware/ratelimit"
	"retailcast/internal/middleware/security"
	"retailcast/internal/middleware/trace"
	"retailcast/internal/sheets"
	appweb "retailcast/web"
)

// Authenticator signs users up and checks their credentials.
type Authenticator interface {
	Signup(ctx context.Context, username, password string) (auth.User, error)
	Login(ctx context.Context, username, password string) (auth.User, error)
}

// Geocoder resolves a city to a display address.
type Geocoder interface {
	Lookup(ctx context.Context, city string) (string, error)
}

// Exporter writes or queues the user-data exports.
type Exporter interface {
	Request(ctx context.Context, username string, formats []export.Format, rec export.Record) (export.Result, error)
}

// Options are the transport settings of the server.
type Options struct {
	Addr               string
	MaxUploadBytes     int64
	RateLimitPerMinute int
	TrustedProxies     []string
	SecureCookies      bool
	// SheetTimeout bounds a Google Sheets read.
	SheetTimeout time.Duration
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Auth     Authenticator
	Sessions *auth.Sessions
	Geocoder Geocoder
	Exports  Exporter
	// ExportDir is where inline exports land, for downloads.
	ExportDir string
	// Sheets is nil when no spreadsheet is configured.
	Sheets      sheets.RowSource
	ReadyChecks map[string]func(context.Context) error
	Logger      *applog.Logger
}

// Server wraps http.Server with the dashboard routes and middleware.
type Server struct {
	http.Server

	opts       Options
	deps       Deps
	templates  *template.Template
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware
	logger     *applog.Logger
	structured *applog.StructuredLogger
	started    time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.SheetTimeout <= 0 {
		opts.SheetTimeout = 15 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}

	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:       opts,
		deps:       deps,
		templates:  tmpl,
		detector:   detector,
		logger:     deps.Logger.WithComponent(applog.ComponentHTTP),
		structured: applog.NewStructuredLogger(deps.Logger),
		started:    time.Now(),
	}
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = opts.RateLimitPerMinute
	s.limiter = ratelimit.NewLimiter(rlCfg)
	s.tracer = trace.NewMiddleware(detector.ExtractClientIP, deps.Logger)

	s.Addr = opts.Addr
	s.Handler = s.routes()
	s.ReadTimeout = 30 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	s.MaxHeaderBytes = 1 << 16
	return s, nil
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"num":  formatNumber,
		"join": strings.Join,
		"add":  func(a, b int) int { return a + b },
	}
	return template.New("").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

func (s *Server) routes() http.Handler {
	app := http.NewServeMux()

	app.Handle("GET /{$}", security.NoStore(http.HandlerFunc(s.handleIndex)))
	app.HandleFunc("POST /signup", s.handleSignup)
	app.HandleFunc("POST /login", s.handleLogin)
	app.HandleFunc("POST /logout", s.handleLogout)

	app.Handle("POST /datasets", s.requirePage(s.handleUpload))
	app.Handle("POST /datasets/sheet", s.requirePage(s.handleSheet))
	app.Handle("GET /ui/chart", s.requirePage(s.handleChartPartial))
	app.Handle("GET /ui/geocode", s.requirePage(s.handleGeocodePartial))
	app.Handle("POST /exports", s.requirePage(s.handleExport))
	app.Handle("GET /exports/{file}", s.requirePage(s.handleDownload))

	app.Handle("GET /api/charts/{type}", s.requireAPI(s.handleChartJSON))
	app.Handle("GET /api/geocode", s.requireAPI(s.handleGeocodeJSON))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		app.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = app
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(h)
	h = s.detector.Middleware(s.deps.Logger)(h)
	h = headers.Middleware(h)
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = applog.Middleware(s.deps.Logger)(h)
	h = s.tracer.Middleware(h)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/", h)
	return root
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	const msg = "Too many requests. Please try again in a minute."
	ErrorResponse(http.StatusTooManyRequests, msg).TriggerErrorNotification(msg).Write(w)
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
