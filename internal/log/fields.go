package log

import (
	"log/slog"
	"net/http"
	"time"
)

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUsername      = "username"
	FieldSource        = "source"
	FieldRowsTotal     = "rows_total"
	FieldRowsKept      = "rows_kept"
	FieldRowsDropped   = "rows_dropped"
	FieldFormat        = "format"
	FieldQueued        = "queued"
	FieldFile          = "file"
	FieldMessageID     = "message_id"
	FieldCity          = "city"
	FieldQueue         = "queue"
	FieldExchange      = "exchange"
	FieldBackend       = "backend"
	FieldCount         = "count"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentAuth     = "auth"
	ComponentDataset  = "dataset"
	ComponentCharts   = "charts"
	ComponentGeo      = "geo"
	ComponentExport   = "export"
	ComponentStorage  = "storage"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentTemplate = "template"
)

const (
	OpSignup   = "signup"
	OpLogin    = "login"
	OpLoad     = "load"
	OpRender   = "render"
	OpGeocode  = "geocode"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Fields collects attributes in the order they were added. Every method
// returns the extended set, so calls chain.
type Fields []slog.Attr

func NewFields() Fields {
	return make(Fields, 0, 8)
}

// Set adds an arbitrary attribute.
func (f Fields) Set(key string, value any) Fields {
	return append(f, slog.Any(key, value))
}

func (f Fields) Component(name string) Fields {
	return append(f, slog.String(FieldComponent, name))
}

func (f Fields) Operation(op string) Fields {
	return append(f, slog.String(FieldOperation, op))
}

func (f Fields) RequestID(id string) Fields {
	return append(f, slog.String(FieldRequestID, id))
}

func (f Fields) ClientIP(ip string) Fields {
	if ip == "" {
		return f
	}
	return append(f, slog.String(FieldClientIP, ip))
}

// User is skipped for anonymous requests.
func (f Fields) User(username string) Fields {
	if username == "" {
		return f
	}
	return append(f, slog.String(FieldUsername, username))
}

// Err is a no-op for a nil error.
func (f Fields) Err(err error) Fields {
	if err == nil {
		return f
	}
	return append(f, slog.String(FieldError, err.Error()))
}

// Load records the row accounting of one dataset load.
func (f Fields) Load(source string, total, kept, dropped int) Fields {
	return append(f,
		slog.String(FieldSource, source),
		slog.Int(FieldRowsTotal, total),
		slog.Int(FieldRowsKept, kept),
		slog.Int(FieldRowsDropped, dropped),
	)
}

// Request adds method and path, plus query and user agent when present.
func (f Fields) Request(r *http.Request) Fields {
	f = append(f, slog.String(FieldMethod, r.Method), slog.String(FieldPath, r.URL.Path))
	if r.URL.RawQuery != "" {
		f = append(f, slog.String(FieldQuery, r.URL.RawQuery))
	}
	if ua := r.UserAgent(); ua != "" {
		f = append(f, slog.String(FieldUserAgent, ua))
	}
	return f
}

func (f Fields) Response(status int, elapsed time.Duration) Fields {
	return append(f,
		slog.Int(FieldStatusCode, status),
		slog.Int64(FieldDuration, elapsed.Milliseconds()),
		slog.String(FieldDurationHuman, elapsed.String()),
	)
}

// Args converts the set for the variadic slog methods.
func (f Fields) Args() []any {
	out := make([]any, len(f))
	for i, a := range f {
		out[i] = a
	}
	return out
}
