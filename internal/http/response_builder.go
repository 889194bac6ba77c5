// This file builds HTMX fragment responses: the HTML to swap in, its
// status, and the HX-Trigger events the dashboard listens for.

package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Dashboard events carried in HX-Trigger.
const (
	eventDatasetLoaded = "dataset:loaded"
	eventChartRefresh  = "chart:refresh"
	eventExportDone    = "export:done"
	eventNotification  = "show-notification"
)

// HTMXResponseBuilder accumulates one fragment response. Methods chain and
// nothing is sent until Write.
type HTMXResponseBuilder struct {
	status int
	body   string
	events map[string]any
	header http.Header
}

// NewHTMXResponse starts an empty 200 response.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status: http.StatusOK,
		events: map[string]any{},
		header: http.Header{},
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger queues a client-side event. A later trigger with the same name
// replaces the earlier payload.
func (b *HTMXResponseBuilder) Trigger(name string, payload any) *HTMXResponseBuilder {
	b.events[name] = payload
	return b
}

// TriggerDatasetLoaded announces a new session table.
func (b *HTMXResponseBuilder) TriggerDatasetLoaded(source string, kept, dropped int) *HTMXResponseBuilder {
	return b.Trigger(eventDatasetLoaded, map[string]any{"source": source, "kept": kept, "dropped": dropped})
}

// TriggerChartRefresh makes the chart panel reload with its current widgets.
func (b *HTMXResponseBuilder) TriggerChartRefresh() *HTMXResponseBuilder {
	return b.Trigger(eventChartRefresh, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerExportDone(queued bool, files int) *HTMXResponseBuilder {
	return b.Trigger(eventExportDone, map[string]any{"queued": queued, "files": files})
}

// NotificationType selects the toast style in app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification shows a toast for durationMs milliseconds.
func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(eventNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// Header sets an extra response header such as HX-Redirect.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// BodyString sets a body without touching Content-Type.
func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body = content
	return b
}

// BodyHTML sets an already-rendered HTML fragment.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = html
	return b
}

// Write sends headers, events, status and body. Events that fail to encode
// are dropped rather than failing the response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.events) > 0 {
		if encoded, err := json.Marshal(b.events); err == nil {
			h.Set("HX-Trigger", string(encoded))
		}
	}
	w.WriteHeader(b.status)
	if b.body != "" {
		_, _ = w.Write([]byte(b.body))
	}
}

// ErrorResponse renders message as an escaped inline error fragment.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}
