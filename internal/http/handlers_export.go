package http

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"retailcast/internal/auth"
	"retailcast/internal/export"
	applog "retailcast/internal/log"
)

type exportPartial struct {
	Queued  bool
	Formats []string
	Files   []string
}

// handleExport writes or queues the user-data record of the session.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	formats, err := parseExportFormats(r)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if s.deps.Exports == nil {
		NotFoundError("Exports are not configured.").Write(w)
		return
	}

	ds, _ := sess.Dataset()
	rec := export.BuildRecord(sess.Username, ds.Table, ds.Report, ds.Source)

	res, err := s.deps.Exports.Request(r.Context(), sess.Username, formats, rec)
	if err != nil {
		s.structured.LogError(r.Context(), "Export failed", err, applog.ComponentExport, applog.OpExport,
			applog.NewFields().User(sess.Username))
		InternalServerError(catchAll(err)).Write(w)
		return
	}

	view := exportPartial{Queued: res.Queued}
	for _, f := range formats {
		view.Formats = append(view.Formats, string(f))
	}
	for _, p := range res.Paths {
		view.Files = append(view.Files, filepath.Base(p))
	}
	s.structured.LogExportRequested(r.Context(), sess.Username, view.Formats, res.Queued)

	resp := NewHTMXResponse().TriggerExportDone(res.Queued, len(view.Files))
	if res.Queued {
		resp.TriggerSuccessNotification("Export queued.")
	} else {
		resp.TriggerSuccessNotification("Export ready.")
	}
	s.renderPartial(w, r, resp, "export.html", view)
}

// handleDownload serves one of the caller's own export files.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	name := r.PathValue("file")
	allowed := false
	for _, f := range []export.Format{export.FormatXLSX, export.FormatPDF} {
		if name == export.UserFileName(sess.Username, f) {
			allowed = true
			break
		}
	}
	if !allowed || s.deps.ExportDir == "" {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.deps.ExportDir, name)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Export stat failed", applog.FieldError, err)
		}
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}
