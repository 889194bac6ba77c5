package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"retailcast/internal/auth"
	"retailcast/internal/core"
	"retailcast/internal/loader"
	applog "retailcast/internal/log"
)

// handleUpload replaces the session dataset with an uploaded xlsx or csv.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "The file is too large.").Write(w)
			return
		}
		BadRequestError("Upload an Excel (.xlsx) or CSV file.").Write(w)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Upload an Excel (.xlsx) or CSV file.").Write(w)
		return
	}
	defer file.Close()

	format, err := loader.DetectFormat(header.Filename)
	if err != nil {
		ErrorResponse(http.StatusUnsupportedMediaType, err.Error()).Write(w)
		return
	}

	table, report, err := loader.Load(file, format)
	s.finishLoad(w, r, sess, header.Filename, table, report, err)
}

// handleSheet loads the session dataset from the configured spreadsheet.
func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	if s.deps.Sheets == nil {
		NotFoundError("Google Sheets source is not configured.").Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.SheetTimeout)
	defer cancel()

	rows, err := s.deps.Sheets.ReadRows(ctx)
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentSheets).
			ErrorContext(r.Context(), "Sheet read failed", applog.FieldError, err)
		ErrorResponse(http.StatusBadGateway, catchAll(err)).Write(w)
		return
	}
	table, report, err := loader.FromRows(rows)
	s.finishLoad(w, r, sess, "Google Sheets", table, report, err)
}

// finishLoad stores a loaded table or renders the load error inline. A
// failed load leaves the previous dataset in place.
func (s *Server) finishLoad(w http.ResponseWriter, r *http.Request, sess *auth.Session, source string, table *core.Table, report loader.Report, err error) {
	if err != nil {
		var missing *loader.MissingColumnsError
		switch {
		case errors.As(err, &missing), errors.Is(err, loader.ErrEmptySheet):
			UnprocessableEntityError(err.Error()).Write(w)
		case errors.Is(err, loader.ErrUnsupportedFormat):
			ErrorResponse(http.StatusUnsupportedMediaType, err.Error()).Write(w)
		default:
			s.structured.LogError(r.Context(), "Dataset load failed", err, applog.ComponentDataset, applog.OpLoad,
				applog.NewFields().User(sess.Username))
			InternalServerError(catchAll(err)).Write(w)
		}
		return
	}

	sess.SetDataset(table, report, source)
	s.structured.LogDatasetLoaded(r.Context(), sess.Username, source, report.Rows, report.Kept, report.Dropped())

	ds, _ := sess.Dataset()
	resp := NewHTMXResponse().
		TriggerDatasetLoaded(source, report.Kept, report.Dropped()).
		TriggerChartRefresh()
	if n := report.Dropped(); n > 0 {
		resp.TriggerNotification(NotificationWarning, fmt.Sprintf("Loaded %d rows, dropped %d.", report.Kept, n), 5000)
	} else {
		resp.TriggerSuccessNotification(fmt.Sprintf("Loaded %d rows.", report.Kept))
	}
	s.renderPartial(w, r, resp, "dataset.html", newDatasetView(ds))
}
