package http

import (
	"net/http"
	"time"

	"retailcast/internal/auth"
	applog "retailcast/internal/log"
)

type chartPartial struct {
	View    ChartView
	Params  ChartParams
	Error   string
	NoData  bool
	Dropped int
}

// handleChartPartial renders the selected chart as inline SVG bars.
func (s *Server) handleChartPartial(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	params, err := ParseChartParams(r.URL.Query(), time.Now())
	if err != nil {
		s.renderPartial(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "chart.html", chartPartial{Params: params, Error: err.Error()})
		return
	}

	ds, ok := sess.Dataset()
	if !ok {
		s.renderPartial(w, r, NewHTMXResponse(), "chart.html", chartPartial{Params: params, NoData: true})
		return
	}

	view, err := BuildChart(ds.Table, params)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if !isClientChartError(err) {
			status = http.StatusInternalServerError
			s.structured.LogError(r.Context(), "Chart build failed", err, applog.ComponentCharts, applog.OpRender,
				applog.NewFields().User(sess.Username))
		}
		s.renderPartial(w, r, NewHTMXResponse().Status(status), "chart.html", chartPartial{Params: params, Error: err.Error()})
		return
	}
	s.renderPartial(w, r, NewHTMXResponse(), "chart.html", chartPartial{View: view, Params: params, Dropped: ds.Report.Dropped()})
}

// handleChartJSON serves the aggregate behind a chart.
func (s *Server) handleChartJSON(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	query := r.URL.Query()
	query.Set("type", r.PathValue("type"))
	params, err := ParseChartParams(query, time.Now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, ok := sess.Dataset()
	if !ok {
		writeJSONError(w, http.StatusConflict, "no dataset loaded")
		return
	}

	view, err := BuildChart(ds.Table, params)
	if err != nil {
		if isClientChartError(err) {
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.structured.LogError(r.Context(), "Chart build failed", err, applog.ComponentCharts, applog.OpRender,
			applog.NewFields().User(sess.Username))
		writeJSONError(w, http.StatusInternalServerError, catchAll(err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
