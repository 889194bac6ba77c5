package http

import (
	"errors"
	"net/http"
	"time"

	"retailcast/internal/auth"
	applog "retailcast/internal/log"
	"retailcast/internal/middleware/security"
)

// sessionHandler is a handler that runs with a logged-in session.
type sessionHandler func(http.ResponseWriter, *http.Request, *auth.Session)

// requirePage sends anonymous browsers back to the login page. HTMX
// requests get an HX-Redirect so the whole page navigates.
func (s *Server) requirePage(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.deps.Sessions.FromRequest(r)
		if !ok {
			if r.Header.Get("HX-Request") == "true" {
				NewHTMXResponse().Header("HX-Redirect", "/").Status(http.StatusUnauthorized).Write(w)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		ctx := applog.NewContext(r.Context(), applog.FromContext(r.Context()).With(applog.FieldUsername, sess.Username))
		security.NoStore(bindSession(next, sess)).ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAPI answers anonymous API calls with 401 JSON.
func (s *Server) requireAPI(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.deps.Sessions.FromRequest(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "login required")
			return
		}
		security.NoStore(bindSession(next, sess)).ServeHTTP(w, r)
	})
}

func bindSession(next sessionHandler, sess *auth.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { next(w, r, sess) }
}

type loginPage struct {
	Error    string
	Username string
	Mode     string
}

type dashboardPage struct {
	Username      string
	Dataset       *datasetView
	Charts        []ChartOption
	Months        []string
	ThisYear      int
	MaxYear       int
	MaxAhead      int
	SheetsEnabled bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deps.Sessions.FromRequest(r)
	if !ok {
		s.render(w, r, http.StatusOK, "login.html", loginPage{Mode: "login"})
		return
	}

	page := dashboardPage{
		Username:      sess.Username,
		Charts:        ChartOptions(),
		ThisYear:      time.Now().Year(),
		MaxYear:       maxYear,
		MaxAhead:      maxMonthsAhead,
		SheetsEnabled: s.deps.Sheets != nil,
	}
	for m := time.January; m <= time.December; m++ {
		page.Months = append(page.Months, m.String())
	}
	if ds, ok := sess.Dataset(); ok {
		page.Dataset = newDatasetView(ds)
	}
	s.render(w, r, http.StatusOK, "dashboard.html", page)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	username, password, err := parseCredentials(r)
	if err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", loginPage{Mode: "signup", Error: "Invalid request."})
		return
	}
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth)

	if _, err := s.deps.Auth.Signup(r.Context(), username, password); err != nil {
		page := loginPage{Mode: "signup", Username: username}
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, auth.ErrUserExists):
			page.Error, status = "User already exists. Please log in.", http.StatusConflict
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			page.Error = err.Error()
		default:
			logger.ErrorContext(r.Context(), "Signup failed", applog.FieldError, err, applog.FieldOperation, applog.OpSignup)
			page.Error, status = catchAll(err), http.StatusInternalServerError
		}
		s.render(w, r, status, "login.html", page)
		return
	}

	logger.InfoContext(r.Context(), "User signed up", applog.FieldUsername, username)
	s.startSession(w, r, username)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, err := parseCredentials(r)
	if err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", loginPage{Mode: "login", Error: "Invalid request."})
		return
	}
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth)

	if _, err := s.deps.Auth.Login(r.Context(), username, password); err != nil {
		page := loginPage{Mode: "login", Username: username}
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrInvalidCredentials) {
			page.Error = "Invalid username or password."
			logger.WarnContext(r.Context(), "Login rejected", applog.FieldUsername, username,
				applog.FieldClientIP, s.detector.ExtractClientIP(r))
		} else {
			logger.ErrorContext(r.Context(), "Login failed", applog.FieldError, err, applog.FieldOperation, applog.OpLogin)
			page.Error, status = catchAll(err), http.StatusInternalServerError
		}
		s.render(w, r, status, "login.html", page)
		return
	}

	logger.InfoContext(r.Context(), "User logged in", applog.FieldUsername, username)
	s.startSession(w, r, username)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, username string) {
	sess, err := s.deps.Sessions.Create(username)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Session creation failed", applog.FieldError, err)
		s.render(w, r, http.StatusInternalServerError, "login.html", loginPage{Mode: "login", Error: catchAll(err)})
		return
	}
	http.SetCookie(w, s.deps.Sessions.Cookie(sess, s.opts.SecureCookies))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.deps.Sessions.FromRequest(r); ok {
		s.deps.Sessions.Delete(sess.Token)
		applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
			InfoContext(r.Context(), "User logged out", applog.FieldUsername, sess.Username)
	}
	http.SetCookie(w, s.deps.Sessions.Cookie(nil, s.opts.SecureCookies))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// datasetView summarizes the session dataset for templates.
type datasetView struct {
	Source   string
	LoadedAt string
	Rows     int
	Kept     int
	Dropped  int
	BadDates int
	BadNums  int
	Columns  []string
	Preview  []previewRow
	More     int
}

func newDatasetView(ds auth.Dataset) *datasetView {
	v := &datasetView{
		Source:   ds.Source,
		LoadedAt: ds.LoadedAt.Format("2006-01-02 15:04"),
		Rows:     ds.Report.Rows,
		Kept:     ds.Report.Kept,
		Dropped:  ds.Report.Dropped(),
		BadDates: ds.Report.DroppedRows,
		BadNums:  ds.Report.DroppedNumeric,
		Columns:  ds.Report.Columns,
		Preview:  preview(ds.Table, previewRows),
	}
	if n := ds.Table.Len() - len(v.Preview); n > 0 {
		v.More = n
	}
	return v
}
