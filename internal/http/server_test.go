package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"retailcast/internal/auth"
	"retailcast/internal/export"
	"retailcast/internal/geo"
	applog "retailcast/internal/log"
)

const salesCSV = `Date,Cost,Location,Quantity,Item
2024-01-05,100,Pune,10,Rice
2024-02-10,50,Pune,5,Rice
2024-01-20,30,Pune,2,Milk
2024-03-01,20,Mumbai,3,Milk
not-a-date,10,Pune,1,Rice
`

type fakeGeocoder struct {
	addr string
	err  error
}

func (f fakeGeocoder) Lookup(_ context.Context, city string) (string, error) {
	if city == "" {
		return "", geo.ErrEmptyCity
	}
	return f.addr, f.err
}

type fakeRows struct {
	rows [][]string
	err  error
}

func (f fakeRows) ReadRows(context.Context) ([][]string, error) { return f.rows, f.err }

type testEnv struct {
	server    *Server
	exportDir string
}

func newTestEnv(t *testing.T, mutate func(*Options, *Deps)) *testEnv {
	t.Helper()

	exportDir := t.TempDir()
	exporter, err := export.NewExporter(exportDir)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	logger := applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})

	opts := Options{MaxUploadBytes: 1 << 20, RateLimitPerMinute: 1000}
	deps := Deps{
		Auth:      auth.NewService(auth.NewMemoryStore(), auth.WithBcryptCost(bcrypt.MinCost)),
		Sessions:  auth.NewSessions(100, time.Hour),
		Geocoder:  fakeGeocoder{addr: "Pune, Maharashtra, India"},
		Exports:   export.NewService(exporter, nil, nil, logger.Slog()),
		ExportDir: exportDir,
		Logger:    logger,
	}
	if mutate != nil {
		mutate(&opts, &deps)
	}

	s, err := NewServer(opts, deps)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testEnv{server: s, exportDir: exportDir}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func get(path string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d)", w.Code)
	return nil
}

func (e *testEnv) signup(t *testing.T, username string) *http.Cookie {
	t.Helper()
	w := e.do(postForm("/signup", url.Values{"username": {username}, "password": {"secret"}}, nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("signup status = %d, body = %s", w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func uploadRequest(t *testing.T, filename, content string, cookie *http.Cookie) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/datasets", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func (e *testEnv) upload(t *testing.T, cookie *http.Cookie) {
	t.Helper()
	w := e.do(uploadRequest(t, "sales.csv", salesCSV, cookie))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestLoginPage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(get("/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Signup or Login to continue", `action="/login"`, `action="/signup"`} {
		if !strings.Contains(body, want) {
			t.Errorf("login page missing %q", want)
		}
	}
	if csp := w.Header().Get("Content-Security-Policy"); csp == "" {
		t.Error("missing Content-Security-Policy header")
	}
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signup(t, "alice")

	w := env.do(get("/", cookie))
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Welcome, alice!") {
		t.Error("dashboard missing welcome line")
	}
	if !strings.Contains(w.Body.String(), "Upload an Excel file to get started.") {
		t.Error("dashboard missing empty-state prompt")
	}

	t.Run("duplicate signup", func(t *testing.T) {
		w := env.do(postForm("/signup", url.Values{"username": {"alice"}, "password": {"other"}}, nil))
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", w.Code)
		}
		if !strings.Contains(w.Body.String(), "User already exists. Please log in.") {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		w := env.do(postForm("/login", url.Values{"username": {"alice"}, "password": {"nope"}}, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Invalid username or password.") {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("login", func(t *testing.T) {
		w := env.do(postForm("/login", url.Values{"username": {"alice"}, "password": {"secret"}}, nil))
		if w.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", w.Code)
		}
		sessionCookie(t, w)
	})

	t.Run("empty username", func(t *testing.T) {
		w := env.do(postForm("/signup", url.Values{"username": {"  "}, "password": {"x"}}, nil))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", w.Code)
		}
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signup(t, "bob")

	w := env.do(postForm("/logout", nil, cookie))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", w.Code)
	}

	w = env.do(get("/ui/chart", cookie))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("after logout status = %d location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestProtectedRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("page redirects", func(t *testing.T) {
		w := env.do(get("/ui/chart", nil))
		if w.Code != http.StatusSeeOther {
			t.Errorf("status = %d, want 303", w.Code)
		}
	})

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		req := get("/ui/chart", nil)
		req.Header.Set("HX-Request", "true")
		w := env.do(req)
		if w.Code != http.StatusUnauthorized || w.Header().Get("HX-Redirect") != "/" {
			t.Errorf("status = %d, HX-Redirect = %q", w.Code, w.Header().Get("HX-Redirect"))
		}
	})

	t.Run("api returns 401", func(t *testing.T) {
		w := env.do(get("/api/charts/grocery-quantity", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
		if !strings.Contains(w.Body.String(), "login required") {
			t.Errorf("body = %s", w.Body.String())
		}
	})
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signup(t, "alice")

	w := env.do(uploadRequest(t, "sales.csv", salesCSV, cookie))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"Data with Month Extracted", "4 of 5 rows kept", "1 rows dropped", "January", "Rice"} {
		if !strings.Contains(body, want) {
			t.Errorf("dataset partial missing %q", want)
		}
	}
	trigger := w.Header().Get("HX-Trigger")
	for _, want := range []string{`"dataset:loaded"`, `"chart:refresh"`, `"type":"warning"`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %s: %s", want, trigger)
		}
	}

	// The dashboard now shows the loaded dataset.
	w = env.do(get("/", cookie))
	if !strings.Contains(w.Body.String(), "Data with Month Extracted") {
		t.Error("dashboard does not show the session dataset")
	}
}

func TestUploadNonFiniteCostIsDropped(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signup(t, "alice")

	csv := "Date,Cost,Location,Quantity,Item\n" +
		"2024-01-05,Inf,Pune,1,Rice\n" +
		"2024-01-06,NaN,Pune,1,Rice\n" +
		"2024-01-07,10,Pune,1,Rice\n" +
		"2024-04-07,30,Pune,2,Milk\n"
	w := env.do(uploadRequest(t, "sales.csv", csv, cookie))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "2 of 4 rows kept") {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	for _, chart := range []string{"price-distribution", "season-sales", "monthly-sales"} {
		w := env.do(get("/api/charts/"+chart, cookie))
		if w.Code != http.StatusOK || !json.Valid(w.Body.Bytes()) {
			t.Errorf("%s: status = %d, body = %s", chart, w.Code, w.Body.String())
		}
	}
}

func TestUploadErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signup(t, "alice")

	tests := []struct {
		name     string
		filename string
		content  string
		want     int
		contains string
	}{
		{
			name:     "missing item column",
			filename: "sales.csv",
			content:  "Date,Cost,Location,Quantity\n2024-01-05,100,Pune,10\n",
			want:     http.StatusUnprocessableEntity,
			contains: "Item",
		},
		{
			name:     "unsupported extension",
			filename: "sales.txt",
			content:  salesCSV,
			want:     http.StatusUnsupportedMediaType,
		},
		{
			name:     "empty file",
			filename: "sales.csv",
			content:  "",
			want:     http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(uploadRequest(t, tt.filename, tt.content, cookie))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
			if tt.contains != "" && !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body %q missing %q", w.Body.String(), tt.contains)
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, func(o *Options, _ *Deps) { o.MaxUploadBytes = 2048 })
	cookie := env.signup(t, "alice")

	big := salesCSV + strings.Repeat("2024-01-05,100,Pune,10,Rice\n", 200)
	w := env.do(uploadRequest(t, "sales.csv", big, cookie))
	if w.Code != http.StatusRequestEntityTooLarge && w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 413 or 400", w.Code)
	}
}

func TestSheetSource(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, nil)
		cookie := env.signup(t, "alice")
		w := env.do(postForm("/datasets/sheet", nil, cookie))
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})

	t.Run("loads rows", func(t *testing.T) {
		rows := [][]string{
			{"Date", "Cost", "Location", "Quantity", "Item"},
			{"2024-01-05", "100", "Pune", "10", "Rice"},
		}
		env := newTestEnv(t, func(_ *Options, d *Deps) { d.Sheets = fakeRows{rows: rows} })
		cookie := env.signup(t, "alice")
		w := env.do(postForm("/datasets/sheet", nil, cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), "Google Sheets") {
			t.Errorf("body missing source: %s", w.Body.String())
		}
	})

	t.Run("read failure", func(t *testing.T) {
		env := newTestEnv(t, func(_ *Options, d *Deps) { d.Sheets = fakeRows{err: errors.New("quota")} })
		cookie := env.signup(t, "alice")
		w := env.do(postForm("/datasets/sheet", nil, cookie))
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", w.Code)
		}
	})
}

func TestChartPartial(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signup(t, "alice")

	t.Run("no dataset", func(t *testing.T) {
		w := env.do(get("/ui/chart?type=season-sales", cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Upload an Excel file to get started.") {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	env.upload(t, cookie)

	t.Run("grocery quantity", func(t *testing.T) {
		w := env.do(get("/ui/chart?type=grocery-quantity&location=Pune", cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		body := w.Body.String()
		for _, want := range []string{"<svg", "<rect", "Rice", "Milk", "Grocery Quantity Distribution"} {
			if !strings.Contains(body, want) {
				t.Errorf("chart missing %q", want)
			}
		}
	})

	t.Run("invalid month", func(t *testing.T) {
		w := env.do(get("/ui/chart?type=future-trend&location=Pune&start_month=13", cookie))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", w.Code)
		}
		if !strings.Contains(w.Body.String(), "start_month must be between 1 and 12") {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("forecast", func(t *testing.T) {
		w := env.do(get("/ui/chart?type=future-trend&location=Pune&start_month=1&months_ahead=3", cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		body := w.Body.String()
		if !strings.Contains(body, "Predictions for January") || !strings.Contains(body, "Predictions for February") {
			t.Errorf("forecast missing months: %s", body)
		}
		if !strings.Contains(body, "No history for: March.") {
			t.Errorf("forecast missing omitted month note")
		}
	})
}

func TestChartAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signup(t, "alice")

	w := env.do(get("/api/charts/grocery-quantity?location=Pune", cookie))
	if w.Code != http.StatusConflict {
		t.Fatalf("no dataset status = %d, want 409", w.Code)
	}

	env.upload(t, cookie)

	t.Run("grocery quantity", func(t *testing.T) {
		w := env.do(get("/api/charts/grocery-quantity?location=Pune", cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
			t.Errorf("Cache-Control = %q, want no-store", cc)
		}
		var got struct {
			Type string `json:"type"`
			Data []struct {
				Item     string  `json:"item"`
				Quantity float64 `json:"quantity"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Type != "grocery-quantity" {
			t.Errorf("type = %q", got.Type)
		}
		quantities := map[string]float64{}
		for _, d := range got.Data {
			quantities[d.Item] = d.Quantity
		}
		if quantities["Rice"] != 15 || quantities["Milk"] != 2 || len(quantities) != 2 {
			t.Errorf("quantities = %v, want Rice 15 and Milk 2", quantities)
		}
	})

	t.Run("season sales", func(t *testing.T) {
		w := env.do(get("/api/charts/season-sales", cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var got struct {
			Data []struct {
				Season string  `json:"season"`
				Total  float64 `json:"total_sales"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		totals := map[string]float64{}
		for _, d := range got.Data {
			totals[d.Season] = d.Total
		}
		// January and February fall in Winter, March in Spring.
		if totals["Winter"] != 180 || totals["Spring"] != 20 {
			t.Errorf("totals = %v", totals)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		w := env.do(get("/api/charts/pie", cookie))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("forecast without location", func(t *testing.T) {
		w := env.do(get("/api/charts/future-trend", cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Enter a location") {
			t.Errorf("body = %s", w.Body.String())
		}
	})
}

func TestGeocode(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		env := newTestEnv(t, nil)
		cookie := env.signup(t, "alice")
		w := env.do(get("/ui/geocode?location=Pune", cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Detected Location: Address: Pune, Maharashtra, India") {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("json not found", func(t *testing.T) {
		env := newTestEnv(t, func(_ *Options, d *Deps) { d.Geocoder = fakeGeocoder{err: geo.ErrLocationNotFound} })
		cookie := env.signup(t, "alice")
		w := env.do(get("/api/geocode?city=Atlantis", cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var got map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got["error"] != "Location not found" || got["city"] != "Atlantis" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("json empty city", func(t *testing.T) {
		env := newTestEnv(t, nil)
		cookie := env.signup(t, "alice")
		w := env.do(get("/api/geocode", cookie))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestExportInline(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signup(t, "alice")
	env.upload(t, cookie)

	w := env.do(postForm("/exports", url.Values{"format": {"xlsx"}}, cookie))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	aliceFile := export.UserFileName("alice", export.FormatXLSX)
	if !strings.Contains(w.Body.String(), "/exports/"+aliceFile) {
		t.Fatalf("body missing download link: %s", w.Body.String())
	}
	if !strings.Contains(w.Header().Get("HX-Trigger"), `"export:done"`) {
		t.Errorf("HX-Trigger = %s", w.Header().Get("HX-Trigger"))
	}

	t.Run("download own file", func(t *testing.T) {
		w := env.do(get("/exports/"+aliceFile, cookie))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Header().Get("Content-Disposition"), aliceFile) {
			t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
		}
	})

	t.Run("download other user's file", func(t *testing.T) {
		other := env.signup(t, "mallory")
		w := env.do(get("/exports/"+aliceFile, other))
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})

	t.Run("lookalike username gets its own file", func(t *testing.T) {
		twin := env.signup(t, "alice.")
		env.upload(t, twin)
		w := env.do(postForm("/exports", url.Values{"format": {"xlsx"}}, twin))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if strings.Contains(w.Body.String(), aliceFile) {
			t.Fatalf("alice. was handed alice's file: %s", w.Body.String())
		}
		if !strings.Contains(w.Body.String(), export.UserFileName("alice.", export.FormatXLSX)) {
			t.Errorf("body missing own link: %s", w.Body.String())
		}
		if w := env.do(get("/exports/"+aliceFile, twin)); w.Code != http.StatusNotFound {
			t.Errorf("alice. downloading alice's file: status = %d, want 404", w.Code)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		w := env.do(postForm("/exports", url.Values{"format": {"docx"}}, cookie))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", w.Code)
		}
	})
}

type queuedExporter struct{ formats []export.Format }

func (q *queuedExporter) Request(_ context.Context, _ string, formats []export.Format, _ export.Record) (export.Result, error) {
	q.formats = formats
	return export.Result{Queued: true}, nil
}

func TestExportQueued(t *testing.T) {
	q := &queuedExporter{}
	env := newTestEnv(t, func(_ *Options, d *Deps) { d.Exports = q })
	cookie := env.signup(t, "alice")

	w := env.do(postForm("/exports", url.Values{"format": {"both"}}, cookie))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Export queued (xlsx, pdf)") {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(q.formats) != 2 {
		t.Errorf("formats = %v", q.formats)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, func(_ *Options, d *Deps) {
		d.ReadyChecks = map[string]func(context.Context) error{
			"database": func(context.Context) error { return nil },
		}
	})

	env.do(get("/", nil))
	w := env.do(get("/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz = %d %s", w.Code, w.Body.String())
	}
	var health struct {
		Requests struct {
			Total int64 `json:"total"`
		} `json:"requests"`
		RateLimit struct {
			Rejected int64 `json:"rejected"`
		} `json:"rate_limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("healthz body: %v", err)
	}
	if health.Requests.Total != 1 || health.RateLimit.Rejected != 0 {
		t.Errorf("healthz counters = %+v", health)
	}

	w = env.do(get("/readyz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"database":"ok"`) {
		t.Fatalf("readyz = %d %s", w.Code, w.Body.String())
	}

	failing := newTestEnv(t, func(_ *Options, d *Deps) {
		d.ReadyChecks = map[string]func(context.Context) error{
			"database": func(context.Context) error { return errors.New("closed") },
		}
	})
	w = failing.do(get("/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "failed: closed") {
		t.Fatalf("readyz = %d %s", w.Code, w.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options, _ *Deps) { o.RateLimitPerMinute = 2 })

	form := url.Values{"username": {"nobody"}, "password": {"x"}}
	for i := 0; i < 2; i++ {
		if w := env.do(postForm("/login", form, nil)); w.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i+1)
		}
	}
	w := env.do(postForm("/login", form, nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// Reads are not limited.
	if w := env.do(get("/", nil)); w.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, nil)

	req := get("/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := env.do(req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(get("/static/app.css", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "max-age") {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}
