package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ports "retailcast/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultRange is read when no range is configured.
const DefaultRange = "Sheet1!A:Z"

var ErrNotConfigured = errors.New("google sheets source not configured")

// Source reads a transaction table from one range of a spreadsheet.
type Source struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
}

var _ ports.RowSource = (*Source)(nil)

type Config struct {
	SpreadsheetID   string
	Range           string
	CredentialsJSON string
	CredentialsFile string
}

// ConfigFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_RANGE and the
// service account variables.
func ConfigFromEnv() Config {
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		Range:           strings.TrimSpace(os.Getenv("GOOGLE_SHEET_RANGE")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: file,
	}
}

// NewSource builds a read-only Sheets client from service account credentials.
func NewSource(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: missing spreadsheet id", ErrNotConfigured)
	}

	var creds []byte
	switch {
	case cfg.CredentialsJSON != "":
		creds = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	default:
		return nil, fmt.Errorf("%w: missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)", ErrNotConfigured)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets source ready", "spreadsheet_id", cfg.SpreadsheetID, "range", cfg.Range)
	return NewSourceWithService(svc, cfg.SpreadsheetID, cfg.Range), nil
}

// NewSourceWithService wraps an existing service.
func NewSourceWithService(svc *gsheet.Service, spreadsheetID, readRange string) *Source {
	if readRange == "" {
		readRange = DefaultRange
	}
	return &Source{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}
}

func (s *Source) ReadRows(ctx context.Context) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", s.readRange, err)
	}
	return toRows(resp.Values), nil
}
