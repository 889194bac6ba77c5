package export

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormats maps the form value (xlsx, pdf or both) to formats.
func ParseFormats(s string) ([]Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xlsx", "excel":
		return []Format{FormatXLSX}, nil
	case "pdf":
		return []Format{FormatPDF}, nil
	case "both", "":
		return []Format{FormatXLSX, FormatPDF}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Exporter writes records into a fixed directory.
type Exporter struct {
	dir string
}

func NewExporter(dir string) (*Exporter, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve export dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{dir: abs}, nil
}

func (e *Exporter) Dir() string { return e.dir }

// Write dispatches on format and returns the written file path.
func (e *Exporter) Write(format Format, name string, rec Record) (string, error) {
	switch format {
	case FormatXLSX:
		return e.WriteXLSX(name, rec)
	case FormatPDF:
		return e.WritePDF(name, rec)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteXLSX writes rec as a Field/Value sheet.
func (e *Exporter) WriteXLSX(name string, rec Record) (string, error) {
	path := e.path(name, FormatXLSX)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"Field", "Value"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for i, field := range rec {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		row := []interface{}{field.Key, field.Value}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// WritePDF writes one "key: value" line per field.
func (e *Exporter) WritePDF(name string, rec Record) (string, error) {
	path := e.path(name, FormatPDF)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, field := range rec {
		pdf.CellFormat(190, 10, tr(field.Key+": "+field.Value), "", 1, "L", false, 0, "")
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (e *Exporter) path(name string, format Format) string {
	return filepath.Join(e.dir, FileName(name, format))
}

// UserBase is the export file stem for username: a readable sanitized prefix
// plus a digest of the exact username, so distinct users never share a file.
func UserBase(username string) string {
	sum := sha256.Sum256([]byte(username))
	stem := strings.Trim(unsafeName.ReplaceAllString(username, "_"), "._")
	if len(stem) > 32 {
		stem = stem[:32]
	}
	return "user_data_" + stem + "_" + hex.EncodeToString(sum[:8])
}

// UserFileName is the file name a user's export is written to and served as.
func UserFileName(username string, format Format) string {
	return FileName(UserBase(username), format)
}

// FileName turns an arbitrary name into a safe file name with extension.
func FileName(name string, format Format) string {
	name = unsafeName.ReplaceAllString(filepath.Base(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "user_data"
	}
	return name + "." + string(format)
}
