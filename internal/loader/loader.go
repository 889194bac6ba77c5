// Package loader turns uploaded spreadsheets into transaction tables.
//
// Every source (xlsx, csv, Google Sheets) is reduced to a header row plus
// string cells and handed to FromRows, which validates the required columns,
// coerces dates and numbers, and reports how many rows were dropped.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"retailcast/internal/core"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	ErrMissingColumns    = errors.New("missing required columns")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptySheet        = errors.New("sheet has no header row")
)

// MissingColumnsError names the required columns absent from an upload.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("the file must contain these columns: %s (missing: %s)",
		strings.Join(core.RequiredColumns, ", "), strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// Report describes what happened to the source rows during coercion.
type Report struct {
	Rows           int      `json:"rows"`
	Kept           int      `json:"kept"`
	DroppedRows    int      `json:"dropped_rows"`    // Date did not parse
	DroppedNumeric int      `json:"dropped_numeric"` // Cost or Quantity did not parse
	Columns        []string `json:"columns"`
}

// Dropped is the total number of rows discarded.
func (r Report) Dropped() int {
	return r.DroppedRows + r.DroppedNumeric
}

// DetectFormat picks a Format from a file name extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Load reads a whole spreadsheet in the given format.
func Load(r io.Reader, format Format) (*core.Table, Report, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		return nil, Report{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, Report{}, err
	}
	return FromRows(rows)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv read: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// FromRows builds a table from a header row followed by data rows.
func FromRows(rows [][]string) (*core.Table, Report, error) {
	if len(rows) == 0 {
		return nil, Report{}, ErrEmptySheet
	}

	header := rows[0]
	columns := make([]string, 0, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		columns = append(columns, name)
		for _, req := range core.RequiredColumns {
			if strings.EqualFold(name, req) {
				if _, seen := index[req]; !seen {
					index[req] = i
				}
			}
		}
	}

	var missing []string
	for _, req := range core.RequiredColumns {
		if _, ok := index[req]; !ok {
			missing = append(missing, req)
		}
	}
	report := Report{Columns: columns}
	if len(missing) > 0 {
		return nil, report, &MissingColumnsError{Missing: missing}
	}

	cell := func(row []string, col string) string {
		i := index[col]
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	out := make([]core.Transaction, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		report.Rows++

		date, ok := parseDate(cell(row, core.ColumnDate))
		if !ok {
			report.DroppedRows++
			continue
		}
		cost, okCost := parseNumber(cell(row, core.ColumnCost))
		qty, okQty := parseNumber(cell(row, core.ColumnQuantity))
		if !okCost || !okQty {
			report.DroppedNumeric++
			continue
		}

		out = append(out, core.Transaction{
			Date:     core.Date{Time: date},
			Cost:     cost,
			Location: cell(row, core.ColumnLocation),
			Quantity: qty,
			Item:     cell(row, core.ColumnItem),
		})
	}
	report.Kept = len(out)

	return core.NewTable(columns, out), report, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
