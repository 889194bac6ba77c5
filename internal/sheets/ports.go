// Package sheets declares the ports for remote spreadsheet sources.
package sheets

import "context"

// RowSource yields a header row followed by data rows, every cell
// rendered as a string. The result is fed to loader.FromRows.
type RowSource interface {
	ReadRows(ctx context.Context) ([][]string, error)
}
