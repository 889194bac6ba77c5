package core

import (
	"errors"
	"strings"
	"time"
)

// Canonical column names of an uploaded transaction sheet.
const (
	ColumnDate     = "Date"
	ColumnCost     = "Cost"
	ColumnLocation = "Location"
	ColumnQuantity = "Quantity"
	ColumnItem     = "Item"
)

// RequiredColumns lists the columns every upload must carry, in canonical order.
var RequiredColumns = []string{ColumnDate, ColumnCost, ColumnLocation, ColumnQuantity, ColumnItem}

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Autumn Season = "Autumn"
)

type (
	Season string

	Date struct {
		time.Time
	}

	Transaction struct {
		Date     Date
		Cost     float64
		Location string
		Quantity float64
		Item     string
	}

	// Table is an immutable snapshot of an uploaded sheet.
	Table struct {
		columns []string
		rows    []Transaction
	}
)

var (
	ErrInvalidMonth    = errors.New("invalid month")
	ErrEmptyLocation   = errors.New("empty location")
	ErrUnknownMonthTag = errors.New("unknown month name")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Month returns the calendar month of the transaction date.
func (t Transaction) Month() time.Month {
	return t.Date.Time.Month()
}

// MonthLabel is the full English month name derived from Date.
func (t Transaction) MonthLabel() string {
	return t.Date.Time.Month().String()
}

// NewTable copies rows and columns into a new snapshot.
func NewTable(columns []string, rows []Transaction) *Table {
	return &Table{
		columns: append([]string(nil), columns...),
		rows:    append([]Transaction(nil), rows...),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns a copy of the rows.
func (t *Table) Rows() []Transaction {
	if t == nil {
		return nil
	}
	return append([]Transaction(nil), t.rows...)
}

// Columns returns the columns present in the source, in source order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// Each calls fn for every row without copying the table.
func (t *Table) Each(fn func(Transaction)) {
	if t == nil {
		return
	}
	for _, r := range t.rows {
		fn(r)
	}
}

// Filter returns the rows for which keep reports true.
func (t *Table) Filter(keep func(Transaction) bool) []Transaction {
	var out []Transaction
	t.Each(func(r Transaction) {
		if keep(r) {
			out = append(out, r)
		}
	})
	return out
}

// SeasonOf maps a month to its Northern-hemisphere season bucket.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Autumn
	}
}

// Seasons returns the four buckets in display order.
func Seasons() []Season {
	return []Season{Winter, Spring, Summer, Autumn}
}

// ParseMonthName resolves a full or three-letter English month name.
func ParseMonthName(s string) (time.Month, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrUnknownMonthTag
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return m, nil
		}
	}
	return 0, ErrUnknownMonthTag
}

// ValidateMonth checks a 1-12 month index.
func ValidateMonth(m int) error {
	if m < 1 || m > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// IsMonthLabel reports whether s is one of the twelve full month names.
func IsMonthLabel(s string) bool {
	for m := time.January; m <= time.December; m++ {
		if m.String() == s {
			return true
		}
	}
	return false
}
