// Package export writes a user's data summary to xlsx and pdf files,
// either inline or through the export queue.
package export

import (
	"sort"
	"strconv"
	"strings"

	"retailcast/internal/core"
	"retailcast/internal/loader"
)

type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Record is an ordered flat key/value mapping. Keys are unique.
type Record []Field

// Set replaces the value of key, or appends it when absent.
func (r Record) Set(key, value string) Record {
	for i := range r {
		if r[i].Key == key {
			r[i].Value = value
			return r
		}
	}
	return append(r, Field{Key: key, Value: value})
}

func (r Record) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// BuildRecord summarizes a user's session for export.
func BuildRecord(username string, t *core.Table, rep loader.Report, source string) Record {
	var (
		cost, qty   float64
		locations   = map[string]struct{}{}
		items       = map[string]struct{}{}
		first, last core.Date
	)
	t.Each(func(tx core.Transaction) {
		cost += tx.Cost
		qty += tx.Quantity
		locations[tx.Location] = struct{}{}
		items[tx.Item] = struct{}{}
		if first.IsZero() || tx.Date.Before(first.Time) {
			first = tx.Date
		}
		if last.IsZero() || tx.Date.After(last.Time) {
			last = tx.Date
		}
	})

	var rec Record
	rec = rec.Set("Username", username)
	if source != "" {
		rec = rec.Set("Source", source)
	}
	rec = rec.Set("Rows kept", strconv.Itoa(rep.Kept))
	rec = rec.Set("Rows dropped", strconv.Itoa(rep.Dropped()))
	rec = rec.Set("Total cost", formatAmount(cost))
	rec = rec.Set("Total quantity", formatAmount(qty))
	rec = rec.Set("Locations", joinSorted(locations))
	rec = rec.Set("Items", joinSorted(items))
	if !first.IsZero() {
		rec = rec.Set("First date", first.Format("2006-01-02"))
		rec = rec.Set("Last date", last.Format("2006-01-02"))
	}
	return rec
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func joinSorted(set map[string]struct{}) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
