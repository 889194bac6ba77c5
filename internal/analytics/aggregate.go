// Package analytics holds the pure aggregations behind the dashboard charts
// and the naive month-over-month forecast.
//
// None of these functions mutate the table they are given; the same table
// always produces the same output.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"retailcast/internal/core"
)

// DefaultBins is the bucket count used by the price distribution chart.
const DefaultBins = 10

type MonthOrder string

const (
	// OrderCalendar sorts January..December.
	OrderCalendar MonthOrder = "calendar"
	// OrderAlphabetical sorts by month name, which is how a plain group-by
	// on the label orders them.
	OrderAlphabetical MonthOrder = "alphabetical"
)

type (
	ItemQuantity struct {
		Item     string  `json:"item"`
		Quantity float64 `json:"quantity"`
	}

	SeasonTotal struct {
		Season core.Season `json:"season"`
		Total  float64     `json:"total_sales"`
	}

	MonthTotal struct {
		Month string  `json:"month"`
		Total float64 `json:"total_sales"`
	}

	Bin struct {
		Low   float64 `json:"low"`
		High  float64 `json:"high"`
		Count int     `json:"count"`
	}

	Histogram struct {
		Bins  []Bin `json:"bins"`
		Total int   `json:"total"`
	}
)

// ParseMonthOrder maps a query value to a MonthOrder, defaulting to calendar.
func ParseMonthOrder(s string) MonthOrder {
	if MonthOrder(strings.ToLower(strings.TrimSpace(s))) == OrderAlphabetical {
		return OrderAlphabetical
	}
	return OrderCalendar
}

// ItemQuantities sums Quantity by Item over the rows at location.
func ItemQuantities(t *core.Table, location string) []ItemQuantity {
	location = strings.TrimSpace(location)
	return itemQuantities(t, func(r core.Transaction) bool {
		return r.Location == location
	})
}

func itemQuantities(t *core.Table, keep func(core.Transaction) bool) []ItemQuantity {
	sums := make(map[string]float64)
	t.Each(func(r core.Transaction) {
		if keep(r) {
			sums[r.Item] += r.Quantity
		}
	})

	out := make([]ItemQuantity, 0, len(sums))
	for item, qty := range sums {
		out = append(out, ItemQuantity{Item: item, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// TotalQuantity adds up a summary.
func TotalQuantity(items []ItemQuantity) float64 {
	var total float64
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// Costs returns the Cost column.
func Costs(t *core.Table) []float64 {
	out := make([]float64, 0, t.Len())
	t.Each(func(r core.Transaction) { out = append(out, r.Cost) })
	return out
}

// PriceDistribution buckets the Cost column into equal-width bins between
// its minimum and maximum.
func PriceDistribution(t *core.Table, bins int) Histogram {
	return NewHistogram(Costs(t), bins)
}

// NewHistogram buckets values into n equal-width bins. The last bin is
// closed on the right so the maximum lands in it. NaN and infinities are
// skipped and not counted in Total.
func NewHistogram(values []float64, n int) Histogram {
	if n <= 0 {
		n = DefaultBins
	}
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	values = finite
	h := Histogram{Total: len(values)}
	if len(values) == 0 {
		return h
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		h.Bins = []Bin{{Low: lo, High: hi, Count: len(values)}}
		return h
	}

	width := (hi - lo) / float64(n)
	h.Bins = make([]Bin, n)
	for i := range h.Bins {
		h.Bins[i].Low = lo + float64(i)*width
		h.Bins[i].High = lo + float64(i+1)*width
	}
	h.Bins[n-1].High = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		h.Bins[i].Count++
	}
	return h
}

// SeasonSales sums Cost per season. All four seasons are always present.
func SeasonSales(t *core.Table) []SeasonTotal {
	sums := make(map[core.Season]float64, 4)
	t.Each(func(r core.Transaction) {
		sums[core.SeasonOf(r.Month())] += r.Cost
	})

	out := make([]SeasonTotal, 0, 4)
	for _, s := range core.Seasons() {
		out = append(out, SeasonTotal{Season: s, Total: sums[s]})
	}
	return out
}

// MonthlySales sums Cost per month label for the months present in t.
func MonthlySales(t *core.Table, order MonthOrder) []MonthTotal {
	sums := make(map[time.Month]float64)
	t.Each(func(r core.Transaction) {
		sums[r.Month()] += r.Cost
	})

	months := make([]time.Month, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	if order == OrderAlphabetical {
		sort.Slice(months, func(i, j int) bool { return months[i].String() < months[j].String() })
	} else {
		sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	}

	out := make([]MonthTotal, 0, len(months))
	for _, m := range months {
		out = append(out, MonthTotal{Month: m.String(), Total: sums[m]})
	}
	return out
}
