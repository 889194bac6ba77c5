package analytics

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"retailcast/internal/core"
)

func tx(y, m, d int, cost float64, loc string, qty float64, item string) core.Transaction {
	return core.Transaction{Date: core.NewDate(y, m, d), Cost: cost, Location: loc, Quantity: qty, Item: item}
}

func sampleTable() *core.Table {
	return core.NewTable(core.RequiredColumns, []core.Transaction{
		tx(2024, 1, 5, 100, "Pune", 10, "Rice"),
		tx(2024, 1, 20, 50, "Pune", 5, "Rice"),
		tx(2024, 1, 21, 20, "Pune", 2, "Dal"),
		tx(2024, 4, 2, 30, "Mumbai", 3, "Sugar"),
		tx(2024, 7, 9, 40, "Pune", 1, "Salt"),
		tx(2024, 12, 1, 60, "Mumbai", 6, "Rice"),
	})
}

func TestItemQuantities(t *testing.T) {
	tbl := core.NewTable(core.RequiredColumns, []core.Transaction{
		tx(2024, 1, 1, 10, "Pune", 10, "Rice"),
		tx(2024, 1, 2, 5, "Pune", 5, "Rice"),
	})
	got := ItemQuantities(tbl, "Pune")
	want := []ItemQuantity{{Item: "Rice", Quantity: 15}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ItemQuantities = %+v, want %+v", got, want)
	}
}

func TestItemQuantitiesSortedAndFiltered(t *testing.T) {
	got := ItemQuantities(sampleTable(), " Pune ")
	want := []ItemQuantity{
		{Item: "Dal", Quantity: 2},
		{Item: "Rice", Quantity: 15},
		{Item: "Salt", Quantity: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ItemQuantities = %+v, want %+v", got, want)
	}
	if TotalQuantity(got) != 18 {
		t.Errorf("TotalQuantity = %v, want 18", TotalQuantity(got))
	}
}

func TestItemQuantitiesUnknownLocation(t *testing.T) {
	got := ItemQuantities(sampleTable(), "Delhi")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil summary, got %#v", got)
	}
	if got := ItemQuantities(sampleTable(), "pune"); len(got) != 0 {
		t.Fatalf("location match should be case-sensitive, got %+v", got)
	}
}

func TestNewHistogram(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	h := NewHistogram(values, 10)
	if len(h.Bins) != 10 {
		t.Fatalf("bins = %d, want 10", len(h.Bins))
	}
	sum := 0
	for _, b := range h.Bins {
		sum += b.Count
	}
	if sum != len(values) || h.Total != len(values) {
		t.Fatalf("counts sum to %d, total %d, want %d", sum, h.Total, len(values))
	}
	if h.Bins[9].Count != 2 {
		t.Errorf("maximum should land in the last bin, got %d", h.Bins[9].Count)
	}
	if h.Bins[0].Low != 0 || h.Bins[9].High != 10 {
		t.Errorf("range = [%v, %v]", h.Bins[0].Low, h.Bins[9].High)
	}
}

func TestNewHistogramEdgeCases(t *testing.T) {
	if h := NewHistogram(nil, 10); len(h.Bins) != 0 || h.Total != 0 {
		t.Fatalf("empty input: %+v", h)
	}
	h := NewHistogram([]float64{5, 5, 5}, 10)
	if len(h.Bins) != 1 || h.Bins[0].Count != 3 {
		t.Fatalf("constant input: %+v", h)
	}
	if h := NewHistogram([]float64{1, 2}, 0); len(h.Bins) != DefaultBins {
		t.Fatalf("non-positive bin count should default, got %d", len(h.Bins))
	}
}

func TestNewHistogramSkipsNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		total  int
	}{
		{"nan", []float64{1, math.NaN(), 3}, 2},
		{"inf", []float64{1, math.Inf(1), 3}, 2},
		{"negative inf", []float64{math.Inf(-1), 1, 3}, 2},
		{"only nan", []float64{math.NaN()}, 0},
		{"span overflows", []float64{-math.MaxFloat64, 0, math.MaxFloat64}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistogram(tt.values, 4)
			sum := 0
			for _, b := range h.Bins {
				sum += b.Count
			}
			if h.Total != tt.total || sum != tt.total {
				t.Fatalf("Total = %d, bin sum = %d, want %d", h.Total, sum, tt.total)
			}
		})
	}
}

func TestPriceDistributionCountsEveryRow(t *testing.T) {
	tbl := sampleTable()
	h := PriceDistribution(tbl, DefaultBins)
	if h.Total != tbl.Len() {
		t.Fatalf("Total = %d, want %d", h.Total, tbl.Len())
	}
}

func TestSeasonSales(t *testing.T) {
	got := SeasonSales(sampleTable())
	want := []SeasonTotal{
		{Season: core.Winter, Total: 230},
		{Season: core.Spring, Total: 30},
		{Season: core.Summer, Total: 40},
		{Season: core.Autumn, Total: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SeasonSales = %+v, want %+v", got, want)
	}
}

func TestSeasonSalesSumToTotalCost(t *testing.T) {
	randomTable := func(seed uint64, n int) *core.Table {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		rows := make([]core.Transaction, n)
		for i := range rows {
			rows[i] = tx(2020+rng.IntN(6), 1+rng.IntN(12), 1+rng.IntN(28),
				math.Round(rng.Float64()*100000)/100, "Pune", float64(rng.IntN(50)), "Rice")
		}
		return core.NewTable(core.RequiredColumns, rows)
	}

	tables := map[string]*core.Table{
		"sample": sampleTable(),
		"empty":  core.NewTable(nil, nil),
	}
	for seed := uint64(1); seed <= 8; seed++ {
		tables[fmt.Sprintf("random-%d", seed)] = randomTable(seed, int(seed)*37)
	}

	for name, tbl := range tables {
		t.Run(name, func(t *testing.T) {
			var seasons, costs float64
			for _, s := range SeasonSales(tbl) {
				seasons += s.Total
			}
			for _, c := range Costs(tbl) {
				costs += c
			}
			if math.Abs(seasons-costs) > 1e-6*math.Max(1, math.Abs(costs)) {
				t.Fatalf("season totals sum to %v, costs sum to %v", seasons, costs)
			}
		})
	}
}

func TestSeasonSalesEmptyTable(t *testing.T) {
	got := SeasonSales(core.NewTable(nil, nil))
	if len(got) != 4 {
		t.Fatalf("expected four seasons, got %d", len(got))
	}
	for _, s := range got {
		if s.Total != 0 {
			t.Fatalf("expected zero totals, got %+v", got)
		}
	}
}

func TestMonthlySales(t *testing.T) {
	tbl := sampleTable()

	cal := MonthlySales(tbl, OrderCalendar)
	wantCal := []MonthTotal{
		{Month: "January", Total: 170},
		{Month: "April", Total: 30},
		{Month: "July", Total: 40},
		{Month: "December", Total: 60},
	}
	if !reflect.DeepEqual(cal, wantCal) {
		t.Fatalf("calendar order = %+v, want %+v", cal, wantCal)
	}

	alpha := MonthlySales(tbl, OrderAlphabetical)
	var names []string
	for _, m := range alpha {
		names = append(names, m.Month)
	}
	if want := []string{"April", "December", "January", "July"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("alphabetical order = %v, want %v", names, want)
	}
}

func TestParseOptions(t *testing.T) {
	if ParseMonthOrder("Alphabetical") != OrderAlphabetical {
		t.Error("expected alphabetical")
	}
	if ParseMonthOrder("") != OrderCalendar || ParseMonthOrder("bogus") != OrderCalendar {
		t.Error("expected calendar default")
	}
	if ParseStep("thirty-day") != StepThirtyDay || ParseStep("") != StepCalendar {
		t.Error("unexpected step parsing")
	}
}

func TestForecastOmitsMonthsWithoutHistory(t *testing.T) {
	tbl := core.NewTable(core.RequiredColumns, []core.Transaction{
		tx(2023, 1, 10, 10, "Pune", 4, "Rice"),
	})
	res, err := Forecast(tbl, ForecastRequest{Location: "Pune", StartMonth: 1, MonthsAhead: 3})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Month != "January" {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if res.Entries[0].Year != ReferenceYear {
		t.Errorf("Year = %d, want %d", res.Entries[0].Year, ReferenceYear)
	}
	if want := []string{"February", "March"}; !reflect.DeepEqual(res.Omitted, want) {
		t.Errorf("Omitted = %v, want %v", res.Omitted, want)
	}
	if res.Requested != 3 || len(res.Entries)+len(res.Omitted) != res.Requested {
		t.Errorf("Requested = %d with %d entries and %d omitted", res.Requested, len(res.Entries), len(res.Omitted))
	}
}

func TestForecastReplaysHistory(t *testing.T) {
	tbl := sampleTable()
	res, err := Forecast(tbl, ForecastRequest{Location: "Pune", StartMonth: 12, Year: 2025, MonthsAhead: 2})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("entries = %+v", res.Entries)
	}
	jan := res.Entries[0]
	if jan.Month != "January" || jan.Year != 2026 {
		t.Fatalf("expected January 2026 after wrapping the year, got %s %d", jan.Month, jan.Year)
	}
	want := []ItemQuantity{{Item: "Dal", Quantity: 2}, {Item: "Rice", Quantity: 15}}
	if !reflect.DeepEqual(jan.Items, want) {
		t.Fatalf("Items = %+v, want %+v", jan.Items, want)
	}
	if !reflect.DeepEqual(res.Omitted, []string{"December"}) {
		t.Fatalf("Omitted = %v", res.Omitted)
	}
}

func TestForecastMonths(t *testing.T) {
	cal := ForecastRequest{StartMonth: 1, MonthsAhead: 3}.Months()
	if cal[1].Month != time.February || cal[2].Month != time.March {
		t.Fatalf("calendar stepping = %v", cal)
	}
	// 30-day stepping from 1 January lands on 31 January, repeating the label.
	legacy := ForecastRequest{StartMonth: 1, MonthsAhead: 2, Step: StepThirtyDay}.Months()
	if legacy[0].Month != time.January || legacy[1].Month != time.January {
		t.Fatalf("thirty-day stepping = %v", legacy)
	}
}

func TestThirtyDayStepsIgnoreRequestedYearCalendar(t *testing.T) {
	want := []time.Month{time.January, time.January, time.March, time.March, time.April}
	for _, year := range []int{0, 2024, 2025, 2026, 2028} {
		steps := ForecastRequest{StartMonth: 1, Year: year, MonthsAhead: 5, Step: StepThirtyDay}.Months()
		for i, s := range steps {
			if s.Month != want[i] {
				t.Fatalf("year %d: step %d = %v, want %v", year, i, s.Month, want[i])
			}
		}
		labelYear := year
		if year == 0 {
			labelYear = ReferenceYear
		}
		if steps[0].Year != labelYear {
			t.Errorf("year %d: labelled %d", year, steps[0].Year)
		}
	}

	// The shift carries across a year boundary.
	steps := ForecastRequest{StartMonth: 12, Year: 2026, MonthsAhead: 2, Step: StepThirtyDay}.Months()
	if steps[1].Month != time.December || steps[1].Year != 2026 {
		t.Errorf("31 Dec step = %+v", steps[1])
	}
	steps = ForecastRequest{StartMonth: 12, Year: 2026, MonthsAhead: 3, Step: StepThirtyDay}.Months()
	if steps[2].Month != time.January || steps[2].Year != 2027 {
		t.Errorf("30 Jan step = %+v", steps[2])
	}
}

func TestForecastValidation(t *testing.T) {
	tbl := sampleTable()
	cases := []ForecastRequest{
		{Location: "", StartMonth: 1, MonthsAhead: 1},
		{Location: "Pune", StartMonth: 0, MonthsAhead: 1},
		{Location: "Pune", StartMonth: 13, MonthsAhead: 1},
		{Location: "Pune", StartMonth: 1, MonthsAhead: 0},
	}
	for _, req := range cases {
		if _, err := Forecast(tbl, req); !errors.Is(err, ErrInvalidForecast) {
			t.Errorf("Forecast(%+v) error = %v, want ErrInvalidForecast", req, err)
		}
	}
}

func TestAggregationsDoNotMutateTable(t *testing.T) {
	tbl := sampleTable()
	before := tbl.Rows()
	_ = ItemQuantities(tbl, "Pune")
	_ = SeasonSales(tbl)
	_ = MonthlySales(tbl, OrderAlphabetical)
	_ = PriceDistribution(tbl, DefaultBins)
	if _, err := Forecast(tbl, ForecastRequest{Location: "Pune", StartMonth: 1, MonthsAhead: 12}); err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if !reflect.DeepEqual(before, tbl.Rows()) {
		t.Fatal("table rows changed after aggregation")
	}
}
