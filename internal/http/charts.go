package http

import (
	"errors"
	"fmt"
	"strings"

	"retailcast/internal/analytics"
	"retailcast/internal/core"
)

type ChartType string

const (
	ChartGroceryQuantity   ChartType = "grocery-quantity"
	ChartPriceDistribution ChartType = "price-distribution"
	ChartSeasonSales       ChartType = "season-sales"
	ChartMonthlySales      ChartType = "monthly-sales"
	ChartFutureTrend       ChartType = "future-trend"
)

// ChartOption is one entry of the chart selector.
type ChartOption struct {
	Type  ChartType
	Title string
}

var chartOptions = []ChartOption{
	{ChartGroceryQuantity, "Grocery Quantity"},
	{ChartPriceDistribution, "Price Distribution"},
	{ChartSeasonSales, "Season-wise Sales"},
	{ChartMonthlySales, "Monthly Sales"},
	{ChartFutureTrend, "Future Trend Prediction"},
}

// ChartOptions lists the selectable charts in menu order.
func ChartOptions() []ChartOption {
	out := make([]ChartOption, len(chartOptions))
	copy(out, chartOptions)
	return out
}

func ParseChartType(s string) (ChartType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ChartGroceryQuantity, nil
	}
	for _, o := range chartOptions {
		if string(o.Type) == s {
			return o.Type, nil
		}
	}
	return "", fmt.Errorf("unknown chart type %q", s)
}

func (c ChartType) Title() string {
	for _, o := range chartOptions {
		if o.Type == c {
			return o.Title
		}
	}
	return string(c)
}

// Bar is one labelled value of a bar chart.
type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is a single bar chart.
type Series struct {
	Title  string `json:"title"`
	XLabel string `json:"x_label"`
	YLabel string `json:"y_label"`
	Bars   []Bar  `json:"bars"`
}

// ChartView is everything needed to render or serialize one chart request.
type ChartView struct {
	Type    ChartType `json:"type"`
	Title   string    `json:"title"`
	Data    any       `json:"data"`
	Series  []Series  `json:"series"`
	Message string    `json:"message,omitempty"`
}

// BuildChart runs the aggregation behind p.Type over t.
func BuildChart(t *core.Table, p ChartParams) (ChartView, error) {
	view := ChartView{Type: p.Type, Title: p.Type.Title(), Series: []Series{}}

	switch p.Type {
	case ChartGroceryQuantity:
		items := analytics.ItemQuantities(t, p.Location)
		view.Data = items
		if p.Location == "" {
			view.Message = "Enter a location to see item quantities."
			return view, nil
		}
		if len(items) == 0 {
			view.Message = fmt.Sprintf("No rows for location %q.", p.Location)
			return view, nil
		}
		view.Series = append(view.Series, itemSeries("Grocery Quantity Distribution", items))

	case ChartPriceDistribution:
		h := analytics.PriceDistribution(t, p.Bins)
		view.Data = h
		s := Series{Title: "Price Distribution", XLabel: "Cost", YLabel: "Count"}
		for _, b := range h.Bins {
			s.Bars = append(s.Bars, Bar{Label: formatNumber(b.Low) + "-" + formatNumber(b.High), Value: float64(b.Count)})
		}
		if len(s.Bars) == 0 {
			view.Message = "No rows to plot."
			return view, nil
		}
		view.Series = append(view.Series, s)

	case ChartSeasonSales:
		seasons := analytics.SeasonSales(t)
		view.Data = seasons
		s := Series{Title: "Season-wise Sales", XLabel: "Season", YLabel: "Total Sales"}
		for _, st := range seasons {
			s.Bars = append(s.Bars, Bar{Label: string(st.Season), Value: st.Total})
		}
		view.Series = append(view.Series, s)

	case ChartMonthlySales:
		months := analytics.MonthlySales(t, p.Order)
		view.Data = months
		s := Series{Title: "Monthly Sales", XLabel: "Month", YLabel: "Total Sales"}
		for _, m := range months {
			s.Bars = append(s.Bars, Bar{Label: m.Month, Value: m.Total})
		}
		if len(s.Bars) == 0 {
			view.Message = "No rows to plot."
			return view, nil
		}
		view.Series = append(view.Series, s)

	case ChartFutureTrend:
		if p.Location == "" {
			view.Message = "Enter a location to predict future trends."
			return view, nil
		}
		res, err := analytics.Forecast(t, analytics.ForecastRequest{
			Location:    p.Location,
			StartMonth:  p.StartMonth,
			Year:        p.Year,
			MonthsAhead: p.MonthsAhead,
			Step:        p.Step,
		})
		if err != nil {
			return view, err
		}
		view.Data = res
		for _, e := range res.Entries {
			view.Series = append(view.Series, itemSeries(fmt.Sprintf("Predictions for %s %d", e.Month, e.Year), e.Items))
		}
		switch {
		case len(res.Entries) == 0:
			view.Message = "No data available for predictions."
		case len(res.Omitted) > 0:
			view.Message = "No history for: " + strings.Join(res.Omitted, ", ") + "."
		}

	default:
		return view, fmt.Errorf("%w: unknown chart type %q", errInvalidParam, p.Type)
	}
	return view, nil
}

func itemSeries(title string, items []analytics.ItemQuantity) Series {
	s := Series{Title: title, XLabel: "Item", YLabel: "Quantity"}
	for _, it := range items {
		s.Bars = append(s.Bars, Bar{Label: it.Item, Value: it.Quantity})
	}
	return s
}

// isClientChartError reports whether err came from bad widget input.
func isClientChartError(err error) bool {
	return errors.Is(err, errInvalidParam) || errors.Is(err, analytics.ErrInvalidForecast)
}

const (
	svgHeight   = 280
	svgTop      = 30
	svgBase     = 220
	svgSlot     = 64
	svgBarWidth = 44
	svgMargin   = 40
)

type svgBar struct {
	X, Y, W, H     int
	CenterX        int
	Label, Value   string
	ValueY, LabelY int
}

// SVG is the geometry of a server-rendered bar chart.
type SVG struct {
	Width, Height int
	Base          int
	Bars          []svgBar
}

// SVG lays the series out as vertical bars scaled to the largest value.
// Negative values are drawn as empty bars.
func (s Series) SVG() SVG {
	width := svgMargin*2 + svgSlot*len(s.Bars)
	if width < 320 {
		width = 320
	}
	out := SVG{Width: width, Height: svgHeight, Base: svgBase}

	var maxV float64
	for _, b := range s.Bars {
		if b.Value > maxV {
			maxV = b.Value
		}
	}
	span := svgBase - svgTop
	for i, b := range s.Bars {
		h := 0
		if maxV > 0 && b.Value > 0 {
			h = int(b.Value / maxV * float64(span))
			if h < 1 {
				h = 1
			}
		}
		x := svgMargin + i*svgSlot + (svgSlot-svgBarWidth)/2
		out.Bars = append(out.Bars, svgBar{
			X: x, Y: svgBase - h, W: svgBarWidth, H: h,
			CenterX: x + svgBarWidth/2,
			Label:   truncateLabel(b.Label, 12),
			Value:   formatNumber(b.Value),
			ValueY:  svgBase - h - 6,
			LabelY:  svgBase + 18,
		})
	}
	return out
}

func truncateLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
