package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"retailcast/internal/core"
)

// ReferenceYear is used for synthetic dates when the caller gives no year.
const ReferenceYear = 2024

type Step string

const (
	// StepCalendar advances one calendar month per entry.
	StepCalendar Step = "calendar"
	// StepThirtyDay adds 30 days per entry starting from the first of the
	// start month, always on the ReferenceYear calendar. It can repeat or
	// skip a month label.
	StepThirtyDay Step = "thirty-day"
)

var ErrInvalidForecast = errors.New("invalid forecast request")

type ForecastRequest struct {
	Location    string
	StartMonth  int // 1-12
	Year        int
	MonthsAhead int
	Step        Step
}

// MonthlyTrend is the replayed item summary for one forecast month.
type MonthlyTrend struct {
	Month string         `json:"month"`
	Year  int            `json:"year"`
	Items []ItemQuantity `json:"items"`
}

type ForecastResult struct {
	Entries   []MonthlyTrend `json:"entries"`
	Omitted   []string       `json:"omitted"`
	Requested int            `json:"requested"`
}

// ParseStep maps a query value to a Step, defaulting to calendar stepping.
func ParseStep(s string) Step {
	if Step(strings.ToLower(strings.TrimSpace(s))) == StepThirtyDay {
		return StepThirtyDay
	}
	return StepCalendar
}

func (r ForecastRequest) validate() error {
	if strings.TrimSpace(r.Location) == "" {
		return fmt.Errorf("%w: %v", ErrInvalidForecast, core.ErrEmptyLocation)
	}
	if err := core.ValidateMonth(r.StartMonth); err != nil {
		return fmt.Errorf("%w: start month %d: %v", ErrInvalidForecast, r.StartMonth, err)
	}
	if r.MonthsAhead < 1 {
		return fmt.Errorf("%w: months ahead must be at least 1, got %d", ErrInvalidForecast, r.MonthsAhead)
	}
	return nil
}

// ForecastMonth is one step of a forecast: the month replayed and the year
// it is labelled with.
type ForecastMonth struct {
	Month time.Month
	Year  int
}

// Months returns the steps the forecast walks through. Year only shifts the
// labels of thirty-day steps, so their month sequence is the same whatever
// year is requested.
func (r ForecastRequest) Months() []ForecastMonth {
	year := r.Year
	if year == 0 {
		year = ReferenceYear
	}
	calendarYear := year
	if r.Step == StepThirtyDay {
		calendarYear = ReferenceYear
	}
	start := time.Date(calendarYear, time.Month(r.StartMonth), 1, 0, 0, 0, 0, time.UTC)

	out := make([]ForecastMonth, 0, r.MonthsAhead)
	for i := 0; i < r.MonthsAhead; i++ {
		d := start.AddDate(0, i, 0)
		if r.Step == StepThirtyDay {
			d = start.AddDate(0, 0, 30*i)
		}
		out = append(out, ForecastMonth{Month: d.Month(), Year: d.Year() - calendarYear + year})
	}
	return out
}

// Forecast replays the historical item totals at Location for each of the
// requested months. Only the month name is matched, so this is a replay of
// history under future labels, not a projection. Months with no history
// are reported in Omitted instead of producing an entry.
func Forecast(t *core.Table, req ForecastRequest) (ForecastResult, error) {
	if err := req.validate(); err != nil {
		return ForecastResult{}, err
	}
	location := strings.TrimSpace(req.Location)

	res := ForecastResult{
		Entries:   []MonthlyTrend{},
		Omitted:   []string{},
		Requested: req.MonthsAhead,
	}
	for _, step := range req.Months() {
		month := step.Month
		items := itemQuantities(t, func(r core.Transaction) bool {
			return r.Location == location && r.Month() == month
		})
		if len(items) == 0 {
			res.Omitted = append(res.Omitted, month.String())
			continue
		}
		res.Entries = append(res.Entries, MonthlyTrend{
			Month: month.String(),
			Year:  step.Year,
			Items: items,
		})
	}
	return res, nil
}
