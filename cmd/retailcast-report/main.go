// Command retailcast-report prints the dashboard aggregates for a file
// without starting the server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"retailcast/internal/analytics"
	"retailcast/internal/cli"
	"retailcast/internal/core"
	"retailcast/internal/loader"
	applog "retailcast/internal/log"
)

type options struct {
	path        string
	location    string
	startMonth  int
	year        int
	monthsAhead int
	bins        int
	order       string
	step        string
	jsonOut     bool
}

type report struct {
	Load     loader.Report             `json:"load"`
	Items    []analytics.ItemQuantity  `json:"items,omitempty"`
	Prices   analytics.Histogram       `json:"price_distribution"`
	Seasons  []analytics.SeasonTotal   `json:"season_sales"`
	Months   []analytics.MonthTotal    `json:"monthly_sales"`
	Forecast *analytics.ForecastResult `json:"forecast,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.path, "file", "", "xlsx or csv transactions file (required)")
	flag.StringVar(&opts.location, "location", "", "location for item quantities and the forecast")
	flag.IntVar(&opts.startMonth, "start-month", 1, "first forecast month (1-12)")
	flag.IntVar(&opts.year, "year", time.Now().Year(), "forecast year")
	flag.IntVar(&opts.monthsAhead, "months", 1, "number of forecast months")
	flag.IntVar(&opts.bins, "bins", analytics.DefaultBins, "price histogram bins")
	flag.StringVar(&opts.order, "order", string(analytics.OrderCalendar), "monthly sales order: calendar or alphabetical")
	flag.StringVar(&opts.step, "step", string(analytics.StepCalendar), "forecast stepping: calendar or thirty-day")
	flag.BoolVar(&opts.jsonOut, "json", false, "print JSON instead of tables")
	flag.Parse()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	if opts.path == "" {
		flag.Usage()
		os.Exit(2)
	}

	rep, err := build(opts)
	if err != nil {
		cli.Fatal(logger, "Report failed", err, applog.FieldFile, opts.path)
	}
	if dropped := rep.Load.Dropped(); dropped > 0 {
		logger.Warn("Rows dropped while loading", applog.FieldRowsDropped, dropped, applog.FieldRowsTotal, rep.Load.Rows)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(rep)
	} else {
		err = printTables(os.Stdout, rep)
	}
	if err != nil {
		cli.Fatal(logger, "Write failed", err)
	}
}

func build(opts options) (report, error) {
	format, err := loader.DetectFormat(opts.path)
	if err != nil {
		return report{}, err
	}
	f, err := os.Open(opts.path)
	if err != nil {
		return report{}, err
	}
	defer f.Close()

	table, loadRep, err := loader.Load(f, format)
	if err != nil {
		return report{}, err
	}
	return aggregate(table, loadRep, opts)
}

func aggregate(table *core.Table, loadRep loader.Report, opts options) (report, error) {
	rep := report{
		Load:    loadRep,
		Prices:  analytics.PriceDistribution(table, opts.bins),
		Seasons: analytics.SeasonSales(table),
		Months:  analytics.MonthlySales(table, analytics.ParseMonthOrder(opts.order)),
	}
	if opts.location == "" {
		return rep, nil
	}

	rep.Items = analytics.ItemQuantities(table, opts.location)
	res, err := analytics.Forecast(table, analytics.ForecastRequest{
		Location:    opts.location,
		StartMonth:  opts.startMonth,
		Year:        opts.year,
		MonthsAhead: opts.monthsAhead,
		Step:        analytics.ParseStep(opts.step),
	})
	if err != nil {
		return rep, err
	}
	rep.Forecast = &res
	return rep, nil
}

func printTables(out io.Writer, rep report) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Rows\t%d\nKept\t%d\nDropped (date)\t%d\nDropped (number)\t%d\n\n",
		rep.Load.Rows, rep.Load.Kept, rep.Load.DroppedRows, rep.Load.DroppedNumeric)

	if len(rep.Items) > 0 {
		fmt.Fprintln(w, "Item\tQuantity")
		for _, it := range rep.Items {
			fmt.Fprintf(w, "%s\t%g\n", it.Item, it.Quantity)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Cost range\tCount")
	for _, b := range rep.Prices.Bins {
		fmt.Fprintf(w, "%.2f-%.2f\t%d\n", b.Low, b.High, b.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Season\tTotal Sales")
	for _, s := range rep.Seasons {
		fmt.Fprintf(w, "%s\t%.2f\n", s.Season, s.Total)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Month\tTotal Sales")
	for _, m := range rep.Months {
		fmt.Fprintf(w, "%s\t%.2f\n", m.Month, m.Total)
	}

	if rep.Forecast != nil {
		for _, e := range rep.Forecast.Entries {
			fmt.Fprintf(w, "\nPredictions for %s %d\tQuantity\n", e.Month, e.Year)
			for _, it := range e.Items {
				fmt.Fprintf(w, "%s\t%g\n", it.Item, it.Quantity)
			}
		}
		if len(rep.Forecast.Omitted) > 0 {
			fmt.Fprintf(w, "\nNo history for\t%v\n", rep.Forecast.Omitted)
		}
	}
	return w.Flush()
}
