package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bobmcallan/pricehistory/internal/app"
	"github.com/bobmcallan/pricehistory/internal/calendar"
	"github.com/bobmcallan/pricehistory/internal/clients/feedfs"
	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/models"
)

const usage = `Usage: pricehistory [-config file] <command> [args]

Commands:
  plan SYMBOL...              show the date ranges still missing
  refresh [-force] [SYMBOL...] fetch missing ranges (all stored symbols when none given)
  dedupe [SYMBOL...]          remove duplicate and undated records
  ingest SYMBOL FILE          merge a JSON quote file into a stored history
  show [-n N] SYMBOL          print a stored history
  watch [-now]                refresh stored symbols on the configured schedule
  holidays YEAR               list exchange holidays for a year
  version                     print version information
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err != errUsage {
			fmt.Fprintf(os.Stderr, "pricehistory: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("pricehistory", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "config file (defaults to PRICEHISTORY_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "pricehistory %s\n", common.GetFullVersion())
		return nil
	case "holidays":
		return runHolidays(rest, stdout)
	case "plan", "refresh", "dedupe", "ingest", "show", "watch":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		fs.Usage()
		return errUsage
	}

	a, err := app.NewApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	common.PrintBanner(stderr, a.Config, a.Logger)

	switch cmd {
	case "plan":
		return runPlan(ctx, a, rest, stdout)
	case "refresh":
		return runRefresh(ctx, a, rest, stdout, stderr)
	case "dedupe":
		return runDedupe(ctx, a, rest, stdout)
	case "ingest":
		return runIngest(ctx, a, rest, stdout)
	case "watch":
		return runWatch(ctx, a, rest, stderr)
	default:
		return runShow(ctx, a, rest, stdout, stderr)
	}
}

// symbolsOrStored returns args, or every stored symbol when args is empty
func symbolsOrStored(ctx context.Context, a *app.App, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return a.Storage.ListSymbols(ctx)
}

func runPlan(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("plan needs at least one symbol: %w", errUsage)
	}
	for _, symbol := range args {
		ranges, err := a.Backfill.Plan(ctx, symbol)
		if err != nil {
			return err
		}
		if len(ranges) == 0 {
			fmt.Fprintf(stdout, "%s\tup to date\n", symbol)
			continue
		}
		for _, r := range ranges {
			fmt.Fprintf(stdout, "%s\t%s\t%d days\n", symbol, r, r.Days())
		}
	}
	return nil
}

func runRefresh(ctx context.Context, a *app.App, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "refresh current and not-found symbols too")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	symbols, err := symbolsOrStored(ctx, a, fs.Args())
	if err != nil {
		return err
	}

	results, err := a.Backfill.RefreshAll(ctx, symbols, *force)
	for _, res := range results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(stdout, "%s\tfailed: %v\n", res.Symbol, res.Err)
		case res.Skipped && res.NotFound:
			fmt.Fprintf(stdout, "%s\tskipped (not found)\n", res.Symbol)
		case res.Skipped:
			fmt.Fprintf(stdout, "%s\tskipped (current)\n", res.Symbol)
		case res.NotFound:
			fmt.Fprintf(stdout, "%s\tnot found\n", res.Symbol)
		default:
			fmt.Fprintf(stdout, "%s\t%d ranges\t%d quotes\t%d missing days\n",
				res.Symbol, len(res.Ranges), res.Quotes, len(res.MissingDays))
		}
	}
	return err
}

func runDedupe(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	symbols, err := symbolsOrStored(ctx, a, args)
	if err != nil {
		return err
	}
	for _, symbol := range symbols {
		changed, err := a.Backfill.Maintain(ctx, symbol)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintf(stdout, "%s\trepaired\n", symbol)
		} else {
			fmt.Fprintf(stdout, "%s\tclean\n", symbol)
		}
	}
	return nil
}

// runIngest merges a feed file covering its own first to last quote date
func runIngest(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("ingest needs a symbol and a file: %w", errUsage)
	}
	symbol, path := args[0], args[1]

	quotes, err := feedfs.ReadQuotes(path)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		fmt.Fprintf(stdout, "%s\t0 quotes\n", symbol)
		return nil
	}

	r := models.DateRange{Start: calendar.Date(quotes[0].Date), End: calendar.Date(quotes[0].Date)}
	for _, q := range quotes[1:] {
		d := calendar.Date(q.Date)
		if d.Before(r.Start) {
			r.Start = d
		}
		if d.After(r.End) {
			r.End = d
		}
	}

	missing, err := a.Backfill.Ingest(ctx, symbol, quotes, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\t%d quotes\t%s\t%d missing days\n", symbol, len(quotes), r, len(missing))
	return nil
}

func runShow(ctx context.Context, a *app.App, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", 10, "number of most recent records to print")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("show needs exactly one symbol: %w", errUsage)
	}

	symbol := fs.Arg(0)
	h, err := a.Backfill.History(ctx, symbol)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("no history stored for %s", symbol)
	}

	fmt.Fprintf(stdout, "Symbol:      %s\n", h.Symbol)
	if h.Name != "" {
		fmt.Fprintf(stdout, "Name:        %s\n", h.Name)
	}
	fmt.Fprintf(stdout, "Not found:   %t\n", h.NotFound)
	fmt.Fprintf(stdout, "Last update: %s\n", formatDate(h.LastUpdate))
	fmt.Fprintf(stdout, "Records:     %d (%s to %s)\n", len(h.Records), formatDate(h.FirstDate()), formatDate(h.LastDate()))

	start := max(len(h.Records)-*n, 0)
	for _, q := range h.Records[start:] {
		fmt.Fprintf(stdout, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%d\n",
			formatDate(q.Date), q.Open, q.High, q.Low, q.Close, q.Volume)
	}
	return nil
}

func runWatch(ctx context.Context, a *app.App, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	now := fs.Bool("now", false, "refresh once before waiting for the schedule")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *now {
		a.RefreshStored(ctx)
	}
	if err := a.StartScheduler(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info().Msg("Shutdown signal received")
	return nil
}

func runHolidays(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("holidays needs a year: %w", errUsage)
	}
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q: %w", args[0], errUsage)
	}
	for _, d := range calendar.Holidays(year) {
		fmt.Fprintf(stdout, "%s\t%s\n", formatDate(d), d.Weekday())
	}
	for _, d := range calendar.KnownClosures() {
		if d.Year() == year {
			fmt.Fprintf(stdout, "%s\t%s\tspecial closure\n", formatDate(d), d.Weekday())
		}
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
