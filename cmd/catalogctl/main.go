// Package main implements catalogctl, the operator CLI for catalog
// definitions.
//
// Usage:
//
//	catalogctl validate -dir=catalogs
//	catalogctl versions -dir=catalogs
//	catalogctl plan -dir=catalogs -name=pistol-monthly -date=2011-03-01T00:00:00Z -start=2011-01-15T00:00:00Z
//	catalogctl compress -in=catalogs/firearms-2011-02-02.yaml
//
// validate loads every definition in the directory exactly as the API does
// and prints each defect. plan resolves a plan name the way a subscription
// that started at -start sees it at -date.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"pricebook/internal/catalog"
	"pricebook/internal/loader"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type command struct {
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = map[string]command{
	"validate": {"Load and validate every definition in a directory", runValidate},
	"versions": {"List the versions of a catalog directory", runVersions},
	"plan":     {"Resolve a plan for a subscription at a date", runPlan},
	"compress": {"Write a zstd-compressed copy of a definition", runCompress},
}

var commandOrder = []string{"validate", "versions", "plan", "compress"}

// errUsage signals a flag error that has already been reported.
var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	if err := cmd.run(ctx, args[1:], stdout, stderr); err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: catalogctl <command> [flags]\n\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func load(ctx context.Context, dir string, earlyDates bool, stderr io.Writer) (*catalog.VersionedCatalog, error) {
	if dir == "" {
		return nil, fmt.Errorf("-dir is required")
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return loader.New(loader.DirSource{Dir: dir}, logger, catalog.WithEarlyDates(earlyDates)).Load(ctx)
}

func runValidate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("validate", stderr)
	dir := fs.String("dir", "", "Directory of catalog definitions [required]")
	if err := parse(fs, args); err != nil {
		return err
	}

	vc, err := load(ctx, *dir, false, stderr)
	if err != nil {
		var defects catalog.ValidationErrors
		if errors.As(err, &defects) {
			for _, d := range defects {
				fmt.Fprintf(stdout, "%s\n", d.String())
			}
			return fmt.Errorf("%d defect(s) found", len(defects))
		}
		return err
	}
	fmt.Fprintf(stdout, "catalog %s: %d version(s) valid\n", vc.CatalogName(), vc.Len())
	return nil
}

func runVersions(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("versions", stderr)
	dir := fs.String("dir", "", "Directory of catalog definitions [required]")
	if err := parse(fs, args); err != nil {
		return err
	}

	vc, err := load(ctx, *dir, false, stderr)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EFFECTIVE DATE\tPRODUCTS\tPLANS\tCURRENCIES")
	for _, c := range vc.Versions() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%v\n", c.EffectiveDate.Format(time.RFC3339), len(c.Products), len(c.Plans), c.Currencies)
	}
	return tw.Flush()
}

func runPlan(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("plan", stderr)
	dir := fs.String("dir", "", "Directory of catalog definitions [required]")
	name := fs.String("name", "", "Plan name [required]")
	date := fs.String("date", "", "Requested date (RFC3339, default: now)")
	start := fs.String("start", "", "Subscription start date (RFC3339, default: -date)")
	early := fs.Bool("early-dates", true, "Resolve dates before the first version against the first version")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	requested := time.Now().UTC()
	if *date != "" {
		t, err := time.Parse(time.RFC3339, *date)
		if err != nil {
			return fmt.Errorf("-date: %w", err)
		}
		requested = t
	}
	subscribed := requested
	if *start != "" {
		t, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			return fmt.Errorf("-start: %w", err)
		}
		subscribed = t
	}

	vc, err := load(ctx, *dir, *early, stderr)
	if err != nil {
		return err
	}
	p, err := vc.FindPlan(*name, requested, subscribed)
	if err != nil {
		return err
	}
	printPlan(stdout, p)
	return nil
}

func printPlan(w io.Writer, p *catalog.Plan) {
	fmt.Fprintf(w, "plan:           %s\n", p.Name)
	fmt.Fprintf(w, "product:        %s\n", p.ProductName())
	fmt.Fprintf(w, "billing period: %s\n", p.BillingPeriod())
	if p.EffectiveDateForExistingSubscriptions != nil {
		fmt.Fprintf(w, "existing subscriptions from: %s\n", p.EffectiveDateForExistingSubscriptions.Format(time.RFC3339))
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tTYPE\tDURATION\tRECURRING")
	for _, ph := range p.AllPhases() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ph.Name(), ph.Type, ph.Duration, formatPrices(ph.Recurring.Prices()))
	}
	_ = tw.Flush()
}

func formatPrices(prices []catalog.Price) string {
	if len(prices) == 0 {
		return "-"
	}
	out := ""
	for i, pr := range prices {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s %s", pr.Value.StringFixed(2), pr.Currency)
	}
	return out
}

func runCompress(_ context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("compress", stderr)
	in := fs.String("in", "", "Definition file to compress [required]")
	out := fs.String("out", "", "Output path (default: -in with .zst appended)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("-in is required")
	}
	if *out == "" {
		*out = *in + ".zst"
	}

	body, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	// Refuse to ship a definition that would be rejected on upload.
	if _, err := loader.DecodeBytes(body); err != nil {
		return fmt.Errorf("%s: %w", *in, err)
	}
	compressed, err := loader.Compress(body)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, compressed, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d -> %d bytes)\n", *out, len(body), len(compressed))
	return nil
}
