package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"PriceTracker/internal/app"
	"PriceTracker/internal/config"
	"PriceTracker/internal/domain"
	"PriceTracker/internal/logging"
	"PriceTracker/internal/report"
	"PriceTracker/internal/usecase"
)

const usage = `usage: pricetracker <command> [flags]

commands:
  serve          run the HTTP query API (and the crawl scheduler, if enabled)
  crawl          crawl the brand catalogs once
  fix-stats      recompute lowest/highest/current prices from history
  clean-history  remove duplicate consecutive history records
  import-legacy  import a legacy SQLite price history file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = runServe(ctx, cfg)
	case "crawl":
		err = runCrawl(ctx, cfg, args)
	case "fix-stats":
		err = runFixStats(ctx, cfg, args)
	case "clean-history":
		err = runCleanHistory(ctx, cfg, args)
	case "import-legacy":
		err = runImportLegacy(ctx, cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error(command+" failed", "error", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	application, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(ctx)
}

func runCrawl(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	brandFlag := fs.String("brand", "", "restrict the crawl to one brand (uniqlo or gu)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Operator input is validated before any store or network I/O.
	var brands []domain.Brand
	if *brandFlag != "" {
		brand, err := domain.ParseBrand(*brandFlag)
		if err != nil {
			return err
		}
		brands = []domain.Brand{brand}
	}

	application, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	summary := application.Crawl(ctx, brands)
	report.WriteCrawl(os.Stdout, summary)

	if len(summary.Errors) > 0 {
		return fmt.Errorf("%d brand(s) failed", len(summary.Errors))
	}
	return nil
}

func runFixStats(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("fix-stats", flag.ExitOnError)
	productID := fs.Int64("product", 0, "repair a single product by internal id")
	dryRun := fs.Bool("dry-run", false, "report intended changes without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *productID < 0 {
		return fmt.Errorf("invalid product id %d", *productID)
	}

	application, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.RepairStats(ctx, usecase.RepairOptions{
		ProductID: *productID,
		DryRun:    *dryRun,
	})
	if err != nil {
		return err
	}

	report.WriteRepair(os.Stdout, summary)
	return nil
}

func runCleanHistory(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("clean-history", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "report deletions without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.CleanupHistory(ctx, *dryRun)
	if err != nil {
		return err
	}

	report.WriteCleanup(os.Stdout, summary)
	return nil
}

func runImportLegacy(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("import-legacy", flag.ExitOnError)
	path := fs.String("path", "", "path to the legacy SQLite database file")
	dryRun := fs.Bool("dry-run", false, "report the import without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return fmt.Errorf("-path is required")
	}
	if _, err := os.Stat(*path); err != nil {
		return fmt.Errorf("legacy database file: %w", err)
	}

	application, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.ImportLegacy(ctx, *path, *dryRun)
	if err != nil {
		return err
	}

	report.WriteImport(os.Stdout, summary)
	return nil
}
