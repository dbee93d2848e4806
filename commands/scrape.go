package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"olx-car-scraper/models"
	"olx-car-scraper/scraper/olx"
	"olx-car-scraper/services"
	"olx-car-scraper/storage"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape listings for a car model and store them",
	Long: `Walk the OLX search results for a car model, parse every listing and
merge the results into the database. Listings already stored are updated
in place; new ones are inserted.

Examples:
  olx-car-scraper scrape -c "bmw e30"
  olx-car-scraper scrape -c "lancia delta hf" -p 3 --dry-run`,
	RunE: runScrape,
}

type scrapeOptions struct {
	pages   int
	dryRun  bool
	csvPath string
	noCSV   bool
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()
	flags.StringP("car-model", "c", "", "car model to search for, e.g. \"lancia delta hf\" (required)")
	flags.IntP("max-pages", "p", 0, "maximum result pages to walk (default MAX_PAGES)")
	flags.Bool("dry-run", false, "scrape and report without writing to the database")
	flags.String("csv", "", "also write the scraped records to this CSV file (default CSV_OUTPUT_PATH)")
	flags.Bool("no-csv", false, "skip the CSV copy")
	_ = scrapeCmd.MarkFlagRequired("car-model")
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	carModel, _ := flags.GetString("car-model")
	var opts scrapeOptions
	opts.pages, _ = flags.GetInt("max-pages")
	opts.dryRun, _ = flags.GetBool("dry-run")
	opts.csvPath, _ = flags.GetString("csv")
	opts.noCSV, _ = flags.GetBool("no-csv")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return current.scrape(ctx, carModel, opts)
}

func (a *app) scrape(ctx context.Context, carModel string, opts scrapeOptions) error {
	cfg := *a.cfg
	if opts.pages > 0 {
		cfg.MaxPages = opts.pages
	}

	var store storage.Store
	if opts.dryRun {
		a.logger.Info("[scrape] Dry run — records are kept in memory only")
		store = storage.NewMemoryStore()
	} else {
		s, err := a.openStore(ctx)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		store = s
	}
	defer closeStore(store, a.logger)

	a.logger.Info("=== OLX Car Scraper starting ===")
	a.logger.Info("Config — pages: %d | concurrency: %d | delay: %s | fetch: %s | retries: %d",
		cfg.MaxPages, cfg.MaxConcurrency, cfg.DelayBetweenRequests, cfg.FetchMode, cfg.MaxRetries)

	result, err := olx.New(&cfg, a.factory, a.logger).ScrapeModel(ctx, carModel)
	if err != nil {
		return err
	}

	if len(result.Records) == 0 {
		if result.Skipped > 0 {
			a.logger.Warn("[scrape] All %d detail pages failed", result.Skipped)
		}
		fmt.Fprintln(a.out, "No listings found for the specified car model.")
		return nil
	}

	report := services.NewReconciler(store, a.logger).Merge(ctx, result.Records)

	if !opts.noCSV {
		path := opts.csvPath
		if path == "" {
			path = cfg.CSVOutputPath
		}
		if err := writeRecords(storage.FormatCSV, path, report.Stored); err != nil {
			a.logger.Error("[scrape] CSV write failed: %v", err)
		} else {
			a.logger.Info("[scrape] Records saved to %s", path)
		}
	}

	services.NewInsightService(a.logger).PrintRunSummary(a.out, carModel, result.Records)
	fmt.Fprintf(a.out, "Stored: %d new, %d updated, %d failed | skipped pages: %d\n",
		report.Inserted, report.Updated, report.Failed, result.Skipped)
	return nil
}

func writeRecords(format, path string, records []*models.ListingRecord) error {
	w, err := storage.OpenRecordWriter(format, path)
	if err != nil {
		return err
	}
	if err := w.Write(records); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
