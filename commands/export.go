package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"olx-car-scraper/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored listings as CSV, JSON or YAML",
	Long: `Export stored listings. Missing values are written as NULL in CSV and
null in JSON and YAML.

Examples:
  olx-car-scraper export --format csv -o listings.csv
  olx-car-scraper export -c "bmw e30" --format yaml --active`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var opts exportOptions
		opts.query, _ = flags.GetString("car-model")
		opts.format, _ = flags.GetString("format")
		opts.output, _ = flags.GetString("output")
		opts.activeOnly, _ = flags.GetBool("active")
		return current.export(cmd.Context(), opts)
	},
}

type exportOptions struct {
	query      string
	format     string
	output     string
	activeOnly bool
}

func init() {
	rootCmd.AddCommand(exportCmd)

	flags := exportCmd.Flags()
	flags.StringP("car-model", "c", "", "only listings whose title contains this text")
	flags.String("format", storage.FormatCSV, "output format: csv, json, yaml")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.Bool("active", false, "only active listings")
}

func (a *app) export(ctx context.Context, opts exportOptions) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore(store, a.logger)

	records, err := store.List(ctx, storage.ListFilter{Query: opts.query, ActiveOnly: opts.activeOnly})
	if err != nil {
		return err
	}

	var w storage.RecordWriter
	if opts.output == "" || opts.output == "-" {
		w, err = storage.NewRecordWriter(opts.format, a.stdout())
	} else {
		w, err = storage.OpenRecordWriter(opts.format, opts.output)
	}
	if err != nil {
		return err
	}
	if err := w.Write(records); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	a.logger.Info("[export] Wrote %d listings as %s", len(records), opts.format)
	return nil
}
