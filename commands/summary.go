package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"olx-car-scraper/services"
	"olx-car-scraper/storage"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print statistics over the stored listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("car-model")
		return current.summary(cmd.Context(), query)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringP("car-model", "c", "", "only listings whose title contains this text")
}

func (a *app) summary(ctx context.Context, query string) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore(store, a.logger)

	records, err := store.List(ctx, storage.ListFilter{Query: query})
	if err != nil {
		return err
	}
	svc := services.NewInsightService(a.logger)
	svc.Print(a.out, svc.Generate(records, time.Now()))
	return nil
}
