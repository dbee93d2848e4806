package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"olx-car-scraper/services"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove or deactivate listings not seen recently",
	Long: `Delete listings whose last sighting is older than the retention window
(RETENTION_DAYS, 30 by default). With --deactivate they are kept but
marked inactive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		deactivate, _ := cmd.Flags().GetBool("deactivate")
		return current.purge(cmd.Context(), days, deactivate)
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().Int("days", 0, "retention window in days (default RETENTION_DAYS)")
	purgeCmd.Flags().Bool("deactivate", false, "mark stale listings inactive instead of deleting them")
}

func (a *app) purge(ctx context.Context, days int, deactivate bool) error {
	window := a.cfg.Retention()
	if days > 0 {
		window = time.Duration(days) * 24 * time.Hour
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore(store, a.logger)

	r := services.NewReconciler(store, a.logger)
	if deactivate {
		n, err := r.Deactivate(ctx, window)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Deactivated %d listings\n", n)
		return nil
	}
	n, err := r.Purge(ctx, window)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %d old listings\n", n)
	return nil
}
