package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.initDB(cmd)
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func (a *app) initDB(cmd *cobra.Command) error {
	fmt.Fprintln(a.out, "Creating database tables...")
	store, err := a.openStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("init-db: %w", err)
	}
	closeStore(store, a.logger)
	fmt.Fprintln(a.out, "Database tables created successfully!")
	return nil
}
