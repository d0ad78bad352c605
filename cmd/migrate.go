package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camden-git/mediasysfaces/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	// openApp migrates on open
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Printf("Database (%s) at %s is up to date.\n", cfg.DatabaseDriver, cfg.DatabasePath)
	return nil
}
