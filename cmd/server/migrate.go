package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"beacon/internal/directory/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the contacts schema in Postgres",
	Long: `Apply the contacts table and indexes. Safe to run repeatedly.

Examples:
  BEACON_STORE_DRIVER=postgres BEACON_STORE_POSTGRES_DSN=postgres://... beacon migrate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, sync, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = sync() }()

		db, err := openPostgres(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.Migrate(cmd.Context(), db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("contacts schema applied")
		return nil
	},
}
