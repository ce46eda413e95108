package cli

import (
	"fmt"

	"github.com/davarch/ci-board/internal/infrastructure/config"
	"github.com/davarch/ci-board/internal/infrastructure/store_sqlite"
	"github.com/spf13/cobra"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		store, err := store_sqlite.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if !migrateStatusOnly {
			if err := store.Migrate(); err != nil {
				return err
			}
		}

		version, dirty, err := store.MigrationVersion()
		if err != nil {
			return err
		}

		fmt.Printf("schema version: %d (dirty: %v)\n", version, dirty)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "print the schema version without migrating")

	rootCmd.AddCommand(migrateCmd)
}
