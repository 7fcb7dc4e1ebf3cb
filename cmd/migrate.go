package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/config"
	"github.com/cmdlink/cmdlink/internal/migrate"
)

var (
	migrateConfigPath string
	migrateLegacyPath string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import bindings from the legacy mapping file",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateConfigPath, "config", "c", "", "Config file path (default ~/.cmdlink/config.json)")
	migrateCmd.Flags().StringVar(&migrateLegacyPath, "from", "", "Legacy mapping file (default ~/.cmdlink/command_mappings.json)")
}

func runMigrate(_ *cobra.Command, _ []string) error {
	provider, err := config.NewProvider(migrateConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	legacyPath := migrateLegacyPath
	if legacyPath == "" {
		legacyPath = config.LegacyMappingsPath()
	}

	rep, err := migrate.Run(provider, binding.NewStore(provider), legacyPath)
	if err != nil {
		return err
	}
	if rep.Skipped {
		fmt.Println("Nothing to migrate.")
		return nil
	}
	fmt.Printf("Migrated %d binding(s)\n", rep.Migrated)
	for _, f := range rep.Failures {
		fmt.Printf("  failed: %s\n", f)
	}
	return nil
}
