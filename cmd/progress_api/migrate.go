package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/interview-progress/internal/config"
)

var migrateConfigPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the progress schema",
	Long:  `Connect to the configured store and create the progress tables if they do not exist.`,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateConfigPath, "config", "", "Optional JSON config file")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, storeCfg, err := loadConfigs(migrateConfigPath)
	if err != nil {
		return err
	}
	if storeCfg.Driver == config.DriverMemory {
		return fmt.Errorf("the memory store has no schema to migrate")
	}

	store, err := openStore(cmd.Context(), storeCfg)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	store.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s)\n", storeCfg.Driver)
	return nil
}
