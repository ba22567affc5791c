package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/interview-progress/internal/observability"
	"github.com/jonathan/interview-progress/internal/progress"
	"github.com/jonathan/interview-progress/internal/types"
)

var (
	reportUserID     string
	reportDomain     string
	reportConfigPath string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a user's interview progress",
	Long: `Read a user's progress record from the configured store and print a
per-domain summary. With --domain, also print the next question for that
domain at the user's current difficulty.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportUserID, "user-id", "", "User ID (UUID)")
	reportCmd.Flags().StringVar(&reportDomain, "domain", "", "Also show the next question for this domain")
	reportCmd.Flags().StringVar(&reportConfigPath, "config", "", "Optional JSON config file")
	_ = reportCmd.MarkFlagRequired("user-id")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(reportUserID)
	if err != nil {
		return fmt.Errorf("invalid --user-id: %w", err)
	}
	domain := types.Domain(reportDomain)
	if reportDomain != "" && !domain.Valid() {
		return fmt.Errorf("invalid --domain %q", reportDomain)
	}

	ctx := cmd.Context()
	progressCfg, storeCfg, err := loadConfigs(reportConfigPath)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", storeCfg.Driver, err)
	}
	defer store.Close()

	svc := progress.NewService(store, serviceConfig(progressCfg))
	record, err := svc.GetProgress(ctx, userID)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintProgress(record, svc.Engine().Thresholds())
	if reportDomain == "" {
		return nil
	}

	generator, closeGenerator, err := newGenerator(ctx)
	if err != nil {
		return err
	}
	defer closeGenerator()

	question, err := generator.Generate(ctx, domain, record.DifficultyFor(domain))
	if err != nil {
		return fmt.Errorf("question generation failed: %w", err)
	}
	printer.PrintQuestion(question)
	return nil
}
