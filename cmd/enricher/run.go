package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/catalogfill/enricher/config"
	"github.com/catalogfill/enricher/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich every CSV in the input directory and write the result file",
	Long: `Loads all *.csv files from the input directory, fills "Product name", "ebay cat #" and
"ebay cat name" for rows whose product name is empty, and overwrites the output CSV.

Per-row lookup failures are logged and leave the row unchanged; the command only fails
when there is no input or the output cannot be written. Flags override configuration.`,
	RunE: runEnrich,
}

var (
	runInputDir    string
	runOutput      string
	runConcurrency int
	runPacing      time.Duration
	runAttempts    int
)

func init() {
	runCmd.Flags().StringVarP(&runInputDir, "input-dir", "i", "", "Directory holding the input *.csv files (default from io.input_dir)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output CSV path (default from io.output_path)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Maximum lookups in flight (default from enrich.max_concurrency)")
	runCmd.Flags().DurationVar(&runPacing, "pacing", 0, "Delay held after each lookup before its slot is freed (default from enrich.pacing_delay)")
	runCmd.Flags().IntVar(&runAttempts, "attempts", 0, "Attempts per candidate field (default from enrich.max_attempts)")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags copies explicitly set flags over the loaded configuration
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("input-dir") {
		cfg.IO.InputDir = runInputDir
	}
	if flags.Changed("output") {
		cfg.IO.OutputPath = runOutput
	}
	if flags.Changed("concurrency") {
		cfg.Enrich.MaxConcurrency = runConcurrency
	}
	if flags.Changed("pacing") {
		cfg.Enrich.PacingDelay = runPacing
	}
	if flags.Changed("attempts") {
		cfg.Enrich.MaxAttempts = runAttempts
	}
	return cfg.Validate()
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service.Run(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoInput) {
			logger.Error("no input files", zap.String("dir", cfg.IO.InputDir))
		}
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Warn("run interrupted, unfinished rows were written unchanged")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d rows: %d enriched, %d skipped, %d not found -> %s (%s)\n",
		report.Total, report.Enriched, report.Skipped, report.Exhausted,
		report.OutputPath, report.Duration.Round(time.Millisecond))
	return nil
}
