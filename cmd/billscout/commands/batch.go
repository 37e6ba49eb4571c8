package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/billscout/internal/output"
	"github.com/jmylchreest/billscout/internal/runner"
)

var batchCmd = &cobra.Command{
	Use:   "batch <accounts.yaml>",
	Short: "Explore every account in a file concurrently",
	Long: `Run one exploration per account listed in a YAML file. Each run gets
its own browser session; the model client, its cache and its rate limit
are shared.

The file lists accounts with label, url and optional username and
password. ${VAR} references are expanded from the environment:

  accounts:
    - label: home-electric
      url: https://portal.example.com/login
      username: me@example.com
      password: ${ELECTRIC_PASSWORD}

Reports are written as each run finishes; use --format jsonl to stream.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntP("concurrency", "c", runner.DefaultConcurrency, "runs in flight at once")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	accounts, err := runner.LoadAccounts(args[0])
	if err != nil {
		logError("%v", err)
		return err
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	r, err := newRunner(runner.WithConcurrency(concurrency))
	if err != nil {
		logError("%v", err)
		return err
	}

	w, closeOutput, err := openOutput()
	if err != nil {
		logError("%v", err)
		return err
	}

	// JSON and YAML collect every report into one document on close.
	format := output.Format(viper.GetString("format"))
	streaming := format == output.FormatJSONL || format == output.FormatText

	logInfo("Exploring %d accounts (concurrency %d)", len(accounts), concurrency)

	var failed int
	runErr := r.RunAll(ctx, accounts, func(report output.Report) error {
		if report.Status == output.StatusError {
			failed++
		}
		logInfo("  %s: %s", report.Label, summary(report))
		if err := w.Write(report); err != nil {
			return err
		}
		if streaming {
			return w.Flush()
		}
		return nil
	})
	usage.report()
	if err := closeOutput(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to write reports: %w", err)
	}
	if runErr != nil {
		logError("%v", runErr)
		return runErr
	}

	logInfo("Done: %d accounts, %d failed", len(accounts), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(accounts))
	}
	return nil
}
