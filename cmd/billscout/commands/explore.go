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

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Explore one portal and extract its billing history",
	Long: `Open a portal in a headless browser, log in when credentials are
given, and explore until a billing history is found or the run's budget
is spent. One report is written to the output.

Examples:
  # Portal that is already public or uses a session-less landing page
  billscout explore -u "https://portal.example.com/dashboard"

  # Log in first; the password may come from BILLSCOUT_PASSWORD or .env
  billscout explore -u "https://portal.example.com/login" \
      --username me@example.com --label home-electric`,
	RunE: runExplore,
}

func init() {
	rootCmd.AddCommand(exploreCmd)

	flags := exploreCmd.Flags()
	flags.StringP("url", "u", "", "portal entry URL (required)")
	flags.String("username", "", "portal username")
	flags.String("password", "", "portal password (or BILLSCOUT_PASSWORD)")
	flags.String("label", "", "label for the report (default: the URL host)")

	_ = exploreCmd.MarkFlagRequired("url")
	_ = viper.BindPFlag("password", flags.Lookup("password"))
}

func runExplore(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	acct, err := accountFromFlags(cmd)
	if err != nil {
		logError("%v", err)
		return err
	}

	r, err := newRunner()
	if err != nil {
		logError("%v", err)
		return err
	}

	w, closeOutput, err := openOutput()
	if err != nil {
		logError("%v", err)
		return err
	}

	logInfo("Exploring %s", acct.URL)
	report := r.Run(ctx, acct)
	if err := w.Write(report); err != nil {
		_ = closeOutput()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := closeOutput(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	usage.report()
	logInfo("Finished: %s", summary(report))
	if report.Status == output.StatusError {
		return fmt.Errorf("run failed: %s", report.Error)
	}
	return nil
}

// accountFromFlags builds a single account from the explore flags.
func accountFromFlags(cmd *cobra.Command) (runner.Account, error) {
	flags := cmd.Flags()
	rawURL, _ := flags.GetString("url")
	username, _ := flags.GetString("username")
	label, _ := flags.GetString("label")
	return runner.NewAccount(label, rawURL, username, viper.GetString("password"))
}
