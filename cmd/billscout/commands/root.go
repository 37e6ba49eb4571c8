// Package commands implements the CLI commands for billscout.
package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "billscout",
	Short: "Find and extract billing history from utility account portals",
	Long: `Billscout drives a headless browser through a utility customer portal,
locates the billing or transaction history page and extracts dated
bill and payment amounts.

A language model is consulted for link ranking, sufficiency checks and
extraction when one is configured. Every model answer is checked against
the page, and deterministic heuristics run when the model is unavailable.

Examples:
  # Explore one portal, logging in first
  billscout explore -u "https://portal.example.com/login" \
      --username me@example.com --password "$PORTAL_PASSWORD"

  # Run every account in a file, two at a time
  billscout batch accounts.yaml -c 2 --format jsonl

  # Score a saved page without a browser
  billscout score history.html`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
			JSON:  viper.GetBool("log_json"),
			Level: viper.GetString("log_level"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.String("config", "", "config file (default $HOME/.billscout.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "suppress progress output")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai, openrouter, ollama (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.Bool("no-oracle", false, "run on heuristics only, without a language model")
	flags.Int("oracle-rate", defaults.OracleRatePerMinute, "max model calls per minute across all runs (0=unlimited)")

	// Engine settings
	flags.Duration("time-budget", defaults.TimeBudget, "wall-clock budget per run")
	flags.Int("max-visits", defaults.MaxVisits, "max pages visited per run")
	flags.Int("early-stop", defaults.EarlyStopScore, "page score that ends exploration when the page yields data")
	flags.String("max-html", "15KB", "max page content sent to the model (e.g., 15KB, 64KB)")
	flags.String("collapse", string(defaults.MonthlyCollapse), "monthly collapse: latest, off")
	flags.String("min-amount", defaults.MinAmount.String(), "smallest plausible bill amount")
	flags.String("max-amount", defaults.MaxAmount.String(), "largest plausible bill amount")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml, text")

	// Browser settings
	flags.Bool("stealth", false, "enable anti-bot detection evasion")
	flags.Bool("headful", false, "show the browser window")
	flags.Duration("nav-timeout", 30*time.Second, "page load timeout")
	flags.String("chrome", "", "path or name of the Chrome binary (env: BILLSCOUT_CHROME)")

	for _, name := range []string{
		"config", "debug", "quiet", "log-json", "log-level",
		"provider", "model", "api-key", "base-url", "no-oracle", "oracle-rate",
		"time-budget", "max-visits", "early-stop", "max-html", "collapse", "min-amount", "max-amount",
		"output", "format", "stealth", "headful", "nav-timeout", "chrome",
	} {
		_ = viper.BindPFlag(viperKey(name), flags.Lookup(name))
	}
}

func initConfig() {
	// Credentials usually live in .env; a missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logError("failed to load .env: %v", err)
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".billscout")
		viper.SetConfigType("yaml")
	}

	// Environment variables: BILLSCOUT_LOG_LEVEL, BILLSCOUT_PROVIDER, ...
	viper.SetEnvPrefix("BILLSCOUT")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// viperKey maps a flag name to its config key: "max-visits" -> "max_visits".
func viperKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
