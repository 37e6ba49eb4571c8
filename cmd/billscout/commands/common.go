package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/jmylchreest/billscout/cmd/billscout/browser"
	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/oracle"
	"github.com/jmylchreest/billscout/internal/output"
	"github.com/jmylchreest/billscout/internal/runner"
	"github.com/jmylchreest/billscout/pkg/llm"
)

// buildConfig assembles the engine config from flags, config file and env.
func buildConfig() (config.Config, error) {
	maxHTML, err := humanize.ParseBytes(viper.GetString("max_html"))
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid max-html: %w", err)
	}
	minAmount, err := decimal.NewFromString(viper.GetString("min_amount"))
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid min-amount: %w", err)
	}
	maxAmount, err := decimal.NewFromString(viper.GetString("max_amount"))
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid max-amount: %w", err)
	}

	cfg := config.New(
		config.WithTimeBudget(viper.GetDuration("time_budget")),
		config.WithMaxVisits(viper.GetInt("max_visits")),
		config.WithEarlyStopScore(viper.GetInt("early_stop")),
		config.WithMaxContentChars(int(maxHTML)),
		config.WithMonthlyCollapse(config.CollapseMode(viper.GetString("collapse"))),
		config.WithAmountBand(minAmount, maxAmount),
		config.WithOracleRate(viper.GetInt("oracle_rate")),
	)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// usage tallies model calls for the current command.
var usage = &usageTally{}

// buildOracle creates the model client shared by every run. It returns a
// nil Asker when the oracle is disabled.
func buildOracle(cfg config.Config) (oracle.Asker, error) {
	if viper.GetBool("no_oracle") {
		logger.Info("oracle disabled, using heuristics only")
		return nil, nil
	}

	providerName := viper.GetString("provider")
	apiKey := viper.GetString("api_key")
	if providerName == "" {
		var detected string
		providerName, detected = llm.DetectProvider()
		if apiKey == "" {
			apiKey = detected
		}
	} else if apiKey == "" {
		apiKey = llm.APIKeyFromEnv(providerName)
	}

	model := viper.GetString("model")
	if model == "" {
		model = llm.GetDefaultModel(providerName)
	}

	pcfg := llm.DefaultProviderConfig()
	pcfg.APIKey = apiKey
	pcfg.BaseURL = viper.GetString("base_url")
	pcfg.Model = model
	pcfg.Timeout = cfg.OracleTimeout
	pcfg.AppTitle = "billscout"

	provider, err := llm.NewProvider(providerName, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerName, err)
	}

	logger.Debug("oracle configured", "provider", providerName, "model", model)
	return oracle.New(provider, cfg, oracle.WithObserver(usage)), nil
}

// browserConfig returns the session settings from flags.
func browserConfig(cfg config.Config) browser.Config {
	bcfg := browser.DefaultConfig(cfg)
	bcfg.Stealth = viper.GetBool("stealth")
	bcfg.Headless = !viper.GetBool("headful")
	bcfg.ChromePath = viper.GetString("chrome")
	if d := viper.GetDuration("nav_timeout"); d > 0 {
		bcfg.NavTimeout = d
	}
	return bcfg
}

// sessionFactory opens one chromedp session per run.
func sessionFactory(bcfg browser.Config) runner.SessionFactory {
	return func(ctx context.Context) (runner.Session, error) {
		s, err := browser.Open(ctx, bcfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// newRunner wires config, oracle and browser into a Runner.
func newRunner(opts ...runner.Option) (*runner.Runner, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	asker, err := buildOracle(cfg)
	if err != nil {
		return nil, err
	}
	return runner.New(cfg, asker, sessionFactory(browserConfig(cfg)), opts...), nil
}

// openOutput creates the report writer for the --output and --format flags.
// The returned close func flushes the writer and closes any file.
func openOutput() (output.Writer, func() error, error) {
	format, err := output.ParseFormat(viper.GetString("format"))
	if err != nil {
		return nil, nil, err
	}

	var dst io.Writer = os.Stdout
	var file *os.File
	if path := viper.GetString("output"); path != "" {
		file, err = os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		dst = file
	}

	w, err := output.NewWriter(dst, format)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, nil, err
	}

	closeFn := func() error {
		werr := w.Close()
		if file != nil {
			if err := file.Close(); err != nil && werr == nil {
				werr = err
			}
		}
		return werr
	}
	return w, closeFn, nil
}

// summary is a one-line description of a report for progress output.
func summary(r output.Report) string {
	switch r.Status {
	case output.StatusOK:
		s := fmt.Sprintf("%s via %s, %s visited",
			english.Plural(len(r.Records), "record", "records"), r.Strategy,
			english.Plural(r.Visited, "page", "pages"))
		if r.Current != nil {
			s += fmt.Sprintf(", current bill %s on %s", r.Current.Amount, r.Current.Date)
		}
		return s
	case output.StatusError:
		return fmt.Sprintf("failed: %s", r.Error)
	default:
		return fmt.Sprintf("no data: %s", r.Reason)
	}
}
