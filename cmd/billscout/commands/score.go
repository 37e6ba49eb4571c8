package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/billscout/internal/extractor"
	"github.com/jmylchreest/billscout/internal/orchestrator"
	"github.com/jmylchreest/billscout/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score <page.html>",
	Short: "Score a saved page and show what would be extracted",
	Long: `Score a page saved from a portal and run the offline extraction
strategies over it. No browser or model is used, which makes this the
quickest way to tune thresholds and keyword lists.

Use "-" to read the page from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("url", "", "URL the page was saved from")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		logError("%v", err)
		return err
	}

	content, err := readPage(args[0])
	if err != nil {
		logError("%v", err)
		return err
	}
	pageURL, _ := cmd.Flags().GetString("url")

	s := scorer.New(cfg, nil)
	b := s.Breakdown(content)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "page:     %s (%s)\n", args[0], humanize.Bytes(uint64(len(content))))
	fmt.Fprintf(out, "score:    %d\n", b.Total)
	fmt.Fprintf(out, "  keywords   %3d  (%d hits)\n", b.Keywords, b.KeywordHits)
	fmt.Fprintf(out, "  pairs      %3d  (%d date/amount pairs)\n", b.PairPoints, b.Pairs)
	fmt.Fprintf(out, "  structure  %3d\n", b.Structure)
	fmt.Fprintf(out, "  recency    %3d\n", b.Recency)
	fmt.Fprintf(out, "billing:  %t\n", s.IsBillingPage(content))
	fmt.Fprintf(out, "wall:     %t\n", pageURL != "" && s.RegistrationWall(pageURL, content))

	// Without a session or model only the markup and dashboard paths run.
	orch := orchestrator.New(cfg, extractor.New(cfg, nil), nil)
	h, err := orch.ExtractBest(context.Background(), orchestrator.Page{URL: pageURL, Content: content})
	if err != nil {
		fmt.Fprintf(out, "extract:  %v\n", err)
		return nil
	}
	if !h.Meaningful() {
		fmt.Fprintf(out, "extract:  nothing found (%s)\n", h.Reason)
		return nil
	}

	fmt.Fprintf(out, "extract:  %s via %s\n", english.Plural(len(h.Records), "record", "records"), h.Strategy)
	if h.AccountNumber != "" {
		fmt.Fprintf(out, "account:  %s\n", h.AccountNumber)
	}
	if h.Current != nil {
		fmt.Fprintf(out, "current:  %s\n", h.Current)
	}
	if h.Previous != nil {
		fmt.Fprintf(out, "previous: %s\n", h.Previous)
	}
	for _, r := range h.Records {
		fmt.Fprintf(out, "  %s\n", r)
	}
	return nil
}

func readPage(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return string(data), nil
}
