// Package cmd defines and implements the CLI commands for the programs executable.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

type crawlFlags struct {
	sources  []string
	maxPages int
	details  bool
	render   bool
	targetID string
	limit    int
}

// newCrawlCmd creates the 'crawl' subcommand, which runs one pass per requested source and prints the results.
func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a crawl pass over one or more sources",
		Long: `Walks the listing pages of each source, fetches every announced program's
detail page, enriches the record, and upserts it. Unset flags fall back to
the configured defaults. Results are printed as JSON keyed by source.`,
		Example: `  programs crawl --source kstartup --max-pages 3
  programs crawl --source bizinfo --target-id PBLN_000000000100000 --render`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, flags)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&flags.sources, "source", nil, "sources to crawl (kstartup, bizinfo); default all")
	f.IntVar(&flags.maxPages, "max-pages", 0, "listing pages to walk per source")
	f.BoolVar(&flags.details, "details", true, "fetch and parse detail pages")
	f.BoolVar(&flags.render, "render", false, "capture detail pages in a browser when critical fields are missing")
	f.StringVar(&flags.targetID, "target-id", "", "crawl one program by its source id (requires exactly one --source)")
	f.IntVar(&flags.limit, "limit", 0, "stop after this many items per source (0 = no limit)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, flags *crawlFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	sources, err := parseSources(flags.sources)
	if err != nil {
		return err
	}

	opts := appInstance.GetConfig().DefaultCrawlOptions()
	f := cmd.Flags()
	if f.Changed("max-pages") {
		if flags.maxPages <= 0 {
			return fmt.Errorf("--max-pages must be > 0")
		}
		opts.MaxPages = flags.maxPages
	}
	if f.Changed("details") {
		opts.FetchDetails = flags.details
	}
	if f.Changed("render") {
		opts.EnableRendering = flags.render
	}
	if f.Changed("limit") {
		if flags.limit < 0 {
			return fmt.Errorf("--limit must be >= 0")
		}
		opts.Limit = flags.limit
	}
	opts.TargetID = strings.TrimSpace(flags.targetID)
	if opts.TargetID != "" && len(sources) != 1 {
		return fmt.Errorf("--target-id requires exactly one --source")
	}

	logger := appInstance.GetLogger()
	logger.Info("crawl started",
		zap.Any("sources", sources),
		zap.Int("max_pages", opts.MaxPages),
		zap.Bool("fetch_details", opts.FetchDetails),
		zap.Bool("enable_rendering", opts.EnableRendering),
	)
	results := appInstance.CrawlRunner().CrawlAll(cmd.Context(), sources, opts)
	if err := printJSON(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	var failed []string
	for _, source := range sources {
		if res, ok := results[source]; ok && !res.Success {
			failed = append(failed, string(source))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("crawl failed for %s", strings.Join(failed, ", "))
	}
	logger.Info("crawl command finished")
	return nil
}

func parseSources(raw []string) ([]crawler.Source, error) {
	if len(raw) == 0 {
		return crawler.Sources(), nil
	}
	sources := make([]crawler.Source, 0, len(raw))
	for _, r := range raw {
		source, err := crawler.ParseSource(strings.TrimSpace(r))
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
