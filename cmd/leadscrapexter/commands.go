// cmd/leadscrapexter/commands.go - subcommands
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/LeadScrapexter/internal/config"
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/server"
	"github.com/valpere/LeadScrapexter/pkg/api"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// exactArgs reports a wrong argument count as a configuration error
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return errors.Config(cmd.Name(), err)
		}
		return nil
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) scrapeCmd() *cobra.Command {
	var (
		source    string
		query     string
		location  string
		pages     int
		startPage int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape search result pages into CSV files",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := types.ParseSource(source)
			if err != nil {
				return errors.Config("parse --source", err)
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			opts := append([]api.Option{api.WithLogger(logger)}, a.clientOpts...)
			client, err := api.NewClient(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.Scrape(ctx, api.Request{
				Source:    src,
				Query:     query,
				Location:  location,
				StartPage: startPage,
				MaxPages:  pages,
			})
			if err != nil {
				return err
			}
			printScrapeResult(cmd.OutOrStdout(), result, query, location, a.verbose())
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "directory site: yellowpages or manta")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search terms, e.g. \"plumbers\"")
	cmd.Flags().StringVarP(&location, "location", "l", "", "search location, e.g. \"Austin, TX\"")
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of result pages to scrape")
	cmd.Flags().IntVar(&startPage, "start-page", 1, "first result page")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func printScrapeResult(w io.Writer, result *api.ScrapeResult, query, location string, verbose bool) {
	if result.Empty() {
		// a valid outcome, distinct from a failed scrape
		fmt.Fprintf(w, "No data found: %s returned no contacts for %q", result.Source.CanonicalName(), query)
		if location != "" {
			fmt.Fprintf(w, " in %s", location)
		}
		fmt.Fprintf(w, " (%d pages checked)\n", len(result.Pages))
		return
	}

	fmt.Fprintf(w, "✓ Scraped %d contacts from %d pages of %s in %s\n",
		len(result.Records), len(result.Pages), result.Source.CanonicalName(), result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Listings: %d found, %d processed, %d failed, %d duplicates\n",
		result.Stats.ListingsFound, result.Stats.ListingsProcessed, result.Stats.ListingsFailed, result.Stats.Duplicates)

	if verbose {
		for _, page := range result.Pages {
			if page.Stats == nil {
				continue
			}
			fmt.Fprintf(w, "  Page %d: %d listings, %d new contacts  %s\n",
				page.Page, page.Stats.ListingsFound, page.Stats.NewContacts, page.URL)
		}
	}
	for _, file := range result.Files {
		fmt.Fprintf(w, "  Saved %s\n", file)
	}
}

func (a *app) mergeCmd() *cobra.Command {
	var opts output.MergeOptions

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge CSV files under the output root into an XLSX workbook",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			if opts.Pattern == "" {
				opts.Pattern = cfg.Output.MergePattern
			}
			if !cmd.Flags().Changed("separate-sheets") {
				opts.SeparateSheets = cfg.Output.SeparateSheets
			}

			merger := output.NewMerger(cfg.Output.Root, logger.WithField("component", "merger"), nil)
			result, err := merger.Merge(opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✓ Merged %d rows from %d files into %s\n", result.Rows, len(result.Files), result.OutputPath)
			for _, sheet := range result.Sheets {
				fmt.Fprintf(w, "  Sheet %-20s %d rows\n", sheet.Name, sheet.Rows)
			}
			for _, skipped := range result.Skipped {
				fmt.Fprintf(w, "  ⚠ Skipped unreadable file %s\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "only merge files whose name contains this text")
	cmd.Flags().BoolVar(&opts.SeparateSheets, "separate-sheets", false, "one sheet per source plus an All_Combined sheet")
	cmd.Flags().StringVar(&opts.OutputName, "name", "", "workbook file name or path")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count rows of the CSV files under the output root",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			stats, err := output.NewMerger(cfg.Output.Root, logger, nil).Statistics(pattern)
			if err != nil {
				return err
			}
			printStatistics(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "only count files whose name contains this text")
	return cmd
}

func printStatistics(w io.Writer, stats *output.Statistics) {
	fmt.Fprintf(w, "Files: %d\n", stats.TotalFiles)
	fmt.Fprintf(w, "Contacts: %d\n", stats.TotalRows)
	printCounts(w, "By source:", stats.BySource)
	printCounts(w, "By location:", stats.ByLocation)
	for _, skipped := range stats.Skipped {
		fmt.Fprintf(w, "⚠ Skipped unreadable file %s\n", skipped)
	}
}

func printCounts(w io.Writer, heading string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, heading)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-24s %d\n", k, counts[k])
	}
}

func (a *app) serveCmd() *cobra.Command {
	var (
		addr  string
		rps   float64
		burst int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and merge endpoints over HTTP",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			if addr == "" {
				addr = cfg.Metrics.Addr
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			opts := append([]api.Option{api.WithLogger(logger)}, a.clientOpts...)
			client, err := api.NewClient(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			defer client.Close()

			health := monitoring.NewHealthManager(version)
			for _, check := range client.HealthChecks() {
				health.RegisterCheck(check)
			}

			srv := server.New(server.Config{
				Addr:              addr,
				RequestsPerSecond: rps,
				Burst:             burst,
			}, client, health, client.Metrics(), logger.WithField("component", "server"))

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", client.OutputRoot(), addr)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default metrics.addr)")
	cmd.Flags().Float64Var(&rps, "rate", 5, "API requests per second, 0 disables limiting")
	cmd.Flags().IntVar(&burst, "burst", 10, "API request burst")
	return cmd
}

func templateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print a configuration template",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl := config.GenerateTemplate()
			if file == "" {
				return config.SaveToWriter(tpl, cmd.OutOrStdout())
			}
			if err := config.SaveToFile(tpl, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Template written to %s\n", file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "write to this file instead of stdout")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a configuration file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			result := cfg.ValidateWithDetails()
			fmt.Fprintf(w, "✓ Configuration file '%s' is valid\n", args[0])
			for _, warning := range result.Warnings {
				fmt.Fprintf(w, "  ⚠ %s\n", warning)
			}
			if len(result.Warnings) > 0 {
				for _, suggestion := range cfg.GetValidationSuggestions(result) {
					fmt.Fprintf(w, "  • %s\n", suggestion)
				}
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "LeadScrapexter %s\n", version)
			fmt.Fprintf(w, "Build time: %s\n", buildTime)
			fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
		},
	}
}
