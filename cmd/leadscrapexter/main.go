// cmd/leadscrapexter/main.go - command line entry point
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/LeadScrapexter/internal/config"
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/utils"
	"github.com/valpere/LeadScrapexter/pkg/api"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const envPrefix = "LEADSCRAPEXTER"

// app carries what every command shares: flag/env values and client options
type app struct {
	v          *viper.Viper
	clientOpts []api.Option
}

func newApp(clientOpts ...api.Option) *app {
	return &app{v: viper.New(), clientOpts: clientOpts}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "leadscrapexter",
		Short: "Business contact scraper for directory sites",
		Long: `LeadScrapexter collects business contacts (name, phone, address, email,
website) from YellowPages and Manta search results, writes them to CSV files
partitioned by source and location, and merges those files into workbooks.

Examples:
  # Scrape three result pages
  leadscrapexter scrape --source yellowpages --query plumbers --location "Austin, TX" --pages 3

  # Merge everything for one source into a multi-sheet workbook
  leadscrapexter merge --pattern manta --separate-sheets

  # Write a starter configuration
  leadscrapexter template > leadscrapexter.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Config("parse flags", err)
	})

	root.PersistentFlags().StringP("config", "c", "", "configuration file (YAML)")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output and debug logging")
	root.PersistentFlags().StringP("output", "o", "", "output root directory (overrides output.root)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for _, name := range []string{"config", "verbose", "output", "log-level"} {
		_ = a.v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}

	root.AddCommand(
		a.scrapeCmd(),
		a.mergeCmd(),
		a.statsCmd(),
		a.serveCmd(),
		templateCmd(),
		validateCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig reads --config (or the defaults) and applies flag/env overrides
func (a *app) loadConfig() (*config.AppConfig, error) {
	cfg := config.DefaultConfig()
	if path := a.v.GetString("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if root := a.v.GetString("output"); root != "" {
		cfg.Output.Root = root
	}
	if level := a.v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if a.v.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Config("validate config", err)
	}
	return cfg, nil
}

// newLogger builds the configured logger. Logs go to stderr unless a file is set.
func (a *app) newLogger(cfg *config.AppConfig) (utils.Logger, func() error, error) {
	logger, closer, err := utils.NewLoggerFromConfig(cfg.Logging)
	if err != nil {
		return nil, closer, errors.Config("open log file", err)
	}
	return logger, closer, nil
}

func (a *app) verbose() bool {
	return a.v.GetBool("verbose")
}

// run executes the CLI and returns the process exit code
func run(args []string, stdout, stderr io.Writer, clientOpts ...api.Option) int {
	a := newApp(clientOpts...)
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		// configuration and usage errors are useless without their details
		kind := errors.KindOf(err)
		verbose := a.verbose() || kind == errors.KindConfig || kind == errors.KindUnknown
		service := errors.NewService().WithVerbose(verbose)
		fmt.Fprint(stderr, service.FormatErrorForCLI(err))
		return service.GetExitCode(err)
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
