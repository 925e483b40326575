package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yourorg/ssidmap/internal/config"
	"github.com/yourorg/ssidmap/internal/logging"
)

const defaultConfigContent = `lookup:
  base_url: "https://api.wigle.net/api/v2/network/search"
  # Leave both empty to run in mock mode. WIGLE_API_NAME and WIGLE_API_TOKEN
  # override these.
  api_name: ""
  api_token: ""
  timeout: 10s
  delay: 2.5s
  results_per_page: 1

cache:
  backend: "json"
  path: ""

data:
  dir: "data"
  maps_dir: ""
  logs_dir: ""

output:
  csv: ""
  map: ""
  anonymise: false

server:
  host: "127.0.0.1"
  port: 3000

log:
  level: "info"
  format: "text"
  file: ""
  max_size_mb: 10
  max_backups: 3
`

func main() {
	a := &app{}
	if err := a.execute(newRootCmd(a)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs after config is loaded.
type app struct {
	cfgPath string
	verbose bool
	debug   bool

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ssidmap",
		Short:         "Extract SSIDs from captures and map their approximate locations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug output")

	root.AddCommand(newInitCmd())
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newExtractCmd(a))
	root.AddCommand(newCacheCmd(a))
	root.AddCommand(newLogsCmd(a))
	root.AddCommand(newMapsCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newCleanupCmd(a))
	root.AddCommand(newOverviewCmd(a))
	root.AddCommand(newBrowseCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// execute runs root and closes the log sink whether or not the command failed.
func (a *app) execute(root *cobra.Command) error {
	defer a.close()
	return root.Execute()
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
		a.closer = nil
	}
}

// load reads config and builds the logger. Subcommands call it first.
func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	switch {
	case a.debug:
		cfg.Log.Level = "debug"
	case a.verbose:
		cfg.Log.Level = "info"
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.cfg, a.logger, a.closer = cfg, logger, closer
	return nil
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.ssidmap and write the default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, err := config.DefaultPath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(cfgFile), 0o755); err != nil {
				return err
			}

			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(defaultConfigContent), 0o600); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "set lookup.api_name and lookup.api_token in", cfgFile, "to enable live lookups")
			return nil
		},
	}
}
