// hubdeck is a terminal client family for a home automation hub: a
// live dashboard, an interactive commander shell, an assist
// conversation client and one-shot state/call helpers, all fed by the
// hub's REST and websocket APIs.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hubdeck",
	Short: "Terminal clients for your home automation hub",
	Long: `hubdeck talks to a home automation hub over its REST and websocket
APIs and presents the hub in the terminal.

  hubdeck dash     live dashboard driven by YAML layouts
  hubdeck shell    interactive commander with completion
  hubdeck assist   converse with the hub's assist pipeline
  hubdeck state    print one entity's state
  hubdeck call     invoke a service on an entity

Configuration is read from --config, ./hubdeck.yaml,
~/.config/hubdeck/hubdeck.yaml or /etc/hubdeck/hubdeck.yaml, with
HUBDECK_* environment overrides.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")
}

// setup loads configuration and builds the process logger. Every
// subcommand that talks to the hub starts here.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := requireHub(cfg); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.WithField("version", version.GetInfo().Short()).Debug("Configuration loaded")
	return cfg, log, nil
}

// requireHub rejects a configuration that cannot reach a hub. Host and
// token are allowed to be absent at load time so help and version run
// without a config file.
func requireHub(cfg *config.Config) error {
	if cfg.Hub.Host == "" {
		return fmt.Errorf("no hub host configured (set hub.host or HUBDECK_HUB_HOST)")
	}
	if cfg.Hub.Token == "" {
		return fmt.Errorf("no hub token configured (set hub.token or HUBDECK_HUB_TOKEN)")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
