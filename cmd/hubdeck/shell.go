package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hubdeck/hubdeck/internal/history"
	"github.com/hubdeck/hubdeck/internal/hub"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/shell"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive commander over the hub's entities",
	Long: `shell is a prompt over the hub's entities with tab completion.

  <entity>                          state summary
  <entity> full                     state with all attributes
  <entity> attribute <name> [graph] one attribute, optionally charted
  <entity> graph [begin=] [end=]    state history chart
  <entity> call <service> [k=v]     invoke a service

  refresh | status | help | exit`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("the shell requires an interactive terminal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := logger.NewLogrusAdapter(logger.WithComponent(log, "shell"))
	client := hub.NewClient(&cfg.Hub, adapter)
	catalog := shell.NewCatalog(client, &cfg.Shell, adapter)
	provider := history.NewProvider(client, nil, &cfg.History, adapter)
	executor := shell.NewExecutor(catalog, client, provider, cfg.Graph, adapter)

	model := shell.New(ctx, shell.Deps{
		Catalog:  catalog,
		Executor: executor,
		Config:   &cfg.Shell,
		Log:      adapter,
	})

	log.Info("Starting shell")
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("shell terminated: %w", err)
	}
	return nil
}
