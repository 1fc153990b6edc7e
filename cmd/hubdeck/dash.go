package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hubdeck/hubdeck/internal/dashboard"
	"github.com/hubdeck/hubdeck/internal/health"
	"github.com/hubdeck/hubdeck/internal/history"
	"github.com/hubdeck/hubdeck/internal/hub"
	"github.com/hubdeck/hubdeck/internal/layout"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/recorder"
	"github.com/hubdeck/hubdeck/internal/server"
	"github.com/hubdeck/hubdeck/internal/state"
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Live dashboard driven by YAML layouts",
	Long: `dash renders the configured dashboard layouts full screen and keeps
them current from the hub's event stream.

Keys:
  1-9   switch to the numbered layout slot
  r     force refresh (re-seed states, refetch graphs)
  q     quit`,
	RunE: runDash,
}

func init() {
	rootCmd.AddCommand(dashCmd)
}

func runDash(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("the dashboard requires an interactive terminal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := logger.NewLogrusAdapter(logger.WithComponent(log, "dash"))
	client := hub.NewClient(&cfg.Hub, adapter)
	store := state.NewStore(adapter)
	stream := hub.NewStream(&cfg.Hub, &cfg.Stream, adapter)

	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		redisClient := recorder.NewRedisClient(&cfg.Recorder)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Recorder redis unreachable, keeping the in-memory ring only")
			redisClient.Close()
			redisClient = nil
		}
		rec = recorder.New(&cfg.Recorder, redisClient, adapter)
		defer rec.Close()
	}

	var fallback history.Fallback
	if rec != nil {
		fallback = rec
	}
	provider := history.NewProvider(client, fallback, &cfg.History, adapter)
	compiler := layout.NewCompiler(layout.Defaults{GraphBegin: cfg.History.DefaultLookback}, adapter)

	var watcher *layout.Watcher
	if cfg.Dashboard.HotReload && len(cfg.Dashboard.Layouts) > 0 {
		watcher, err = layout.NewWatcher(cfg.Dashboard.Layouts, adapter)
		if err != nil {
			log.WithError(err).Warn("Layout watcher unavailable, hot reload disabled")
			watcher = nil
		} else {
			defer watcher.Close()
		}
	}

	var wg sync.WaitGroup

	if cfg.Server.Enabled {
		mgr := health.NewManager(adapter)
		mgr.Register(health.NewHubChecker(client))
		mgr.Register(health.NewStreamChecker(stream))
		if rec != nil {
			mgr.Register(health.NewRecorderChecker(rec))
		}
		srv := server.New(&cfg.Server, &cfg.Metrics, log, mgr, store)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				log.WithError(err).Error("Debug server failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := stream.Run(ctx); err != nil {
			log.WithError(err).Error("Event stream failed")
		}
	}()

	model := dashboard.New(ctx, dashboard.Deps{
		Config:   &cfg.Dashboard,
		Client:   client,
		Stream:   stream,
		Store:    store,
		Provider: provider,
		Recorder: rec,
		Compiler: compiler,
		Watcher:  watcher,
		Log:      adapter,
	})

	log.WithField("layouts", len(cfg.Dashboard.Layouts)).Info("Starting dashboard")
	_, runErr := tea.NewProgram(model, tea.WithAltScreen()).Run()

	stop()
	wg.Wait()

	if runErr != nil {
		return fmt.Errorf("dashboard terminated: %w", runErr)
	}
	return model.Err()
}
