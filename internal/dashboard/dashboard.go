// Package dashboard drives the live terminal dashboard: a bubbletea
// model fed by the state store, the event stream and the history
// provider. Redraws happen on a fixed tick; stream events and history
// fetches arrive as messages, so the render path never blocks on I/O.
package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/history"
	"github.com/hubdeck/hubdeck/internal/hub"
	"github.com/hubdeck/hubdeck/internal/layout"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/metrics"
	"github.com/hubdeck/hubdeck/internal/recorder"
	"github.com/hubdeck/hubdeck/internal/state"
	"github.com/hubdeck/hubdeck/internal/template"
)

// defaultTick paces redraws when no interval is configured.
const defaultTick = time.Second

// seriesRefresh is how long a fetched graph series stays fresh. The
// window's open end slides with the clock, so series are refetched on
// this cadence rather than on every redraw.
const seriesRefresh = time.Minute

// Deps carries the collaborators the dashboard reads and feeds. Stream
// must already be running; Recorder and Watcher may be nil.
type Deps struct {
	Config   *config.DashboardConfig
	Client   *hub.Client
	Stream   *hub.Stream
	Store    *state.Store
	Provider *history.Provider
	Recorder *recorder.Recorder
	Compiler *layout.Compiler
	Watcher  *layout.Watcher
	Log      logger.Logger
}

// Model is the dashboard's bubbletea model.
type Model struct {
	ctx      context.Context
	cfg      *config.DashboardConfig
	client   *hub.Client
	stream   *hub.Stream
	store    *state.Store
	tmpl     *template.Evaluator
	provider *history.Provider
	rec      *recorder.Recorder
	compiler *layout.Compiler
	watcher  *layout.Watcher
	log      logger.Logger

	slots  []string
	active int
	plan   *layout.Plan

	series    map[string]history.Series
	fetchedAt map[string]time.Time
	fetching  map[string]struct{}

	width    int
	height   int
	quitting bool
	err      error
}

type (
	tickMsg          time.Time
	streamMsg        hub.Event
	streamClosedMsg  struct{}
	watcherClosedMsg struct{}
	reloadHintMsg    string

	seedMsg struct {
		states []entity.State
		err    error
	}

	seriesMsg struct {
		key    string
		series history.Series
	}
)

// New builds the model and activates the first layout slot. The
// context bounds the seed, history and recorder calls issued by the
// model's commands.
func New(ctx context.Context, deps Deps) *Model {
	log := deps.Log
	if log == nil {
		log = logger.NewNullLogger()
	}
	m := &Model{
		ctx:       ctx,
		cfg:       deps.Config,
		client:    deps.Client,
		stream:    deps.Stream,
		store:     deps.Store,
		tmpl:      template.New(deps.Store),
		provider:  deps.Provider,
		rec:       deps.Recorder,
		compiler:  deps.Compiler,
		watcher:   deps.Watcher,
		log:       log,
		slots:     deps.Config.Layouts,
		series:    make(map[string]history.Series),
		fetchedAt: make(map[string]time.Time),
		fetching:  make(map[string]struct{}),
	}
	m.applyPlan(0)
	return m
}

// Err returns the fatal stream error that ended the loop, if any.
func (m *Model) Err() error {
	return m.err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickEvery(m.interval()),
		m.seedCmd(),
		m.waitForEvent(),
		m.waitForReload(),
	}
	cmds = append(cmds, m.dueSeriesCmds()...)
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		cmds := []tea.Cmd{tickEvery(m.interval())}
		cmds = append(cmds, m.dueSeriesCmds()...)
		return m, tea.Batch(cmds...)

	case seedMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("State seed failed, entities stay pending")
			return m, nil
		}
		m.store.Seed(msg.states)
		return m, nil

	case streamMsg:
		return m.handleEvent(hub.Event(msg))

	case streamClosedMsg:
		if err := m.stream.Err(); err != nil {
			m.err = err
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case seriesMsg:
		delete(m.fetching, msg.key)
		m.series[msg.key] = msg.series
		m.fetchedAt[msg.key] = time.Now()
		return m, nil

	case reloadHintMsg:
		cmds := []tea.Cmd{m.waitForReload()}
		if len(m.slots) > 0 && string(msg) == m.slots[m.active] {
			m.log.WithField("file", string(msg)).Info("Active layout changed on disk, reloading")
			m.applyPlan(m.active)
			cmds = append(cmds, m.seedCmd())
			cmds = append(cmds, m.dueSeriesCmds()...)
		}
		return m, tea.Batch(cmds...)

	case watcherClosedMsg:
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch {
	case key == "q" || key == "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case key == "r":
		// Force-refresh: re-seed and refetch every graph series.
		m.fetchedAt = make(map[string]time.Time)
		cmds := []tea.Cmd{m.seedCmd()}
		cmds = append(cmds, m.dueSeriesCmds()...)
		return m, tea.Batch(cmds...)

	case len(key) == 1 && key[0] >= '1' && key[0] <= '9':
		slot := int(key[0] - '1')
		if slot >= len(m.slots) {
			return m, nil
		}
		// Re-activating the current slot re-reads its file, matching
		// the keyboard-driven reload the layouts were written for.
		m.applyPlan(slot)
		cmds := []tea.Cmd{m.seedCmd()}
		cmds = append(cmds, m.dueSeriesCmds()...)
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// handleEvent applies one stream event and hands it to the recorder.
// The subscription itself is never restarted here; layout switches
// only change which identifiers the store accepts.
func (m *Model) handleEvent(ev hub.Event) (tea.Model, tea.Cmd) {
	applied := m.store.Apply(ev.EntityID, ev.NewState)
	if applied {
		metrics.IncrementEventApplied(entity.Domain(ev.EntityID))
	} else {
		metrics.IncrementEventDiscarded()
	}

	cmds := []tea.Cmd{m.waitForEvent()}
	if applied && m.rec != nil && ev.NewState != nil {
		cmds = append(cmds, m.recordCmd(ev))
	}
	return m, tea.Batch(cmds...)
}

// applyPlan compiles one slot's layout and swaps plan and watch set in
// a single step, so no redraw sees a new tree with the old watch set.
func (m *Model) applyPlan(slot int) {
	if slot < 0 || slot >= len(m.slots) {
		m.plan = &layout.Plan{Watch: layout.WatchSet{}}
		return
	}
	m.active = slot
	m.plan = m.compiler.CompileFile(m.slots[slot])
	m.store.SetWatch(m.plan.Watch.IDs())
	metrics.SetWatchedEntities(len(m.plan.Watch))
	m.log.WithFields(map[string]interface{}{
		"slot":     slot + 1,
		"file":     m.slots[slot],
		"entities": len(m.plan.Watch),
	}).Info("Dashboard layout activated")
}

func (m *Model) interval() time.Duration {
	if m.cfg.TickInterval > 0 {
		return m.cfg.TickInterval
	}
	return defaultTick
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) seedCmd() tea.Cmd {
	return func() tea.Msg {
		states, err := m.client.States(m.ctx)
		return seedMsg{states: states, err: err}
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.stream.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg(ev)
	}
}

func (m *Model) waitForReload() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	hints := m.watcher.Events()
	return func() tea.Msg {
		path, ok := <-hints
		if !ok {
			return watcherClosedMsg{}
		}
		return reloadHintMsg(path)
	}
}

func (m *Model) recordCmd(ev hub.Event) tea.Cmd {
	return func() tea.Msg {
		m.rec.Record(m.ctx, ev.EntityID, ev.NewState)
		return nil
	}
}

// dueSeriesCmds issues one fetch command per graph card whose series
// is missing or stale, skipping fetches already in flight.
func (m *Model) dueSeriesCmds() []tea.Cmd {
	var cmds []tea.Cmd
	now := time.Now()
	for _, g := range collectGraphs(m.plan.Root) {
		key := seriesKey(g)
		if _, busy := m.fetching[key]; busy {
			continue
		}
		if at, ok := m.fetchedAt[key]; ok && now.Sub(at) < seriesRefresh {
			continue
		}
		m.fetching[key] = struct{}{}
		cmds = append(cmds, m.fetchSeriesCmd(key, history.Request{
			EntityID:  g.EntityID,
			Attribute: g.Attribute,
			Begin:     g.Begin,
			End:       g.End,
		}))
	}
	return cmds
}

func (m *Model) fetchSeriesCmd(key string, req history.Request) tea.Cmd {
	return func() tea.Msg {
		s, _ := m.provider.Fetch(m.ctx, req)
		return seriesMsg{key: key, series: s}
	}
}

func seriesKey(g *layout.Graph) string {
	return g.EntityID + "\x00" + g.Attribute + "\x00" + g.Begin + "\x00" + g.End
}

func collectGraphs(nodes []layout.Node) []*layout.Graph {
	var out []*layout.Graph
	for _, n := range nodes {
		switch n := n.(type) {
		case *layout.Graph:
			out = append(out, n)
		case *layout.Horizontal:
			out = append(out, collectGraphs(n.Cards)...)
		case *layout.Vertical:
			out = append(out, collectGraphs(n.Cards)...)
		}
	}
	return out
}
