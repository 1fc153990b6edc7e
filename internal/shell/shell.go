package shell

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/logger"
)

const (
	prompt = "hub> "

	// maxTranscript bounds the scrollback kept in memory.
	maxTranscript = 400

	// maxMenu is how many suggestions the menu shows at once.
	maxMenu = 6

	// maxHistory bounds both the in-memory command history and how much
	// of the history file is loaded back.
	maxHistory = 500
)

// Deps carries the shell's collaborators.
type Deps struct {
	Catalog  *Catalog
	Executor *Executor
	Config   *config.ShellConfig
	Log      logger.Logger
}

// Model is the commander's bubbletea model: a prompt with tab
// completion over the catalog, a scrollback transcript and recallable
// command history. Commands run asynchronously so the prompt never
// freezes on a slow hub.
type Model struct {
	ctx     context.Context
	catalog *Catalog
	exec    *Executor
	cfg     *config.ShellConfig
	log     logger.Logger

	input      textinput.Model
	transcript []string

	history []string
	histIdx int
	draft   string

	suggestions []Suggestion
	sel         int

	busy       bool
	refreshing bool
	refreshErr error

	width    int
	height   int
	quitting bool
}

type (
	resultMsg  Result
	refreshMsg struct{ err error }
)

// New builds the model. Earlier sessions' commands are loaded from the
// configured history file when one is set.
func New(ctx context.Context, deps Deps) *Model {
	log := deps.Log
	if log == nil {
		log = logger.NewNullLogger()
	}

	ti := textinput.New()
	ti.Prompt = prompt
	ti.PromptStyle = promptStyle
	ti.CharLimit = 200
	ti.Focus()

	m := &Model{
		ctx:     ctx,
		catalog: deps.Catalog,
		exec:    deps.Executor,
		cfg:     deps.Config,
		log:     log,
		input:   ti,
	}
	if deps.Config.HistoryFile != "" {
		m.history = loadHistory(deps.Config.HistoryFile)
	}
	m.histIdx = len(m.history)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refreshCmd())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - len(prompt) - 2
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case resultMsg:
		m.busy = false
		if msg.Quit {
			m.quitting = true
			return m, tea.Quit
		}
		if msg.Output != "" {
			m.append(strings.Split(msg.Output, "\n")...)
			m.append("")
		}
		return m, nil

	case refreshMsg:
		m.refreshing = false
		m.refreshErr = msg.err
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("Catalog refresh failed")
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+d":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+c":
		// Clears the line, does not quit; exit and ctrl+d do that.
		m.input.SetValue("")
		m.suggestions = nil
		return m, nil

	case "esc":
		m.suggestions = nil
		return m, nil

	case "enter":
		if m.busy {
			return m, nil
		}
		return m.submit()

	case "tab":
		if m.busy {
			return m, nil
		}
		return m.completeNext(1)

	case "shift+tab":
		return m.completeNext(-1)

	case "up":
		if len(m.suggestions) > 0 {
			return m.completeNext(-1)
		}
		m.recall(-1)
		return m, nil

	case "down":
		if len(m.suggestions) > 0 {
			return m.completeNext(1)
		}
		m.recall(1)
		return m, nil
	}

	// Plain typing invalidates the open menu.
	m.suggestions = nil
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs the current line. The echo lands in the transcript
// immediately; the output follows as a resultMsg.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.suggestions = nil
	m.input.SetValue("")
	if line == "" {
		return m, nil
	}

	m.append(promptStyle.Render(prompt) + line)
	m.record(line)
	m.busy = true

	cmds := []tea.Cmd{m.execCmd(line)}
	if cmd := m.maybeRefresh(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// completeNext opens the suggestion menu, or moves the selection by
// step when it is already open. The selected candidate replaces the
// word being completed right away, readline style.
func (m *Model) completeNext(step int) (tea.Model, tea.Cmd) {
	if len(m.suggestions) == 0 {
		m.suggestions = m.catalog.Complete(m.input.Value())
		m.sel = 0
		if len(m.suggestions) == 0 {
			return m, m.maybeRefresh()
		}
	} else {
		m.sel = (m.sel + step + len(m.suggestions)) % len(m.suggestions)
	}

	m.applySuggestion(m.suggestions[m.sel])
	if len(m.suggestions) == 1 {
		m.suggestions = nil
	}
	return m, m.maybeRefresh()
}

// applySuggestion swaps the word under completion for the candidate.
func (m *Model) applySuggestion(s Suggestion) {
	line := m.input.Value()
	words := strings.Fields(line)
	trailing := line == "" || strings.HasSuffix(line, " ")

	if trailing || len(words) == 0 {
		words = append(words, s.Value)
	} else {
		words[len(words)-1] = s.Value
	}
	m.input.SetValue(strings.Join(words, " "))
	m.input.CursorEnd()
}

// recall moves through command history; direction -1 is older, +1 is
// newer. The line being typed is parked as a draft and restored when
// browsing runs past the newest entry.
func (m *Model) recall(direction int) {
	if len(m.history) == 0 {
		return
	}
	next := m.histIdx + direction
	if next < 0 || next > len(m.history) {
		return
	}
	if m.histIdx == len(m.history) {
		m.draft = m.input.Value()
	}
	m.histIdx = next
	if next == len(m.history) {
		m.input.SetValue(m.draft)
	} else {
		m.input.SetValue(m.history[next])
	}
	m.input.CursorEnd()
}

func (m *Model) record(line string) {
	m.history = append(m.history, line)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.histIdx = len(m.history)
	m.draft = ""
	if m.cfg.HistoryFile != "" {
		appendHistory(m.cfg.HistoryFile, line, m.log)
	}
}

func (m *Model) append(lines ...string) {
	m.transcript = append(m.transcript, lines...)
	if len(m.transcript) > maxTranscript {
		m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
	}
}

func (m *Model) execCmd(line string) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(m.exec.Execute(m.ctx, line))
	}
}

// maybeRefresh kicks an async catalog refresh when the cache has gone
// stale. At most one refresh runs at a time.
func (m *Model) maybeRefresh() tea.Cmd {
	if m.refreshing || !m.catalog.Stale() {
		return nil
	}
	return m.refreshCmd()
}

func (m *Model) refreshCmd() tea.Cmd {
	m.refreshing = true
	return func() tea.Msg {
		return refreshMsg{err: m.catalog.Refresh(m.ctx)}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	menu := m.renderMenu()
	rows := []string{titleStyle.Render("hubdeck shell"), ""}
	rows = append(rows, m.visibleTranscript(len(menu))...)

	if m.busy {
		rows = append(rows, promptStyle.Render(prompt)+mutedStyle.Render("… running"))
	} else {
		rows = append(rows, m.input.View())
	}
	rows = append(rows, menu...)
	rows = append(rows, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// visibleTranscript returns the tail of the scrollback that fits above
// the prompt, menu and footer.
func (m *Model) visibleTranscript(menuLines int) []string {
	avail := 20
	if m.height > 0 {
		avail = m.height - menuLines - 4
	}
	if avail < 1 {
		avail = 1
	}
	if len(m.transcript) <= avail {
		return m.transcript
	}
	return m.transcript[len(m.transcript)-avail:]
}

func (m *Model) renderMenu() []string {
	if len(m.suggestions) == 0 {
		return nil
	}
	shown := m.suggestions
	if len(shown) > maxMenu {
		shown = shown[:maxMenu]
	}
	rows := make([]string, 0, len(shown)+1)
	for i, s := range shown {
		style := suggestStyle
		if i == m.sel {
			style = suggestSelStyle
		}
		rows = append(rows, "  "+style.Render(s.Display))
	}
	if extra := len(m.suggestions) - len(shown); extra > 0 {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("  … %d more", extra)))
	}
	return rows
}

func (m *Model) renderFooter() string {
	entities, domains := m.catalog.Counts()
	status := fmt.Sprintf("%d entities · %d domains", entities, domains)
	if m.refreshing {
		status += " · refreshing…"
	} else if m.refreshErr != nil {
		status = warnStyle.Render("catalog refresh failed") + " · " + status
	}
	return footerStyle.Render(status + " · tab complete · ctrl+d quit")
}

// loadHistory reads back the newest command lines from the history
// file. A missing or unreadable file yields an empty history.
func loadHistory(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > maxHistory {
		lines = lines[len(lines)-maxHistory:]
	}
	return lines
}

// appendHistory writes one executed line to the history file,
// best-effort.
func appendHistory(path, line string, log logger.Logger) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		log.WithError(err).Debug("Cannot open shell history file")
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		log.WithError(err).Debug("Cannot append to shell history file")
	}
}
