package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/graph"
	"github.com/hubdeck/hubdeck/internal/layout"
	"github.com/hubdeck/hubdeck/internal/metrics"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	start := time.Now()
	defer func() { metrics.RecordRedraw(time.Since(start).Seconds()) }()

	rows := []string{m.renderHeader()}
	if m.plan.Empty() {
		rows = append(rows, mutedStyle.Render("No cards in this layout."))
	} else {
		for _, n := range m.plan.Root {
			rows = append(rows, m.renderNode(n))
		}
	}
	rows = append(rows, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *Model) renderHeader() string {
	title := m.cfg.Title
	if m.plan.Title != "" {
		title = m.plan.Title
	}
	style := headerStyle
	if m.width >= 10 {
		style = style.Width(m.width - 2)
	}
	return style.Render("🏠 " + title)
}

func (m *Model) renderFooter() string {
	link := "○ reconnecting"
	if m.stream != nil && m.stream.Connected() {
		link = "● live"
	}
	hint := "r refresh · q quit"
	if len(m.slots) > 1 {
		hint = fmt.Sprintf("1-%d layouts · %s", len(m.slots), hint)
	}
	return footerStyle.Render(link + " · " + hint)
}

func (m *Model) renderNode(n layout.Node) string {
	switch n := n.(type) {
	case *layout.Entity:
		return m.renderEntityCard(n)
	case *layout.Graph:
		return m.renderGraphCard(n)
	case *layout.Horizontal:
		cols := make([]string, 0, len(n.Cards))
		for _, c := range n.Cards {
			cols = append(cols, m.renderNode(c))
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	case *layout.Vertical:
		cells := make([]string, 0, len(n.Cards))
		for _, c := range n.Cards {
			cells = append(cells, m.renderNode(c))
		}
		return lipgloss.JoinVertical(lipgloss.Left, cells...)
	}
	return ""
}

// renderEntityCard draws one entity's state. The border follows
// liveness: blue while the entity reports anything but off or
// unavailable, gray otherwise and while it is still pending.
func (m *Model) renderEntityCard(n *layout.Entity) string {
	st, ok := m.store.Lookup(n.EntityID)
	if !ok {
		body := titleStyle.Render(n.EntityID) + "\n" + mutedStyle.Render("Pending…")
		return cardStyle.BorderForeground(idleBorder).Render(body)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(n.Icon + " " + n.Title))
	b.WriteString("\n")
	b.WriteString(stateStyle.Render(strings.ToUpper(st.State)))

	if n.Secondary != "" {
		text, err := m.tmpl.Eval(n.Secondary, n.EntityID)
		style := secondaryStyle
		if err != nil {
			metrics.IncrementTemplateError()
			text = "template error: " + err.Error()
			style = errorStyle
		}
		if text != "" {
			b.WriteString("\n")
			b.WriteString(style.Render(text))
		}
	}

	border := liveBorder
	switch st.State {
	case "off", "unavailable":
		border = idleBorder
	}
	return cardStyle.BorderForeground(border).Render(b.String())
}

// renderGraphCard draws one history chart. Until the first series
// arrives the entity's current state stands in as a single point, so a
// freshly opened dashboard is not a wall of placeholders.
func (m *Model) renderGraphCard(n *layout.Graph) string {
	s, have := m.series[seriesKey(n)]
	points := s.Points
	if len(points) == 0 {
		if st, ok := m.store.Lookup(n.EntityID); ok {
			points = []entity.HistoryPoint{{
				State:       st.State,
				Attributes:  st.Attributes,
				LastUpdated: st.LastUpdated,
			}}
		}
	}

	head := titleStyle.Render("📈 " + n.Title)
	if have && s.Stale {
		head += mutedStyle.Render(" (stale)")
	}

	var body string
	if len(points) == 0 {
		body = mutedStyle.Render("Loading history...")
	} else {
		body = chartStyle.Render(graph.RenderCompact(points, graph.Options{
			Width:     n.Width,
			Height:    n.Height,
			Attribute: n.Attribute,
		}))
	}
	return cardStyle.BorderForeground(graphBorder).Render(head + "\n" + body)
}
