package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/history"
	"github.com/hubdeck/hubdeck/internal/layout"
)

func seedTemp(m *Model, stateVal string) {
	m.store.Seed([]entity.State{{
		ID:    "sensor.temp",
		State: stateVal,
		Attributes: map[string]entity.Value{
			"friendly_name":       entity.String("Temperature"),
			"unit_of_measurement": entity.String("°C"),
		},
		LastUpdated: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}})
}

func TestViewShowsSeededStateAndTemplate(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", livingRoomLayout))
	seedTemp(m, "21.5")

	out := m.View()
	assert.Contains(t, out, "🏠 Living Room")
	assert.Contains(t, out, "🌡 Temperature")
	assert.Contains(t, out, "21.5 °C")
}

func TestViewPendingCard(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", livingRoomLayout))

	out := m.View()
	assert.Contains(t, out, "light.desk")
	assert.Contains(t, out, "Pending…")
}

func TestViewUppercasesState(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", livingRoomLayout))
	m.store.Seed([]entity.State{{ID: "light.desk", State: "on"}})

	out := m.View()
	assert.Contains(t, out, "ON")

	m.store.Apply("light.desk", &entity.State{ID: "light.desk", State: "off"})
	assert.Contains(t, m.View(), "OFF")
}

func TestViewTemplateErrorInline(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", `
title: Broken
layout:
  - entity: sensor.temp
    title: Temperature
    secondary_info: "{{ 'abc }}"
`))
	seedTemp(m, "21.5")

	out := m.View()
	assert.Contains(t, out, "template error:")
	// The rest of the card still renders.
	assert.Contains(t, out, "21.5")
}

func TestViewGraphLoadingPlaceholder(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", climateLayout))

	out := m.View()
	assert.Contains(t, out, "📈 Temperature")
	assert.Contains(t, out, "Loading history...")
}

func TestViewGraphFallsBackToCurrentState(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", climateLayout))
	seedTemp(m, "21.5")

	out := m.View()
	assert.NotContains(t, out, "Loading history...")
	assert.Contains(t, out, "21.5")
}

func TestViewGraphRendersSeries(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", climateLayout))
	g := m.plan.Root[0].(*layout.Graph)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	points := []entity.HistoryPoint{
		{State: "20", LastUpdated: base},
		{State: "25", LastUpdated: base.Add(30 * time.Minute)},
		{State: "22.5", LastUpdated: base.Add(time.Hour)},
	}
	_, _ = m.Update(seriesMsg{key: seriesKey(g), series: history.Series{
		Points: points,
		Source: history.SourceHub,
	}})

	out := m.View()
	assert.Contains(t, out, "25.0")
	assert.Contains(t, out, "20.0")
	assert.NotContains(t, out, "(stale)")
}

func TestViewGraphMarksStaleSeries(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", climateLayout))
	g := m.plan.Root[0].(*layout.Graph)

	_, _ = m.Update(seriesMsg{key: seriesKey(g), series: history.Series{
		Points: []entity.HistoryPoint{{State: "21", LastUpdated: time.Now()}},
		Source: history.SourceCache,
		Stale:  true,
	}})

	assert.Contains(t, m.View(), "(stale)")
}

func TestViewHorizontalStackSharesRows(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", `
title: Side by Side
layout:
  - type: horizontal-stack
    cards:
      - entity: sensor.outside
        title: Outside
      - entity: sensor.inside
        title: Inside
`))

	out := m.View()
	var shared bool
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Outside") && strings.Contains(line, "Inside") {
			shared = true
			break
		}
	}
	assert.True(t, shared, "stacked cards should render on the same rows")
}

func TestViewEmptyLayout(t *testing.T) {
	m := newTestModel(t)

	out := m.View()
	assert.Contains(t, out, "🏠 hubdeck")
	assert.Contains(t, out, "No cards in this layout.")
}

func TestViewFooter(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t,
		writeLayout(t, dir, "one.yaml", livingRoomLayout),
		writeLayout(t, dir, "two.yaml", climateLayout),
	)

	out := m.View()
	assert.Contains(t, out, "reconnecting")
	assert.Contains(t, out, "1-2 layouts")
	assert.Contains(t, out, "q quit")
}

func TestViewQuittingIsBlank(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, writeLayout(t, dir, "one.yaml", livingRoomLayout))
	m.quitting = true

	assert.Empty(t, m.View())
}
