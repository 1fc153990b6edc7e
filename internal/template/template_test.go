package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdeck/hubdeck/internal/entity"
)

type staticStates map[string]*entity.State

func (s staticStates) Lookup(id string) (*entity.State, bool) {
	st, ok := s[id]
	if !ok || st == nil {
		return nil, false
	}
	return st, true
}

var _ StateReader = staticStates{}

func testStates() staticStates {
	return staticStates{
		"sensor.outside_temp": {
			ID:    "sensor.outside_temp",
			State: "21.5",
			Attributes: map[string]entity.Value{
				"unit_of_measurement": entity.String("°C"),
				"friendly_name":       entity.String("Outside"),
				"battery":             entity.Number(87),
				"calibrated":          entity.Bool(true),
			},
		},
		"light.kitchen": {
			ID:    "light.kitchen",
			State: "on",
			Attributes: map[string]entity.Value{
				"brightness": entity.Number(180),
			},
		},
		"climate.living": {
			ID:    "climate.living",
			State: "heat",
			Attributes: map[string]entity.Value{
				"current_temperature": entity.Number(21.5),
				"hvac_modes":          entity.String(`["heat","cool"]`),
			},
		},
	}
}

func TestRender(t *testing.T) {
	ev := New(testStates())

	tests := []struct {
		name     string
		template string
		entityID string
		want     string
	}{
		{
			name:     "empty template",
			template: "",
			entityID: "sensor.outside_temp",
			want:     "",
		},
		{
			name:     "plain text passes through",
			template: "no expressions here",
			entityID: "sensor.outside_temp",
			want:     "no expressions here",
		},
		{
			name:     "state binding",
			template: "{{ state }}",
			entityID: "sensor.outside_temp",
			want:     "21.5",
		},
		{
			name:     "state spliced into text",
			template: "now {{ state }} outside",
			entityID: "sensor.outside_temp",
			want:     "now 21.5 outside",
		},
		{
			name:     "attribute via dot",
			template: "{{ attributes.unit_of_measurement }}",
			entityID: "sensor.outside_temp",
			want:     "°C",
		},
		{
			name:     "attribute via index",
			template: "{{ attributes['friendly_name'] }}",
			entityID: "sensor.outside_temp",
			want:     "Outside",
		},
		{
			name:     "missing attribute is null",
			template: "{{ attributes.voltage }}",
			entityID: "sensor.outside_temp",
			want:     "none",
		},
		{
			name:     "concatenation",
			template: "{{ state ~ ' ' ~ attributes.unit_of_measurement }}",
			entityID: "sensor.outside_temp",
			want:     "21.5 °C",
		},
		{
			name:     "states helper",
			template: "{{ states('light.kitchen') }}",
			entityID: "sensor.outside_temp",
			want:     "on",
		},
		{
			name:     "states helper unknown entity",
			template: "{{ states('sensor.nope') }}",
			entityID: "sensor.outside_temp",
			want:     "unknown",
		},
		{
			name:     "state_attr helper",
			template: "{{ state_attr('light.kitchen', 'brightness') }}",
			entityID: "sensor.outside_temp",
			want:     "180",
		},
		{
			name:     "state_attr missing attribute",
			template: "{{ state_attr('light.kitchen', 'color_temp') }}",
			entityID: "sensor.outside_temp",
			want:     "none",
		},
		{
			name:     "state_attr unknown entity",
			template: "{{ state_attr('sensor.nope', 'anything') }}",
			entityID: "sensor.outside_temp",
			want:     "none",
		},
		{
			name:     "flattened list attribute",
			template: "{{ state_attr('climate.living', 'hvac_modes') }}",
			entityID: "sensor.outside_temp",
			want:     `["heat","cool"]`,
		},
		{
			name:     "string equality",
			template: "{{ state == '21.5' }}",
			entityID: "sensor.outside_temp",
			want:     "true",
		},
		{
			name:     "numeric comparison true",
			template: "{{ state > 20 }}",
			entityID: "sensor.outside_temp",
			want:     "true",
		},
		{
			name:     "numeric comparison false",
			template: "{{ state > 30 }}",
			entityID: "sensor.outside_temp",
			want:     "false",
		},
		{
			name:     "numeric equality across types",
			template: "{{ attributes.battery == '87' }}",
			entityID: "sensor.outside_temp",
			want:     "true",
		},
		{
			name:     "inequality",
			template: "{{ states('light.kitchen') != 'off' }}",
			entityID: "sensor.outside_temp",
			want:     "true",
		},
		{
			name:     "negative literal",
			template: "{{ state > -5 }}",
			entityID: "sensor.outside_temp",
			want:     "true",
		},
		{
			name:     "number literal trims trailing zero",
			template: "{{ 1.50 }}",
			entityID: "sensor.outside_temp",
			want:     "1.5",
		},
		{
			name:     "boolean literal",
			template: "{{ true }}",
			entityID: "sensor.outside_temp",
			want:     "true",
		},
		{
			name:     "none literal",
			template: "{{ none }}",
			entityID: "sensor.outside_temp",
			want:     "none",
		},
		{
			name:     "boolean attribute",
			template: "{{ attributes.calibrated }}",
			entityID: "sensor.outside_temp",
			want:     "true",
		},
		{
			name:     "grouping",
			template: "{{ ('a' ~ 'b') == 'ab' }}",
			entityID: "sensor.outside_temp",
			want:     "true",
		},
		{
			name:     "bare attributes map",
			template: "{{ attributes }}",
			entityID: "light.kitchen",
			want:     `{"brightness":180}`,
		},
		{
			name:     "unknown entity binds unknown state",
			template: "{{ state }}",
			entityID: "sensor.nope",
			want:     "unknown",
		},
		{
			name:     "unknown entity binds empty attributes",
			template: "{{ attributes.anything }}",
			entityID: "sensor.nope",
			want:     "none",
		},
		{
			name:     "multiple spans",
			template: "{{ state }}/{{ attributes.battery }}",
			entityID: "sensor.outside_temp",
			want:     "21.5/87",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Render(tt.template, tt.entityID))
		})
	}
}

func TestRenderErrors(t *testing.T) {
	ev := New(testStates())

	tests := []struct {
		name     string
		template string
		wantMsg  string
	}{
		{
			name:     "unclosed span",
			template: "broken {{ state",
			wantMsg:  "unclosed",
		},
		{
			name:     "unterminated string",
			template: "{{ 'abc }}",
			wantMsg:  "unterminated string",
		},
		{
			name:     "unknown name",
			template: "{{ junk }}",
			wantMsg:  `unknown name "junk"`,
		},
		{
			name:     "unsupported character",
			template: "{{ state + 1 }}",
			wantMsg:  "unexpected character",
		},
		{
			name:     "empty expression",
			template: "{{ }}",
			wantMsg:  "unexpected end of expression",
		},
		{
			name:     "wrong arity",
			template: "{{ states() }}",
			wantMsg:  "takes one argument",
		},
		{
			name:     "member access on scalar",
			template: "{{ state.foo }}",
			wantMsg:  `cannot access "foo" on a string value`,
		},
		{
			name:     "negating a string",
			template: "{{ -'abc' }}",
			wantMsg:  "cannot negate",
		},
		{
			name:     "chained comparison",
			template: "{{ 1 < 2 < 3 }}",
			wantMsg:  "after expression",
		},
		{
			name:     "uncalled helper",
			template: "{{ states }}",
			wantMsg:  "must be called",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ev.Render(tt.template, "sensor.outside_temp")
			require.True(t, strings.HasPrefix(got, "template error: "), "got %q", got)
			assert.Contains(t, got, tt.wantMsg)
		})
	}
}

func TestRenderErrorReplacesWholeOutput(t *testing.T) {
	ev := New(testStates())

	got := ev.Render("before {{ state }} after {{ junk }}", "sensor.outside_temp")
	require.True(t, strings.HasPrefix(got, "template error: "))
	assert.NotContains(t, got, "before")
}
