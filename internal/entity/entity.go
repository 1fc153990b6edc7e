// Package entity holds the shared data model for hub entities: the
// last-known state record, the heterogeneous attribute value variant and
// the time-stamped history point used by graph rendering.
package entity

import (
	"regexp"
	"strings"
	"time"
)

// idPattern matches domain-qualified entity identifiers embedded in
// arbitrary strings, e.g. "sensor.outside_temp".
var idPattern = regexp.MustCompile(`[a-z0-9_]+\.[a-z0-9_]+`)

// ScanIDs extracts every entity-identifier-shaped substring from s.
// Matches are returned in order of appearance, duplicates included.
func ScanIDs(s string) []string {
	return idPattern.FindAllString(s, -1)
}

// Domain returns the domain part of a qualified identifier
// ("sensor.temp" → "sensor").
func Domain(id string) string {
	if i := strings.IndexByte(id, '.'); i > 0 {
		return id[:i]
	}
	return id
}

// State is the last-known snapshot of one entity. Records are replaced
// wholesale on every update; attributes are never merged field by field.
type State struct {
	ID          string           `json:"entity_id"`
	State       string           `json:"state"`
	Attributes  map[string]Value `json:"attributes"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Attr returns the named attribute and whether it is present.
func (s *State) Attr(name string) (Value, bool) {
	if s == nil || s.Attributes == nil {
		return Null(), false
	}
	v, ok := s.Attributes[name]
	return v, ok
}

// FriendlyName returns the friendly_name attribute, or the identifier
// when the attribute is absent.
func (s *State) FriendlyName() string {
	if v, ok := s.Attr("friendly_name"); ok && !v.IsNull() {
		return v.Text()
	}
	return s.ID
}

// HistoryPoint is one sample of an entity's past state. Minimal history
// responses omit attributes and may carry last_changed instead of
// last_updated; Timestamp prefers the latter.
type HistoryPoint struct {
	State       string           `json:"state"`
	Attributes  map[string]Value `json:"attributes"`
	LastUpdated time.Time        `json:"last_updated"`
	LastChanged time.Time        `json:"last_changed"`
}

// Timestamp returns the best available sample time, zero when the hub
// supplied none.
func (p HistoryPoint) Timestamp() time.Time {
	if !p.LastUpdated.IsZero() {
		return p.LastUpdated
	}
	return p.LastChanged
}

// Numeric coerces the sample to a float. With attribute == "" the state
// text is parsed; otherwise the named attribute is used.
func (p HistoryPoint) Numeric(attribute string) (float64, bool) {
	if attribute == "" {
		return String(p.State).Float()
	}
	v, ok := p.Attributes[attribute]
	if !ok {
		return 0, false
	}
	return v.Float()
}
