// Package template implements the expression language accepted inside
// {{ ... }} spans of card options such as secondary_info.
//
// The grammar is a small whitelisted subset of the hub's own template
// syntax: string and number literals, the current entity's state and
// attributes bindings, the states() and state_attr() helpers, attribute
// and index trailers, string concatenation with ~ and the six
// comparison operators. Anything else is a parse error. Errors never
// propagate: Render returns an inline error string so a bad template
// degrades one widget, not the whole dashboard.
package template

import (
	"errors"
	"strings"

	"github.com/hubdeck/hubdeck/internal/entity"
)

// StateReader supplies entity snapshots during evaluation. Lookup
// returns false for entities that are unknown or not yet seeded. The
// state store satisfies this interface.
type StateReader interface {
	Lookup(id string) (*entity.State, bool)
}

// Evaluator renders card templates against live hub state.
type Evaluator struct {
	states StateReader
}

// New returns an Evaluator reading entity snapshots from states.
func New(states StateReader) *Evaluator {
	return &Evaluator{states: states}
}

// Eval evaluates every {{ ... }} span in tmpl and splices the results
// into the surrounding literal text. The entity identified by entityID
// provides the state and attributes bindings; an unknown entity binds
// state to "unknown" and attributes to an empty map, matching the hub's
// own template behavior.
func (e *Evaluator) Eval(tmpl, entityID string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	self, _ := e.states.Lookup(entityID)
	return renderSpans(tmpl, &env{states: e.states, self: self})
}

// Render is Eval with any lex, parse or evaluation error replaced by an
// inline error string.
func (e *Evaluator) Render(tmpl, entityID string) string {
	out, err := e.Eval(tmpl, entityID)
	if err != nil {
		return "template error: " + err.Error()
	}
	return out
}

func renderSpans(tmpl string, ev *env) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:open])
		rest = rest[open+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return "", errors.New("unclosed {{ expression")
		}
		v, err := evalExpr(rest[:end], ev)
		if err != nil {
			return "", err
		}
		b.WriteString(v.text())
		rest = rest[end+2:]
	}
}
