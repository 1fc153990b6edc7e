package shell

import (
	"strings"
	"unicode"

	"github.com/hubdeck/hubdeck/internal/entity"
)

// verbs an entity command can continue with.
var verbs = []string{"attribute", "call", "full", "graph"}

// Suggestion is one completion candidate. Value replaces the word
// being completed; Display is what the menu shows.
type Suggestion struct {
	Value   string
	Display string
}

// Complete returns candidates for the word being typed at the end of
// line, ordered for a stable menu. The first word completes to entity
// identifiers (substring match, friendly name shown), the second to
// command verbs, and call/attribute arguments to the services of the
// entity's domain or its attribute names.
func (c *Catalog) Complete(line string) []Suggestion {
	words := strings.Fields(line)
	trailing := line == "" || unicode.IsSpace(rune(line[len(line)-1]))
	last := ""
	at := len(words)
	if !trailing && len(words) > 0 {
		last = words[len(words)-1]
		at = len(words) - 1
	}

	if at == 0 {
		return c.entityCandidates(last)
	}

	if _, known := c.Entity(words[0]); !known {
		return nil
	}

	if at == 1 {
		var out []Suggestion
		for _, v := range verbs {
			if strings.HasPrefix(v, last) {
				out = append(out, Suggestion{Value: v, Display: v})
			}
		}
		return out
	}

	switch words[1] {
	case "call":
		var out []Suggestion
		for _, s := range c.Services(entity.Domain(words[0])) {
			if !strings.HasPrefix(s.Name, last) {
				continue
			}
			display := s.Name
			if s.Description != "" {
				display += " · " + s.Description
			}
			out = append(out, Suggestion{Value: s.Name, Display: display})
		}
		return out
	case "attribute":
		if at != 2 {
			return nil
		}
		var out []Suggestion
		for _, name := range c.Attributes(words[0]) {
			if strings.HasPrefix(name, last) {
				out = append(out, Suggestion{Value: name, Display: name})
			}
		}
		return out
	}
	return nil
}

func (c *Catalog) entityCandidates(partial string) []Suggestion {
	needle := strings.ToLower(partial)
	var out []Suggestion
	for _, st := range c.Entities() {
		if !strings.Contains(strings.ToLower(st.ID), needle) {
			continue
		}
		display := st.ID
		if friendly := st.FriendlyName(); friendly != st.ID {
			display = friendly + " (" + st.ID + ")"
		}
		out = append(out, Suggestion{Value: st.ID, Display: display})
	}
	return out
}
