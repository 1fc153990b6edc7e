// Package layout compiles declarative YAML dashboards into render
// plans. A plan pairs the card tree with the watch set: every entity
// the layout references, whether through an explicit entity field or an
// identifier embedded in any string option such as a secondary_info
// template.
package layout

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/logger"
)

// DefaultIcon is shown on entity cards that set none.
const DefaultIcon = "📊"

// Node is one element of a compiled layout tree.
type Node interface {
	node()
}

// Entity is a leaf card showing one entity's current state.
type Entity struct {
	EntityID  string
	Title     string
	Icon      string
	Secondary string
}

// Graph is a leaf card rendering an entity's recent history.
type Graph struct {
	EntityID  string
	Attribute string
	Title     string
	Width     int
	Height    int
	Begin     string
	End       string
}

// Horizontal lays its children out side by side.
type Horizontal struct {
	Cards []Node
}

// Vertical stacks its children top to bottom.
type Vertical struct {
	Cards []Node
}

func (*Entity) node()     {}
func (*Graph) node()      {}
func (*Horizontal) node() {}
func (*Vertical) node()   {}

// WatchSet is the set of entity identifiers a layout requires state
// for.
type WatchSet map[string]struct{}

// Add inserts an identifier.
func (w WatchSet) Add(id string) { w[id] = struct{}{} }

// Contains reports whether id is watched.
func (w WatchSet) Contains(id string) bool {
	_, ok := w[id]
	return ok
}

// IDs returns the watched identifiers sorted, so seeding and logging
// are deterministic.
func (w WatchSet) IDs() []string {
	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Plan is a compiled layout: the render tree plus the entities it
// watches. Plans are immutable after compilation and safe to share
// with the redraw path.
type Plan struct {
	Title string
	Root  []Node
	Watch WatchSet
}

// Empty reports whether the plan has nothing to render.
func (p *Plan) Empty() bool { return len(p.Root) == 0 }

// Defaults supplies card option fallbacks, normally drawn from
// configuration.
type Defaults struct {
	GraphWidth  int
	GraphHeight int
	GraphBegin  string
	Icon        string
}

// Compiler turns layout documents into plans.
type Compiler struct {
	defaults Defaults
	log      logger.Logger
}

// NewCompiler returns a Compiler. Zero fields of d fall back to the
// stock card defaults.
func NewCompiler(d Defaults, log logger.Logger) *Compiler {
	if d.GraphWidth <= 0 {
		d.GraphWidth = 40
	}
	if d.GraphHeight <= 0 {
		d.GraphHeight = 3
	}
	if d.GraphBegin == "" {
		d.GraphBegin = "-24h"
	}
	if d.Icon == "" {
		d.Icon = DefaultIcon
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Compiler{defaults: d, log: log}
}

// document is the YAML shape of a layout file.
type document struct {
	Title  string `yaml:"title"`
	Layout []card `yaml:"layout"`
}

// card is one raw YAML card before compilation. stringOpts collects
// every string-valued field, including ones the schema does not name,
// so embedded entity identifiers are never missed.
type card struct {
	Type      string `yaml:"type"`
	Entity    string `yaml:"entity"`
	EntityID  string `yaml:"entity_id"`
	Title     string `yaml:"title"`
	Name      string `yaml:"name"`
	Icon      string `yaml:"icon"`
	Secondary string `yaml:"secondary_info"`
	Attribute string `yaml:"attribute"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Begin     string `yaml:"begin"`
	End       string `yaml:"end"`
	Cards     []card `yaml:"cards"`

	stringOpts []string
}

func (c *card) UnmarshalYAML(value *yaml.Node) error {
	type plain card
	if err := value.Decode((*plain)(c)); err != nil {
		return err
	}
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			c.stringOpts = append(c.stringOpts, s)
		}
	}
	return nil
}

// entityRef returns the card's explicit entity reference, preferring
// the entity field over entity_id.
func (c *card) entityRef() string {
	if c.Entity != "" {
		return c.Entity
	}
	return c.EntityID
}

// CompileFile loads and compiles one layout file. A missing file is an
// empty dashboard, and a file that fails to parse degrades to an empty
// plan as well; neither stops the loop.
func (c *Compiler) CompileFile(path string) *Plan {
	src, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.WithError(err).WithField("path", path).Warn("Failed to read layout file")
		}
		return &Plan{Watch: WatchSet{}}
	}
	return c.compile(src, path)
}

// Compile compiles layout source directly.
func (c *Compiler) Compile(src []byte) *Plan {
	return c.compile(src, "")
}

func (c *Compiler) compile(src []byte, path string) *Plan {
	var doc document
	if err := yaml.Unmarshal(src, &doc); err != nil {
		c.log.WithError(err).WithField("path", path).Warn("Failed to parse layout file")
		return &Plan{Watch: WatchSet{}}
	}
	watch := WatchSet{}
	collectWatch(doc.Layout, watch)
	return &Plan{
		Title: doc.Title,
		Root:  c.buildNodes(doc.Layout),
		Watch: watch,
	}
}

// collectWatch walks the raw card tree and gathers every entity
// reference. It descends into nested cards regardless of the parent's
// type; groups contribute nothing themselves.
func collectWatch(cards []card, w WatchSet) {
	for i := range cards {
		cd := &cards[i]
		if id := cd.entityRef(); id != "" {
			w.Add(id)
		}
		for _, s := range cd.stringOpts {
			for _, id := range entity.ScanIDs(s) {
				w.Add(id)
			}
		}
		collectWatch(cd.Cards, w)
	}
}

// buildNodes turns raw cards into render nodes. Stacks recurse; every
// other type renders as an entity card so an unrecognized type still
// shows something.
func (c *Compiler) buildNodes(cards []card) []Node {
	if len(cards) == 0 {
		return nil
	}
	nodes := make([]Node, 0, len(cards))
	for i := range cards {
		cd := &cards[i]
		switch cd.Type {
		case "horizontal-stack":
			nodes = append(nodes, &Horizontal{Cards: c.buildNodes(cd.Cards)})
		case "vertical-stack":
			nodes = append(nodes, &Vertical{Cards: c.buildNodes(cd.Cards)})
		case "graph":
			nodes = append(nodes, c.graphNode(cd))
		default:
			nodes = append(nodes, c.entityNode(cd))
		}
	}
	return nodes
}

func (c *Compiler) graphNode(cd *card) *Graph {
	g := &Graph{
		EntityID:  cd.entityRef(),
		Attribute: cd.Attribute,
		Title:     cd.Title,
		Width:     cd.Width,
		Height:    cd.Height,
		Begin:     cd.Begin,
		End:       cd.End,
	}
	if g.Title == "" {
		g.Title = g.EntityID
	}
	if g.Width <= 0 {
		g.Width = c.defaults.GraphWidth
	}
	if g.Height <= 0 {
		g.Height = c.defaults.GraphHeight
	}
	if g.Begin == "" {
		g.Begin = c.defaults.GraphBegin
	}
	return g
}

func (c *Compiler) entityNode(cd *card) *Entity {
	e := &Entity{
		EntityID:  cd.entityRef(),
		Title:     cd.Title,
		Icon:      cd.Icon,
		Secondary: cd.Secondary,
	}
	if e.Title == "" {
		e.Title = cd.Name
	}
	if e.Title == "" {
		e.Title = e.EntityID
	}
	if e.Icon == "" {
		e.Icon = c.defaults.Icon
	}
	return e
}
