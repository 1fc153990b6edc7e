package shell

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/graph"
	"github.com/hubdeck/hubdeck/internal/history"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/metrics"
)

const helpText = `<entity>
<entity> full
<entity> attribute <attribute> [graph]
<entity> graph [begin=-2h|-2d|ISO] [end=-1h|ISO]
<entity> call <service> [key=value]

refresh | status | help | exit`

// Caller is the slice of the hub client the executor needs for service
// calls.
type Caller interface {
	CallService(ctx context.Context, domain, service, entityID string, data map[string]interface{}) error
}

// Fetcher resolves graph series the way the dashboard does.
type Fetcher interface {
	Fetch(ctx context.Context, req history.Request) (history.Series, error)
}

// Executor runs one commander line at a time. Output is plain text;
// the model decides how to present it.
type Executor struct {
	catalog  *Catalog
	caller   Caller
	provider Fetcher
	graph    config.GraphConfig
	log      logger.Logger
	now      func() time.Time
}

// NewExecutor wires an executor over the shared catalog, the hub
// client and the history provider.
func NewExecutor(catalog *Catalog, caller Caller, provider Fetcher, graphCfg config.GraphConfig, log logger.Logger) *Executor {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Executor{
		catalog:  catalog,
		caller:   caller,
		provider: provider,
		graph:    graphCfg,
		log:      log,
		now:      time.Now,
	}
}

// Result of one executed line.
type Result struct {
	Output string
	Quit   bool
}

// Execute parses and runs one line. Every failure comes back as output
// text; the commander never aborts on a bad command.
func (e *Executor) Execute(ctx context.Context, line string) Result {
	parts, err := shlex.Split(line)
	if err != nil {
		return Result{Output: "parse error: " + err.Error()}
	}
	if len(parts) == 0 {
		return Result{}
	}

	switch parts[0] {
	case "exit", "quit":
		return Result{Quit: true}
	case "help":
		return Result{Output: helpText}
	case "refresh":
		if err := e.catalog.Refresh(ctx); err != nil {
			return Result{Output: "✗ refresh failed: " + err.Error()}
		}
		return Result{Output: "✓ cache refreshed"}
	case "status":
		entities, domains := e.catalog.Counts()
		return Result{Output: fmt.Sprintf("%d entities, %d domains", entities, domains)}
	}

	st, ok := e.catalog.Entity(parts[0])
	if !ok {
		return Result{Output: "unknown entity"}
	}

	if len(parts) == 1 {
		return Result{Output: e.summary(&st)}
	}

	switch parts[1] {
	case "full":
		return Result{Output: e.full(&st)}
	case "graph":
		return Result{Output: e.graphState(ctx, st.ID, parts[2:])}
	case "attribute":
		if len(parts) < 3 {
			return Result{Output: "invalid command"}
		}
		return Result{Output: e.attribute(ctx, &st, parts[2], parts[3:])}
	case "call":
		if len(parts) < 3 {
			return Result{Output: "invalid command"}
		}
		return Result{Output: e.call(ctx, &st, parts[2], parts[3:])}
	}
	return Result{Output: "invalid command"}
}

func (e *Executor) summary(st *entity.State) string {
	return fmt.Sprintf("%s (%s)\nState: %s\nTime: %s",
		st.FriendlyName(), st.ID, st.State,
		e.now().UTC().Format("2006-01-02 15:04:05 UTC"))
}

func (e *Executor) full(st *entity.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", st.FriendlyName(), st.ID)
	fmt.Fprintf(&b, "State: %s\n", st.State)
	b.WriteString("Attributes:")

	names := make([]string, 0, len(st.Attributes))
	for name := range st.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %s: %s", name, st.Attributes[name].Text())
	}
	return b.String()
}

// graphState renders the entity's state history. Window arguments
// arrive as begin=/end= pairs; anything else is ignored, matching the
// forgiving argument handling of the rest of the commander.
func (e *Executor) graphState(ctx context.Context, id string, args []string) string {
	req := history.Request{EntityID: id}
	for _, arg := range args {
		if v, ok := strings.CutPrefix(arg, "begin="); ok {
			req.Begin = v
		}
		if v, ok := strings.CutPrefix(arg, "end="); ok {
			req.End = v
		}
	}
	return e.renderSeries(ctx, req)
}

func (e *Executor) attribute(ctx context.Context, st *entity.State, name string, rest []string) string {
	v, ok := st.Attr(name)
	if !ok {
		return "no such attribute"
	}
	if len(rest) == 0 {
		return v.Text()
	}
	if rest[0] == "graph" {
		return e.renderSeries(ctx, history.Request{EntityID: st.ID, Attribute: name})
	}
	return "invalid command"
}

func (e *Executor) renderSeries(ctx context.Context, req history.Request) string {
	s, err := e.provider.Fetch(ctx, req)
	out := graph.Render(s.Points, graph.Options{
		Width:     e.graph.Width,
		Height:    e.graph.Height,
		Markers:   e.graph.Markers,
		Attribute: req.Attribute,
	})
	if err != nil && len(s.Points) == 0 {
		return "history error: " + err.Error() + "\n" + out
	}
	if s.Stale {
		return "(cached series)\n" + out
	}
	return out
}

func (e *Executor) call(ctx context.Context, st *entity.State, service string, args []string) string {
	data := ParseArgs(args)
	domain := entity.Domain(st.ID)
	if err := e.caller.CallService(ctx, domain, service, st.ID, data); err != nil {
		metrics.IncrementServiceCall(domain, false)
		return fmt.Sprintf("✗ error calling %s.%s: %s", domain, service, err.Error())
	}
	metrics.IncrementServiceCall(domain, true)
	return fmt.Sprintf("✓ %s.%s called", domain, service)
}

// ParseArgs turns key=value arguments into service call data.
// Arguments without an equals sign are dropped.
func ParseArgs(args []string) map[string]interface{} {
	data := make(map[string]interface{}, len(args))
	for _, arg := range args {
		k, v, found := strings.Cut(arg, "=")
		if !found {
			continue
		}
		data[k] = parseValue(v)
	}
	return data
}

// parseValue coerces a key=value argument: integer, then float, then
// the bare string with any leftover quotes stripped.
func parseValue(v string) interface{} {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return strings.Trim(v, `"'`)
}
