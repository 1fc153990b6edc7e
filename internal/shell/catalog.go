// Package shell is the interactive commander: a prompt over the hub's
// entities with completion, state queries, attribute dumps, history
// graphs and service calls. Unlike the dashboard it polls over REST
// only; the inventory is cached and refetched when it goes stale.
package shell

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/hub"
	"github.com/hubdeck/hubdeck/internal/logger"
)

const defaultCacheTTL = 5 * time.Minute

// Inventory is the slice of the hub client the catalog loads from.
type Inventory interface {
	States(ctx context.Context) ([]entity.State, error)
	Services(ctx context.Context) ([]hub.ServiceDomain, error)
}

// Service is one callable service of a domain.
type Service struct {
	Name        string
	Description string
}

// Catalog caches the hub's entity and service inventory for command
// execution and completion. Both tables are replaced wholesale on
// refresh. Safe for concurrent use.
type Catalog struct {
	client Inventory
	ttl    time.Duration
	log    logger.Logger

	mu       sync.RWMutex
	entities map[string]entity.State
	services map[string][]Service
	updated  time.Time
}

// NewCatalog builds an empty catalog; call Refresh to fill it.
func NewCatalog(client Inventory, cfg *config.ShellConfig, log logger.Logger) *Catalog {
	if log == nil {
		log = logger.NewNullLogger()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Catalog{
		client:   client,
		ttl:      ttl,
		log:      log,
		entities: make(map[string]entity.State),
		services: make(map[string][]Service),
	}
}

// Refresh fetches the current entity snapshot and service list. On
// failure the previous tables stay in place, so completion keeps
// working from what was last known.
func (c *Catalog) Refresh(ctx context.Context) error {
	states, err := c.client.States(ctx)
	if err != nil {
		return err
	}
	domains, err := c.client.Services(ctx)
	if err != nil {
		return err
	}

	entities := make(map[string]entity.State, len(states))
	for _, st := range states {
		entities[st.ID] = st
	}
	services := make(map[string][]Service, len(domains))
	for _, d := range domains {
		list := make([]Service, 0, len(d.Services))
		for name, info := range d.Services {
			list = append(list, Service{Name: name, Description: info.Description})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		services[d.Domain] = list
	}

	c.mu.Lock()
	c.entities = entities
	c.services = services
	c.updated = time.Now()
	c.mu.Unlock()

	c.log.WithFields(map[string]interface{}{
		"entities": len(entities),
		"domains":  len(services),
	}).Debug("Catalog refreshed")
	return nil
}

// Stale reports whether the inventory is older than the TTL. A catalog
// that has never been filled is stale.
func (c *Catalog) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.updated) > c.ttl
}

// Entity returns the cached snapshot for id.
func (c *Catalog) Entity(id string) (entity.State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.entities[id]
	return st, ok
}

// Entities returns every cached entity sorted by identifier.
func (c *Catalog) Entities() []entity.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.State, 0, len(c.entities))
	for _, st := range c.entities {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Services returns the callable services of one domain, sorted by
// name.
func (c *Catalog) Services(domain string) []Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[domain]
}

// Attributes returns the attribute names of one entity, sorted.
func (c *Catalog) Attributes(id string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.entities[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(st.Attributes))
	for name := range st.Attributes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Counts returns how many entities and service domains are cached.
func (c *Catalog) Counts() (entities, domains int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities), len(c.services)
}
