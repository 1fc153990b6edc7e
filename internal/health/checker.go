// Package health tracks the client's dependencies: the hub's REST API,
// the event stream subscription and the recorder's redis backend. The
// debug server exposes the results.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/metrics"
)

// Status of one dependency or the whole client.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// checkTimeout bounds one probe.
const checkTimeout = 5 * time.Second

// Check is one completed probe result.
type Check struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"last_checked"`
	DurationMS  float64   `json:"duration_ms"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Manager runs registered checkers and keeps their latest results.
type Manager struct {
	log logger.Logger

	mu       sync.RWMutex
	checkers []Checker
	results  map[string]*Check
	gauges   map[string]*metrics.Gauge
}

// NewManager creates a health check manager.
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Manager{
		log:     log,
		results: make(map[string]*Check),
		gauges:  make(map[string]*metrics.Gauge),
	}
}

// Register adds a checker.
func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
	m.gauges[checker.Name()] = metrics.NewGauge("hubdeck_health_check_up", map[string]string{
		"check": checker.Name(),
	})
	m.log.WithField("checker", checker.Name()).Debug("Registered health checker")
}

// RunChecks probes every registered checker concurrently and returns
// the fresh results.
func (m *Manager) RunChecks(ctx context.Context) map[string]*Check {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	var wg sync.WaitGroup
	resultsChan := make(chan *Check, len(checkers))

	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(checkCtx)
			duration := time.Since(start)

			check := &Check{
				Name:        c.Name(),
				Status:      classify(err),
				LastChecked: time.Now(),
				DurationMS:  float64(duration.Milliseconds()),
			}
			if err != nil {
				check.Message = err.Error()
				m.log.WithError(err).WithFields(map[string]interface{}{
					"checker":  c.Name(),
					"duration": duration,
					"status":   check.Status,
				}).Warn("Health check failed")
			} else {
				m.log.WithFields(map[string]interface{}{
					"checker":  c.Name(),
					"duration": duration,
				}).Debug("Health check passed")
			}

			resultsChan <- check
		}(checker)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make(map[string]*Check, len(checkers))
	for check := range resultsChan {
		results[check.Name] = check
		m.mu.Lock()
		m.results[check.Name] = check
		if g := m.gauges[check.Name]; g != nil {
			if check.Status == StatusOK {
				g.Set(1)
			} else {
				g.Set(0)
			}
		}
		m.mu.Unlock()
	}

	return results
}

// classify maps a probe error to a status. Transient failures are
// retried by the owning component, so they report degraded; auth and
// protocol failures, timeouts included, report down.
func classify(err error) Status {
	if err == nil {
		return StatusOK
	}
	if ce, ok := errors.GetClientError(err); ok && ce.Type == errors.ErrorTypeTransient {
		return StatusDegraded
	}
	return StatusDown
}

// GetResults returns a copy of the latest results.
func (m *Manager) GetResults() map[string]*Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]*Check, len(m.results))
	for k, v := range m.results {
		check := *v
		results[k] = &check
	}
	return results
}

// GetOverallStatus folds the latest results into one status. No
// results yet means down; a ready probe should not pass before the
// first check ran.
func (m *Manager) GetOverallStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.results) == 0 {
		return StatusDown
	}

	status := StatusOK
	for _, check := range m.results {
		switch check.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// StartPeriodicChecks probes on the given interval until the context
// ends.
func (m *Manager) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.RunChecks(ctx)

	for {
		select {
		case <-ticker.C:
			m.RunChecks(ctx)
		case <-ctx.Done():
			m.log.Info("Stopping periodic health checks")
			return
		}
	}
}
