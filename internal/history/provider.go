// Package history resolves the time series behind graph cards. A
// provider wraps the hub's history API with a rate limit, a per-fetch
// timeout and a last-known cache so a flaky hub degrades the picture
// instead of the program.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/internal/hub"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/metrics"
	"github.com/hubdeck/hubdeck/internal/timeexpr"
)

// Series sources reported on Fetch results.
const (
	SourceHub      = "hub"
	SourceCache    = "cache"
	SourceRecorder = "recorder"
	SourceEmpty    = "empty"
)

// Fetcher is the hub-facing slice of the REST client.
type Fetcher interface {
	History(ctx context.Context, q hub.HistoryQuery) ([]entity.HistoryPoint, error)
}

// Fallback supplies locally recorded samples when the hub has nothing
// to offer for a window.
type Fallback interface {
	Events(ctx context.Context, entityID string, begin, end time.Time) ([]entity.HistoryPoint, error)
}

// Request names one series: an entity, optionally one of its
// attributes, and a time window in expression form. An empty Begin
// falls back to the configured lookback, an empty End means now.
type Request struct {
	EntityID  string
	Attribute string
	Begin     string
	End       string
}

// Series is a resolved request. Source reports where the points came
// from; Stale marks cached points served after a failed fetch.
type Series struct {
	Points []entity.HistoryPoint
	Begin  time.Time
	End    time.Time
	Source string
	Stale  bool
}

// Provider fetches history series for graph cards. Safe for concurrent
// use.
type Provider struct {
	fetcher  Fetcher
	fallback Fallback
	cfg      *config.HistoryConfig
	limiter  *rate.Limiter
	log      logger.Logger
	elog     *logger.SampledLogger

	mu    sync.Mutex
	cache map[string][]entity.HistoryPoint
}

// NewProvider builds a provider. fallback may be nil when no recorder
// is running.
func NewProvider(fetcher Fetcher, fallback Fallback, cfg *config.HistoryConfig, log logger.Logger) *Provider {
	if log == nil {
		log = logger.NewNullLogger()
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Provider{
		fetcher:  fetcher,
		fallback: fallback,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		log:      log,
		elog:     logger.NewEventLogger(log),
		cache:    make(map[string][]entity.HistoryPoint),
	}
}

// Fetch resolves one series. It degrades in order: live hub data, the
// last points fetched for the same request, locally recorded samples,
// an empty series. The returned error is non-nil only when the hub
// fetch failed; callers that render placeholders for empty series can
// ignore it.
func (p *Provider) Fetch(ctx context.Context, req Request) (Series, error) {
	now := time.Now().UTC()
	beginExpr := strings.TrimSpace(req.Begin)
	if beginExpr == "" {
		beginExpr = p.cfg.DefaultLookback
	}
	begin := timeexpr.Resolve(beginExpr, now)
	end := now
	if e := strings.TrimSpace(req.End); e != "" {
		end = timeexpr.Resolve(e, now)
	}

	out := Series{Begin: begin, End: end}
	key := cacheKey(req)
	start := time.Now()

	points, err := p.fetch(ctx, req, begin, end)
	if err == nil {
		if len(points) > 0 {
			p.store(key, points)
			out.Points = points
			out.Source = SourceHub
			metrics.RecordHistoryFetch(SourceHub, time.Since(start).Seconds())
			return out, nil
		}
		// The hub answered with nothing; locally recorded samples may
		// still cover the window.
		if pts := p.recorded(ctx, req.EntityID, begin, end); len(pts) > 0 {
			out.Points = pts
			out.Source = SourceRecorder
			metrics.RecordHistoryFetch(SourceRecorder, time.Since(start).Seconds())
			return out, nil
		}
		out.Source = SourceEmpty
		metrics.RecordHistoryFetch(SourceEmpty, time.Since(start).Seconds())
		return out, nil
	}

	metrics.IncrementHistoryFetchError(errorType(err))
	p.elog.WarnWithCategory(logger.CategoryHistoryFetch, "History fetch failed", map[string]interface{}{
		"entity_id": req.EntityID,
		"error":     err.Error(),
	})

	if cached, ok := p.lookup(key); ok {
		out.Points = cached
		out.Source = SourceCache
		out.Stale = true
		metrics.RecordHistoryFetch(SourceCache, time.Since(start).Seconds())
		return out, nil
	}
	if pts := p.recorded(ctx, req.EntityID, begin, end); len(pts) > 0 {
		out.Points = pts
		out.Source = SourceRecorder
		metrics.RecordHistoryFetch(SourceRecorder, time.Since(start).Seconds())
		return out, nil
	}

	out.Source = SourceEmpty
	metrics.RecordHistoryFetch(SourceEmpty, time.Since(start).Seconds())
	return out, err
}

func (p *Provider) fetch(ctx context.Context, req Request, begin, end time.Time) ([]entity.HistoryPoint, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.WrapTransient(err, "history rate limit wait aborted")
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	// Minimal responses strip attributes, so attribute series need the
	// full payload.
	return p.fetcher.History(ctx, hub.HistoryQuery{
		EntityID: req.EntityID,
		Begin:    begin,
		End:      end,
		Minimal:  req.Attribute == "",
	})
}

func (p *Provider) recorded(ctx context.Context, entityID string, begin, end time.Time) []entity.HistoryPoint {
	if p.fallback == nil {
		return nil
	}
	pts, err := p.fallback.Events(ctx, entityID, begin, end)
	if err != nil {
		p.log.WithError(err).WithField("entity_id", entityID).Debug("Recorder fallback failed")
		return nil
	}
	return pts
}

func (p *Provider) store(key string, points []entity.HistoryPoint) {
	p.mu.Lock()
	p.cache[key] = points
	p.mu.Unlock()
}

func (p *Provider) lookup(key string) ([]entity.HistoryPoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	points, ok := p.cache[key]
	return points, ok
}

func cacheKey(req Request) string {
	return req.EntityID + "\x00" + req.Attribute + "\x00" + req.Begin + "\x00" + req.End
}

func errorType(err error) string {
	if ce, ok := errors.GetClientError(err); ok {
		return string(ce.Type)
	}
	return "UNKNOWN"
}
