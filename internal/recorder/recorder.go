// Package recorder keeps a rolling record of observed state changes so
// graphs can fall back to local samples when the hub's history API has
// nothing to offer. Every watched event lands in an in-memory ring;
// with persistence enabled, events are mirrored into redis sorted sets
// keyed by entity and scored by sample time, so the record survives a
// restart.
package recorder

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/metrics"
)

const defaultMaxEvents = 1000

// NewRedisClient builds the redis client for recorder persistence from
// the recorder configuration.
func NewRedisClient(cfg *config.RecorderConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// Recorder stores observed state changes per entity. Safe for
// concurrent use.
type Recorder struct {
	cfg    *config.RecorderConfig
	client *redis.Client // nil when persistence is off
	log    logger.Logger
	elog   *logger.SampledLogger
	max    int

	persisted *metrics.Counter
	failures  *metrics.Counter
	entries   *metrics.Gauge

	mu    sync.Mutex
	rings map[string][]entity.HistoryPoint
	total int
}

// New builds a recorder. client may be nil, which keeps the in-memory
// ring only.
func New(cfg *config.RecorderConfig, client *redis.Client, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewNullLogger()
	}
	max := int(cfg.MaxEvents)
	if max <= 0 {
		max = defaultMaxEvents
	}
	return &Recorder{
		cfg:       cfg,
		client:    client,
		log:       log,
		elog:      logger.NewEventLogger(log),
		max:       max,
		persisted: metrics.NewCounter("hubdeck_recorder_events_persisted_total", nil),
		failures:  metrics.NewCounter("hubdeck_recorder_persist_failures_total", nil),
		entries:   metrics.NewGauge("hubdeck_recorder_ring_entries", nil),
		rings:     make(map[string][]entity.HistoryPoint),
	}
}

// Record stores one observed state change. A nil state (entity
// removed) is skipped.
func (r *Recorder) Record(ctx context.Context, entityID string, st *entity.State) {
	if st == nil || entityID == "" {
		return
	}
	point := entity.HistoryPoint{
		State:       st.State,
		Attributes:  st.Attributes,
		LastUpdated: st.LastUpdated,
	}
	if point.LastUpdated.IsZero() {
		point.LastUpdated = time.Now().UTC()
	}

	r.remember(entityID, point)
	r.elog.DebugWithCategory(logger.CategoryRecorder, "Recorded state change", map[string]interface{}{
		"entity_id": entityID,
		"state":     point.State,
	})

	if r.client == nil {
		return
	}
	if err := r.persist(ctx, entityID, point); err != nil {
		r.failures.Inc()
		r.log.WithError(err).WithField("entity_id", entityID).Warn("Failed to persist state change")
		return
	}
	r.persisted.Inc()
}

func (r *Recorder) remember(entityID string, point entity.HistoryPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ring := append(r.rings[entityID], point)
	r.total++
	if len(ring) > r.max {
		drop := len(ring) - r.max
		ring = append(ring[:0:0], ring[drop:]...)
		r.total -= drop
	}
	r.rings[entityID] = ring
	r.entries.Set(float64(r.total))
}

func (r *Recorder) persist(ctx context.Context, entityID string, point entity.HistoryPoint) error {
	data, err := json.Marshal(point)
	if err != nil {
		return errors.WrapMalformed(err, "failed to marshal history point")
	}

	key := r.key(entityID)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(point.LastUpdated.UnixMilli()),
		Member: data,
	})
	// Keep only the newest max entries.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(r.max + 1)))
	if r.cfg.TTL > 0 {
		pipe.Expire(ctx, key, r.cfg.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.WrapTransient(err, "failed to write recorder entry")
	}
	return nil
}

// Events returns recorded samples for one entity inside [begin, end],
// oldest first. Persistence is preferred; the in-memory ring answers
// when redis is unavailable.
func (r *Recorder) Events(ctx context.Context, entityID string, begin, end time.Time) ([]entity.HistoryPoint, error) {
	if r.client != nil {
		points, err := r.storedRange(ctx, entityID, begin, end)
		if err == nil {
			return points, nil
		}
		r.log.WithError(err).WithField("entity_id", entityID).Debug("Recorder read fell back to memory")
	}
	return r.memoryRange(entityID, begin, end), nil
}

func (r *Recorder) storedRange(ctx context.Context, entityID string, begin, end time.Time) ([]entity.HistoryPoint, error) {
	vals, err := r.client.ZRangeByScore(ctx, r.key(entityID), &redis.ZRangeBy{
		Min: strconv.FormatInt(begin.UnixMilli(), 10),
		Max: strconv.FormatInt(end.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, errors.WrapTransient(err, "failed to read recorder entries")
	}

	points := make([]entity.HistoryPoint, 0, len(vals))
	for _, val := range vals {
		var point entity.HistoryPoint
		if err := json.Unmarshal([]byte(val), &point); err != nil {
			r.log.WithError(err).Warn("Skipping undecodable recorder entry")
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

func (r *Recorder) memoryRange(entityID string, begin, end time.Time) []entity.HistoryPoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	var points []entity.HistoryPoint
	for _, point := range r.rings[entityID] {
		ts := point.Timestamp()
		if ts.Before(begin) || ts.After(end) {
			continue
		}
		points = append(points, point)
	}
	return points
}

// Ping verifies the persistence backend is reachable.
func (r *Recorder) Ping(ctx context.Context) error {
	if r.client == nil {
		return errors.NewTransientError("recorder persistence is disabled")
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.WrapTransient(err, "recorder redis ping failed")
	}
	return nil
}

// Close releases the redis connection pool.
func (r *Recorder) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Recorder) key(entityID string) string {
	prefix := r.cfg.KeyPrefix
	if prefix == "" {
		prefix = "hubdeck"
	}
	return prefix + ":events:" + entityID
}
