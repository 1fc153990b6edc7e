package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/internal/logger"
	"github.com/hubdeck/hubdeck/internal/metrics"
)

// Event is one state_changed notification from the hub. NewState is
// nil when the entity was removed.
type Event struct {
	EntityID string
	NewState *entity.State
}

// Stream consumes the hub's websocket event API. Run dials,
// authenticates, subscribes to state_changed events and delivers them
// on Events until the context is canceled or a fatal error ends the
// stream. Transient disconnects reconnect with a bounded retry budget;
// a rejected token never retries.
type Stream struct {
	url   string
	token string
	cfg   *config.StreamConfig
	log   logger.Logger
	elog  *logger.SampledLogger

	events    chan Event
	connected atomic.Bool

	mu  sync.Mutex
	err error
}

// NewStream builds a Stream from the hub and stream configuration.
func NewStream(hub *config.HubConfig, cfg *config.StreamConfig, log logger.Logger) *Stream {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Stream{
		url:    hub.WebSocketURL(),
		token:  hub.Token,
		cfg:    cfg,
		log:    log,
		elog:   logger.NewEventLogger(log),
		events: make(chan Event, 64),
	}
}

// Events delivers decoded state_changed events. The channel closes
// when Run returns; check Err afterwards to distinguish shutdown from
// failure.
func (s *Stream) Events() <-chan Event { return s.events }

// Connected reports whether the stream currently holds a live
// subscription.
func (s *Stream) Connected() bool { return s.connected.Load() }

// Err returns the fatal error that ended the stream, or nil after a
// clean shutdown.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// frame is the generic websocket envelope. Only the fields the client
// reads are declared; everything else in a frame is ignored.
type frame struct {
	ID      int         `json:"id,omitempty"`
	Type    string      `json:"type"`
	Success *bool       `json:"success,omitempty"`
	Event   *eventFrame `json:"event,omitempty"`
	Message string      `json:"message,omitempty"`
}

type eventFrame struct {
	Data struct {
		EntityID string        `json:"entity_id"`
		NewState *entity.State `json:"new_state"`
	} `json:"data"`
}

// Run blocks until the context is canceled (returns nil) or the stream
// fails fatally: the hub rejected the token, or the reconnect budget
// ran out. The events channel is closed on return.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.events)

	attempts := 0
	for {
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.IsFatal(err) {
				s.setErr(err)
				return err
			}
			attempts++
			metrics.IncrementStreamReconnect()
			if attempts > s.cfg.ReconnectAttempts {
				perr := errors.WrapProtocol(err, "event stream lost, reconnect attempts exhausted")
				s.setErr(perr)
				return perr
			}
			s.elog.WarnWithCategory(logger.CategoryReconnect, "Stream connect failed, retrying", map[string]interface{}{
				"attempt": attempts,
				"error":   err.Error(),
			})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.ReconnectDelay):
			}
			continue
		}

		attempts = 0
		s.connected.Store(true)
		metrics.SetStreamConnected(true)
		s.log.Info("Event stream connected")
		err = s.consume(ctx, conn)
		conn.Close()
		s.connected.Store(false)
		metrics.SetStreamConnected(false)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && errors.IsFatal(err) {
			s.setErr(err)
			return err
		}
		s.log.WithError(err).Warn("Event stream disconnected, reconnecting")
	}
}

// connect dials and authenticates, then registers the state_changed
// subscription.
func (s *Stream) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, err := authDial(ctx, s.url, s.token, s.cfg.HandshakeTimeout)
	if err != nil {
		return nil, err
	}

	sub := struct {
		ID        int    `json:"id"`
		Type      string `json:"type"`
		EventType string `json:"event_type"`
	}{ID: 1, Type: "subscribe_events", EventType: "state_changed"}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, errors.WrapTransient(err, "failed to subscribe to state changes")
	}
	return conn, nil
}

// consume reads frames until the connection drops or the context is
// canceled. Malformed frames are skipped, never fatal.
func (s *Stream) consume(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)

	// Closing the connection is the only way to promptly unblock a
	// pending read.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	readTimeout := 2 * s.cfg.PingInterval
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.WrapTransient(err, "event stream read failed")
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.elog.DebugWithCategory(logger.CategoryStreamFrames, "Skipping malformed frame", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		switch f.Type {
		case "event":
			if f.Event == nil || f.Event.Data.EntityID == "" {
				continue
			}
			ev := Event{EntityID: f.Event.Data.EntityID, NewState: f.Event.Data.NewState}
			s.elog.DebugWithCategory(logger.CategoryStateEvents, "State changed", map[string]interface{}{
				"entity_id": ev.EntityID,
			})
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return nil
			}
		case "result":
			if f.Success != nil && !*f.Success {
				s.log.WithField("id", f.ID).Warn("Hub rejected a stream request")
			}
		}
	}
}
