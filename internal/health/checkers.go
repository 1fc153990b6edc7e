package health

import (
	"context"

	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/internal/hub"
	"github.com/hubdeck/hubdeck/internal/recorder"
)

// HubChecker probes the hub's REST API.
type HubChecker struct {
	client *hub.Client
}

// NewHubChecker creates a hub API checker.
func NewHubChecker(client *hub.Client) *HubChecker {
	return &HubChecker{client: client}
}

func (c *HubChecker) Name() string {
	return "hub"
}

func (c *HubChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// StreamChecker reports the event stream's connection state. The
// stream reconnects on its own, so a dropped connection is degraded
// rather than down until the stream gives up.
type StreamChecker struct {
	stream *hub.Stream
}

// NewStreamChecker creates an event stream checker.
func NewStreamChecker(stream *hub.Stream) *StreamChecker {
	return &StreamChecker{stream: stream}
}

func (c *StreamChecker) Name() string {
	return "stream"
}

func (c *StreamChecker) Check(ctx context.Context) error {
	if c.stream.Connected() {
		return nil
	}
	if err := c.stream.Err(); err != nil {
		return err
	}
	return errors.NewTransientError("event stream is reconnecting")
}

// RecorderChecker probes the recorder's redis backend.
type RecorderChecker struct {
	rec *recorder.Recorder
}

// NewRecorderChecker creates a recorder checker.
func NewRecorderChecker(rec *recorder.Recorder) *RecorderChecker {
	return &RecorderChecker{rec: rec}
}

func (c *RecorderChecker) Name() string {
	return "recorder"
}

func (c *RecorderChecker) Check(ctx context.Context) error {
	return c.rec.Ping(ctx)
}
