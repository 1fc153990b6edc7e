package config

import (
	"fmt"
	"strings"
)

// MaxLayoutSlots is the number of dashboards reachable by a single
// keystroke (keys 1 through 9).
const MaxLayoutSlots = 9

func (c *Config) Validate() error {
	if err := c.Hub.Validate(); err != nil {
		return fmt.Errorf("hub config: %w", err)
	}

	if err := c.Dashboard.Validate(); err != nil {
		return fmt.Errorf("dashboard config: %w", err)
	}

	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("graph config: %w", err)
	}

	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history config: %w", err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	if err := c.Recorder.Validate(); err != nil {
		return fmt.Errorf("recorder config: %w", err)
	}

	if err := c.Shell.Validate(); err != nil {
		return fmt.Errorf("shell config: %w", err)
	}

	if err := c.Assist.Validate(); err != nil {
		return fmt.Errorf("assist config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

func (h *HubConfig) Validate() error {
	// Host and token may be absent at load time; commands that talk to
	// the hub check for them. A scheme in the host is always wrong.
	if strings.Contains(h.Host, "://") {
		return fmt.Errorf("host must not include a scheme: %s", h.Host)
	}

	if h.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func (d *DashboardConfig) Validate() error {
	if len(d.Layouts) == 0 {
		return fmt.Errorf("at least one layout slot is required")
	}

	if len(d.Layouts) > MaxLayoutSlots {
		return fmt.Errorf("at most %d layout slots are supported, got %d", MaxLayoutSlots, len(d.Layouts))
	}

	if d.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}

	return nil
}

func (g *GraphConfig) Validate() error {
	if g.Width < 2 {
		return fmt.Errorf("width must be at least 2, got %d", g.Width)
	}

	if g.Height < 1 {
		return fmt.Errorf("height must be at least 1, got %d", g.Height)
	}

	if g.Markers < 2 {
		return fmt.Errorf("markers must be at least 2, got %d", g.Markers)
	}

	return nil
}

func (h *HistoryConfig) Validate() error {
	if h.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if h.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive")
	}

	if h.Burst < 1 {
		return fmt.Errorf("burst must be at least 1")
	}

	return nil
}

func (s *StreamConfig) Validate() error {
	if s.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}

	if s.PingInterval <= 0 {
		return fmt.Errorf("ping_interval must be positive")
	}

	if s.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect_attempts cannot be negative")
	}

	if s.ReconnectDelay < 0 {
		return fmt.Errorf("reconnect_delay cannot be negative")
	}

	return nil
}

func (r *RecorderConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.Addr == "" {
		return fmt.Errorf("addr is required when the recorder is enabled")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid database number: %d", r.DB)
	}

	if r.KeyPrefix == "" {
		return fmt.Errorf("key_prefix cannot be empty")
	}

	if r.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}

	if r.MaxEvents <= 0 {
		return fmt.Errorf("max_events must be positive")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (s *ShellConfig) Validate() error {
	if s.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}

	return nil
}

func (a *AssistConfig) Validate() error {
	if a.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		// File output rotates, so the rotation knobs must make sense.
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Path == "" {
		return fmt.Errorf("metrics path cannot be empty")
	}

	return nil
}
