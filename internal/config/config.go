package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Hub       HubConfig       `mapstructure:"hub"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Graph     GraphConfig     `mapstructure:"graph"`
	History   HistoryConfig   `mapstructure:"history"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Shell     ShellConfig     `mapstructure:"shell"`
	Assist    AssistConfig    `mapstructure:"assist"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type HubConfig struct {
	Host    string        `mapstructure:"host"` // host[:port], no scheme
	Token   string        `mapstructure:"token"`
	SSL     bool          `mapstructure:"ssl"` // https/wss plus certificate verification
	Timeout time.Duration `mapstructure:"timeout"`
}

// RestURL returns the base REST endpoint derived from host and ssl.
func (h *HubConfig) RestURL() string {
	scheme := "http"
	if h.SSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api", scheme, h.Host)
}

// WebSocketURL returns the event stream endpoint derived from host and ssl.
func (h *HubConfig) WebSocketURL() string {
	scheme := "ws"
	if h.SSL {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/api/websocket", scheme, h.Host)
}

type DashboardConfig struct {
	// Layouts maps numbered keyboard slots to layout files: key "1"
	// selects Layouts[0] and so on, up to nine slots.
	Layouts      []string      `mapstructure:"layouts"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	HotReload    bool          `mapstructure:"hot_reload"`
	Title        string        `mapstructure:"title"`
}

type GraphConfig struct {
	Width   int `mapstructure:"width"`
	Height  int `mapstructure:"height"`
	Markers int `mapstructure:"markers"`
}

type HistoryConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	DefaultLookback string        `mapstructure:"default_lookback"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second
	Burst           int           `mapstructure:"burst"`
}

type StreamConfig struct {
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

type RecorderConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
	MaxEvents    int64         `mapstructure:"max_events"` // retained events per entity
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type ShellConfig struct {
	HistoryFile string        `mapstructure:"history_file"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type AssistConfig struct {
	Pipeline         string        `mapstructure:"pipeline"`
	ConversationFile string        `mapstructure:"conversation_file"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	// Debug/introspection HTTP server. Off by default so the binary can
	// run as a plain terminal client.
	Enabled         bool          `mapstructure:"enabled"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	Output     string `mapstructure:"output"` // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from an optional YAML file plus environment
// overrides. An empty path searches the standard locations and missing
// files are fine there; an explicit path must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("HUBDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("hubdeck")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hubdeck")
		v.AddConfigPath("/etc/hubdeck")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Hub defaults
	v.SetDefault("hub.host", "")
	v.SetDefault("hub.token", "")
	v.SetDefault("hub.ssl", true)
	v.SetDefault("hub.timeout", "10s")

	// Dashboard defaults
	v.SetDefault("dashboard.layouts", []string{
		"layouts/dashboard1.yaml",
		"layouts/dashboard2.yaml",
		"layouts/dashboard3.yaml",
		"layouts/dashboard4.yaml",
	})
	v.SetDefault("dashboard.tick_interval", "1s")
	v.SetDefault("dashboard.hot_reload", false)
	v.SetDefault("dashboard.title", "hubdeck")

	// Graph defaults
	v.SetDefault("graph.width", 50)
	v.SetDefault("graph.height", 8)
	v.SetDefault("graph.markers", 5)

	// History defaults
	v.SetDefault("history.timeout", "10s")
	v.SetDefault("history.default_lookback", "-24h")
	v.SetDefault("history.rate_limit", 5.0)
	v.SetDefault("history.burst", 10)

	// Stream defaults
	v.SetDefault("stream.handshake_timeout", "10s")
	v.SetDefault("stream.ping_interval", "30s")
	v.SetDefault("stream.reconnect_attempts", 5)
	v.SetDefault("stream.reconnect_delay", "2s")

	// Recorder defaults
	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.addr", "localhost:6379")
	v.SetDefault("recorder.db", 0)
	v.SetDefault("recorder.key_prefix", "hubdeck")
	v.SetDefault("recorder.ttl", "24h")
	v.SetDefault("recorder.max_events", 1000)
	v.SetDefault("recorder.dial_timeout", "5s")
	v.SetDefault("recorder.read_timeout", "3s")
	v.SetDefault("recorder.write_timeout", "3s")
	v.SetDefault("recorder.pool_size", 10)
	v.SetDefault("recorder.min_idle_conns", 2)

	// Shell defaults
	v.SetDefault("shell.history_file", "")
	v.SetDefault("shell.cache_ttl", "5m")

	// Assist defaults
	v.SetDefault("assist.pipeline", "")
	v.SetDefault("assist.conversation_file", "")
	v.SetDefault("assist.timeout", "30s")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.listen_addr", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults. The dashboard owns the terminal, so logs go to a
	// file unless overridden.
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "hubdeck.log")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 14)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
