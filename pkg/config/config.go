package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/streamio/streamio-go/pkg/connection"
	"github.com/streamio/streamio-go/pkg/discovery"
	"github.com/streamio/streamio-go/pkg/subscription"
	"github.com/streamio/streamio-go/pkg/transport"
)

// Defaults not owned by other packages.
const (
	DefaultTokenEnv  = "STREAMIO_TOKEN"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultBackend   = BackendMemory
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Config is the top-level client configuration.
type Config struct {
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Cache         CacheConfig         `yaml:"cache"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`

	// User overrides the user taken from the access token.
	User string `yaml:"user"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// UpstreamConfig describes how to reach the upstream.
type UpstreamConfig struct {
	// URL is the ws:// or wss:// endpoint. Empty means discover it via mDNS.
	URL string `yaml:"url"`

	// TokenEnv names the environment variable holding the access token.
	TokenEnv string `yaml:"token_env"`

	TLS *transport.TLSConfig `yaml:"tls"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxMessageSize   int64         `yaml:"max_message_size"`

	KeepAlive transport.KeepAliveConfig `yaml:"keepalive"`
	Reconnect connection.BackoffConfig  `yaml:"reconnect"`
}

// Token returns the access token from the environment.
func (u UpstreamConfig) Token() string {
	if u.TokenEnv == "" {
		return ""
	}
	return os.Getenv(u.TokenEnv)
}

// DiscoveryConfig configures the mDNS lookup used when no URL is set.
type DiscoveryConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Interface string        `yaml:"interface"`

	// Instance picks one advertised upstream by name.
	Instance string `yaml:"instance"`
}

// CacheConfig selects the cache store.
type CacheConfig struct {
	// Backend is memory or file.
	Backend string `yaml:"backend"`

	// Dir is the FileStore directory. Required for the file backend.
	Dir string `yaml:"dir"`

	// Expire is the lifetime of a persisted entry.
	Expire time.Duration `yaml:"expire"`
}

// SubscriptionsConfig tunes the registry.
type SubscriptionsConfig struct {
	GracePeriod  time.Duration            `yaml:"grace_period"`
	FetchTimeout time.Duration            `yaml:"fetch_timeout"`
	Retry        connection.BackoffConfig `yaml:"retry"`

	// Precache is the default for observers created by the shell.
	Precache bool `yaml:"precache"`
}

// LogConfig configures operational logging and protocol capture.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`

	// Capture is the path of a protocol capture file. Empty disables it.
	Capture string `yaml:"capture"`
}

// SlogLevel returns the parsed level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `yaml:"listen"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	sub := subscription.DefaultConfig()
	return &Config{
		Upstream: UpstreamConfig{
			TokenEnv:         DefaultTokenEnv,
			HandshakeTimeout: transport.DefaultHandshakeTimeout,
			WriteTimeout:     transport.DefaultWriteTimeout,
			MaxMessageSize:   transport.DefaultMaxMessageSize,
			KeepAlive:        transport.DefaultKeepAliveConfig(),
			Reconnect:        connection.DefaultBackoffConfig(),
		},
		Discovery: DiscoveryConfig{
			Timeout: discovery.BrowseTimeout,
		},
		Cache: CacheConfig{
			Backend: DefaultBackend,
			Expire:  sub.Expire,
		},
		Subscriptions: SubscriptionsConfig{
			GracePeriod:  sub.GracePeriod,
			FetchTimeout: sub.FetchTimeout,
			Retry:        sub.Retry,
			Precache:     true,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Validate checks required fields and structural constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.Upstream.URL != "" {
		u, err := url.Parse(c.Upstream.URL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("upstream.url: %w", err))
		case u.Scheme != "ws" && u.Scheme != "wss":
			errs = append(errs, fmt.Errorf("upstream.url: scheme must be ws or wss, got %q", u.Scheme))
		case u.Host == "":
			errs = append(errs, errors.New("upstream.url: host is required"))
		}
	}
	if c.Upstream.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("upstream.handshake_timeout must be positive"))
	}
	if c.Upstream.WriteTimeout <= 0 {
		errs = append(errs, errors.New("upstream.write_timeout must be positive"))
	}
	if c.Upstream.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("upstream.max_message_size must be positive"))
	}
	if c.Upstream.KeepAlive.PingInterval < 0 || c.Upstream.KeepAlive.PongTimeout < 0 {
		errs = append(errs, errors.New("upstream.keepalive: durations must not be negative"))
	}
	if c.Discovery.Timeout <= 0 {
		errs = append(errs, errors.New("discovery.timeout must be positive"))
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("cache.dir is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.Expire <= 0 {
		errs = append(errs, errors.New("cache.expire must be positive"))
	}

	if c.Subscriptions.GracePeriod <= 0 {
		errs = append(errs, errors.New("subscriptions.grace_period must be positive"))
	}
	if c.Subscriptions.FetchTimeout <= 0 {
		errs = append(errs, errors.New("subscriptions.fetch_timeout must be positive"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// RegistryConfig maps the subscription settings onto a registry config.
// Logger, OnError and Registerer are left for the caller.
func (c *Config) RegistryConfig() subscription.Config {
	return subscription.Config{
		Expire:       c.Cache.Expire,
		GracePeriod:  c.Subscriptions.GracePeriod,
		FetchTimeout: c.Subscriptions.FetchTimeout,
		Retry:        c.Subscriptions.Retry,
	}
}

// TransportConfig maps the upstream settings onto a dialer config. url
// overrides Upstream.URL when the upstream was discovered.
func (c *Config) TransportConfig(url string) transport.Config {
	if url == "" {
		url = c.Upstream.URL
	}
	return transport.Config{
		URL:              url,
		Token:            c.Upstream.Token(),
		TLS:              c.Upstream.TLS,
		HandshakeTimeout: c.Upstream.HandshakeTimeout,
		WriteTimeout:     c.Upstream.WriteTimeout,
		MaxMessageSize:   c.Upstream.MaxMessageSize,
		KeepAlive:        c.Upstream.KeepAlive,
	}
}

// BrowserConfig maps the discovery settings.
func (c *Config) BrowserConfig() discovery.BrowserConfig {
	return discovery.BrowserConfig{
		BrowseTimeout: c.Discovery.Timeout,
		Interface:     c.Discovery.Interface,
		Instance:      c.Discovery.Instance,
	}
}
