package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/streamio/streamio-go/pkg/connection"
	"github.com/streamio/streamio-go/pkg/subscription"
	"github.com/streamio/streamio-go/pkg/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streamio.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Valid(t *testing.T) {
	cfg := loadFromString(t, `
upstream:
  url: wss://upstream.example:8443/channel
  token_env: MY_TOKEN
  keepalive:
    ping_interval: 10s
  reconnect:
    initial: 500ms
    max: 30s
cache:
  backend: file
  dir: /var/cache/streamio
  expire: 1h
subscriptions:
  grace_period: 2s
  precache: false
user: alice
log:
  level: debug
  format: json
  capture: /tmp/channel.slog
metrics:
  listen: ":9100"
`)

	if cfg.Upstream.URL != "wss://upstream.example:8443/channel" {
		t.Errorf("upstream.url: got %q", cfg.Upstream.URL)
	}
	if cfg.Upstream.TokenEnv != "MY_TOKEN" {
		t.Errorf("upstream.token_env: got %q", cfg.Upstream.TokenEnv)
	}
	if cfg.Upstream.KeepAlive.PingInterval != 10*time.Second {
		t.Errorf("keepalive.ping_interval: got %v", cfg.Upstream.KeepAlive.PingInterval)
	}
	if cfg.Upstream.KeepAlive.PongTimeout != transport.DefaultPongTimeout {
		t.Errorf("keepalive.pong_timeout: got %v, want default", cfg.Upstream.KeepAlive.PongTimeout)
	}
	if cfg.Upstream.Reconnect.Initial != 500*time.Millisecond || cfg.Upstream.Reconnect.Max != 30*time.Second {
		t.Errorf("reconnect: got %+v", cfg.Upstream.Reconnect)
	}
	if cfg.Upstream.Reconnect.Multiplier != connection.BackoffMultiplier {
		t.Errorf("reconnect.multiplier: got %v, want default", cfg.Upstream.Reconnect.Multiplier)
	}
	if cfg.Cache.Backend != BackendFile || cfg.Cache.Dir != "/var/cache/streamio" {
		t.Errorf("cache: got %+v", cfg.Cache)
	}
	if cfg.Cache.Expire != time.Hour {
		t.Errorf("cache.expire: got %v", cfg.Cache.Expire)
	}
	if cfg.Subscriptions.GracePeriod != 2*time.Second {
		t.Errorf("grace_period: got %v", cfg.Subscriptions.GracePeriod)
	}
	if cfg.Subscriptions.Precache {
		t.Error("precache: got true, want false")
	}
	if cfg.User != "alice" {
		t.Errorf("user: got %q", cfg.User)
	}
	if level, _ := cfg.Log.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("log.level: got %v", level)
	}
	if cfg.Metrics.Listen != ":9100" {
		t.Errorf("metrics.listen: got %q", cfg.Metrics.Listen)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "user: bob\n")

	sub := subscription.DefaultConfig()
	if cfg.Subscriptions.GracePeriod != sub.GracePeriod {
		t.Errorf("default grace_period: got %v, want %v", cfg.Subscriptions.GracePeriod, sub.GracePeriod)
	}
	if cfg.Subscriptions.FetchTimeout != sub.FetchTimeout {
		t.Errorf("default fetch_timeout: got %v, want %v", cfg.Subscriptions.FetchTimeout, sub.FetchTimeout)
	}
	if cfg.Cache.Expire != sub.Expire {
		t.Errorf("default expire: got %v, want %v", cfg.Cache.Expire, sub.Expire)
	}
	if cfg.Cache.Backend != BackendMemory {
		t.Errorf("default backend: got %q", cfg.Cache.Backend)
	}
	if cfg.Upstream.TokenEnv != DefaultTokenEnv {
		t.Errorf("default token_env: got %q", cfg.Upstream.TokenEnv)
	}
	if !cfg.Subscriptions.Precache {
		t.Error("default precache: got false")
	}
	if cfg.Upstream.URL != "" {
		t.Errorf("default url: got %q, want empty for discovery", cfg.Upstream.URL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad scheme", "upstream:\n  url: http://x\n", "scheme must be ws or wss"},
		{"no host", "upstream:\n  url: ws://\n", "host is required"},
		{"file without dir", "cache:\n  backend: file\n", "cache.dir is required"},
		{"unknown backend", "cache:\n  backend: redis\n", "unknown backend"},
		{"negative grace", "subscriptions:\n  grace_period: -1s\n", "grace_period must be positive"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "unknown format"},
		{"bad yaml", "upstream: [\n", "parse yaml"},
		{"bad duration", "cache:\n  expire: soon\n", "parse yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Backend = "tape"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "cache.backend") || !strings.Contains(msg, "log.format") {
		t.Errorf("error %q should name both fields", msg)
	}
}

func TestToken(t *testing.T) {
	t.Setenv("STREAMIO_TEST_TOKEN", "abc")

	u := UpstreamConfig{TokenEnv: "STREAMIO_TEST_TOKEN"}
	if got := u.Token(); got != "abc" {
		t.Errorf("Token: got %q", got)
	}
	if got := (UpstreamConfig{}).Token(); got != "" {
		t.Errorf("Token without env: got %q", got)
	}
}

func TestDerivedConfigs(t *testing.T) {
	t.Setenv("STREAMIO_TEST_TOKEN", "tok")
	cfg := loadFromString(t, `
upstream:
  url: ws://configured:1/
  token_env: STREAMIO_TEST_TOKEN
subscriptions:
  fetch_timeout: 3s
discovery:
  instance: Lab
`)

	reg := cfg.RegistryConfig()
	if reg.FetchTimeout != 3*time.Second || reg.Expire != cfg.Cache.Expire {
		t.Errorf("RegistryConfig: got %+v", reg)
	}

	tc := cfg.TransportConfig("")
	if tc.URL != "ws://configured:1/" || tc.Token != "tok" {
		t.Errorf("TransportConfig: got URL %q token %q", tc.URL, tc.Token)
	}
	if tc = cfg.TransportConfig("ws://found:2/"); tc.URL != "ws://found:2/" {
		t.Errorf("TransportConfig override: got %q", tc.URL)
	}

	if bc := cfg.BrowserConfig(); bc.Instance != "Lab" {
		t.Errorf("BrowserConfig: got %+v", bc)
	}
}
