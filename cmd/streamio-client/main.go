// Command streamio-client is a reference client for real-time data
// subscriptions.
//
// It connects to an upstream given by URL or found via mDNS, keeps a
// local cache of every subscribed resource and reconnects after losses.
//
// Usage:
//
//	streamio-client [flags]
//
// Flags:
//
//	-config string       Configuration file path
//	-url string          Upstream URL (ws:// or wss://), overrides the config file
//	-user string         Current user, overrides the access token
//	-cache-dir string    Persist the cache in this directory
//	-log-level string    Log level: debug, info, warn, error
//	-log-format string   Log format: text, json
//	-capture string      Write a protocol capture file
//	-trace               Mirror protocol events into the log
//	-metrics string      Serve Prometheus metrics on this address
//	-interactive         Enable interactive command mode
//
// Examples:
//
//	# Connect to a known upstream and explore interactively
//	streamio-client -url ws://localhost:8443/stream -interactive
//
//	# Discover the upstream, persist the cache and expose metrics
//	streamio-client -cache-dir /var/lib/streamio -metrics :9100
//
// Interactive Commands:
//
//	doc <url>     - Observe a document
//	list <url>    - Observe a collection
//	show <handle> - Print observed data
//	save, emit    - Send writes and events
//	subs          - List subscriptions
//	status        - Show client status
//	quit          - Exit the client
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamio/streamio-go/cmd/streamio-client/interactive"
	"github.com/streamio/streamio-go/pkg/config"
	"github.com/streamio/streamio-go/pkg/log"
	"github.com/streamio/streamio-go/pkg/service"
)

// Flags holds the command-line settings. Empty values keep the config
// file setting.
type Flags struct {
	ConfigFile  string
	URL         string
	User        string
	CacheDir    string
	LogLevel    string
	LogFormat   string
	Capture     string
	Trace       bool
	Metrics     string
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.URL, "url", "", "Upstream URL (ws:// or wss://), overrides the config file")
	flag.StringVar(&flags.User, "user", "", "Current user, overrides the access token")
	flag.StringVar(&flags.CacheDir, "cache-dir", "", "Persist the cache in this directory")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.LogFormat, "log-format", "", "Log format: text, json")
	flag.StringVar(&flags.Capture, "capture", "", "Write a protocol capture file")
	flag.BoolVar(&flags.Trace, "trace", false, "Mirror protocol events into the log")
	flag.StringVar(&flags.Metrics, "metrics", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	lvl, _ := cfg.Log.SlogLevel()
	level.Set(lvl)
	logOut := &switchWriter{w: os.Stderr}
	logger := newLogger(logOut, cfg.Log.Format, level)

	if err := run(cfg, logger, level, logOut); err != nil {
		logger.Error("client: stopped", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the flags.
func loadConfig(f Flags) (*config.Config, error) {
	cfg := config.Defaults()
	if f.ConfigFile != "" {
		loaded, err := config.Load(f.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, f Flags) {
	if f.URL != "" {
		cfg.Upstream.URL = f.URL
	}
	if f.User != "" {
		cfg.User = f.User
	}
	if f.CacheDir != "" {
		cfg.Cache.Backend = config.BackendFile
		cfg.Cache.Dir = f.CacheDir
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Log.Format = f.LogFormat
	}
	if f.Capture != "" {
		cfg.Log.Capture = f.Capture
	}
	if f.Metrics != "" {
		cfg.Metrics.Listen = f.Metrics
	}
}

func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(cfg *config.Config, logger *slog.Logger, level *slog.LevelVar, logOut *switchWriter) error {
	clientCfg, err := service.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	clientCfg.Logger = logger

	var captures []log.Logger
	if cfg.Log.Capture != "" {
		fl, err := log.NewFileLogger(cfg.Log.Capture)
		if err != nil {
			return fmt.Errorf("open capture: %w", err)
		}
		defer fl.Close()
		captures = append(captures, fl)
		logger.Info("client: capturing", "path", fl.Path())
	}
	if flags.Trace {
		captures = append(captures, log.NewSlogAdapter(logger))
	}
	if len(captures) > 0 {
		clientCfg.Capture = log.NewMultiLogger(captures...)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	clientCfg.Registry.Registerer = reg

	client, err := service.NewClient(clientCfg)
	if err != nil {
		return err
	}
	client.OnEvent(eventLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return err
	}
	logger.Info("client: started", "state", client.State().String(), "url", cfg.Upstream.URL)

	var metricsSrv *http.Server
	if cfg.Metrics.Listen != "" {
		metricsSrv = serveMetrics(cfg.Metrics.Listen, reg, logger)
	}

	if flags.ConfigFile != "" {
		go func() {
			err := config.Watch(ctx, flags.ConfigFile, logger, func(next *config.Config) {
				applyFlags(next, flags)
				if lvl, err := next.Log.SlogLevel(); err == nil {
					level.Set(lvl)
				}
				if next.User != "" {
					client.SetUser(next.User)
				}
			})
			if err != nil {
				logger.Warn("client: config watch unavailable", "error", err)
			}
		}()
	}

	if flags.Interactive {
		sh, err := interactive.New(client, cfg.Subscriptions.Precache)
		if err != nil {
			return err
		}
		logOut.Set(sh.Stdout())
		go sh.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	waitErr := make(chan error, 1)
	go func() { waitErr <- client.Wait() }()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("client: received signal", "signal", sig.String())
	case <-ctx.Done():
	case runErr = <-waitErr:
	}

	logger.Info("client: shutting down")
	cancel()

	if metricsSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		stop()
	}
	if err := client.Stop(); err != nil && !errors.Is(err, service.ErrNotStarted) {
		logger.Warn("client: stop failed", "error", err)
	}
	logOut.Set(os.Stderr)
	return runErr
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("client: serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("client: metrics server failed", "error", err)
		}
	}()
	return srv
}

func eventLogger(logger *slog.Logger) service.EventHandler {
	return func(ev service.Event) {
		switch ev.Type {
		case service.EventConnected:
			logger.Info("client: connected", "url", ev.URL)
		case service.EventDisconnected:
			logger.Info("client: disconnected", "url", ev.URL)
		case service.EventReconnecting:
			logger.Info("client: reconnecting", "attempt", ev.Attempt, "delay", ev.Delay)
		case service.EventUpstreamDiscovered:
			logger.Info("client: upstream discovered", "url", ev.URL)
		case service.EventUserChanged:
			logger.Info("client: user changed", "userID", ev.UserID)
		case service.EventFailure:
			logger.Warn("client: failure", "error", ev.Error)
		}
	}
}

// switchWriter lets the log follow the interactive prompt.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
