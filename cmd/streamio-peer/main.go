// Command streamio-peer serves a scripted upstream for development.
//
// Resources come from a YAML seed file. Writes from clients are applied
// and pushed to every connected client. Editing the seed file while the
// peer runs pushes the changed resources.
//
// Usage:
//
//	streamio-peer -seed peer.yaml [flags]
//
// Flags:
//
//	-seed string        Seed file path (required)
//	-listen string      Listen address, overrides the seed file
//	-advertise          Announce the peer via mDNS
//	-log-level string   Log level: debug, info, warn, error (default "info")
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/streamio/streamio-go/internal/testpeer"
	"github.com/streamio/streamio-go/pkg/discovery"
	"github.com/streamio/streamio-go/pkg/identity"
	"github.com/streamio/streamio-go/pkg/version"
)

var (
	seedFile  string
	listen    string
	advertise bool
	logLevel  string
)

func init() {
	flag.StringVar(&seedFile, "seed", "", "Seed file path (required)")
	flag.StringVar(&listen, "listen", "", "Listen address, overrides the seed file")
	flag.BoolVar(&advertise, "advertise", false, "Announce the peer via mDNS")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if seedFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -seed is required")
		flag.Usage()
		os.Exit(1)
	}
	seed, err := LoadSeed(seedFile)
	if err != nil {
		logger.Error("peer: load seed", "error", err)
		os.Exit(1)
	}
	if listen != "" {
		seed.Listen = listen
	}
	advertise = advertise || seed.Advertise

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, seed, logger); err != nil {
		logger.Error("peer: stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, seed *Seed, logger *slog.Logger) error {
	peer := testpeer.New()
	loaded := seed.Apply(peer)
	peer.OnSync(syncHandler(peer, logger))
	logger.Info("peer: seeded", "resources", len(loaded))

	ln, err := net.Listen("tcp", seed.Listen)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(seed.Path, authorize(peer.Handler(version.SupportedSubprotocols()...), seed.Key(), logger))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("peer: listening", "addr", ln.Addr().String(), "path", seed.Path)

	if advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{TTL: 120 * time.Second, Logger: logger})
		info := &discovery.UpstreamInfo{
			InstanceName: seed.Instance,
			Port:         listenPort(ln.Addr()),
			Path:         seed.Path,
			Subprotocol:  version.SupportedSubprotocols()[0],
		}
		if err := adv.Advertise(ctx, info); err != nil {
			logger.Warn("peer: advertise failed", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	go watchSeed(ctx, peer, logger)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// authorize rejects upgrades without a valid bearer token when key is set.
func authorize(next http.Handler, key []byte, logger *slog.Logger) http.Handler {
	if key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := identity.Verify(r.Header.Get("Authorization"), key)
		if err != nil {
			logger.Info("peer: rejected", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		logger.Debug("peer: authorized", "userID", claims.UserID, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func listenPort(addr net.Addr) uint16 {
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseUint(port, 10, 16)
	return uint16(n)
}

// watchSeed reloads the seed file on change and pushes what changed.
func watchSeed(ctx context.Context, peer *testpeer.Peer, logger *slog.Logger) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("peer: seed watch unavailable", "error", err)
		return
	}
	defer w.Close()

	// Editors replace files, so watch the directory.
	if err := w.Add(filepath.Dir(seedFile)); err != nil {
		logger.Warn("peer: seed watch unavailable", "error", err)
		return
	}
	name := filepath.Clean(seedFile)

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("peer: seed watch error", "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			reload(peer, logger)
		}
	}
}

func reload(peer *testpeer.Peer, logger *slog.Logger) {
	seed, err := LoadSeed(seedFile)
	if err != nil {
		logger.Warn("peer: seed reload failed", "error", err)
		return
	}
	changed := seed.Apply(peer)
	for _, url := range changed {
		if err := peer.Push(url); err != nil {
			logger.Debug("peer: push failed", "url", url, "error", err)
		}
	}
	if len(changed) > 0 {
		logger.Info("peer: seed reloaded", "changed", strings.Join(changed, ","))
	}
}
