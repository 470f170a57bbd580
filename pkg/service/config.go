package service

import (
	"fmt"
	"strings"

	"github.com/streamio/streamio-go/pkg/config"
	"github.com/streamio/streamio-go/pkg/store"
)

// ConfigFrom builds a ClientConfig from a loaded file configuration. The
// cache store is opened here. Logger, Capture and Registerer are left for
// the caller.
func ConfigFrom(cfg *config.Config) (ClientConfig, error) {
	var st store.Store
	switch strings.ToLower(cfg.Cache.Backend) {
	case config.BackendFile:
		fs, err := store.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("open cache: %w", err)
		}
		st = fs
	default:
		st = store.NewMemoryStore()
	}

	return ClientConfig{
		Transport: cfg.TransportConfig(""),
		Discovery: cfg.BrowserConfig(),
		Reconnect: cfg.Upstream.Reconnect,
		Registry:  cfg.RegistryConfig(),
		Store:     st,
		User:      cfg.User,
	}, nil
}
