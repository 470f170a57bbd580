package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration

	// Logger receives diagnostics. If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// MDNSAdvertiser announces one upstream at a time.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
	info   *UpstreamInfo
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// Advertise starts announcing info, replacing any earlier announcement.
func (a *MDNSAdvertiser) Advertise(_ context.Context, info *UpstreamInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.shutdownLocked()

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.InstanceName,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeTXT(info)),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register upstream service: %w", err)
	}

	a.server = server
	copied := *info
	a.info = &copied
	a.debugLog("discovery: advertising", "instance", info.InstanceName, "port", port)
	return nil
}

// Update replaces the TXT records of the running announcement.
func (a *MDNSAdvertiser) Update(info *UpstreamInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotFound
	}
	a.server.SetText(TXTRecordsToStrings(EncodeTXT(info)))
	copied := *info
	a.info = &copied
	return nil
}

// Advertised returns the running announcement, or nil.
func (a *MDNSAdvertiser) Advertised() *UpstreamInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.info == nil {
		return nil
	}
	copied := *a.info
	return &copied
}

// Stop ends the announcement.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdownLocked()
}

func (a *MDNSAdvertiser) shutdownLocked() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.info = nil
	}
}

// interfaces returns nil to use all interfaces.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

func (a *MDNSAdvertiser) debugLog(msg string, args ...any) {
	if a.config.Logger != nil {
		a.config.Logger.Debug(msg, args...)
	}
}
