package discovery

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/streamio/streamio-go/pkg/version"
)

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Resolve when ctx has no deadline.
	// Default: 5 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Instance restricts Resolve to one instance name.
	Instance string

	// Logger receives diagnostics. If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}

// browseFunc matches zeroconf.Browse.
type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry) error

// MDNSBrowser looks up upstreams.
type MDNSBrowser struct {
	config BrowserConfig
	browse browseFunc

	mu      sync.Mutex
	stopped bool
	cancels []context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	b := &MDNSBrowser{config: config}
	b.browse = func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry) error {
		return zeroconf.Browse(ctx, service, domain, entries, removed, b.clientOptions()...)
	}
	return b
}

// Browse streams upstreams as they appear. Addresses seen for the same
// instance on several interfaces are merged, and an instance is emitted
// once. The channel closes when ctx is done or Stop is called.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Upstream, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		cancel()
		return nil, context.Canceled
	}
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	out := make(chan *Upstream)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]*Upstream)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				up := entryToUpstream(entry)
				if up == nil {
					b.debugLog("discovery: ignoring entry", "instance", entry.Instance)
					continue
				}
				if existing, found := seen[up.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, up.Addresses)
					continue
				}
				seen[up.InstanceName] = up
				select {
				case out <- up:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				if existing, found := seen[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(seen, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := b.browse(ctx, ServiceType, Domain, entries, removed); err != nil {
			b.debugLog("discovery: browse failed", "error", err)
			cancel()
		}
	}()

	return out, nil
}

// Resolve returns the first upstream whose subprotocol is compatible with
// this client.
func (b *MDNSBrowser) Resolve(ctx context.Context) (*Upstream, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for up := range results {
		if b.config.Instance != "" && up.InstanceName != b.config.Instance {
			continue
		}
		if err := version.Check(up.Subprotocol); err != nil {
			b.debugLog("discovery: incompatible upstream", "instance", up.InstanceName, "error", err)
			continue
		}
		b.debugLog("discovery: resolved", "instance", up.InstanceName, "url", up.URL())
		return up, nil
	}
	return nil, ErrNotFound
}

// Stop cancels all running browse operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

func (b *MDNSBrowser) clientOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func (b *MDNSBrowser) debugLog(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, args...)
	}
}

// entryToUpstream converts a zeroconf entry. Entries with unusable TXT
// records return nil.
func entryToUpstream(entry *zeroconf.ServiceEntry) *Upstream {
	info, err := DecodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	info.InstanceName = entry.Instance
	info.Port = uint16(entry.Port)

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &Upstream{
		UpstreamInfo: *info,
		Host:         entry.HostName,
		Addresses:    addrs,
	}
}

// mergeAddresses adds new addresses to existing, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the addresses of entry from addresses.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	gone := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		gone[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		gone[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !gone[addr] {
			result = append(result, addr)
		}
	}
	return result
}
