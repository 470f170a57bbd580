package discovery

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of channel upstreams.
	ServiceType = "_streamio._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is used when an advertisement names no port.
	DefaultPort = 8443

	// BrowseTimeout is the default timeout for Resolve.
	BrowseTimeout = 5 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyPath        = "path"
	TXTKeySubprotocol = "proto"
	TXTKeyTLS         = "tls"
	TXTKeyID          = "id"
)

// Discovery errors.
var (
	ErrNotFound            = errors.New("no upstream found")
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 bytes")
	ErrInvalidPath         = errors.New("path must start with /")
)

// UpstreamInfo is what an upstream advertises about itself.
type UpstreamInfo struct {
	// InstanceName is the user-facing service name.
	InstanceName string

	Port uint16

	// Path is the WebSocket endpoint path.
	Path string

	// Subprotocol is the channel subprotocol offered, e.g. "streamio/1".
	Subprotocol string

	TLS bool

	// ID optionally identifies the upstream across restarts.
	ID string
}

// Validate checks the info before advertising.
func (i *UpstreamInfo) Validate() error {
	if err := ValidateInstanceName(i.InstanceName); err != nil {
		return err
	}
	if i.Subprotocol == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySubprotocol)
	}
	if i.Path != "" && i.Path[0] != '/' {
		return ErrInvalidPath
	}
	return nil
}

// Upstream is a discovered upstream.
type Upstream struct {
	UpstreamInfo

	Host string

	// Addresses are all addresses seen for this instance across interfaces.
	Addresses []string
}

// URL builds the WebSocket URL. The first address is preferred over the
// host name.
func (u *Upstream) URL() string {
	host := u.Host
	if len(u.Addresses) > 0 {
		host = u.Addresses[0]
	}
	port := u.Port
	if port == 0 {
		port = DefaultPort
	}

	scheme := "ws"
	if u.TLS {
		scheme = "wss"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	return (&url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(port))),
		Path:   path,
	}).String()
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
