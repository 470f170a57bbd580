package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(instance string, port int, ips []string, txt ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{}
	e.Instance = instance
	e.HostName = instance + ".local."
	e.Port = port
	e.Text = txt
	for _, ip := range ips {
		e.AddrIPv4 = append(e.AddrIPv4, net.ParseIP(ip))
	}
	return e
}

// fakeBrowser replays entries and then waits for cancellation.
func fakeBrowser(config BrowserConfig, found ...*zeroconf.ServiceEntry) *MDNSBrowser {
	b := NewMDNSBrowser(config)
	b.browse = func(ctx context.Context, _, _ string, entries, _ chan *zeroconf.ServiceEntry) error {
		for _, e := range found {
			select {
			case entries <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		<-ctx.Done()
		return nil
	}
	return b
}

func TestTXTRoundTrip(t *testing.T) {
	info := &UpstreamInfo{Path: "/channel", Subprotocol: "streamio/1", TLS: true, ID: "up-1"}

	strs := TXTRecordsToStrings(EncodeTXT(info))
	assert.Equal(t, []string{"id=up-1", "path=/channel", "proto=streamio/1", "tls=1"}, strs)

	got, err := DecodeTXT(StringsToTXTRecords(strs))
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestDecodeTXT(t *testing.T) {
	tests := []struct {
		name    string
		txt     TXTRecordMap
		wantErr error
	}{
		{"missing proto", TXTRecordMap{TXTKeyPath: "/"}, ErrMissingRequired},
		{"empty proto", TXTRecordMap{TXTKeySubprotocol: ""}, ErrMissingRequired},
		{"relative path", TXTRecordMap{TXTKeySubprotocol: "streamio/1", TXTKeyPath: "ws"}, ErrInvalidPath},
		{"minimal", TXTRecordMap{TXTKeySubprotocol: "streamio/1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTXT(tt.txt)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "flag", "", "b=x=y"})
	assert.Equal(t, TXTRecordMap{"a": "1", "flag": "", "b": "x=y"}, txt)
}

func TestUpstreamInfoValidate(t *testing.T) {
	ok := &UpstreamInfo{InstanceName: "Kitchen", Subprotocol: "streamio/1"}
	assert.NoError(t, ok.Validate())

	long := *ok
	long.InstanceName = string(make([]byte, MaxInstanceNameLen+1))
	assert.ErrorIs(t, long.Validate(), ErrInstanceNameTooLong)

	noProto := *ok
	noProto.Subprotocol = ""
	assert.ErrorIs(t, noProto.Validate(), ErrMissingRequired)

	badPath := *ok
	badPath.Path = "x"
	assert.ErrorIs(t, badPath.Validate(), ErrInvalidPath)
}

func TestUpstreamURL(t *testing.T) {
	up := &Upstream{
		UpstreamInfo: UpstreamInfo{Port: 9000, Path: "/ws"},
		Host:         "peer.local.",
		Addresses:    []string{"10.0.0.5"},
	}
	assert.Equal(t, "ws://10.0.0.5:9000/ws", up.URL())

	up.Addresses = nil
	up.TLS = true
	up.Port = 0
	up.Path = ""
	assert.Equal(t, "wss://peer.local.:8443/", up.URL())

	up.Addresses = []string{"fe80::1"}
	assert.Equal(t, "wss://[fe80::1]:8443/", up.URL())
}

func TestEntryToUpstream(t *testing.T) {
	up := entryToUpstream(entry("Lab", 7000, []string{"192.168.1.2"}, "proto=streamio/1", "path=/c"))
	require.NotNil(t, up)
	assert.Equal(t, "Lab", up.InstanceName)
	assert.Equal(t, uint16(7000), up.Port)
	assert.Equal(t, []string{"192.168.1.2"}, up.Addresses)
	assert.Equal(t, "Lab.local.", up.Host)

	assert.Nil(t, entryToUpstream(entry("Junk", 1, nil, "path=/")))
}

func TestAddressBookkeeping(t *testing.T) {
	addrs := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "10.0.0.2"})
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, addrs)

	addrs = removeAddresses(addrs, entry("x", 0, []string{"10.0.0.1"}))
	assert.Equal(t, []string{"10.0.0.2"}, addrs)
}

func TestBrowseMergesInstances(t *testing.T) {
	b := fakeBrowser(DefaultBrowserConfig(),
		entry("A", 1, []string{"10.0.0.1"}, "proto=streamio/1"),
		entry("A", 1, []string{"10.0.0.2"}, "proto=streamio/1"),
		entry("B", 2, []string{"10.0.0.3"}, "proto=streamio/1"),
	)
	defer b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	results, err := b.Browse(ctx)
	require.NoError(t, err)

	first := <-results
	second := <-results
	assert.Equal(t, "A", first.InstanceName)
	assert.Equal(t, "B", second.InstanceName)
}

func TestResolve(t *testing.T) {
	b := fakeBrowser(DefaultBrowserConfig(),
		entry("Old", 1, []string{"10.0.0.1"}, "proto=streamio/0"),
		entry("Broken", 2, []string{"10.0.0.2"}),
		entry("Good", 3, []string{"10.0.0.3"}, "proto=streamio/1", "path=/ch"),
	)
	defer b.Stop()

	up, err := b.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Good", up.InstanceName)
	assert.Equal(t, "ws://10.0.0.3:3/ch", up.URL())
}

func TestResolveInstanceFilter(t *testing.T) {
	cfg := DefaultBrowserConfig()
	cfg.Instance = "Second"
	b := fakeBrowser(cfg,
		entry("First", 1, []string{"10.0.0.1"}, "proto=streamio/1"),
		entry("Second", 2, []string{"10.0.0.2"}, "proto=streamio/1"),
	)
	defer b.Stop()

	up, err := b.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Second", up.InstanceName)
}

func TestResolveNotFound(t *testing.T) {
	b := fakeBrowser(BrowserConfig{BrowseTimeout: 50 * time.Millisecond})
	defer b.Stop()

	_, err := b.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveBrowseError(t *testing.T) {
	b := NewMDNSBrowser(DefaultBrowserConfig())
	b.browse = func(context.Context, string, string, chan *zeroconf.ServiceEntry, chan *zeroconf.ServiceEntry) error {
		return errors.New("no multicast")
	}

	_, err := b.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBrowseAfterStop(t *testing.T) {
	b := fakeBrowser(DefaultBrowserConfig())
	b.Stop()

	_, err := b.Browse(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdvertiserUpdateWithoutAdvertise(t *testing.T) {
	a := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	err := a.Update(&UpstreamInfo{InstanceName: "x", Subprotocol: "streamio/1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, a.Advertised())
	a.Stop()
}

func TestAdvertiserRejectsInvalidInfo(t *testing.T) {
	a := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	err := a.Advertise(context.Background(), &UpstreamInfo{InstanceName: "x"})
	assert.ErrorIs(t, err, ErrMissingRequired)
}
