// Package version provides protocol version parsing and the WebSocket
// subprotocol names derived from it.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
const Current = "1.0"

// SubprotocolPrefix starts every channel subprotocol name.
const SubprotocolPrefix = "streamio/"

// ErrIncompatible is returned when the upstream picked no supported
// subprotocol.
var ErrIncompatible = errors.New("incompatible protocol version")

// Version is a parsed "major.minor" protocol version.
type Version struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	maj, err := strconv.ParseUint(major, 10, 16)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: bad major component", s)
	}
	mnr, err := strconv.ParseUint(minor, 10, 16)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}
	return Version{Major: uint16(maj), Minor: uint16(mnr)}, nil
}

// MustCurrent returns the parsed Current version.
func MustCurrent() Version {
	v, err := Parse(Current)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if other has the same major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// Subprotocol returns the subprotocol name for a major version.
func Subprotocol(major uint16) string {
	return SubprotocolPrefix + strconv.FormatUint(uint64(major), 10)
}

// MajorFromSubprotocol extracts the major version from a subprotocol name.
func MajorFromSubprotocol(name string) (uint16, error) {
	suffix, ok := strings.CutPrefix(name, SubprotocolPrefix)
	if !ok {
		return 0, fmt.Errorf("not a streamio subprotocol: %q", name)
	}
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in subprotocol %q", name)
	}
	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in subprotocol %q: %w", name, err)
	}
	return uint16(major), nil
}

// SupportedSubprotocols returns the subprotocols offered when dialing.
func SupportedSubprotocols() []string {
	return []string{Subprotocol(MustCurrent().Major)}
}

// Check verifies the subprotocol selected by the upstream. An empty
// selection is accepted for upstreams that do not negotiate.
func Check(selected string) error {
	if selected == "" {
		return nil
	}
	major, err := MajorFromSubprotocol(selected)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	if major != MustCurrent().Major {
		return fmt.Errorf("%w: upstream selected %s", ErrIncompatible, selected)
	}
	return nil
}
