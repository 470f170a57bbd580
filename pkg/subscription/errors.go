package subscription

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	ErrClosed        = errors.New("registry is closed")
	ErrNilObserver   = errors.New("observer is nil")
	ErrEmptyURL      = errors.New("observer has no url")
	ErrNotSubscribed = errors.New("no subscription for url")
	ErrNotConnected  = errors.New("registry is not connected")
	ErrStaleSession  = errors.New("connection session changed")
	ErrUnknownMethod = errors.New("unknown sync method")
	ErrObserverPanic = errors.New("observer panicked")
	ErrObserverType  = errors.New("observer is neither record nor collection")
)

// Failure categories.
var (
	ErrTransport      = errors.New("transport failure")
	ErrStore          = errors.New("store failure")
	ErrReconciliation = errors.New("reconciliation failure")
	ErrDisconnection  = errors.New("disconnection failure")
)

// FailureKind classifies a Failure.
type FailureKind uint8

const (
	// TransportFailure means the channel was absent or a request failed.
	TransportFailure FailureKind = iota + 1

	// StoreFailure means the cache store rejected a read or write.
	StoreFailure

	// ReconciliationFailure means one observer failed to take an update.
	ReconciliationFailure

	// DisconnectionFailure means a pending call was dropped by a disconnect.
	DisconnectionFailure
)

// String returns a human-readable failure kind.
func (k FailureKind) String() string {
	switch k {
	case TransportFailure:
		return "transport"
	case StoreFailure:
		return "store"
	case ReconciliationFailure:
		return "reconciliation"
	case DisconnectionFailure:
		return "disconnection"
	default:
		return "unknown"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case TransportFailure:
		return ErrTransport
	case StoreFailure:
		return ErrStore
	case ReconciliationFailure:
		return ErrReconciliation
	case DisconnectionFailure:
		return ErrDisconnection
	default:
		return nil
	}
}

// Failure is a non-fatal error reported by the registry.
type Failure struct {
	Kind     FailureKind
	URL      string
	ClientID string
	Err      error
}

func (f *Failure) Error() string {
	if f.ClientID != "" {
		return fmt.Sprintf("%s failure for %s (client %s): %v", f.Kind, f.URL, f.ClientID, f.Err)
	}
	return fmt.Sprintf("%s failure for %s: %v", f.Kind, f.URL, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches the category sentinel of the failure kind.
func (f *Failure) Is(target error) bool {
	s := f.Kind.sentinel()
	return s != nil && target == s
}
