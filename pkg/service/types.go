package service

import (
	"errors"
	"time"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - service is starting up.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// EventType identifies a service event.
type EventType uint8

const (
	// EventConnected - channel established.
	EventConnected EventType = iota

	// EventDisconnected - channel lost or closed.
	EventDisconnected

	// EventReconnecting - a dial failed and the next one is scheduled.
	EventReconnecting

	// EventUpstreamDiscovered - mDNS resolved the upstream.
	EventUpstreamDiscovered

	// EventUserChanged - the current user changed.
	EventUserChanged

	// EventFailure - the registry reported a non-fatal failure.
	EventFailure
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventReconnecting:
		return "RECONNECTING"
	case EventUpstreamDiscovered:
		return "UPSTREAM_DISCOVERED"
	case EventUserChanged:
		return "USER_CHANGED"
	case EventFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Event represents a service event.
type Event struct {
	Type EventType

	// URL is the upstream URL for connection events.
	URL string

	// UserID is set for EventUserChanged.
	UserID string

	// Attempt and Delay are set for EventReconnecting.
	Attempt int
	Delay   time.Duration

	// Error is set for EventFailure.
	Error error
}

// EventHandler handles service events.
type EventHandler func(Event)
