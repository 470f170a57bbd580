// Package commands implements the streamio-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/streamio/streamio-go/pkg/log"
	"github.com/streamio/streamio-go/pkg/wire"
)

// FilterOptions holds the raw filter flags shared by all commands.
type FilterOptions struct {
	ConnID    string
	URL       string
	Kind      string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Build parses the options into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		URL:          o.URL,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if o.Layer != "" {
		l, err := parseLayer(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := parseDirection(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if o.Kind != "" {
		k, err := parseKind(o.Kind)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Kind = &k
	}
	return filter, nil
}

// RunFilter copies the events of path matching opts into output.
func RunFilter(path, output string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	for event, err := range reader.Events() {
		if err != nil {
			logger.Close()
			return fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
	if err := logger.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "service":
		return log.LayerService, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or service)", s)
	}
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
}

func parseKind(s string) (wire.Kind, error) {
	for k := wire.KindStream; k <= wire.KindAck; k++ {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid kind: %s (must be stream, unstream, sync, or ack)", s)
}
