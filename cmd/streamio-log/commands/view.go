package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/streamio/streamio-go/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// RunView prints the events of path matching opts in human-readable form.
func RunView(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
	return nil
}

// formatEvent writes a header line and the type-specific details.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timeLayout)

	layer := event.Layer.String()
	if event.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n",
		ts, shortenConnID(event.ConnectionID), event.Direction.String(), layer, typeLabel(event))
	if event.UserID != "" {
		fmt.Fprintf(w, "  User: %s\n", event.UserID)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Control != nil:
		if event.Control.CloseCode != nil {
			fmt.Fprintf(w, "  Code: %d\n", *event.Control.CloseCode)
		}
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func typeLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return event.Message.Kind.String()
	case event.StateChange != nil:
		return "State"
	case event.Control != nil:
		return event.Control.Type.String()
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  ID: %d\n", msg.ID)
	if msg.URL != "" {
		fmt.Fprintf(w, "  URL: %s\n", msg.URL)
	}
	if msg.Hash != "" {
		fmt.Fprintf(w, "  Hash: %s\n", msg.Hash)
	}
	if msg.Method != "" {
		fmt.Fprintf(w, "  Method: %s\n", msg.Method)
	}
	if msg.Latency != nil {
		fmt.Fprintf(w, "  Latency: %s\n", formatDuration(*msg.Latency))
	}
	if msg.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", msg.Error)
	}
	if msg.Payload != nil {
		if raw, err := json.Marshal(msg.Payload); err == nil {
			fmt.Fprintf(w, "  Payload: %s\n", raw)
		}
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.URL != "" {
		fmt.Fprintf(w, "  URL: %s\n", sc.URL)
	}
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEvent) {
	fmt.Fprintf(w, "  Layer: %s\n", e.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
