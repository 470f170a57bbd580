package commands

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/streamio/streamio-go/pkg/log"
	"github.com/streamio/streamio-go/pkg/wire"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	MessagesByKind    map[wire.Kind]int
	Connections       map[string]*ConnectionStats
	Resources         map[string]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	UserID    string

	// Acks with a measured latency and their total.
	Acks         int
	TotalLatency time.Duration
}

// AverageLatency returns the mean ack latency, zero without acks.
func (c *ConnectionStats) AverageLatency() time.Duration {
	if c.Acks == 0 {
		return 0
	}
	return c.TotalLatency / time.Duration(c.Acks)
}

// Collect reads every event of path into Stats.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		MessagesByKind:    make(map[wire.Kind]int),
		Connections:       make(map[string]*ConnectionStats),
		Resources:         make(map[string]int),
	}

	for event, err := range reader.Events() {
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.UserID != "" && conn.UserID == "" {
		conn.UserID = event.UserID
	}

	if m := event.Message; m != nil {
		s.MessagesByKind[m.Kind]++
		if m.URL != "" {
			s.Resources[m.URL]++
		}
		if m.Latency != nil {
			conn.Acks++
			conn.TotalLatency += *m.Latency
		}
	}
	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.MessagesByKind) > 0 {
		fmt.Fprintln(w, "Messages by Kind:")
		for k := wire.KindStream; k <= wire.KindAck; k++ {
			if count := stats.MessagesByKind[k]; count > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", k.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	if len(stats.Resources) > 0 {
		fmt.Fprintf(w, "Resources: %d\n", len(stats.Resources))
		for _, url := range slices.Sorted(maps.Keys(stats.Resources)) {
			fmt.Fprintf(w, "  %s: %d\n", url, stats.Resources[url])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	ids := slices.SortedFunc(maps.Keys(stats.Connections), func(a, b string) int {
		return stats.Connections[a].FirstSeen.Compare(stats.Connections[b].FirstSeen)
	})
	for _, id := range ids {
		cs := stats.Connections[id]
		duration := cs.LastSeen.Sub(cs.FirstSeen).Round(time.Millisecond)
		fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(cmp.Or(id, "-")), cs.Events, duration)
		if cs.UserID != "" {
			fmt.Fprintf(w, "           User: %s\n", cs.UserID)
		}
		if cs.Acks > 0 {
			fmt.Fprintf(w, "           Acks: %d (avg latency %s)\n", cs.Acks, formatDuration(cs.AverageLatency()))
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
