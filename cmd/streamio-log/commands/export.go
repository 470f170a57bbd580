package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/streamio/streamio-go/pkg/log"
)

// Export formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// RunExport writes the events of path matching opts to output, or to w
// when output is empty.
func RunExport(path, format, output string, opts FilterOptions, w io.Writer) error {
	if format != FormatJSONL && format != FormatCSV {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == FormatCSV {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "user_id", "type", "message_id", "url"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		msgID, url := "", ""
		switch {
		case event.Message != nil:
			msgID = strconv.FormatUint(uint64(event.Message.ID), 10)
			url = event.Message.URL
		case event.StateChange != nil:
			url = event.StateChange.URL
		}

		row := []string{
			event.Timestamp.UTC().Format(timeLayout),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.UserID,
			typeLabel(event),
			msgID,
			url,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
