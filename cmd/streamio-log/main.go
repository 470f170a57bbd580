// Command streamio-log views and analyzes protocol capture files.
//
// Capture files are written by streamio-client when log.capture is set
// in its configuration or -capture is given.
//
// Usage:
//
//	streamio-log <command> [flags] <file.slog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL or CSV
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View only frames about one resource
//	streamio-log view --url /users/42 client.slog
//
//	# View outgoing sync requests
//	streamio-log view --direction out --kind sync client.slog
//
//	# Export to JSONL
//	streamio-log export --format jsonl client.slog
//
//	# Keep one connection
//	streamio-log filter --conn-id abc12345 -o conn.slog client.slog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/streamio/streamio-go/cmd/streamio-log/commands"
)

const usage = `streamio-log - capture file analyzer

Usage:
  streamio-log <command> [flags] <file.slog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL or CSV
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "streamio-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "streamio-log %s - %s\n\nUsage:\n  streamio-log %s [flags] <file.slog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.URL, "url", "", "Filter by resource URL")
	fs.StringVar(&opts.Kind, "kind", "", "Filter by frame kind (stream, unstream, sync, ack)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, service)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, control, state, error)")
	return opts
}

func parsePath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := newFlagSet("view", "View capture file in human-readable format")
	opts := filterFlags(fs)
	path := parsePath(fs, args)
	fail(commands.RunView(path, *opts, os.Stdout))
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export capture file to JSONL or CSV")
	opts := filterFlags(fs)
	format := fs.String("format", commands.FormatJSONL, "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parsePath(fs, args)
	fail(commands.RunExport(path, *format, *output, *opts, os.Stdout))
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter capture file and write to new file")
	opts := filterFlags(fs)
	output := fs.String("o", "", "Output file (required)")
	path := parsePath(fs, args)
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	fail(commands.RunFilter(path, *output, *opts, os.Stdout))
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the capture file")
	path := parsePath(fs, args)
	fail(commands.RunStats(path, os.Stdout))
}
