// Package interactive provides the interactive command-line interface
// for streamio-client.
package interactive

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	json "github.com/goccy/go-json"

	"github.com/streamio/streamio-go/pkg/observer"
	"github.com/streamio/streamio-go/pkg/service"
	"github.com/streamio/streamio-go/pkg/subscription"
)

// syncTimeout bounds save and emit round trips started from the shell.
const syncTimeout = 10 * time.Second

// Shell handles interactive mode for streamio-client.
type Shell struct {
	client   *service.Client
	precache bool
	rl       *readline.Instance

	outMu sync.Mutex
	out   io.Writer

	mu      sync.Mutex
	handles map[int]observer.Observer
	next    int
}

// New creates a shell reading commands from the terminal. precache is the
// default for observers it creates.
func New(client *service.Client, precache bool) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "streamio> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := newShell(client, precache, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(client *service.Client, precache bool, out io.Writer) *Shell {
	return &Shell{
		client:   client,
		precache: precache,
		out:      out,
		handles:  make(map[int]observer.Observer),
	}
}

// Stdout returns a writer that coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			s.println("Exiting...")
			cancel()
			return
		}

		if !s.Exec(ctx, line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line and reports whether the shell should keep
// running.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "doc":
		s.cmdAdd(args, false)
	case "list", "ls":
		s.cmdAdd(args, true)
	case "remove", "rm":
		s.cmdRemove(args)
	case "show", "cat":
		s.cmdShow(args)
	case "subs":
		s.cmdSubs()
	case "save":
		s.cmdSave(ctx, args)
	case "emit":
		s.cmdEmit(ctx, args)
	case "user":
		s.cmdUser(args)
	case "status":
		s.cmdStatus()
	case "quit", "exit", "q":
		s.println("Exiting...")
		return false
	default:
		s.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	s.println(`
Commands:
  Observers:
    doc <url> [version-attr]           - Observe a document
    list <url> [id-attr]               - Observe a collection
    remove <handle>                    - Stop observing
    show <handle>                      - Print the observed data

  Writes:
    save <handle> <method> [json]      - create, read, update, patch or delete
    emit <handle> <event> [json]       - Send a custom event

  General:
    subs                               - List subscriptions
    user [id]                          - Show or change the current user
    status                             - Show client status
    help                               - Show this help
    quit                               - Exit`)
}

func (s *Shell) cmdAdd(args []string, collection bool) {
	if len(args) < 1 {
		if collection {
			s.println("Usage: list <url> [id-attr]")
		} else {
			s.println("Usage: doc <url> [version-attr]")
		}
		return
	}

	s.mu.Lock()
	s.next++
	handle := s.next
	s.mu.Unlock()

	url := args[0]
	opts := observer.Options{
		Precache: s.precache,
		Watch: func(ev observer.Event) {
			s.printf("[%d] %s %s\n", handle, ev, url)
		},
	}

	var obs observer.Observer
	if collection {
		if len(args) > 1 {
			opts.IDAttribute = args[1]
		}
		obs = observer.NewList(url, opts)
	} else {
		if len(args) > 1 {
			opts.VersionAttribute = args[1]
		}
		obs = observer.NewDoc(url, opts)
	}

	// Register the handle first so updates arriving during Add resolve.
	s.mu.Lock()
	s.handles[handle] = obs
	s.mu.Unlock()

	if err := s.client.Registry().Add(obs, nil); err != nil {
		s.mu.Lock()
		delete(s.handles, handle)
		s.mu.Unlock()
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("Observing %s as #%d\n", url, handle)
}

func (s *Shell) cmdRemove(args []string) {
	handle, obs, ok := s.lookup(args, "remove <handle>")
	if !ok {
		return
	}
	s.client.Registry().Remove(obs)

	s.mu.Lock()
	delete(s.handles, handle)
	s.mu.Unlock()
	s.printf("Removed #%d\n", handle)
}

func (s *Shell) cmdShow(args []string) {
	_, obs, ok := s.lookup(args, "show <handle>")
	if !ok {
		return
	}

	var data any
	switch o := obs.(type) {
	case *observer.Doc:
		data = o.Fields()
	case *observer.List:
		items := o.Items()
		rows := make([]observer.Fields, len(items))
		for i, it := range items {
			rows[i] = it.Fields()
		}
		data = rows
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("%s = %s\n", obs.URL(), raw)
}

func (s *Shell) cmdSubs() {
	subs := s.client.Registry().Subscriptions()
	if len(subs) == 0 {
		s.println("No subscriptions")
		return
	}
	slices.SortFunc(subs, func(a, b subscription.Info) int {
		return strings.Compare(a.URL, b.URL)
	})

	s.printf("\nSubscriptions (%d):\n", len(subs))
	s.println("-------------------------------------------")
	for _, sub := range subs {
		var flags []string
		if sub.Cached {
			flags = append(flags, "cached")
		}
		if sub.Precache {
			flags = append(flags, "precache")
		}
		if sub.Updating {
			flags = append(flags, "updating")
		}
		if sub.Releasing {
			flags = append(flags, "releasing")
		}
		s.printf("  %s\n", sub.URL)
		s.printf("      Clients: %d\n", len(sub.Clients))
		if sub.Revision != "" {
			s.printf("      Revision: %s\n", sub.Revision)
		}
		if len(flags) > 0 {
			s.printf("      Flags: %s\n", strings.Join(flags, ", "))
		}
	}
}

func (s *Shell) cmdSave(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.println("Usage: save <handle> <method> [json]")
		s.println(`  Example: save 1 patch {"name":"Ada"}`)
		return
	}
	_, obs, ok := s.lookup(args[:1], "save <handle> <method> [json]")
	if !ok {
		return
	}
	data, err := parseJSON(args[2:])
	if err != nil {
		s.printf("Invalid JSON: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	result, err := s.client.Registry().Save(ctx, obs, args[1], data)
	s.printResult(result, err)
}

func (s *Shell) cmdEmit(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.println("Usage: emit <handle> <event> [json]")
		return
	}
	_, obs, ok := s.lookup(args[:1], "emit <handle> <event> [json]")
	if !ok {
		return
	}
	data, err := parseJSON(args[2:])
	if err != nil {
		s.printf("Invalid JSON: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	result, err := s.client.Registry().Emit(ctx, obs, args[1], data)
	s.printResult(result, err)
}

func (s *Shell) cmdUser(args []string) {
	if len(args) == 0 {
		user := s.client.Registry().User()
		if user == "" {
			user = "(none)"
		}
		s.printf("User: %s\n", user)
		return
	}
	s.client.SetUser(args[0])
	s.printf("User set to %s\n", args[0])
}

func (s *Shell) cmdStatus() {
	s.mu.Lock()
	observers := len(s.handles)
	s.mu.Unlock()

	url := s.client.URL()
	if url == "" {
		url = "(discovering)"
	}
	s.println("\nClient Status:")
	s.println("-------------------------------------------")
	s.printf("  Service:       %s\n", s.client.State())
	s.printf("  Connection:    %s\n", s.client.ConnectionState())
	s.printf("  Upstream:      %s\n", url)
	s.printf("  Observers:     %d\n", observers)
	s.printf("  Subscriptions: %d\n", len(s.client.Registry().Subscriptions()))
}

func (s *Shell) lookup(args []string, usage string) (int, observer.Observer, bool) {
	if len(args) < 1 {
		s.printf("Usage: %s\n", usage)
		return 0, nil, false
	}
	handle, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		s.printf("Invalid handle: %s\n", args[0])
		return 0, nil, false
	}

	s.mu.Lock()
	obs, ok := s.handles[handle]
	s.mu.Unlock()
	if !ok {
		s.printf("No observer #%d\n", handle)
		return 0, nil, false
	}
	return handle, obs, true
}

func (s *Shell) printResult(result any, err error) {
	if err != nil {
		s.printf("Failed: %v\n", err)
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.printf("OK (%v)\n", result)
		return
	}
	s.printf("OK %s\n", raw)
}

// parseJSON joins the remaining arguments and decodes them. No arguments
// is nil data.
func parseJSON(args []string) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(strings.Join(args, " ")), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) println(args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintln(s.out, args...)
}
