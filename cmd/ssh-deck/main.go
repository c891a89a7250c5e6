package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/asheshgoplani/ssh-deck/internal/config"
	"github.com/asheshgoplani/ssh-deck/internal/logging"
	deckmcp "github.com/asheshgoplani/ssh-deck/internal/mcp"
	"github.com/asheshgoplani/ssh-deck/internal/session"
	"github.com/asheshgoplani/ssh-deck/internal/store"
	"github.com/asheshgoplani/ssh-deck/internal/tmux"
	"github.com/asheshgoplani/ssh-deck/internal/validate"
)

const Version = "0.3.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		return
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("ssh-deck v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "serve":
		handleServe(args[1:])
	case "list", "ls":
		handleList(args[1:])
	case "open":
		handleOpen(args[1:])
	case "close":
		handleClose(args[1:])
	case "send":
		handleSend(args[1:])
	case "snapshot":
		handleSnapshot(args[1:])
	case "doctor":
		handleDoctor(args[1:])
	case "init":
		handleInit(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`ssh-deck - persistent SSH sessions for AI agents, over MCP

Usage:
  ssh-deck serve              Run the MCP server over stdio
  ssh-deck open <host>        Open a session from the command line
  ssh-deck list               List open sessions
  ssh-deck send <id> <cmd>    Send a command and print the screen
  ssh-deck snapshot <id>      Print the current screen of a session
  ssh-deck close <id>         Close a session
  ssh-deck init               Write an example config file
  ssh-deck doctor             Check local prerequisites
  ssh-deck version            Print the version

Options for open:
  -u, --user   Remote username
  -p, --port   SSH port

Configuration lives in ~/.ssh-deck/config.toml (see 'ssh-deck init').
`)
}

// setup loads config, initializes logging, and opens the metadata
// store. The store is optional: a failure degrades to ephemeral
// sessions with a warning rather than refusing to run.
func setup() (*config.Config, *session.Manager, func()) {
	cfg, cfgErr := config.Load("")

	dir, err := config.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		LogDir:     filepath.Join(dir, "logs"),
		Level:      cfg.Logs.Level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.RetentionDays,
		Compress:   cfg.Logs.GetCompress(),
	})

	mainLog := logging.ForComponent(logging.CompConfig)
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", cfgErr)
		mainLog.Warn("config_load_failed", slog.String("error", cfgErr.Error()))
	}

	var db *store.DB
	db, err = store.Open(filepath.Join(dir, "sessions.db"))
	if err == nil {
		err = db.Migrate()
		if err != nil {
			db.Close()
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session store unavailable: %v\n", err)
		mainLog.Warn("store_open_failed", slog.String("error", err.Error()))
		db = nil
	}

	mgr := session.NewManager(session.Options{
		ContainerName: cfg.Tmux.ContainerName,
		CaptureLines:  cfg.Capture.Lines,
		HistoryLines:  cfg.Capture.HistoryLines,
		SendBudget:    cfg.Sync.SendBudget(),
		PollInterval:  cfg.Sync.PollInterval(),
		ReadAttempts:  cfg.Sync.ReadAttempts,
		ReadInterval:  cfg.Sync.ReadInterval(),
	}, db)

	cleanup := func() {
		if db != nil {
			db.Close()
		}
		logging.Shutdown()
	}
	return cfg, mgr, cleanup
}

func requireTmux() {
	if err := tmux.IsAvailable(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "ssh-deck hosts sessions in a tmux server; install tmux and retry.")
		os.Exit(1)
	}
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	requireTmux()

	// The MCP transport is stdio: running on an interactive terminal is
	// almost always a mistake (the protocol is binary-ish JSON-RPC).
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Warning: serve speaks MCP over stdio and is meant to be launched by an MCP client.")
	}

	cfg, mgr, cleanup := setup()
	defer cleanup()

	srv := deckmcp.NewServer(Version, cfg, mgr)

	// Pick up config edits without a restart. The server swaps its
	// config pointer atomically; handlers snapshot it per call, so
	// in-flight requests finish on the version they started with.
	if path, err := config.Path(); err == nil {
		w, err := config.NewWatcher(path, func() {
			fresh, err := config.Load(path)
			if err != nil {
				logging.ForComponent(logging.CompConfig).Warn("config_reload_failed", slog.String("error", err.Error()))
				return
			}
			srv.UpdateConfig(fresh)
			logging.ForComponent(logging.CompConfig).Info("config_reloaded")
		})
		if err == nil && w.Start() == nil {
			defer w.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleOpen(args []string) {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	user := fs.String("user", "", "remote username")
	fs.StringVar(user, "u", "", "remote username (shorthand)")
	port := fs.Int("port", 0, "SSH port")
	fs.IntVar(port, "p", 0, "SSH port (shorthand)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ssh-deck open [-u user] [-p port] <host>")
		os.Exit(1)
	}

	requireTmux()
	cfg, mgr, cleanup := setup()
	defer cleanup()

	id, err := mgr.Open(context.Background(), fs.Arg(0), *user, *port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	snapshot := mgr.SnapshotWithHints(id, cfg.Capture.Lines)
	fmt.Printf("Session opened. ID: %s\n\nInitial Snapshot:\n%s\n", id, snapshot)
}

func handleList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)

	requireTmux()
	_, mgr, cleanup := setup()
	defer cleanup()

	infos, err := mgr.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(infos) == 0 {
		fmt.Println("No active sessions.")
		return
	}
	for _, info := range infos {
		line := info.ID
		if !info.CreatedAt.IsZero() {
			line += "  (since " + info.CreatedAt.Format("2006-01-02 15:04") + ")"
		}
		fmt.Println(line)
	}
}

func handleSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	unsafe := fs.Bool("no-validate", false, "skip the command safety gate")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: ssh-deck send <session-id> <command>")
		os.Exit(1)
	}

	requireTmux()
	cfg, mgr, cleanup := setup()
	defer cleanup()

	id, command := fs.Arg(0), fs.Arg(1)

	if !*unsafe {
		ok, reason := validate.Validate(command,
			cfg.Validation.GetCheckDangerous(),
			cfg.Validation.GetPtyAware())
		if !ok {
			fmt.Fprintln(os.Stderr, reason)
			os.Exit(1)
		}
	}

	snapshot, err := mgr.SendAndAwait(context.Background(), id, command, cfg.Capture.Lines)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(validate.Cap(snapshot, cfg.Capture.MaxOutputBytes))
}

func handleSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	lines := fs.Int("lines", 0, "snapshot tail length")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ssh-deck snapshot [-lines n] <session-id>")
		os.Exit(1)
	}

	requireTmux()
	cfg, mgr, cleanup := setup()
	defer cleanup()

	snapshot := mgr.SnapshotWithHints(fs.Arg(0), *lines)
	fmt.Println(validate.Cap(snapshot, cfg.Capture.MaxOutputBytes))
}

func handleClose(args []string) {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ssh-deck close <session-id>")
		os.Exit(1)
	}

	requireTmux()
	_, mgr, cleanup := setup()
	defer cleanup()

	id := fs.Arg(0)
	if err := mgr.Close(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session %s closed.\n", id)
}

func handleInit(args []string) {
	if err := config.CreateExample(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	path, _ := config.Path()
	fmt.Printf("Config ready at %s\n", path)
}

func handleDoctor(args []string) {
	exitCode := 0

	if err := tmux.IsAvailable(); err == nil {
		fmt.Println("✓ tmux found")
	} else {
		fmt.Printf("✗ %v\n", err)
		exitCode = 1
	}

	if path, err := exec.LookPath("ssh"); err == nil {
		fmt.Printf("✓ ssh found (%s)\n", path)
	} else {
		fmt.Println("✗ ssh not found on PATH (required)")
		exitCode = 1
	}

	dir, err := config.Dir()
	if err != nil {
		fmt.Printf("✗ state directory unresolvable: %v\n", err)
		exitCode = 1
	} else {
		fmt.Printf("✓ state directory: %s\n", dir)
	}

	if path, err := config.Path(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, loadErr := config.Load(path); loadErr != nil {
				fmt.Printf("✗ config file malformed: %v\n", loadErr)
				exitCode = 1
			} else {
				fmt.Println("✓ config file parses")
			}
		} else {
			fmt.Println("- no config file (defaults in effect; run 'ssh-deck init')")
		}
	}

	c := tmux.NewContainer(tmux.DefaultContainerName)
	if c.Exists() {
		fmt.Printf("✓ container session %q is running\n", c.Name)
	} else {
		fmt.Printf("- container session %q not running (created on first open)\n", c.Name)
	}

	os.Exit(exitCode)
}
