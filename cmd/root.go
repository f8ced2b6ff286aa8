// Package cmd is the thin CLI entrypoint: subcommand dispatch and flag
// parsing only. All real behavior lives in daemon, storage, and engine.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/rogue-hunter/roguehunter/config"
	"github.com/rogue-hunter/roguehunter/daemon"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// ExitCodeError signals a non-zero exit code without calling os.Exit
// directly, so Run can be exercised from tests.
type ExitCodeError struct{ Code int }

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

func printUsage() {
	fmt.Fprintf(os.Stderr, `roguehunterd v%s — process-responsiveness diagnostic daemon

Usage:
  roguehunterd <subcommand> [options]

Subcommands:
  daemon            Run the sampling/tracking/forensics daemon in the foreground
  status            Report whether the daemon is running and its data directory
  tui               Interactive terminal UI (not built into this binary)
  events            List or show tracked events (not built into this binary)
  history           Query historical samples (not built into this binary)
  prune             Run retention pruning (not built into this binary)
  config            Show, edit, or reset the config file (not built into this binary)

Options:
  -datadir PATH     Override the data directory (default: ~/.local/share/rogue-hunter)
`, Version)
}

// Run dispatches to the requested subcommand and returns an ExitCodeError
// for any non-zero exit.
func Run() error {
	if len(os.Args) < 2 {
		printUsage()
		return ExitCodeError{Code: 1}
	}

	sub := os.Args[1]
	fs := flag.NewFlagSet(sub, flag.ContinueOnError)
	dataDir := fs.String("datadir", "", "override the data directory")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return ExitCodeError{Code: 1}
	}

	cfg := config.Load()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	switch sub {
	case "daemon":
		return runDaemon(cfg)
	case "status":
		return runStatus(cfg)
	case "tui", "events", "history", "prune", "config":
		fmt.Fprintf(os.Stderr, "roguehunterd: %q is part of the documented CLI surface but is not implemented by this build\n", sub)
		return ExitCodeError{Code: 1}
	case "-h", "-help", "--help", "help":
		printUsage()
		return nil
	default:
		fmt.Fprintf(os.Stderr, "roguehunterd: unknown subcommand %q\n", sub)
		printUsage()
		return ExitCodeError{Code: 1}
	}
}

func runDaemon(cfg config.Config) error {
	d, err := daemon.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roguehunterd: %v\n", err)
		return ExitCodeError{Code: 1}
	}
	defer d.Close()

	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "roguehunterd: %v\n", err)
		return ExitCodeError{Code: 1}
	}
	return nil
}

func runStatus(cfg config.Config) error {
	pidPath := cfg.DataDir + "/daemon.pid"
	data, err := os.ReadFile(pidPath)
	if err != nil {
		fmt.Println("daemon: stopped")
		return ExitCodeError{Code: 1}
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		fmt.Println("daemon: stopped")
		return ExitCodeError{Code: 1}
	}

	if !pidLooksAlive(pid) {
		fmt.Println("daemon: stopped")
		return ExitCodeError{Code: 1}
	}

	fmt.Printf("daemon: running (pid %d, datadir %s)\n", pid, cfg.DataDir)
	return nil
}

func pidLooksAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
