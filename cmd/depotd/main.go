package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/outpost-sim/depot/internal/api"
	"github.com/outpost-sim/depot/internal/auth"
	"github.com/outpost-sim/depot/internal/config"
	"github.com/outpost-sim/depot/internal/lock"
	"github.com/outpost-sim/depot/internal/log"
	"github.com/outpost-sim/depot/internal/registry"
	"github.com/outpost-sim/depot/internal/tui/watch"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "server":
		os.Exit(runServerNoun(args))
	case "gc":
		os.Exit(runGCNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))

	// --- ROOT COMMANDS ---
	case "watch":
		os.Exit(runWatch(args))
	case "version":
		fmt.Printf("depotd version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`depotd - per-user simulation artifact registry service

Usage:
  depotd <noun> <action> [flags]

Server Commands:
  server start      Start the registry service in foreground

GC Commands:
  gc run            Sweep every user registry once and report failures

Config Commands:
  config check      Validate configuration syntax and credentials

General:
  watch             Live terminal view of a user's registered paths
  version           Show version information
  help              Show this help message

Use 'depotd <noun> help' for resource-specific flags.
`)
}

func isHelpToken(arg string) bool {
	return arg == "help" || arg == "--help" || arg == "-h"
}

// --- NOUN DISPATCHERS ---

func runServerNoun(args []string) int {
	if len(args) < 1 {
		printServerNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printServerNounHelp(os.Stdout)
		return 0
	}

	switch args[0] {
	case "start":
		return runServerStart(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown server action: %s\n", args[0])
		return 1
	}
}

func runGCNoun(args []string) int {
	if len(args) < 1 {
		printGCNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printGCNounHelp(os.Stdout)
		return 0
	}

	switch args[0] {
	case "run":
		return runGCOnce(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown gc action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func printServerNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: depotd server start [--config <path>]

Starts the registry HTTP service in the foreground. Takes the daemon PID
lock, validates that the registry root sits on a local filesystem, and
serves until SIGINT/SIGTERM.
`)
}

func printGCNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: depotd gc run [--config <path>]

Sweeps every user registry once, deleting artifacts whose age exceeds their
holding. Prints any failure messages and exits non-zero if there were any.
`)
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: depotd config check [--config <path>]

Loads and validates the configuration, then exits.
`)
}

// --- ACTIONS ---

// loadConfig resolves the --config flag (or discovery) to a loaded Config.
func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, "", err
		}
		configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", configPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

func credentials(cfg *config.Config) []auth.Credential {
	creds := make([]auth.Credential, 0, len(cfg.Credentials))
	for _, c := range cfg.Credentials {
		creds = append(creds, auth.Credential{User: c.User, Token: c.Token, Admin: c.Admin})
	}
	return creds
}

func runServerStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("depotd starting", "version", version, "config", resolvedPath)

	if err := lock.ValidateLockFilesystem(cfg.Store.PathsDir); err != nil {
		logger.Error("registry root failed filesystem check", "paths_dir", cfg.Store.PathsDir, "error", err)
		return 1
	}

	pidLock, err := lock.AcquirePIDLock(cfg.Service.PIDFile)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)",
			"path", cfg.Service.PIDFile, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", cfg.Service.PIDFile)

	store, err := registry.NewStore(cfg.Store.PathsDir, cfg.Store.SimsDir,
		cfg.Store.LockTimeout, log.WithComponent("registry"))
	if err != nil {
		logger.Error("failed to open registry store", "error", err)
		return 1
	}

	verifier := auth.NewVerifier(credentials(cfg))
	server := api.New(api.Config{Listen: cfg.API.Listen}, store, verifier, log.WithComponent("api"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && err != context.Canceled {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		return 1
	}
	return 0
}

func runGCOnce(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	store, err := registry.NewStore(cfg.Store.PathsDir, cfg.Store.SimsDir,
		cfg.Store.LockTimeout, log.WithComponent("gc"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open registry store: %v\n", err)
		return 1
	}

	msgs := store.GC()
	for _, m := range msgs {
		fmt.Fprintln(os.Stderr, m)
	}
	if len(msgs) > 0 {
		return 1
	}
	fmt.Println("Garbage collected")
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config check failed: %v\n", err)
		return 1
	}

	fmt.Printf("Config OK: %s\n", resolvedPath)
	fmt.Printf("  listen:     %s\n", cfg.API.Listen)
	fmt.Printf("  paths_dir:  %s\n", cfg.Store.PathsDir)
	fmt.Printf("  sims_dir:   %s\n", cfg.Store.SimsDir)
	fmt.Printf("  users:      %d\n", len(cfg.Credentials))
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api", "http://127.0.0.1:8642", "Base URL of the depot API")
	user := fs.String("user", "", "User whose paths to watch")
	token := fs.String("token", "", "API token for the user")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if *user == "" || *token == "" {
		fmt.Fprintln(os.Stderr, "watch requires --user and --token")
		return 1
	}

	p := tea.NewProgram(watch.New(*apiURL, *user, *token))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "watch failed: %v\n", err)
		return 1
	}
	return 0
}
