package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"snippets/internal/app"
	"snippets/internal/config"
	"snippets/internal/discovery"
	"snippets/internal/secret"
)

const usage = `usage: snippets [command] [flags]

commands:
  serve     run the HTTP API (default)
  mcp       run the MCP server on stdin/stdout
  discover  list snippets servers on the local network
  secret    set or delete a stored password: secret set|delete <key>
`

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, args)
	case "mcp":
		err = runMCP(ctx, args)
	case "discover":
		err = runDiscover(ctx, args)
	case "secret":
		err = runSecret(args)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("fatal", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// loadConfig parses the common flags of serve and mcp.
func loadConfig(name string, args []string) (*config.Config, *slog.Logger, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to snippets.yaml config file")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	listen := fs.String("listen", "", "HTTP listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServe(ctx context.Context, args []string) error {
	cfg, logger, err := loadConfig("serve", args)
	if err != nil {
		return err
	}
	return app.Serve(ctx, cfg, logger)
}

func runMCP(ctx context.Context, args []string) error {
	cfg, logger, err := loadConfig("mcp", args)
	if err != nil {
		return err
	}
	return app.ServeMCP(ctx, cfg, logger)
}

func runDiscover(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	timeout := fs.Duration("timeout", 2*time.Second, "how long to wait for answers")
	fs.Parse(args)

	peers, err := discovery.Browse(ctx, *timeout)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(peers)
}

// runSecret stores the value read from stdin under key in the keychain.
func runSecret(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: snippets secret set|delete <key>")
	}
	store := secret.NewKeychainStore()
	if !store.Available() {
		return fmt.Errorf("no keychain on this host; export %s<KEY> instead", secret.EnvPrefix)
	}
	action, key := args[0], args[1]
	switch action {
	case "set":
		fmt.Fprintf(os.Stderr, "value for %s: ", key)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read value: %w", err)
		}
		return store.Set(key, []byte(strings.TrimRight(line, "\r\n")))
	case "delete":
		return store.Delete(key)
	default:
		return fmt.Errorf("unknown secret action %q", action)
	}
}
