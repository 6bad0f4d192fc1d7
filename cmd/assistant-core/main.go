// ABOUTME: Entry point for the assistant-core protocol server
// ABOUTME: Dispatches serve, bootstrap, token and health subcommands

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/assistant-core/internal/auth"
	"github.com/2389/assistant-core/internal/config"
	"github.com/2389/assistant-core/internal/gateway"
	"github.com/2389/assistant-core/internal/logging"
	"github.com/2389/assistant-core/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

// binaryName selects the default config file.
const binaryName = "assistant-core"

const banner = `
                _       _                 _
  __ _ ___ ___(_)___  | |_ __ _ _ __  | |_       ___ ___  _ __ ___
 / _' / __/ __| / __| | __/ _' | '_ \ | __|____ / __/ _ \| '__/ _ \
| (_| \__ \__ \ \__ \ | || (_| | | | || ||_____| (_| (_) | | |  __/
 \__,_|___/___/_|___/  \__\__,_|_| |_| \__|     \___\___/|_|  \___|
`

func usage() {
	fmt.Println("Usage: assistant-core <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                              Start the protocol server")
	fmt.Println("  bootstrap --email EMAIL [--name N] Create the first admin user and credentials")
	fmt.Println("  token --user ID [--ttl DURATION]   Issue a bearer token for a user")
	fmt.Println("  health                             Check server health")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "bootstrap":
		err = runBootstrap(ctx, os.Args[2:])
	case "token":
		err = runToken(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the server configuration.
func loadConfig() (*config.Config, string, error) {
	configPath := config.DefaultPath(binaryName)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, configPath, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if !cfg.Auth.Required() {
		yellow.Print("    ▶ ")
		yellow.Println("Auth:      disabled (anonymous protocol access)")
	}
	if cfg.MCP.EnableResources {
		green.Print("    ▶ ")
		fmt.Printf("Docs:      %s\n", cfg.MCP.DocsDir)
	}
	fmt.Println()

	logger.Info("starting assistant-core",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(ctx)
}

func runToken(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	userID := fs.StringP("user", "u", "", "user id to issue the token for")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("--user flag is required")
	}
	if *ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	user, err := s.GetUser(ctx, *userID)
	if err != nil {
		return fmt.Errorf("looking up user %s: %w", *userID, err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(user.UserID, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
