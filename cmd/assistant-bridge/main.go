// ABOUTME: Entry point for the assistant-bridge SSE transport
// ABOUTME: Serves the bridge HTTP endpoints and runs the pending-request sweeper

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/assistant-core/internal/bridge"
	"github.com/2389/assistant-core/internal/config"
	"github.com/2389/assistant-core/internal/logging"
)

// Version is set by goreleaser at build time.
var version = "dev"

// binaryName selects the default config file.
const binaryName = "assistant-bridge"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: assistant-bridge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the SSE bridge")
		fmt.Println("  health   Check bridge health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	configPath := config.DefaultPath(binaryName)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateBridge(); err != nil {
		return nil, configPath, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    assistant-bridge %s\n\n", version)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Bridge.HTTPAddr)
	if cfg.Bridge.ServerURL != "" {
		green.Print("    ▶ ")
		fmt.Printf("Server:  %s\n", cfg.Bridge.ServerURL)
	}
	fmt.Println()

	bc := cfg.Bridge
	b := bridge.New(bridge.Config{
		ServerURL:       bc.ServerURL,
		PublicURL:       bc.PublicURL,
		MCPPath:         bc.MCPPath,
		IdentityPath:    bc.IdentityPath,
		APISecret:       bc.APISecret,
		GracePeriod:     bc.GracePeriod,
		SweepInterval:   bc.SweepInterval,
		Keepalive:       bc.Keepalive,
		StabilizeDelay:  bc.StabilizeDelay,
		RequestTimeout:  bc.RequestTimeout,
		ValidateTimeout: bc.ValidateTimeout,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              bc.HTTPAddr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return b.Run(egCtx)
	})
	eg.Go(func() error {
		logger.Info("bridge listening", "addr", bc.HTTPAddr, "server_url", bc.ServerURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down bridge")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Bridge.HTTPAddr)
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
