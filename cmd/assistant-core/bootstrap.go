// ABOUTME: bootstrap subcommand: first-run config, admin user and credentials
// ABOUTME: Writes a config with a random JWT secret when none exists

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/assistant-core/internal/auth"
	"github.com/2389/assistant-core/internal/config"
	"github.com/2389/assistant-core/internal/store"
)

// bootstrapTokenTTL is the lifetime of the token printed by bootstrap.
const bootstrapTokenTTL = 30 * 24 * time.Hour

// ensureConfig loads the config at path, creating it with a fresh JWT secret
// when the file does not exist.
func ensureConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, false, fmt.Errorf("loading config: %w", err)
		}
		if cfg.Auth.JWTSecret == "" {
			return nil, false, fmt.Errorf("jwt_secret not configured in %s (required for bootstrap)", path)
		}
		return cfg, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("checking config: %w", err)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, false, fmt.Errorf("generating JWT secret: %w", err)
	}

	cfg, err := config.Parse(nil, "yaml")
	if err != nil {
		return nil, false, err
	}
	cfg.Database.Path = filepath.Join(config.DataDir(), "assistant.db")
	cfg.Auth.JWTSecret = base64.StdEncoding.EncodeToString(secretBytes)
	if err := cfg.Save(path); err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func runBootstrap(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
	email := fs.StringP("email", "e", "", "email of the admin user")
	displayName := fs.StringP("name", "n", "", "display name of the admin user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	*email = strings.TrimSpace(*email)
	if *email == "" || !strings.Contains(*email, "@") {
		return fmt.Errorf("--email flag is required and must be an email address")
	}
	*displayName = strings.TrimSpace(*displayName)
	if len(*displayName) > 100 {
		return fmt.Errorf("display name exceeds maximum length of 100 characters")
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	configPath := config.DefaultPath(binaryName)
	cfg, created, err := ensureConfig(configPath)
	if err != nil {
		return err
	}
	if created {
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	if _, err := s.GetUserByEmail(ctx, *email); err == nil {
		return fmt.Errorf("bootstrap already complete: user %s exists", *email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("checking users: %w", err)
	}

	user := &store.User{Email: *email, DisplayName: *displayName, AssistantEnabled: true}
	if err := s.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	if err := s.AddRole(ctx, user.UserID, store.RoleSystemManager); err != nil {
		return fmt.Errorf("granting %s role: %w", store.RoleSystemManager, err)
	}
	green.Printf("  ✓ Created admin user: %s\n", user.Email)

	key, secret, err := s.CreateAPIKey(ctx, user.UserID)
	if err != nil {
		return fmt.Errorf("creating API key: %w", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(user.UserID, bootstrapTokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	expiresAt := time.Now().Add(bootstrapTokenTTL).UTC()

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin User")
	cyan.Println("  ----------")
	fmt.Printf("  ID:         %s\n", user.UserID)
	fmt.Printf("  Email:      %s\n", user.Email)
	fmt.Printf("  Roles:      %s\n", store.RoleSystemManager)
	fmt.Printf("  Token:      %s (expires %s)\n", token, expiresAt.Format("Jan 02, 2006"))
	fmt.Printf("  API key:    token %s:%s\n", key, secret)
	fmt.Println()

	yellow.Println("  The API secret is shown only once. Ready to go:")
	fmt.Println("    assistant-core serve     # start the protocol server")
	fmt.Println("    assistant-bridge serve   # start the SSE bridge")
	fmt.Println()

	return nil
}
