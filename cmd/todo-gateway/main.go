// ABOUTME: Entry point for the todo-gateway chat server
// ABOUTME: Provides serve, init, token and health subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/2389/todo-gateway/internal/auth"
	"github.com/2389/todo-gateway/internal/config"
	"github.com/2389/todo-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _            _                         _
| |_ ___   __| | ___         __ _  __ _| |_ _____      ____ _ _   _
| __/ _ \ / _' |/ _ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| || (_) | (_| | (_) |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \__\___/ \__,_|\___/       \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                            |___/                             |___/
`

// getDataPath returns the path to the todo-gateway data directory.
// Priority: XDG_DATA_HOME/todo-gateway > ~/.local/share/todo-gateway
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "todo-gateway")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: loading .env: %v\n", err)
	}

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "todo-gateway",
		Short:         "Chat gateway for managing todo lists with an AI assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the gateway server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a new config file interactively",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runInit(cmd.InOrStdin())
			},
		},
		newTokenCommand(),
		&cobra.Command{
			Use:   "health",
			Short: "Check gateway health",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runHealth(cmd.Context())
			},
		},
	)

	return root
}

func newTokenCommand() *cobra.Command {
	var userID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an owner id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(userID, ttl)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner id to put in the token subject (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Agent:     %s", cfg.Agent.Provider)
	if cfg.Agent.Provider == config.ProviderOpenAI {
		gray.Printf(" (%s)", cfg.Agent.Model)
	}
	fmt.Println()
	if cfg.Auth.JWTSecret == "" {
		yellow.Printf("    ! auth disabled, trusting the %s header\n", auth.UserIDHeader)
	}

	fmt.Println()

	logger.Info("starting todo-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
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

// runToken mints a JWT for userID using the configured secret.
func runToken(userID string, ttl time.Duration) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured; the server trusts %s instead", auth.UserIDHeader)
	}

	token, expiresAt, err := mintToken(cfg, userID, ttl, time.Now())
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	fmt.Println(token)
	gray.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format("Jan 02, 2006 15:04 MST"))
	return nil
}

// mintToken validates the owner id and signs a token for it.
func mintToken(cfg *config.Config, userID string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("--user must not be empty")
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(userID, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating token: %w", err)
	}
	return token, now.Add(ttl).UTC(), nil
}
