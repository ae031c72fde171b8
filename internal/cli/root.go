package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tally/internal/audit"
	"tally/internal/config"
	"tally/internal/events"
	"tally/internal/log"
	"tally/internal/profile"
	"tally/internal/services"
)

var (
	flagProfile string
	flagDataDir string
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:           "tally",
	Short:         "Per-profile expense ledger with monthly budget limits",
	Long:          "Track expenses per profile, set monthly category limits and let spending history suggest what those limits should be.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. Errors land on stderr with exit code 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProfile, "profile", "p", profile.DefaultHandle, "profile handle to operate on")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory override")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path")
}

// openServices builds the service stack for one command invocation.
// Commands print to stdout, so logging goes to stderr and only errors
// surface.
func openServices() (*services.Services, error) {
	LoadEnvFile()
	logger := log.New(log.Config{
		Level:     slog.LevelError,
		Component: log.ComponentCLI,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}),
	})
	log.SetDefault(logger)

	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
		cfg.ArchiveDir = filepath.Join(flagDataDir, "archive")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var publisher services.Publisher
	if cfg.EventsEnabled() {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Warn("Events client unavailable, continuing without publishing", log.FieldError, err)
		} else {
			publisher = client
		}
	}
	return services.New(cfg, audit.NewLog(cfg.AuditLogPath), publisher), nil
}

// withServices wraps a command body with service setup and teardown.
func withServices(fn func(cmd *cobra.Command, svc *services.Services) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()
		return fn(cmd, svc)
	}
}

// withServicesArgs is withServices for commands that take positional
// arguments.
func withServicesArgs(fn func(cmd *cobra.Command, args []string, svc *services.Services) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()
		return fn(cmd, args, svc)
	}
}
