package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgonzalezm/AlarmMgmt/internal/config"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
	"github.com/sgonzalezm/AlarmMgmt/internal/service/orchestrator"
	"github.com/sgonzalezm/AlarmMgmt/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the level from the configuration file.
	logLevel string
	// cfg is loaded before any subcommand runs.
	cfg *config.Config

	// rootCmd represents the base command of the alarm controller.
	rootCmd = &cobra.Command{
		Use:   "alarm-controller",
		Short: "Premises alarm controller.",
		Long: `Monitors door, window and motion sensors, records alarms in a local
SQLite ledger and drives the siren, status LED and relays.

Run "alarm-controller run" on the controller host. The remaining commands
manage modules, alarms and users in the same ledger.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the alarm-controller CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// loadConfig reads settings and applies the log level.
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		loaded.LogLevel = logLevel
	}

	level, ok := logger.ParseLogLevel(loaded.LogLevel)
	if !ok {
		return fmt.Errorf("%w: unknown log level %q", config.ErrInvalid, loaded.LogLevel)
	}

	logger.SetLevel(level)

	cfg = loaded

	return nil
}

// exitCode distinguishes refused commands from failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrNotFound),
		errors.Is(err, orchestrator.ErrValidation),
		errors.Is(err, orchestrator.ErrDuplicate),
		errors.Is(err, orchestrator.ErrDenied):
		return 2
	default:
		return 1
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")

	rootCmd.AddCommand(
		newRunCmd(),
		newModuleCmd(),
		newSensorCmd(),
		newAlarmCmd(),
		newDeactivateCmd(),
		newUserCmd(),
		newOutputCmd(),
		newStatusCmd(),
	)
}
