// Package cmd implements the CLI commands for databendd.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sixem/databendd/internal/config"
	"github.com/sixem/databendd/internal/observability"
	"github.com/sixem/databendd/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// appViper is a dedicated viper instance for databendd configuration.
var appViper = viper.New()

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "databendd",
	Short:   "Native core for video-glitch (databending) workflows",
	Version: version.Short(),
	Long: `databendd decodes source video, applies deterministic frame- and
bitstream-level glitch transforms, re-encodes the result, and exposes job
submission, live preview and progress reporting over HTTP.

Configuration is primarily via environment variables:
  DATABENDD_SERVER_PORT  - HTTP listen port
  DATABENDD_CODEC_BINARY_PATH - explicit decoder/encoder binary path
  DATABENDD_JOBS_MAX_ACTIVE   - job limit setting (validated and logged; running jobs are not capped by it)

Example:
  DATABENDD_SERVER_PORT=9090 databendd serve`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initConfig reads environment variables and defaults for application configuration.
func initConfig() {
	appViper.SetEnvPrefix("DATABENDD")
	appViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	appViper.AutomaticEnv()

	config.SetDefaults(appViper)
}

// initLogging configures the slog logger for the process.
func initLogging() error {
	level := appViper.GetString("logging.level")
	format := appViper.GetString("logging.format")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}

	logCfg := config.LoggingConfig{
		Level:  strings.ToLower(level),
		Format: strings.ToLower(format),
	}
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)

	return nil
}

// GetAppViper returns the application-wide viper instance used by subcommands.
func GetAppViper() *viper.Viper {
	return appViper
}
