package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/seqkit/internal/config"
	"github.com/harun/seqkit/internal/logger"
	"github.com/harun/seqkit/internal/tracing"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "seqkit",
	Short: "seqkit - ordered task sequencer toolkit",
	Long: `seqkit runs asynchronous operations one at a time, in submission order,
per sequencer. Callers that give up before their turn are skipped without
disturbing anyone else in the queue.

Use "seqkit run" to watch the sequencer guarantees in action and
"seqkit schedule" to serialize cron-triggered jobs per key.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seqkit/seqkit.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// env is what a command needs after config, logging and tracing are set up
type env struct {
	cfg      *config.Config
	log      *logger.Logger
	shutdown func()
}

// setup loads and validates the config, applies --log-level when given, and
// installs the global logger and, if enabled, the tracer provider.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.New(loggerConfig(cfg.Logging))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt := &env{cfg: cfg, log: l, shutdown: func() { _ = l.Close() }}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			rt.shutdown()
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		rt.shutdown = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to flush traces")
			}
			_ = l.Close()
		}
	}

	return rt, nil
}

func loggerConfig(c config.LoggingConfig) logger.Config {
	return logger.Config{
		Level:     c.Level,
		File:      c.File,
		Console:   c.Console,
		Pretty:    c.Pretty,
		Redaction: c.Redaction,
		MaxSize:   c.MaxSize,
		MaxAge:    c.MaxAge,
		Compress:  c.Compress,
	}
}
