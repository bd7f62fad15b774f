package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"laundry-kiosk/config"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "laundryd",
		Short: "Laundry kiosk booking daemon",
		Long: `laundryd runs one laundry kiosk: it serves the booking API, counts down
the active booking and keeps the machine inventory in step with the other
kiosks of the facility.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml (default $CONFIG_PATH or ./config/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newInventoryCommand(opts))
	cmd.AddCommand(newResetCommand(opts))

	return cmd
}

// load reads .env, the config file and builds the process logger.
func (o *rootOptions) load() (*config.Config, zerolog.Logger, error) {
	_ = godotenv.Load()

	path := o.ConfigPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("./config/config.yaml"); err == nil {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}

	logger := newLogger(cfg.Logging)
	if path != "" {
		logger.Info().Str("path", path).Msg("configuration loaded")
	} else {
		logger.Info().Msg("no config file, using defaults")
	}
	return cfg, logger, nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Str("service", "laundryd").Logger()
}
