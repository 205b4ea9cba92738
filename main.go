package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	app "github.com/rocketscienceinc/tictactoe-server/internal"
	"github.com/rocketscienceinc/tictactoe-server/internal/config"
)

// options - command line overrides for config.yml.
type options struct {
	configPath string
	port       string
	transport  string
}

// main - is the entry point of the application. It initializes the configuration, logger, and runs the application.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		panic(fmt.Errorf("failed to parse flags: %w", err))
	}

	conf := initConfig(opts)
	logger := initLogger(conf)

	if err = app.RunApp(logger, conf); err != nil {
		panic(fmt.Errorf("app run failed: %w", err))
	}
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("tictactoe-server", flag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "./config.yml", "Path to the config file")
	fs.StringVarP(&opts.port, "port", "p", "", "Game port, overrides game.port")
	fs.StringVarP(&opts.transport, "transport", "t", "", "Game transport (tcp|websocket), overrides game.transport")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return opts, nil
}

// initialize config.
func initConfig(opts *options) *config.Config {
	conf := config.MustLoad(opts.configPath)

	if err := applyOverrides(conf, opts); err != nil {
		panic(err)
	}

	return conf
}

func applyOverrides(conf *config.Config, opts *options) error {
	if opts.port != "" {
		conf.Game.Port = opts.port
	}

	if opts.transport != "" {
		conf.Game.Transport = opts.transport
	}

	return conf.Validate()
}

// initialize logger.
func initLogger(conf *config.Config) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
