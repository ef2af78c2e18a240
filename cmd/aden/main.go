package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nicklauri/aden/config"
	"github.com/nicklauri/aden/mimetype"
	"github.com/nicklauri/aden/server"
	"github.com/nicklauri/aden/transport"
)

func main() {
	base := flag.String("base", executableDir(), "base directory holding config/, www/ and error/")
	configPath := flag.String("config", "", "configuration file (default <base>/config/config.conf)")
	flag.Parse()

	if *configPath == "" {
		*configPath = filepath.Join(*base, "config", "config.conf")
	}

	if err := run(*base, *configPath); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(base, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	log.Logger = logger

	mimes := loadMimetypes(base, logger)

	settings := server.SettingsFromConfig(cfg, base)
	srv, err := server.New(settings, mimes, logger)
	if err != nil {
		return err
	}

	listener, err := transport.Listen(settings.Address, settings.Port)
	if err != nil {
		return err
	}

	fmt.Printf("The server is running @ %s\n", listener.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return err
	case reason := <-stopRequested():
		logger.Info().Str("reason", reason).Msg("shutting down")
	}

	return srv.Close()
}

// stopRequested fires on a stdin line starting with "quit" or on SIGINT and
// SIGTERM.
func stopRequested() <-chan string {
	stop := make(chan string, 2)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		stop <- sig.String()
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if strings.HasPrefix(strings.TrimSpace(scanner.Text()), "quit") {
				stop <- "quit"
				return
			}
		}
	}()

	return stop
}

func newLogger(cfg *config.Configuration) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.GetValueOr("log_level", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.GetValueOr("log_format", "console") == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	}

	return logger.Level(level).With().Timestamp().Logger()
}

// loadMimetypes reads the custom table before the stock one so custom
// entries win. Without either file the builtin table is used.
func loadMimetypes(base string, logger zerolog.Logger) *mimetype.Table {
	var paths []string
	for _, name := range []string{"custom_mimetype.mt", "mimetype.mt"} {
		path := filepath.Join(base, "config", name)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}

	if len(paths) == 0 {
		logger.Warn().Msg("no mimetype table found, using builtin types")
		return mimetype.Builtin()
	}

	table, err := mimetype.Load(paths...)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load mimetype table, using builtin types")
		return mimetype.Builtin()
	}
	return table
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
