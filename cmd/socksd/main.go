// Command socksd runs the socks daemon: it binds the configured
// transport, registers the built-in handlers, and serves requests until
// interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/WeThePeopleBotball/socks/internal/config"
	"github.com/WeThePeopleBotball/socks/internal/daemon"
	"github.com/WeThePeopleBotball/socks/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/socks/config.toml)")
	logLevel := flag.String("log-level", "", "override the configured log level (debug, info, warn, error)")
	flag.Parse()

	cfg, path, found, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("socksd: load config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("socksd: init logging: %v", err)
	}
	if found {
		logger.Info("loaded config", logging.String("path", path))
	} else {
		logger.Info("no config file found, using defaults", logging.String("path", path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("daemon init failed", logging.Error(err))
		os.Exit(1)
	}

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited", logging.Error(err))
		os.Exit(1)
	}
}
