package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateDebug(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDaemon() error {
	switch c.Daemon.Transport {
	case TransportUnix:
		if strings.TrimSpace(c.Daemon.SocketPath) == "" {
			return errors.New("daemon.socket_path must be set when daemon.transport is unix")
		}
	case TransportUDP, TransportTCP:
		if _, _, err := net.SplitHostPort(c.Daemon.Bind); err != nil {
			return fmt.Errorf("daemon.bind must be host:port for %s transport: %w", c.Daemon.Transport, err)
		}
	default:
		return fmt.Errorf("daemon.transport must be one of unix, udp, tcp (got %q)", c.Daemon.Transport)
	}
	if err := ensurePositiveMap(map[string]int{
		"daemon.workers": c.Daemon.Workers,
	}); err != nil {
		return err
	}
	if strings.TrimSpace(c.Daemon.StateDir) == "" {
		return errors.New("daemon.state_dir must be set")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if !c.Limits.Enabled {
		return nil
	}
	if c.Limits.PerSecond <= 0 {
		return errors.New("limits.per_second must be positive when limits.enabled is true")
	}
	return ensurePositiveMap(map[string]int{
		"limits.burst":        c.Limits.Burst,
		"limits.idle_seconds": c.Limits.IdleSeconds,
	})
}

func (c *Config) validateJournal() error {
	if !c.Journal.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Journal.Path) == "" {
		return errors.New("journal.path must be set when journal.enabled is true")
	}
	return nil
}

func (c *Config) validateDebug() error {
	if !c.Debug.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Debug.Bind); err != nil {
		return fmt.Errorf("debug.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
