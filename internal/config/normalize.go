package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeDaemon(); err != nil {
		return err
	}
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeDebug()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeDaemon() error {
	var err error

	c.Daemon.Transport = strings.ToLower(strings.TrimSpace(c.Daemon.Transport))
	if c.Daemon.Transport == "" {
		c.Daemon.Transport = defaultTransport
	}

	if strings.TrimSpace(c.Daemon.SocketPath) == "" {
		c.Daemon.SocketPath = defaultSocketPath
	}
	if c.Daemon.SocketPath, err = expandPath(c.Daemon.SocketPath); err != nil {
		return fmt.Errorf("daemon.socket_path: %w", err)
	}

	c.Daemon.Bind = strings.TrimSpace(c.Daemon.Bind)
	if c.Daemon.Bind == "" {
		c.Daemon.Bind = defaultBind
	}

	if strings.TrimSpace(c.Daemon.StateDir) == "" {
		c.Daemon.StateDir = defaultStateDir
	}
	if c.Daemon.StateDir, err = expandPath(c.Daemon.StateDir); err != nil {
		return fmt.Errorf("daemon.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeJournal() error {
	var err error
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = defaultJournalPath
	}
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	if c.Journal.RetentionDays < 0 {
		c.Journal.RetentionDays = 0
	}
	return nil
}

func (c *Config) normalizeDebug() {
	c.Debug.Bind = strings.TrimSpace(c.Debug.Bind)
	if c.Debug.Bind == "" {
		c.Debug.Bind = defaultDebugBind
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.File != "" {
		var err error
		if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}
