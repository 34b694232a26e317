package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"github.com/WeThePeopleBotball/socks"
	"github.com/WeThePeopleBotball/socks/internal/config"
	"github.com/WeThePeopleBotball/socks/transport"
)

// commandContext carries the persistent flags and lazily loaded
// configuration shared by every subcommand.
type commandContext struct {
	socketFlag *string
	udpFlag    *string
	tcpFlag    *string
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, udpFlag, tcpFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		udpFlag:    udpFlag,
		tcpFlag:    tcpFlag,
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

// ensureConfig loads the configuration at most once. Commands that dial via
// an explicit transport flag never trigger a load, so a broken config file
// does not block them.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// endpoint resolves where the daemon listens: explicit transport flags win,
// otherwise the configuration decides. The returned label describes the
// endpoint for error messages.
func (c *commandContext) endpoint() (transport.Transport, string, error) {
	if socket := flagValue(c.socketFlag); socket != "" {
		return transport.NewUnix(socket), socket, nil
	}
	if addr := flagValue(c.udpFlag); addr != "" {
		host, port, err := config.SplitAddr(addr)
		if err != nil {
			return nil, "", fmt.Errorf("parse --udp address: %w", err)
		}
		return transport.NewUDPClient(host, port), addr, nil
	}
	if addr := flagValue(c.tcpFlag); addr != "" {
		host, port, err := config.SplitAddr(addr)
		if err != nil {
			return nil, "", fmt.Errorf("parse --tcp address: %w", err)
		}
		return transport.NewTCPClient(host, port), addr, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	switch cfg.Daemon.Transport {
	case config.TransportUnix:
		return transport.NewUnix(cfg.Daemon.SocketPath), cfg.Daemon.SocketPath, nil
	case config.TransportUDP:
		host, port, err := cfg.BindHostPort()
		if err != nil {
			return nil, "", err
		}
		return transport.NewUDPClient(host, port), cfg.Daemon.Bind, nil
	case config.TransportTCP:
		host, port, err := cfg.BindHostPort()
		if err != nil {
			return nil, "", err
		}
		return transport.NewTCPClient(host, port), cfg.Daemon.Bind, nil
	default:
		return nil, "", fmt.Errorf("unsupported transport %q", cfg.Daemon.Transport)
	}
}

// withClient dials the resolved endpoint, runs fn, and rewrites dial-class
// failures into actionable messages. Server-side failures pass through
// untouched.
func (c *commandContext) withClient(fn func(*socks.Client) error) error {
	tr, label, err := c.endpoint()
	if err != nil {
		return err
	}
	client := socks.NewClient(tr)
	defer client.Close()
	if err := fn(client); err != nil {
		return friendlyError(err, label)
	}
	return nil
}

func friendlyError(err error, endpoint string) error {
	switch {
	case errors.Is(err, syscall.ENOENT):
		return fmt.Errorf("connect to %s: socket not found; is socksd running?", endpoint)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to %s: connection refused; is socksd running?", endpoint)
	default:
		return err
	}
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}
