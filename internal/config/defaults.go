package config

// Transport kinds accepted by daemon.transport.
const (
	TransportUnix = "unix"
	TransportUDP  = "udp"
	TransportTCP  = "tcp"
)

const (
	defaultTransport        = TransportUnix
	defaultSocketPath       = "~/.local/share/socks/socks.sock"
	defaultBind             = "127.0.0.1:7600"
	defaultWorkers          = 4
	defaultStateDir         = "~/.local/share/socks"
	defaultLimitPerSecond   = 50.0
	defaultLimitBurst       = 100
	defaultLimitIdleSeconds = 300
	defaultJournalPath      = "~/.local/share/socks/journal.db"
	defaultRetentionDays    = 30
	defaultDebugBind        = "127.0.0.1:7601"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Daemon: Daemon{
			Transport:  defaultTransport,
			SocketPath: defaultSocketPath,
			Bind:       defaultBind,
			Workers:    defaultWorkers,
			StateDir:   defaultStateDir,
		},
		Limits: Limits{
			Enabled:     true,
			PerSecond:   defaultLimitPerSecond,
			Burst:       defaultLimitBurst,
			IdleSeconds: defaultLimitIdleSeconds,
		},
		Journal: Journal{
			Enabled:       true,
			Path:          defaultJournalPath,
			RetentionDays: defaultRetentionDays,
		},
		Debug: Debug{
			Enabled: false,
			Bind:    defaultDebugBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
