package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/WeThePeopleBotball/socks"
	"github.com/WeThePeopleBotball/socks/internal/config"
	"github.com/WeThePeopleBotball/socks/internal/journal"
	"github.com/WeThePeopleBotball/socks/internal/logging"
	"github.com/WeThePeopleBotball/socks/internal/metrics"
	"github.com/WeThePeopleBotball/socks/internal/ratelimit"
	"github.com/WeThePeopleBotball/socks/pool"
	"github.com/WeThePeopleBotball/socks/transport"
)

// Daemon owns the command server and its supporting services. Construct
// with New, then call Run exactly once; Run blocks until the context is
// cancelled and releases every resource on the way out.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	sessionID string

	tr      transport.Transport
	pool    *pool.Pool
	server  *socks.Server
	journal *journal.Store
	metrics *metrics.Set
	limiter *ratelimit.Keyed
	debug   *debugServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
}

// New constructs a daemon from validated configuration. The journal is
// opened (and pruned) here; the transport stays unbound until Run.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	logger = logging.WithComponent(logger, "daemon")

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if err := checkStateDir(cfg.Daemon.StateDir); err != nil {
		return nil, err
	}

	tr, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.NewString(),
		tr:        tr,
		metrics:   metrics.New(),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		d.journal = store
		if cfg.Journal.RetentionDays > 0 {
			cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Journal.RetentionDays)
			removed, err := store.Prune(context.Background(), cutoff)
			if err != nil {
				logger.Warn("journal prune failed", logging.Error(err))
			} else if removed > 0 {
				logger.Info("journal pruned", logging.Int64("removed", removed))
			}
		}
	}

	if cfg.Limits.Enabled {
		d.limiter = ratelimit.New(
			cfg.Limits.PerSecond,
			cfg.Limits.Burst,
			time.Duration(cfg.Limits.IdleSeconds)*time.Second,
		)
	}

	d.pool = pool.New(cfg.Daemon.Workers, pool.WithLogger(logger))
	d.server = socks.NewServer(tr,
		socks.WithPool(d.pool),
		socks.WithServerLogger(logger),
		socks.WithRequestFilter(d.filterRequest),
		socks.WithObserver(d.observeRequest),
	)
	d.registerBuiltins()

	if cfg.Debug.Enabled {
		d.debug = newDebugServer(cfg.Debug.Bind, d, logger)
	}
	return d, nil
}

// SessionID identifies this daemon process in logs and stats replies.
func (d *Daemon) SessionID() string {
	return d.sessionID
}

// Run acquires the instance lock, serves until ctx is cancelled, drains the
// worker pool, and releases all resources. The returned error is nil after
// a clean shutdown; a bind or lock failure is returned immediately.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		d.release()
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !ok {
		d.release()
		return errors.New("another socksd instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if d.debug != nil {
		if err := d.debug.start(); err != nil {
			d.release()
			return err
		}
	}

	d.startedAt = time.Now()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.server.Start()
	}()

	d.logger.Info("socksd started",
		logging.String(logging.FieldSessionID, d.sessionID),
		logging.String(logging.FieldTransport, d.tr.String()),
		logging.Int("workers", d.cfg.Daemon.Workers),
		logging.String("lock", d.lockPath))

	var runErr error
	select {
	case <-ctx.Done():
		d.server.Stop()
		runErr = <-serveErr
	case err := <-serveErr:
		d.server.Stop()
		runErr = err
	}

	// Drain queued work before resources go away. Stream replies still reach
	// their callers here: each accepted connection rides inside its ClientID.
	d.pool.Wait()
	d.release()
	d.logger.Info("socksd stopped")
	return runErr
}

func (d *Daemon) release() {
	if d.debug != nil {
		d.debug.stop()
	}
	d.limiter.Stop()
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			d.logger.Warn("journal close failed", logging.Error(err))
		}
		d.journal = nil
	}
}

// filterRequest enforces the per-client rate limit before dispatch.
func (d *Daemon) filterRequest(client string, _ socks.Envelope) error {
	if d.limiter.Allow(limitKey(client)) {
		return nil
	}
	d.metrics.RateLimited.Inc()
	return errors.New("rate limit exceeded")
}

// limitKey buckets remote peers by address; local socket callers, whose
// identity strings carry no host, share one bucket.
func limitKey(client string) string {
	host, _, err := net.SplitHostPort(client)
	if err == nil && host != "" {
		return host
	}
	return "local"
}

// observeRequest feeds metrics and the journal after each reply.
func (d *Daemon) observeRequest(stat socks.RequestStat) {
	d.metrics.ObserveRequest(stat.Command, stat.Success, stat.Elapsed)
	if d.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := d.journal.Record(ctx, journal.Entry{
		RequestID:  stat.RequestID,
		Command:    stat.Command,
		Client:     stat.Client,
		Success:    stat.Success,
		Message:    stat.Message,
		DurationMS: stat.Elapsed.Milliseconds(),
		ReceivedAt: time.Now().UTC().Add(-stat.Elapsed),
	})
	if err != nil {
		d.logger.Warn("journal write failed", logging.Error(err))
	}
}

func buildTransport(cfg *config.Config) (transport.Transport, error) {
	switch cfg.Daemon.Transport {
	case config.TransportUnix:
		return transport.NewUnix(cfg.Daemon.SocketPath), nil
	case config.TransportUDP:
		_, port, err := cfg.BindHostPort()
		if err != nil {
			return nil, err
		}
		return transport.NewUDPServer(port), nil
	case config.TransportTCP:
		_, port, err := cfg.BindHostPort()
		if err != nil {
			return nil, err
		}
		return transport.NewTCPServer(port), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Daemon.Transport)
	}
}

// checkStateDir verifies the state directory exists and is fully accessible
// before the daemon commits to locking and journaling inside it.
func checkStateDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("state directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("state directory %s: not a directory", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("state directory %s: insufficient permissions: %w", path, err)
	}
	return nil
}
