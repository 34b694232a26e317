package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/WeThePeopleBotball/socks"
	"github.com/WeThePeopleBotball/socks/schema"
)

// maxJournalLimit caps how many rows one journal command may return.
const maxJournalLimit = 500

var journalArgs = schema.Map{
	"limit": schema.Type(schema.Int),
}

// registerBuiltins installs the daemon's standard command set. Each handler
// is wrapped so the in-flight gauge tracks currently executing handlers.
func (d *Daemon) registerBuiltins() {
	d.register("ping", d.handlePing)
	d.register("echo", d.handleEcho)
	d.register("stats", d.handleStats)
	d.register("journal", d.handleJournal)
	d.register("config", d.handleConfig)
}

func (d *Daemon) register(name string, h socks.Handler) {
	d.server.AddHandler(name, func(req socks.Envelope) (socks.Envelope, error) {
		d.metrics.InFlight.Inc()
		defer d.metrics.InFlight.Dec()
		return h(req)
	})
}

func (d *Daemon) handlePing(socks.Envelope) (socks.Envelope, error) {
	return socks.Okay(nil), nil
}

// handleEcho returns the request payload unchanged.
func (d *Daemon) handleEcho(req socks.Envelope) (socks.Envelope, error) {
	return socks.Okay(req.Fields()), nil
}

func (d *Daemon) handleStats(socks.Envelope) (socks.Envelope, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.statsSnapshot(ctx)
}

// statsSnapshot builds the payload served by both the stats command and the
// debug listener.
func (d *Daemon) statsSnapshot(ctx context.Context) (socks.Envelope, error) {
	resp := socks.Envelope{
		"session_id":      d.sessionID,
		"transport":       d.tr.String(),
		"workers":         d.cfg.Daemon.Workers,
		"uptime_seconds":  int64(time.Since(d.startedAt).Seconds()),
		"journal_enabled": d.journal != nil,
	}
	if d.journal != nil {
		stats, err := d.journal.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("journal stats: %w", err)
		}
		commands := make(map[string]any, len(stats))
		for _, s := range stats {
			command := socks.Envelope{
				"total":    s.Total,
				"failures": s.Failures,
				"avg_ms":   s.AvgMillis,
			}
			if !s.LastSeenAt.IsZero() {
				command["last_seen"] = s.LastSeenAt.UTC().Format(time.RFC3339)
			}
			commands[s.Command] = command
		}
		resp["commands"] = commands
	}
	return socks.Okay(resp), nil
}

// handleJournal returns recent journal entries. The request must carry an
// integer limit.
func (d *Daemon) handleJournal(req socks.Envelope) (socks.Envelope, error) {
	if d.journal == nil {
		return nil, errors.New("journal is disabled")
	}
	if err := schema.Validate(req.Fields(), journalArgs); err != nil {
		return nil, err
	}
	limit, err := intField(req, "limit")
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := d.recentJournal(ctx, limit)
	if err != nil {
		return nil, err
	}
	return socks.Okay(socks.Envelope{"entries": entries}), nil
}

func (d *Daemon) recentJournal(ctx context.Context, limit int) ([]any, error) {
	entries, err := d.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	items := make([]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, socks.Envelope{
			"id":          e.ID,
			"request_id":  e.RequestID,
			"command":     e.Command,
			"client":      e.Client,
			"success":     e.Success,
			"message":     e.Message,
			"duration_ms": e.DurationMS,
			"received_at": e.ReceivedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return items, nil
}

// handleConfig reports the daemon's effective configuration.
func (d *Daemon) handleConfig(socks.Envelope) (socks.Envelope, error) {
	cfg := d.cfg
	return socks.Okay(socks.Envelope{
		"transport": cfg.Daemon.Transport,
		"addr":      cfg.Addr(),
		"workers":   cfg.Daemon.Workers,
		"state_dir": cfg.Daemon.StateDir,
		"limits": socks.Envelope{
			"enabled":      cfg.Limits.Enabled,
			"per_second":   cfg.Limits.PerSecond,
			"burst":        cfg.Limits.Burst,
			"idle_seconds": cfg.Limits.IdleSeconds,
		},
		"journal": socks.Envelope{
			"enabled":        cfg.Journal.Enabled,
			"path":           cfg.Journal.Path,
			"retention_days": cfg.Journal.RetentionDays,
		},
		"debug": socks.Envelope{
			"enabled": cfg.Debug.Enabled,
			"bind":    cfg.Debug.Bind,
		},
		"logging": socks.Envelope{
			"format": cfg.Logging.Format,
			"level":  cfg.Logging.Level,
		},
	}), nil
}

func intField(req socks.Envelope, key string) (int, error) {
	switch v := req[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(n), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}
