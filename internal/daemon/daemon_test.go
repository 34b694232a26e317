package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/WeThePeopleBotball/socks"
	"github.com/WeThePeopleBotball/socks/internal/config"
	"github.com/WeThePeopleBotball/socks/internal/daemon"
	"github.com/WeThePeopleBotball/socks/internal/journal"
	"github.com/WeThePeopleBotball/socks/internal/logging"
	"github.com/WeThePeopleBotball/socks/transport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Daemon: config.Daemon{
			Transport:  config.TransportUnix,
			SocketPath: filepath.Join(dir, "socks.sock"),
			Bind:       "127.0.0.1:0",
			Workers:    2,
			StateDir:   dir,
		},
		Limits: config.Limits{
			Enabled:     true,
			PerSecond:   100,
			Burst:       100,
			IdleSeconds: 60,
		},
		Journal: config.Journal{
			Enabled: true,
			Path:    filepath.Join(dir, "journal.db"),
		},
		Logging: config.Logging{Format: "console", Level: "info"},
	}
}

func startDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, context.CancelFunc, chan error) {
	t.Helper()
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()
	waitForSocket(t, cfg.Daemon.SocketPath)
	return d, cancel, done
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never appeared", path)
}

func stopDaemon(t *testing.T, cancel context.CancelFunc, done chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}

func TestDaemonServesBuiltins(t *testing.T) {
	cfg := testConfig(t)
	_, cancel, done := startDaemon(t, cfg)

	client := socks.NewClient(transport.NewUnix(cfg.Daemon.SocketPath))

	reply, err := client.SendRequest("ping", nil)
	if err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if !reply.Success() {
		t.Fatalf("ping reply not successful: %v", reply)
	}

	reply, err = client.SendRequest("echo", socks.Envelope{"text": "hello", "n": 3})
	if err != nil {
		t.Fatalf("echo failed: %v", err)
	}
	fields := reply.Fields()
	if fields["text"] != "hello" {
		t.Fatalf("echo dropped text field: %v", fields)
	}
	if fields["n"] != json.Number("3") {
		t.Fatalf("echo changed numeric field: %#v", fields["n"])
	}

	reply, err = client.SendRequest("journal", socks.Envelope{"limit": 10})
	if err != nil {
		t.Fatalf("journal failed: %v", err)
	}
	entries, ok := reply["entries"].([]any)
	if !ok {
		t.Fatalf("journal reply missing entries: %v", reply)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least ping and echo in journal, got %d", len(entries))
	}

	if _, err := client.SendRequest("journal", nil); err == nil {
		t.Fatal("journal without limit should fail validation")
	} else {
		var remote *socks.RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("expected RemoteError, got %T", err)
		}
		if !strings.Contains(remote.Msg, "Missing key: limit") {
			t.Fatalf("unexpected validation message: %q", remote.Msg)
		}
	}

	reply, err = client.SendRequest("config", nil)
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if reply["transport"] != config.TransportUnix {
		t.Fatalf("config reply transport = %v", reply["transport"])
	}

	reply, err = client.SendRequest("stats", nil)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if sid, _ := reply["session_id"].(string); sid == "" {
		t.Fatalf("stats reply missing session id: %v", reply)
	}
	if _, ok := reply["commands"].(map[string]any); !ok {
		t.Fatalf("stats reply missing command aggregates: %v", reply)
	}

	_, err = client.SendRequest("nope", nil)
	var remote *socks.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError for unknown command, got %v", err)
	}
	if remote.Msg != "Unknown command: nope" {
		t.Fatalf("unexpected unknown-command message: %q", remote.Msg)
	}

	stopDaemon(t, cancel, done)

	// Every exchange above, including the failed ones, should have landed
	// in the journal.
	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer store.Close()
	all, err := store.Recent(context.Background(), 50)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(all) != 7 {
		t.Fatalf("expected 7 journal rows, got %d", len(all))
	}
	if all[0].Command != "nope" || all[0].Success {
		t.Fatalf("expected newest row to be the failed unknown command, got %+v", all[0])
	}
	if all[0].RequestID == "" {
		t.Fatal("journal rows should carry request ids")
	}
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := testConfig(t)
	_, cancel, done := startDaemon(t, cfg)

	second, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = second.Run(context.Background())
	if err == nil {
		t.Fatal("expected second instance to be refused")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}

	stopDaemon(t, cancel, done)
}

func TestDaemonRateLimitsClients(t *testing.T) {
	cfg := testConfig(t)
	cfg.Limits = config.Limits{Enabled: true, PerSecond: 0.01, Burst: 1, IdleSeconds: 60}
	_, cancel, done := startDaemon(t, cfg)

	client := socks.NewClient(transport.NewUnix(cfg.Daemon.SocketPath))

	if _, err := client.SendRequest("ping", nil); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	_, err := client.SendRequest("ping", nil)
	var remote *socks.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Msg != "rate limit exceeded" {
		t.Fatalf("unexpected message: %q", remote.Msg)
	}

	stopDaemon(t, cancel, done)
}

func TestDaemonJournalDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Enabled = false
	_, cancel, done := startDaemon(t, cfg)

	client := socks.NewClient(transport.NewUnix(cfg.Daemon.SocketPath))

	_, err := client.SendRequest("journal", socks.Envelope{"limit": 5})
	var remote *socks.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Msg != "journal is disabled" {
		t.Fatalf("unexpected message: %q", remote.Msg)
	}

	reply, err := client.SendRequest("stats", nil)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if enabled, _ := reply["journal_enabled"].(bool); enabled {
		t.Fatal("stats should report journal disabled")
	}

	stopDaemon(t, cancel, done)
}
