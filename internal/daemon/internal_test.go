package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/WeThePeopleBotball/socks/internal/config"
	"github.com/WeThePeopleBotball/socks/internal/journal"
	"github.com/WeThePeopleBotball/socks/internal/logging"
	"github.com/WeThePeopleBotball/socks/transport"
)

func TestLimitKey(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:9000": "127.0.0.1",
		"10.0.0.7:53123": "10.0.0.7",
		"":               "local",
		"@":              "local",
		"unix":           "local",
	}
	for client, want := range cases {
		if got := limitKey(client); got != want {
			t.Fatalf("limitKey(%q) = %q, want %q", client, got, want)
		}
	}
}

func TestBuildTransport(t *testing.T) {
	cfg := &config.Config{Daemon: config.Daemon{
		Transport:  config.TransportUnix,
		SocketPath: "/tmp/x.sock",
		Bind:       "127.0.0.1:7600",
	}}

	tr, err := buildTransport(cfg)
	if err != nil {
		t.Fatalf("unix: %v", err)
	}
	if _, ok := tr.(*transport.Unix); !ok {
		t.Fatalf("expected unix transport, got %T", tr)
	}

	cfg.Daemon.Transport = config.TransportUDP
	tr, err = buildTransport(cfg)
	if err != nil {
		t.Fatalf("udp: %v", err)
	}
	if _, ok := tr.(*transport.UDP); !ok {
		t.Fatalf("expected udp transport, got %T", tr)
	}

	cfg.Daemon.Transport = config.TransportTCP
	tr, err = buildTransport(cfg)
	if err != nil {
		t.Fatalf("tcp: %v", err)
	}
	if _, ok := tr.(*transport.TCP); !ok {
		t.Fatalf("expected tcp transport, got %T", tr)
	}

	cfg.Daemon.Transport = "pipe"
	if _, err := buildTransport(cfg); err == nil {
		t.Fatal("expected error for unsupported transport")
	}

	cfg.Daemon.Transport = config.TransportTCP
	cfg.Daemon.Bind = "no-port"
	if _, err := buildTransport(cfg); err == nil {
		t.Fatal("expected error for unparsable bind")
	}
}

func TestDebugServerEndpoints(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Daemon: config.Daemon{
			Transport:  config.TransportUnix,
			SocketPath: filepath.Join(dir, "socks.sock"),
			Bind:       "127.0.0.1:0",
			Workers:    1,
			StateDir:   dir,
		},
		Journal: config.Journal{Enabled: true, Path: filepath.Join(dir, "journal.db")},
		Debug:   config.Debug{Enabled: true, Bind: "127.0.0.1:0"},
		Logging: config.Logging{Format: "console", Level: "info"},
	}

	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	d.startedAt = time.Now()
	t.Cleanup(d.release)

	if _, err := d.journal.Record(context.Background(), journal.Entry{
		RequestID: "req-1", Command: "ping", Success: true,
	}); err != nil {
		t.Fatalf("seed journal: %v", err)
	}
	d.metrics.ObserveRequest("ping", true, 5*time.Millisecond)

	if err := d.debug.start(); err != nil {
		t.Fatalf("debug start failed: %v", err)
	}
	base := "http://" + d.debug.addr()

	body := getBody(t, base+"/healthz", http.StatusOK)
	var health map[string]any
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if health["status"] != "ok" || health["session_id"] == "" {
		t.Fatalf("unexpected healthz payload: %v", health)
	}

	body = getBody(t, base+"/api/stats", http.StatusOK)
	var stats map[string]any
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if _, ok := stats["commands"]; !ok {
		t.Fatalf("stats payload missing commands: %v", stats)
	}

	body = getBody(t, base+"/api/journal?limit=5", http.StatusOK)
	var page struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode journal: %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0]["command"] != "ping" {
		t.Fatalf("unexpected journal payload: %v", page.Entries)
	}

	getBody(t, base+"/api/journal?limit=abc", http.StatusBadRequest)

	body = getBody(t, base+"/metrics", http.StatusOK)
	if !strings.Contains(string(body), "socksd_requests_total") {
		t.Fatal("metrics exposition missing daemon counters")
	}
}

func getBody(t *testing.T, url string, wantStatus int) []byte {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s body: %v", url, err)
	}
	return body
}

func TestStatsSnapshotWithoutJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Daemon: config.Daemon{
			Transport:  config.TransportUnix,
			SocketPath: filepath.Join(dir, "socks.sock"),
			Workers:    3,
			StateDir:   dir,
		},
		Logging: config.Logging{Format: "console", Level: "info"},
	}

	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	d.startedAt = time.Now().Add(-2 * time.Second)
	t.Cleanup(d.release)

	snap, err := d.statsSnapshot(context.Background())
	if err != nil {
		t.Fatalf("statsSnapshot failed: %v", err)
	}
	if snap["journal_enabled"] != false {
		t.Fatalf("expected journal_enabled false, got %v", snap["journal_enabled"])
	}
	if snap["workers"] != 3 {
		t.Fatalf("expected workers 3, got %v", snap["workers"])
	}
	if _, ok := snap["commands"]; ok {
		t.Fatal("commands should be absent without a journal")
	}
	uptime, ok := snap["uptime_seconds"].(int64)
	if !ok || uptime < 2 {
		t.Fatalf("unexpected uptime: %v", snap["uptime_seconds"])
	}
}

func TestIntField(t *testing.T) {
	if n, err := intField(map[string]any{"limit": json.Number("41")}, "limit"); err != nil || n != 41 {
		t.Fatalf("json.Number: got %d, %v", n, err)
	}
	if n, err := intField(map[string]any{"limit": 7}, "limit"); err != nil || n != 7 {
		t.Fatalf("int: got %d, %v", n, err)
	}
	if _, err := intField(map[string]any{"limit": json.Number("4.5")}, "limit"); err == nil {
		t.Fatal("fractional number should be rejected")
	}
	if _, err := intField(map[string]any{"limit": "10"}, "limit"); err == nil {
		t.Fatal("string should be rejected")
	}
	if _, err := intField(map[string]any{}, "limit"); err == nil {
		t.Fatal("missing key should be rejected")
	}
}
