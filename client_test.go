package socks_test

import (
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	socks "github.com/WeThePeopleBotball/socks"
	"github.com/WeThePeopleBotball/socks/transport"
)

// serveRaw answers one connection per reply with the literal bytes given,
// handing each received request to the returned channel.
func serveRaw(t *testing.T, path string, replies ...[]byte) <-chan []byte {
	t.Helper()
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	requests := make(chan []byte, len(replies))
	go func() {
		for _, reply := range replies {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 4096)
			n, err := conn.Read(buf)
			if err != nil {
				conn.Close()
				return
			}
			requests <- buf[:n]
			conn.Write(reply)
			conn.Close()
		}
	}()
	return requests
}

func newRawClient(t *testing.T, path string) *socks.Client {
	t.Helper()
	client := socks.NewClient(transport.NewUnix(path))
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientRequestCarriesCommandAndPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.sock")
	requests := serveRaw(t, path, []byte(`{"_success":true}`))
	client := newRawClient(t, path)

	if _, err := client.SendRequest("feed", socks.Envelope{"animal": "capy"}); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	sent, err := socks.Decode(<-requests)
	if err != nil {
		t.Fatalf("decode sent request: %v", err)
	}
	if cmd, _ := sent.Command(); cmd != "feed" {
		t.Fatalf("request command = %q, want feed", cmd)
	}
	if sent.Fields()["animal"] != "capy" {
		t.Fatalf("payload lost: %v", sent)
	}
}

func TestClientReportsFailureEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.sock")
	serveRaw(t, path, []byte(`{"_success":false,"_msg":"denied","code":9}`))
	client := newRawClient(t, path)

	_, err := client.SendRequest("x", nil)
	var remote *socks.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Msg != "denied" {
		t.Fatalf("Msg = %q, want denied", remote.Msg)
	}
	if remote.Reply == nil || remote.Reply.Success() {
		t.Fatalf("Reply missing or successful: %v", remote.Reply)
	}
	if remote.Reply.Fields()["code"] != json.Number("9") {
		t.Fatalf("failure fields lost: %v", remote.Reply)
	}
	if errors.Unwrap(err) != nil {
		t.Fatalf("failure envelope should carry no cause, got %v", errors.Unwrap(err))
	}
	if !strings.Contains(err.Error(), "denied") {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestClientDefaultsMissingFailureMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.sock")
	serveRaw(t, path, []byte(`{"_success":false}`))
	client := newRawClient(t, path)

	_, err := client.SendRequest("x", nil)
	var remote *socks.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Msg != "unknown server error" {
		t.Fatalf("Msg = %q", remote.Msg)
	}
}

func TestClientUnparsableReply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.sock")
	serveRaw(t, path, []byte(`garbage`))
	client := newRawClient(t, path)

	_, err := client.SendRequest("x", nil)
	var remote *socks.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if !strings.HasPrefix(remote.Msg, "unparsable reply:") {
		t.Fatalf("Msg = %q", remote.Msg)
	}
	if errors.Unwrap(err) == nil {
		t.Fatal("decode failure should expose its cause")
	}
}

func TestClientTransportErrorExposesCause(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.sock")
	client := newRawClient(t, path)

	_, err := client.SendRequest("x", nil)
	var remote *socks.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("cause chain lost the dial error: %v", err)
	}
}

func TestSendRequestAsyncDeliversExactlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.sock")
	serveRaw(t, path, []byte(`{"_success":true,"x":1}`))
	client := newRawClient(t, path)

	call := client.SendRequestAsync("x", nil)
	select {
	case got := <-call.Done:
		if got != call {
			t.Fatal("Done delivered a different call")
		}
		if got.Err != nil {
			t.Fatalf("Err = %v", got.Err)
		}
		if !got.Reply.Success() {
			t.Fatalf("Reply = %v", got.Reply)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Done never delivered")
	}

	select {
	case <-call.Done:
		t.Fatal("Done delivered twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendRequestBgSynthesizesFailureEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.sock")
	serveRaw(t, path,
		[]byte(`{"_success":true,"n":1}`),
		[]byte(`{"_success":false,"_msg":"denied"}`))
	client := newRawClient(t, path)

	got := make(chan socks.Envelope, 1)
	client.SendRequestBg("x", nil, func(reply socks.Envelope) {
		got <- reply
	})
	reply := <-got
	if !reply.Success() {
		t.Fatalf("first callback reply = %v", reply)
	}

	client.SendRequestBg("x", nil, func(reply socks.Envelope) {
		got <- reply
	})
	reply = <-got
	if reply.Success() {
		t.Fatalf("second callback reply = %v", reply)
	}
	if !strings.Contains(reply.Message(), "denied") {
		t.Fatalf("callback message = %q", reply.Message())
	}
}

func TestSendRequestBgCallbackPanicIsContained(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.sock")
	serveRaw(t, path,
		[]byte(`{"_success":true}`),
		[]byte(`{"_success":true}`))
	client := newRawClient(t, path)

	ran := make(chan struct{})
	client.SendRequestBg("x", nil, func(socks.Envelope) {
		close(ran)
		panic("callback exploded")
	})
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never ran")
	}

	// The panic must not take the client down.
	if _, err := client.SendRequest("x", nil); err != nil {
		t.Fatalf("client unusable after callback panic: %v", err)
	}
}

func TestClientSerializesConcurrentCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.sock")
	serveRaw(t, path,
		[]byte(`{"_success":true}`),
		[]byte(`{"_success":true}`))
	client := newRawClient(t, path)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := client.SendRequest("x", nil)
			errs <- err
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent call failed: %v", err)
		}
	}
}
