package socks

import (
	"log/slog"
	"sync"

	"github.com/WeThePeopleBotball/socks/internal/logging"
	"github.com/WeThePeopleBotball/socks/transport"
)

// defaultRemoteMessage stands in when a failure reply carries no text.
const defaultRemoteMessage = "unknown server error"

// A RemoteError reports a request that did not produce a successful reply:
// the server answered with a failure envelope, the reply was unparsable, or
// the round trip itself failed. Reply holds the failure envelope when one
// was decoded; Unwrap exposes the transport or decode cause when there is
// one.
type RemoteError struct {
	Msg   string
	Reply Envelope
	cause error
}

func (e *RemoteError) Error() string {
	return "request failed: " + e.Msg
}

func (e *RemoteError) Unwrap() error { return e.cause }

// Client issues requests over one transport. A per-instance mutex
// serializes calls: the round trip holds connection state, so one exchange
// runs at a time per client. Calls block without timeout until the peer or
// the OS resolves them.
type Client struct {
	transport transport.Transport
	logger    *slog.Logger
	mu        sync.Mutex
}

// ClientOption adjusts client construction.
type ClientOption func(*Client)

// WithClientLogger routes client logs to logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a client calling through t.
func NewClient(t transport.Transport, opts ...ClientOption) *Client {
	c := &Client{transport: t}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "client")
	return c
}

// Close releases the client's transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// SendRequest merges cmd into payload, performs one synchronous round trip,
// and returns the decoded reply. Every unsuccessful outcome surfaces as a
// *RemoteError.
func (c *Client) SendRequest(cmd string, payload Envelope) (Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := Request(cmd, payload).Encode()
	if err != nil {
		return nil, err
	}

	raw, err := c.transport.RoundTrip(data)
	if err != nil {
		return nil, &RemoteError{Msg: err.Error(), cause: err}
	}

	reply, err := Decode(raw)
	if err != nil {
		return nil, &RemoteError{Msg: "unparsable reply: " + err.Error(), cause: err}
	}

	if !reply.Success() {
		msg := reply.Message()
		if msg == "" {
			msg = defaultRemoteMessage
		}
		return nil, &RemoteError{Msg: msg, Reply: reply}
	}
	return reply, nil
}

// Call tracks one in-flight asynchronous request.
type Call struct {
	Cmd     string
	Payload Envelope
	Reply   Envelope
	Err     error
	Done    chan *Call
}

// SendRequestAsync starts SendRequest on its own goroutine and returns the
// pending call. Done receives the call exactly once, after Reply and Err
// are set.
func (c *Client) SendRequestAsync(cmd string, payload Envelope) *Call {
	call := &Call{
		Cmd:     cmd,
		Payload: payload,
		Done:    make(chan *Call, 1),
	}
	go func() {
		call.Reply, call.Err = c.SendRequest(cmd, payload)
		call.Done <- call
	}()
	return call
}

// SendRequestBg runs the request in the background and hands callback
// either the successful reply or a synthesized failure envelope. The
// callback is invoked exactly once; a panic inside it is contained and
// logged.
func (c *Client) SendRequestBg(cmd string, payload Envelope, callback func(Envelope)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("background callback panicked",
					logging.String(logging.FieldCommand, cmd),
					logging.Any("panic", r))
			}
		}()
		reply, err := c.SendRequest(cmd, payload)
		if err != nil {
			callback(Error(nil, err.Error()))
			return
		}
		callback(reply)
	}()
}
