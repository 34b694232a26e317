package socks

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/WeThePeopleBotball/socks/internal/logging"
	"github.com/WeThePeopleBotball/socks/pool"
	"github.com/WeThePeopleBotball/socks/transport"
)

// Handler maps one request envelope to a response envelope. Returning an
// error produces a failure envelope carrying the error text; returning an
// envelope without a success flag marks it successful. Handlers run
// concurrently when the server has a pool, so they must be safe for that.
type Handler func(req Envelope) (Envelope, error)

// RequestFilter inspects a decoded request before it is routed to a
// handler. The client argument is the transport identity string. A non-nil
// error stops dispatch and reaches the client as a failure envelope
// carrying the error text.
type RequestFilter func(client string, req Envelope) error

// RequestStat summarizes one completed exchange for an Observer: the
// request id matches the server's log lines, Elapsed spans receive to
// reply, and Success and Message mirror the envelope sent back.
type RequestStat struct {
	RequestID string
	Client    string
	Command   string
	Success   bool
	Message   string
	Elapsed   time.Duration
}

// Observer runs after each reply is sent, on the goroutine that handled
// the message. It sees every received message, including ones that failed
// to decode or were filtered.
type Observer func(RequestStat)

// Server owns a bound transport, an optional worker pool, and a command
// registry populated before Start. One message is received at a time; with
// a pool, the full per-message pipeline (decode, route, invoke, reply) runs
// as a single pool task, so only reception is serialized.
type Server struct {
	transport transport.Transport
	pool      *pool.Pool
	logger    *slog.Logger
	filter    RequestFilter
	observer  Observer
	handlers  map[string]Handler
	running   atomic.Bool
	stopped   atomic.Bool
}

// ServerOption adjusts server construction.
type ServerOption func(*Server)

// WithPool dispatches each received message onto p instead of handling it
// inline on the serving goroutine. The server never shuts the pool down;
// its owner does, after Stop.
func WithPool(p *pool.Pool) ServerOption {
	return func(s *Server) {
		s.pool = p
	}
}

// WithServerLogger routes serving logs to logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestFilter runs f against every decoded request before routing.
// Filtered requests never reach a handler.
func WithRequestFilter(f RequestFilter) ServerOption {
	return func(s *Server) {
		s.filter = f
	}
}

// WithObserver installs fn as the server's completion hook.
func WithObserver(fn Observer) ServerOption {
	return func(s *Server) {
		s.observer = fn
	}
}

// NewServer returns a server over t. Register handlers before Start.
func NewServer(t transport.Transport, opts ...ServerOption) *Server {
	s := &Server{
		transport: t,
		handlers:  make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "server")
	return s
}

// AddHandler registers h under cmd; a later registration for the same
// command wins. Registration must finish before Start, the registry is
// read-only while serving.
func (s *Server) AddHandler(cmd string, h Handler) {
	s.handlers[cmd] = h
}

// Start binds the transport and serves until Stop. It blocks; run it on a
// dedicated goroutine when the caller needs to keep working. A bind failure
// is returned immediately; after a clean Stop, Start returns nil.
func (s *Server) Start() error {
	s.running.Store(true)
	if err := s.transport.Bind(); err != nil {
		s.running.Store(false)
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info("server started", logging.String(logging.FieldTransport, s.transport.String()))
	s.serve()
	return nil
}

// Stop ends serving: it flips the running flag before closing the
// transport so the blocked Receive fails into a clean exit instead of an
// error loop. Idempotent and callable from any goroutine. Pending pool
// tasks are not awaited here.
func (s *Server) Stop() {
	s.running.Store(false)
	if s.stopped.Swap(true) {
		return
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("transport close failed", logging.Error(err))
	}
	s.logger.Info("server stopped")
}

func (s *Server) serve() {
	for s.running.Load() {
		payload, client, err := s.transport.Receive()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.logger.Warn("receive failed", logging.Error(err))
			continue
		}

		task := s.dispatchTask(payload, client)
		if s.pool == nil {
			task()
			continue
		}
		if err := s.pool.Submit(task); err != nil {
			s.logger.Warn("dispatch rejected",
				logging.Error(err),
				logging.String(logging.FieldClient, client.String()))
		}
	}
}

// dispatchTask packages the whole per-message pipeline as one unit so a
// pool runs it with the same semantics as inline handling.
func (s *Server) dispatchTask(payload []byte, client transport.ClientID) func() {
	requestID := uuid.NewString()
	received := time.Now()
	return func() {
		logger := s.logger.With(
			logging.String(logging.FieldRequestID, requestID),
			logging.String(logging.FieldClient, client.String()))

		resp, cmd := s.handle(payload, client.String())
		logger = logger.With(logging.String(logging.FieldCommand, cmd))
		if resp.Success() {
			logger.Debug("command handled")
		} else {
			logger.Warn("command failed", logging.String("msg", resp.Message()))
		}

		data, err := resp.Encode()
		if err != nil {
			logger.Error("encode reply failed", logging.Error(err))
			resp = Error(nil, "Invalid JSON or internal error: unencodable response")
			data, _ = resp.Encode()
		}
		if err := s.transport.Send(data, client); err != nil {
			logger.Warn("send failed", logging.Error(err))
		}

		if s.observer != nil {
			s.observer(RequestStat{
				RequestID: requestID,
				Client:    client.String(),
				Command:   cmd,
				Success:   resp.Success(),
				Message:   resp.Message(),
				Elapsed:   time.Since(received),
			})
		}
	}
}

// handle runs decode, filter, route, and invoke, and always produces a
// response envelope. The returned command name is for logging; requests
// without a usable one report a placeholder.
func (s *Server) handle(payload []byte, client string) (Envelope, string) {
	req, err := Decode(payload)
	if err != nil {
		return Error(nil, "Invalid JSON or internal error: "+err.Error()), "<invalid>"
	}

	cmd := "<no _cmd>"
	if raw, present := req[KeyCommand]; present {
		str, ok := raw.(string)
		if !ok {
			return Error(nil, "Invalid JSON or internal error: command name must be a string"), "<invalid>"
		}
		cmd = str
	}

	if s.filter != nil {
		if err := s.filter(client, req); err != nil {
			return Error(nil, err.Error()), cmd
		}
	}

	h, ok := s.handlers[cmd]
	if !ok {
		return Error(nil, "Unknown command: "+cmd), cmd
	}

	resp, err := s.invoke(h, req)
	if err != nil {
		return Error(nil, err.Error()), cmd
	}
	return normalizeResponse(resp), cmd
}

// invoke shields the serving goroutine and pool workers from handler
// panics; a panic surfaces as an ordinary handler failure.
func (s *Server) invoke(h Handler, req Envelope) (resp Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("Invalid JSON or internal error: %v", r)
		}
	}()
	return h(req)
}

// normalizeResponse enforces the response invariants: no command key, and
// a boolean success flag, defaulting to success for handlers that only
// return payload fields.
func normalizeResponse(resp Envelope) Envelope {
	out := resp.Clone()
	delete(out, KeyCommand)
	if _, ok := out[KeySuccess].(bool); !ok {
		out[KeySuccess] = true
	}
	return out
}
