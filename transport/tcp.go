package transport

import (
	"fmt"
	"net"
	"strconv"
	"sync"
)

// TCP mirrors the Unix backend over an IPv4 stream socket: one accepted
// connection per Receive, one exchange per connection.
type TCP struct {
	host string
	port int

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// NewTCPServer returns a transport that binds all interfaces on port.
func NewTCPServer(port int) *TCP {
	return &TCP{port: port}
}

// NewTCPClient returns a transport targeting host:port. An empty host means
// the local loopback.
func NewTCPClient(host string, port int) *TCP {
	if host == "" {
		host = "127.0.0.1"
	}
	return &TCP{host: host, port: port}
}

func (t *TCP) String() string {
	if t.host == "" {
		return fmt.Sprintf("tcp:*:%d", t.port)
	}
	return "tcp:" + net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// Bind binds and starts listening.
func (t *TCP) Bind() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return &BindError{Endpoint: t.String(), Err: ErrClosed}
	}
	if t.ln != nil {
		return &BindError{Endpoint: t.String(), Err: ErrAlreadyBound}
	}
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return &BindError{Endpoint: t.String(), Err: err}
	}
	t.ln = ln
	return nil
}

// Receive accepts one connection and reads one message from it.
func (t *TCP) Receive() ([]byte, ClientID, error) {
	ln := t.listener()
	if ln == nil {
		return nil, ClientID{}, &ReceiveError{Endpoint: t.String(), Err: ErrNotBound}
	}
	conn, err := ln.Accept()
	if err != nil {
		return nil, ClientID{}, &ReceiveError{Endpoint: t.String(), Err: closeCause(err)}
	}
	payload, err := readOne(conn)
	if err != nil {
		conn.Close()
		return nil, ClientID{}, &ReceiveError{Endpoint: t.String(), Err: err}
	}
	return payload, ClientID{conn: conn}, nil
}

// Send writes the reply and closes the accepted connection.
func (t *TCP) Send(payload []byte, to ClientID) error {
	if to.conn == nil {
		return &SendError{Endpoint: t.String(), Err: ErrInvalidClient}
	}
	defer to.conn.Close()
	if _, err := to.conn.Write(payload); err != nil {
		return &SendError{Endpoint: t.String(), Err: err}
	}
	return nil
}

// RoundTrip dials the server, writes payload, and reads the single reply.
func (t *TCP) RoundTrip(payload []byte) ([]byte, error) {
	conn, err := net.Dial("tcp4", net.JoinHostPort(t.host, strconv.Itoa(t.port)))
	if err != nil {
		return nil, &SendError{Endpoint: t.String(), Err: err}
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		return nil, &SendError{Endpoint: t.String(), Err: err}
	}
	reply, err := readOne(conn)
	if err != nil {
		return nil, &ReceiveError{Endpoint: t.String(), Err: err}
	}
	return reply, nil
}

// Close shuts the listener down, unblocking a pending Receive.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.ln == nil {
		return nil
	}
	err := t.ln.Close()
	t.ln = nil
	return err
}

func (t *TCP) listener() net.Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ln
}

// LocalAddr reports the bound listener address, or nil before Bind. Useful
// when binding port 0 and letting the OS pick.
func (t *TCP) LocalAddr() net.Addr {
	ln := t.listener()
	if ln == nil {
		return nil
	}
	return ln.Addr()
}
