package transport

import (
	"io"
	"net"
	"os"
	"sync"
)

// Unix carries messages over a stream socket bound to a filesystem path.
// The same value serves both roles: Bind/Receive/Send on the server side,
// RoundTrip on the client side.
type Unix struct {
	path string

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// NewUnix returns a transport for the socket at path.
func NewUnix(path string) *Unix {
	return &Unix{path: path}
}

func (u *Unix) String() string {
	return "unix:" + u.path
}

// Bind removes a stale socket file, binds, and starts listening.
func (u *Unix) Bind() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return &BindError{Endpoint: u.String(), Err: ErrClosed}
	}
	if u.ln != nil {
		return &BindError{Endpoint: u.String(), Err: ErrAlreadyBound}
	}
	if err := os.RemoveAll(u.path); err != nil {
		return &BindError{Endpoint: u.String(), Err: err}
	}
	ln, err := net.Listen("unix", u.path)
	if err != nil {
		return &BindError{Endpoint: u.String(), Err: err}
	}
	u.ln = ln
	return nil
}

// Receive accepts one connection and reads one message from it. The
// returned identity holds the connection; Send completes the exchange.
func (u *Unix) Receive() ([]byte, ClientID, error) {
	ln := u.listener()
	if ln == nil {
		return nil, ClientID{}, &ReceiveError{Endpoint: u.String(), Err: ErrNotBound}
	}
	conn, err := ln.Accept()
	if err != nil {
		return nil, ClientID{}, &ReceiveError{Endpoint: u.String(), Err: closeCause(err)}
	}
	payload, err := readOne(conn)
	if err != nil {
		conn.Close()
		return nil, ClientID{}, &ReceiveError{Endpoint: u.String(), Err: err}
	}
	return payload, ClientID{conn: conn}, nil
}

// Send writes the reply and closes the accepted connection.
func (u *Unix) Send(payload []byte, to ClientID) error {
	if to.conn == nil {
		return &SendError{Endpoint: u.String(), Err: ErrInvalidClient}
	}
	defer to.conn.Close()
	if _, err := to.conn.Write(payload); err != nil {
		return &SendError{Endpoint: u.String(), Err: err}
	}
	return nil
}

// RoundTrip dials the socket, writes payload, and reads the single reply.
func (u *Unix) RoundTrip(payload []byte) ([]byte, error) {
	conn, err := net.Dial("unix", u.path)
	if err != nil {
		return nil, &SendError{Endpoint: u.String(), Err: err}
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		return nil, &SendError{Endpoint: u.String(), Err: err}
	}
	reply, err := readOne(conn)
	if err != nil {
		return nil, &ReceiveError{Endpoint: u.String(), Err: err}
	}
	return reply, nil
}

// Close shuts the listener down, unblocking a pending Receive, and removes
// the socket file.
func (u *Unix) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	if u.ln == nil {
		return nil
	}
	err := u.ln.Close()
	u.ln = nil
	if rmErr := os.Remove(u.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

func (u *Unix) listener() net.Listener {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ln
}

// readOne performs the single bounded read shared by the stream backends.
// It never loops: a message either fits in one read of BufferSize bytes or
// fails with ErrTooLarge.
func readOne(conn net.Conn) ([]byte, error) {
	buf := make([]byte, BufferSize+1)
	n, err := conn.Read(buf)
	if n <= 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, closeCause(err)
	}
	if n > BufferSize {
		return nil, ErrTooLarge
	}
	return buf[:n], nil
}
