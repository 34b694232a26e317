package transport

import (
	"fmt"
	"net"
	"strconv"
	"sync"
)

// UDP carries messages as single IPv4 datagrams. The server role binds one
// persistent socket and learns each sender's address from the datagram
// itself; the client role opens a fresh socket per RoundTrip.
type UDP struct {
	host string
	port int

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool
}

// NewUDPServer returns a transport that binds all interfaces on port.
func NewUDPServer(port int) *UDP {
	return &UDP{port: port}
}

// NewUDPClient returns a transport targeting host:port. An empty host means
// the local loopback.
func NewUDPClient(host string, port int) *UDP {
	if host == "" {
		host = "127.0.0.1"
	}
	return &UDP{host: host, port: port}
}

func (u *UDP) String() string {
	if u.host == "" {
		return fmt.Sprintf("udp:*:%d", u.port)
	}
	return "udp:" + net.JoinHostPort(u.host, strconv.Itoa(u.port))
}

// Bind opens the persistent server socket.
func (u *UDP) Bind() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return &BindError{Endpoint: u.String(), Err: ErrClosed}
	}
	if u.conn != nil {
		return &BindError{Endpoint: u.String(), Err: ErrAlreadyBound}
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: u.port})
	if err != nil {
		return &BindError{Endpoint: u.String(), Err: err}
	}
	u.conn = conn
	return nil
}

// Receive blocks for one datagram. The returned identity is the sender's
// address and renders as "ip:port".
func (u *UDP) Receive() ([]byte, ClientID, error) {
	conn := u.current()
	if conn == nil {
		return nil, ClientID{}, &ReceiveError{Endpoint: u.String(), Err: ErrNotBound}
	}
	buf := make([]byte, BufferSize+1)
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, ClientID{}, &ReceiveError{Endpoint: u.String(), Err: closeCause(err)}
	}
	if n > BufferSize {
		return nil, ClientID{}, &ReceiveError{Endpoint: u.String(), Err: ErrTooLarge}
	}
	return buf[:n], ClientID{addr: addr}, nil
}

// Send addresses one datagram to a previously received sender. An identity
// produced by another backend, or the zero identity, fails with
// ErrInvalidClient rather than being dropped.
func (u *UDP) Send(payload []byte, to ClientID) error {
	conn := u.current()
	if conn == nil {
		return &SendError{Endpoint: u.String(), Err: ErrNotBound}
	}
	if to.addr == nil {
		return &SendError{Endpoint: u.String(), Err: ErrInvalidClient}
	}
	if _, err := conn.WriteToUDP(payload, to.addr); err != nil {
		return &SendError{Endpoint: u.String(), Err: err}
	}
	return nil
}

// RoundTrip sends one datagram from a fresh socket and blocks for a single
// reply datagram.
func (u *UDP) RoundTrip(payload []byte) ([]byte, error) {
	conn, err := net.Dial("udp4", net.JoinHostPort(u.host, strconv.Itoa(u.port)))
	if err != nil {
		return nil, &SendError{Endpoint: u.String(), Err: err}
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		return nil, &SendError{Endpoint: u.String(), Err: err}
	}
	buf := make([]byte, BufferSize+1)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, &ReceiveError{Endpoint: u.String(), Err: err}
	}
	if n > BufferSize {
		return nil, &ReceiveError{Endpoint: u.String(), Err: ErrTooLarge}
	}
	return buf[:n], nil
}

// Close releases the server socket, unblocking a pending Receive.
func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}

func (u *UDP) current() *net.UDPConn {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conn
}

// LocalAddr reports the bound server address, or nil before Bind. Useful
// when binding port 0 and letting the OS pick.
func (u *UDP) LocalAddr() net.Addr {
	conn := u.current()
	if conn == nil {
		return nil
	}
	return conn.LocalAddr()
}
