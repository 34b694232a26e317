package transport

import "net"

// BufferSize is the fixed per-message receive bound shared by every backend.
// A message must fit in one read; longer payloads fail with ErrTooLarge.
const BufferSize = 2048

// Transport is one wire backend usable in both roles: a server binds and
// then alternates Receive and Send, a client calls RoundTrip. A Transport
// owns its socket exclusively; only Close may be called concurrently with a
// blocked Receive, which it unblocks.
type Transport interface {
	// Bind allocates the server-side socket. It must be called once,
	// before the first Receive.
	Bind() error

	// Receive blocks for the next message and returns its payload together
	// with the identity a reply must be addressed to.
	Receive() ([]byte, ClientID, error)

	// Send delivers a reply to a previously received identity. Stream
	// backends close the underlying connection afterwards: one round trip
	// per connection.
	Send(payload []byte, to ClientID) error

	// RoundTrip performs one client-side exchange on a fresh socket:
	// transmit payload, block for a single reply, tear the socket down.
	// No timeout and no retry.
	RoundTrip(payload []byte) ([]byte, error)

	// Close releases the socket and unblocks a pending Receive. Idempotent.
	Close() error

	// String describes the endpoint for logs.
	String() string
}

// ClientID identifies the source of one received message. It is opaque and
// backend-specific: a stream backend stores the accepted connection, the
// datagram backend stores the sender's address. The zero value is invalid,
// and an identity is only meaningful to the Transport that produced it.
type ClientID struct {
	conn net.Conn
	addr *net.UDPAddr
}

// Valid reports whether the identity was produced by a Receive call.
func (id ClientID) Valid() bool {
	return id.conn != nil || id.addr != nil
}

// String renders the peer for logs. Datagram identities render as "ip:port"
// and can be parsed back into an address.
func (id ClientID) String() string {
	switch {
	case id.addr != nil:
		return id.addr.String()
	case id.conn != nil:
		if ra := id.conn.RemoteAddr(); ra != nil && ra.String() != "" && ra.String() != "@" {
			return ra.String()
		}
		return "stream"
	default:
		return "invalid"
	}
}
