package transport

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrClosed reports an operation on a transport whose Close has run.
	ErrClosed = errors.New("transport closed")
	// ErrNotBound reports a server-side operation before Bind.
	ErrNotBound = errors.New("transport not bound")
	// ErrAlreadyBound reports a second Bind on the same transport.
	ErrAlreadyBound = errors.New("transport already bound")
	// ErrTooLarge reports a message exceeding BufferSize.
	ErrTooLarge = errors.New("message exceeds receive buffer")
	// ErrInvalidClient reports a Send addressed to an identity this
	// transport did not produce.
	ErrInvalidClient = errors.New("invalid client identity")
)

// A BindError wraps a failure to allocate or bind the server socket.
type BindError struct {
	Endpoint string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Endpoint, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// A ReceiveError wraps a failure while waiting for or reading one message.
type ReceiveError struct {
	Endpoint string
	Err      error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("receive on %s: %v", e.Endpoint, e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// A SendError wraps a failure to deliver a payload, in either role.
type SendError struct {
	Endpoint string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send on %s: %v", e.Endpoint, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// closeCause maps errors from operations interrupted by Close onto
// ErrClosed so callers can test for shutdown uniformly.
func closeCause(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
