package socks

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reserved envelope keys. Requests carry KeyCommand; responses carry
// KeySuccess and, on failure, KeyMessage. A response never carries
// KeyCommand.
const (
	KeyCommand = "_cmd"
	KeySuccess = "_success"
	KeyMessage = "_msg"
)

// Envelope is one protocol message: a JSON object with reserved keys plus
// arbitrary payload fields. Number values decoded from the wire are
// json.Number so integers and floats stay distinguishable for schema
// validation.
type Envelope map[string]any

// Okay builds a success response from the given payload fields. Any
// caller-supplied success flag is overwritten.
func Okay(fields Envelope) Envelope {
	res := fields.Clone()
	res[KeySuccess] = true
	return res
}

// Error builds a failure response carrying msg alongside the given payload
// fields.
func Error(fields Envelope, msg string) Envelope {
	res := fields.Clone()
	res[KeySuccess] = false
	res[KeyMessage] = msg
	return res
}

// Request builds a request envelope for cmd from the given payload fields.
func Request(cmd string, fields Envelope) Envelope {
	req := fields.Clone()
	req[KeyCommand] = cmd
	return req
}

// Clone returns a shallow copy. A nil envelope clones to an empty one.
func (e Envelope) Clone() Envelope {
	out := make(Envelope, len(e)+2)
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Command returns the request's command name. ok is false when the key is
// absent or not a string.
func (e Envelope) Command() (string, bool) {
	cmd, ok := e[KeyCommand].(string)
	return cmd, ok
}

// Success reports the response's success flag; absent or non-bool counts
// as failure.
func (e Envelope) Success() bool {
	ok, _ := e[KeySuccess].(bool)
	return ok
}

// Message returns the response's failure text, or "" when absent.
func (e Envelope) Message() string {
	msg, _ := e[KeyMessage].(string)
	return msg
}

// Fields returns a copy of the envelope without the reserved keys.
func (e Envelope) Fields() Envelope {
	out := make(Envelope, len(e))
	for k, v := range e {
		switch k {
		case KeyCommand, KeySuccess, KeyMessage:
		default:
			out[k] = v
		}
	}
	return out
}

// Encode serializes the envelope to wire bytes.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses wire bytes into an envelope. The payload must be exactly
// one JSON object; numbers are preserved as json.Number.
func Decode(data []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode envelope: trailing data after object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode envelope: not a JSON object")
	}
	return Envelope(obj), nil
}
