// Package transport moves single-message payloads between clients and the
// socks server over one of three interchangeable wire backends: Unix stream
// sockets, UDP datagrams, and TCP streams.
//
// It owns socket lifecycle, the opaque per-message client identity a reply
// is addressed to, and the fixed receive-buffer contract: every message must
// fit in one read of BufferSize bytes, and an oversized message surfaces as
// an explicit error rather than a silent truncation. Stream backends carry
// exactly one request/response exchange per connection.
//
// The package knows nothing about JSON; it carries raw bytes for the
// envelope layer above it.
package transport
