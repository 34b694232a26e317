// Package socks implements a small JSON IPC protocol over swappable
// transports: clients send a command envelope, servers dispatch it by name
// to a registered handler and answer with a success or failure envelope.
//
// It owns the envelope codec and its reserved keys, the serving loop that
// keeps a process alive through malformed input and handler failures, and
// the client-side call forms (synchronous, future-style, and callback). The
// wire backends live in the transport subpackage, handler input contracts
// in schema, and bounded concurrency in pool.
//
// A server and its clients agree only on the envelope shape; everything
// else, including which transport carries the bytes, is a construction-time
// choice.
package socks
