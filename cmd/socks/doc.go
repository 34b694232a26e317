// Package main hosts the socks CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into envelope
// requests against a running socksd: health probes, ad-hoc command calls,
// journal inspection, and configuration scaffolding. Endpoint selection
// (unix socket, UDP, or TCP) and configuration resolution live in the shared
// command context so subcommands stay declarative.
package main
