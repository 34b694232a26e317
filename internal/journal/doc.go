// Package journal persists a record of handled requests in SQLite.
//
// Every dispatched command lands here as one row: request id, command name,
// client identity, outcome, and handling duration. The daemon writes entries
// as requests complete; the journal and stats builtin commands read them back.
// Retention is enforced by pruning rows older than the configured window.
package journal
