// Package logging assembles the structured slog loggers shared by the socks
// daemon, CLI, and library packages.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// attribute helpers that keep field names consistent across components. The
// console handler colors level labels only when writing to a terminal. A
// no-op logger is available for tests and for library code constructed
// without a logger.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
