// Package schema validates the shape of decoded JSON objects against
// declared field contracts.
//
// It owns the recursive schema model (single type, set of alternative types,
// or nested object), the JSON kind classification that keeps integers and
// floats distinct, and the typed errors that report the first violation with
// a dotted path. Validation is fail-fast and never mutates its input.
//
// Handlers declare a Map for their expected payload and call Validate before
// touching fields; a returned error is ready to hand back to the caller as a
// failure message.
package schema
