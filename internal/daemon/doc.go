// Package daemon assembles the socksd runtime: a JSON command server over
// the configured transport, a worker pool, per-client rate limiting, the
// request journal, Prometheus metrics, and an optional HTTP debug listener.
//
// A flock-guarded lock file under the state directory enforces single
// instance execution. Run blocks until the supplied context is cancelled,
// then drains the pool before releasing resources.
package daemon
