// Package pool runs fire-and-forget tasks on a fixed set of worker
// goroutines fed from one shared FIFO queue.
//
// It owns the queue, the two shutdown modes, and the task wrapping that keeps
// a panicking task from taking a worker down. Wait drains every queued task
// before the workers exit; Terminate abandons queued work and only lets
// already-running tasks finish. Once either has been called the pool is
// permanently closed and Submit fails.
//
// SubmitFuture layers a typed result handle on top of Submit for callers that
// need the task's outcome rather than plain execution.
package pool
