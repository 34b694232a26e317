package pool

import "fmt"

// Future is the result handle of a task submitted with SubmitFuture. It is
// fulfilled exactly once, when a worker runs the task. If the pool is
// terminated before the task starts, the future is never fulfilled; callers
// must treat a pending future plus an observed shutdown as failure, for
// example by selecting on Done together with their shutdown signal.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Done is closed once the future is fulfilled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the future is fulfilled and returns the task's
// outcome. A panic inside the task surfaces here as an error.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// SubmitFuture queues fn and returns a handle for its eventual result.
// Submission fails with ErrClosed under the same conditions as Submit.
func SubmitFuture[T any](p *Pool, fn func() (T, error)) (*Future[T], error) {
	f := &Future[T]{done: make(chan struct{})}
	err := p.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task panicked: %v", r)
			}
			close(f.done)
		}()
		f.val, f.err = fn()
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
