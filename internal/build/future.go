package build

import "context"

// future is the one-shot completion handle memoized on each node. The
// closed channel is the synchronization boundary: waiters may read err only
// after done is closed, and exactly one goroutine ever calls resolve.
type future struct {
	done chan struct{}
	err  error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

// resolvedFuture returns a future that is already complete, used to memoize
// results on the serial update path.
func resolvedFuture(err error) *future {
	f := newFuture()
	f.resolve(err)
	return f
}

func (f *future) resolve(err error) {
	f.err = err
	close(f.done)
}

func (f *future) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
