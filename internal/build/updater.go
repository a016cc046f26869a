package build

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"

	"github.com/vk/docforge/internal/ctxlog"
)

// Updater walks a node graph from one or more roots and brings every
// reachable node up to date. Graph traversal and scheduling decisions run
// entirely on the calling goroutine; only rule bodies execute concurrently,
// bounded by the configured number of jobs.
//
// A node's own work starts only after all of its prerequisites completed.
// Waiting for prerequisites happens before a worker slot is acquired, so a
// dependency chain deeper than the job count can never starve the pool.
type Updater struct {
	jobs int
	sem  *semaphore.Weighted
}

// NewUpdater creates an updater running at most jobs rule bodies at once.
// With jobs <= 1 the update is fully serial: a depth-first walk that runs
// every rule inline on the calling goroutine.
func NewUpdater(jobs int) *Updater {
	u := &Updater{jobs: jobs}
	if jobs > 1 {
		u.sem = semaphore.NewWeighted(int64(jobs))
	}
	return u
}

// Update brings the given roots up to date and returns the first failure,
// if any. Each node's rules run at most once per process run, however many
// roots or graph paths reach it. Update must not be called concurrently
// for nodes sharing a graph: per-node bookkeeping is unsynchronized by
// design, the traversal being single-goroutine.
func (u *Updater) Update(ctx context.Context, roots ...Node) error {
	if u.sem == nil {
		for _, root := range roots {
			if err := u.updateSerial(ctx, root); err != nil {
				return err
			}
		}
		return nil
	}
	futs := make([]*future, 0, len(roots))
	for _, root := range roots {
		f, err := u.updateConcurrent(ctx, root)
		if err != nil {
			return err
		}
		futs = append(futs, f)
	}
	var first error
	for _, f := range futs {
		if err := f.wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (u *Updater) updateSerial(ctx context.Context, n Node) error {
	m := n.marks()
	switch m.visit {
	case visitInProgress:
		return &CycleError{Stack: []string{n.Name()}}
	case visitDone:
		return m.fut.wait(ctx)
	}
	m.visit = visitInProgress
	for _, need := range n.Needs() {
		if err := u.updateSerial(ctx, need); err != nil {
			m.visit = visitUnseen
			return decorateCycle(err, n)
		}
	}
	err := updateSelf(ctx, n)
	m.fut = resolvedFuture(err)
	m.visit = visitDone
	return err
}

func (u *Updater) updateConcurrent(ctx context.Context, n Node) (*future, error) {
	m := n.marks()
	switch m.visit {
	case visitInProgress:
		return nil, &CycleError{Stack: []string{n.Name()}}
	case visitDone:
		return m.fut, nil
	}
	m.visit = visitInProgress
	needs := n.Needs()
	needFuts := make([]*future, 0, len(needs))
	for _, need := range needs {
		f, err := u.updateConcurrent(ctx, need)
		if err != nil {
			m.visit = visitUnseen
			return nil, decorateCycle(err, n)
		}
		needFuts = append(needFuts, f)
	}
	f := newFuture()
	m.fut = f
	m.visit = visitDone
	go u.runNode(ctx, n, needFuts, f)
	return f, nil
}

// runNode is the body of a node's own goroutine: join every prerequisite
// future, then perform the node's work while holding a worker slot. A
// prerequisite failure propagates unchanged, reliably blocking dependents
// while unrelated branches run to completion.
func (u *Updater) runNode(ctx context.Context, n Node, needFuts []*future, f *future) {
	for _, nf := range needFuts {
		if err := nf.wait(ctx); err != nil {
			f.resolve(err)
			return
		}
	}
	if err := u.sem.Acquire(ctx, 1); err != nil {
		f.resolve(err)
		return
	}
	defer u.sem.Release(1)
	f.resolve(updateSelf(ctx, n))
}

// updateSelf finalizes one node once its prerequisites are current: reload
// external state, decide staleness, and run the rules if needed.
func updateSelf(ctx context.Context, n Node) error {
	if err := n.refresh(ctx); err != nil {
		return err
	}
	if !n.NeedsBuild() {
		ctxlog.ForNode(ctx, n.Name()).Debug("up to date")
		return nil
	}
	ctxlog.ForNode(ctx, n.Name()).Debug("building")
	return n.runRules(ctx)
}

// decorateCycle appends the current node's name to a propagating cycle
// error, so the final message names the whole cycle path.
func decorateCycle(err error, n Node) error {
	var cyc *CycleError
	if errors.As(err, &cyc) {
		cyc.Stack = append(cyc.Stack, n.Name())
	}
	return err
}
