package build

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spanRule records the wall-clock window in which the rule executed.
type spanRule struct {
	mu    sync.Mutex
	start time.Time
	end   time.Time
}

func (s *spanRule) rule(d time.Duration) Rule {
	return func(ctx context.Context) error {
		s.mu.Lock()
		s.start = time.Now()
		s.mu.Unlock()
		time.Sleep(d)
		s.mu.Lock()
		s.end = time.Now()
		s.mu.Unlock()
		return nil
	}
}

func (s *spanRule) window() (time.Time, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.end
}

func TestConcurrentFanOutOverlaps(t *testing.T) {
	var spanA, spanB spanRule

	a := NewNode("a")
	a.Force()
	a.AddRule(spanA.rule(200 * time.Millisecond))

	b := NewNode("b")
	b.Force()
	b.AddRule(spanB.rule(200 * time.Millisecond))

	root := NewNode("root")
	root.ExtendNeeds(a, b)

	require.NoError(t, NewUpdater(2).Update(testContext(t), root))

	aStart, aEnd := spanA.window()
	bStart, bEnd := spanB.window()
	require.False(t, aStart.IsZero())
	require.False(t, bStart.IsZero())
	assert.True(t, aStart.Before(bEnd) && bStart.Before(aEnd),
		"independent leaves must execute with overlapping windows")
}

func TestDeepChainDoesNotStall(t *testing.T) {
	// A chain much deeper than the job count: waiting for prerequisites
	// must never occupy a worker slot.
	const depth = 64
	var counter atomic.Int32

	prev := NewNode("n0")
	prev.Force()
	prev.AddRule(countingRule(&counter))
	for i := 1; i < depth; i++ {
		n := NewNode("n")
		n.Force()
		n.AddRule(countingRule(&counter))
		n.ExtendNeeds(prev)
		prev = n
	}

	ctx, cancel := context.WithTimeout(testContext(t), 30*time.Second)
	defer cancel()

	require.NoError(t, NewUpdater(2).Update(ctx, prev))
	assert.Equal(t, int32(depth), counter.Load())
}

func TestPrerequisiteFailureBlocksDependents(t *testing.T) {
	failure := errors.New("leaf build failed")

	failing := NewNode("failing")
	failing.Force()
	failing.AddRule(func(ctx context.Context) error { return failure })

	var dependentRuns, siblingRuns atomic.Int32

	dependent := NewNode("dependent")
	dependent.Force()
	dependent.AddRule(countingRule(&dependentRuns))
	dependent.ExtendNeeds(failing)

	sibling := NewNode("sibling")
	sibling.Force()
	sibling.AddRule(countingRule(&siblingRuns))

	root := NewNode("root")
	root.ExtendNeeds(dependent, sibling)

	err := NewUpdater(4).Update(testContext(t), root)
	require.ErrorIs(t, err, failure)

	assert.Equal(t, int32(0), dependentRuns.Load(), "dependent of a failed node must not run")
	assert.Equal(t, int32(1), siblingRuns.Load(), "unrelated branch must run to completion")
}

func TestMultiRootSharedNodeRunsOnce(t *testing.T) {
	for _, jobs := range []int{1, 4} {
		jobs := jobs
		name := "serial"
		if jobs > 1 {
			name = "concurrent"
		}
		t.Run(name, func(t *testing.T) {
			var counter atomic.Int32
			shared := NewNode("shared")
			shared.Force()
			shared.AddRule(countingRule(&counter))

			a := NewNode("a")
			a.ExtendNeeds(shared)
			b := NewNode("b")
			b.ExtendNeeds(shared)

			require.NoError(t, NewUpdater(jobs).Update(testContext(t), a, b))
			assert.Equal(t, int32(1), counter.Load())
		})
	}
}

func TestSerialFailureIsMemoized(t *testing.T) {
	failure := errors.New("boom")
	var counter atomic.Int32

	shared := NewNode("shared")
	shared.Force()
	shared.AddRule(func(ctx context.Context) error {
		counter.Add(1)
		return failure
	})

	a := NewNode("a")
	a.ExtendNeeds(shared)
	b := NewNode("b")
	b.ExtendNeeds(shared)

	u := NewUpdater(1)
	require.ErrorIs(t, u.Update(testContext(t), a), failure)
	require.ErrorIs(t, u.Update(testContext(t), b), failure)
	assert.Equal(t, int32(1), counter.Load(), "a failed node must not retry within one run")
}

func TestRepeatedUpdateIsMemoized(t *testing.T) {
	var counter atomic.Int32
	n := NewNode("n")
	n.Force()
	n.AddRule(countingRule(&counter))

	u := NewUpdater(2)
	ctx := testContext(t)
	require.NoError(t, u.Update(ctx, n))
	require.NoError(t, u.Update(ctx, n))
	assert.Equal(t, int32(1), counter.Load())
}

func TestUpdateHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))

	slow := NewNode("slow")
	slow.Force()
	slow.AddRule(func(ctx context.Context) error {
		cancel()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	dependent := NewNode("dependent")
	dependent.Force()
	dependent.ExtendNeeds(slow)

	// Cancellation surfaces either from a future wait or a slot acquire;
	// either way the update returns promptly with a context error or nil
	// if the race resolved before the cancel was observed.
	err := NewUpdater(2).Update(ctx, dependent)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
