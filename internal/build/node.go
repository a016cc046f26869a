package build

import (
	"context"
	"os"
	"time"
)

// Rule is a single build action attached to a node. Rules run in
// registration order, at most once per node per process run. The context
// carries the logger and cancellation; rules never receive domain arguments.
type Rule func(ctx context.Context) error

// Node is a unit of buildable work: an identity, an ordered list of
// prerequisite nodes, and an ordered list of build rules. The set of node
// kinds is closed: all implementations live in this package.
type Node interface {
	// Name returns the short identifying name used in log messages.
	Name() string

	// Needs returns the node's prerequisites. The returned slice is the
	// node's own; callers must not mutate it.
	Needs() []Node

	// ExtendNeeds appends prerequisites. Cycles are not checked here; the
	// updater detects them lazily during traversal.
	ExtendNeeds(nodes ...Node)

	// AddRule registers a build action and returns it unchanged.
	AddRule(rule Rule) Rule

	// Force marks the node unconditionally stale for this process run.
	Force()

	// Modified reports whether this node's artifact changed during the
	// current run. Dependents consult it through NeedsBuild.
	Modified() bool

	// MarkModified records that the node's artifact changed. Rules that
	// produce new state out-of-band call this themselves.
	MarkModified()

	// NeedsBuild decides whether the node's rules must run. Specialized
	// kinds extend the base predicate with their own staleness sources.
	NeedsBuild() bool

	// refresh reloads whatever external state the staleness decision is
	// based on (filesystem mtime for path-backed kinds).
	refresh(ctx context.Context) error

	// runRules executes the registered rules, wrapped in kind-specific
	// bookkeeping such as partial-failure cleanup.
	runRules(ctx context.Context) error

	// marks exposes the per-run update bookkeeping owned by the Updater.
	marks() *updateMarks
}

// Dated is a node with a modification-time staleness signal. The zero
// time means "never successfully built / does not exist".
type Dated interface {
	Node
	ModTime() time.Time
	SetModTime(t time.Time)
}

// Pathed is a dated node backed by a filesystem path.
type Pathed interface {
	Dated
	Path() string
	Stat() (os.FileInfo, error)
}

// updateMarks is the per-run state the Updater keeps on every node: the
// three-state visitation marker used for cycle detection and memoization,
// and the node's one-shot completion future.
type updateMarks struct {
	visit visitState
	fut   *future
}

type visitState uint8

const (
	visitUnseen visitState = iota
	visitInProgress
	visitDone
)

// BaseNode is the common implementation embedded by every node kind. It is
// also usable directly for purely structural nodes that group prerequisites
// or carry declarative rules.
type BaseNode struct {
	name  string
	needs []Node
	rules []Rule

	modified bool
	forced   bool

	// self is the outermost node, so that shared rule-execution code can
	// reach kind-specific refresh behavior.
	self Node

	upd updateMarks
}

// NewNode creates a plain structural node.
func NewNode(name string) *BaseNode {
	n := &BaseNode{}
	n.initBase(name)
	n.bind(n)
	return n
}

func (b *BaseNode) initBase(name string) {
	b.name = name
}

func (b *BaseNode) bind(self Node) {
	b.self = self
}

func (b *BaseNode) Name() string { return b.name }

// SetName overrides the diagnostic name. Path-backed nodes default to their
// path; graph factories may prefer a shorter address.
func (b *BaseNode) SetName(name string) { b.name = name }

func (b *BaseNode) Needs() []Node { return b.needs }

func (b *BaseNode) ExtendNeeds(nodes ...Node) {
	b.needs = append(b.needs, nodes...)
}

func (b *BaseNode) AddRule(rule Rule) Rule {
	b.rules = append(b.rules, rule)
	return rule
}

func (b *BaseNode) Force() { b.forced = true }

func (b *BaseNode) Modified() bool { return b.modified }

func (b *BaseNode) MarkModified() { b.modified = true }

// NeedsBuild is the base staleness predicate: the node was forced, or some
// prerequisite changed during this run.
func (b *BaseNode) NeedsBuild() bool {
	if b.forced {
		return true
	}
	for _, need := range b.needs {
		if need.Modified() {
			return true
		}
	}
	return false
}

func (b *BaseNode) refresh(ctx context.Context) error { return nil }

func (b *BaseNode) runRules(ctx context.Context) error {
	for _, rule := range b.rules {
		if err := rule(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *BaseNode) marks() *updateMarks { return &b.upd }

// mtimeLess orders modification times with the zero value meaning "absent":
// an absent x is older than any defined y, and nothing is older than an
// absent y.
func mtimeLess(x, y time.Time) bool {
	if y.IsZero() {
		return false
	}
	if x.IsZero() {
		return true
	}
	return x.Before(y)
}
