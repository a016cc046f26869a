package build

import "time"

// DatedNode adds the modification-time staleness signal to BaseNode. It
// does not load mtime from anywhere itself; path-backed kinds override
// refresh with the real source of truth, and declarative nodes call
// SetModTimeNow when their content is regenerated.
type DatedNode struct {
	BaseNode
	mtime time.Time
}

// NewDatedNode creates a dated node whose freshness is declared by the
// caller rather than measured from the filesystem.
func NewDatedNode(name string) *DatedNode {
	n := &DatedNode{}
	n.initBase(name)
	n.bind(n)
	return n
}

// ModTime returns the node's modification time; the zero value means the
// node was never successfully built.
func (d *DatedNode) ModTime() time.Time { return d.mtime }

// SetModTime overrides the node's modification time.
func (d *DatedNode) SetModTime(t time.Time) { d.mtime = t }

// SetModTimeNow declares the node fresh as of now.
func (d *DatedNode) SetModTimeNow() { d.mtime = time.Now() }

// NeedsBuild extends the base predicate: the node was never built, or some
// prerequisite's mtime is not strictly older than this node's own. Ties
// count as stale; with coarse filesystem timestamps an equal mtime cannot
// prove the prerequisite was seen.
func (d *DatedNode) NeedsBuild() bool {
	if d.mtime.IsZero() {
		return true
	}
	for _, need := range d.needs {
		dated, ok := need.(Dated)
		if !ok {
			continue
		}
		if other := dated.ModTime(); !other.IsZero() && !other.Before(d.mtime) {
			return true
		}
	}
	return d.BaseNode.NeedsBuild()
}
