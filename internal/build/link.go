package build

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vk/docforge/internal/ctxlog"
)

// LinkNode maintains a symbolic link to its source node's path. Its
// staleness is structural rather than mtime-based: the link is stale when
// the path is missing, is not a symlink, or points anywhere other than the
// recorded target.
type LinkNode struct {
	ProductNode

	// target is the literal link target string, relative or absolute per
	// construction.
	target string
}

// NewLinkNode creates a symlink node at path pointing at source. With
// relative set, the stored target is computed relative to the link's own
// directory.
func NewLinkNode(source Pathed, path string, relative bool) (*LinkNode, error) {
	n := &LinkNode{}
	if err := n.initProduct(source, path, false); err != nil {
		return nil, err
	}
	if relative {
		rel, err := filepath.Rel(filepath.Dir(path), source.Path())
		if err != nil {
			return nil, err
		}
		n.target = rel
	} else {
		n.target = source.Path()
	}
	n.AddRule(n.makeLink)
	n.bind(n)
	return n, nil
}

// Target returns the literal string the symlink points at once built.
func (l *LinkNode) Target() string { return l.target }

func (l *LinkNode) makeLink(ctx context.Context) error {
	if _, err := os.Lstat(l.path); err == nil {
		if err := os.Remove(l.path); err != nil {
			return err
		}
	}
	ctxlog.ForNode(ctx, l.name).Info("symlinking", "target", l.target, "path", displayPath(l.path))
	if err := os.Symlink(l.target, l.path); err != nil {
		return err
	}
	// Creating a link always produces new state once the rule was invoked.
	l.modified = true
	return nil
}

// NeedsBuild replaces the mtime-based predicate outright: only the link's
// structure matters.
func (l *LinkNode) NeedsBuild() bool {
	info, err := os.Lstat(l.path)
	if err != nil {
		return true
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return true
	}
	target, err := os.Readlink(l.path)
	return err != nil || target != l.target
}

// refresh adopts the source's freshness on top of the link's own lstat
// mtime: a link is never considered fresher than what it points to, and a
// modified source makes the link modified too.
func (l *LinkNode) refresh(ctx context.Context) error {
	if err := l.PathNode.refresh(ctx); err != nil {
		return err
	}
	if l.mtime.IsZero() {
		return nil
	}
	if sourceMtime := l.source.ModTime(); mtimeLess(l.mtime, sourceMtime) {
		l.mtime = sourceMtime
	}
	if l.source.Modified() {
		l.modified = true
	}
	return nil
}
