package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/vk/docforge/internal/ctxlog"
)

// DirectoryNode ensures a directory exists. Its mtime domain is degenerate:
// the Unix epoch when the directory exists, the zero time when it does not.
// Real directory mtimes change on every insertion and would cause spurious
// rebuilds, so they are deliberately ignored.
type DirectoryNode struct {
	PathNode
	parents bool
}

// NewDirectoryNode creates a directory node for the given absolute path.
// With parents set, missing intermediate directories are created too.
func NewDirectoryNode(path string, parents bool) (*DirectoryNode, error) {
	n := &DirectoryNode{parents: parents}
	if err := n.initPath(path, false); err != nil {
		return nil, err
	}
	n.AddRule(n.makeDir)
	n.bind(n)
	return n, nil
}

// NeedsBuild depends solely on existence. Prerequisite changes never make
// an existing directory stale.
func (d *DirectoryNode) NeedsBuild() bool {
	return d.mtime.IsZero()
}

// refresh maps the filesystem state onto the degenerate mtime domain. A
// non-directory entry occupying the path is a hard error.
func (d *DirectoryNode) refresh(ctx context.Context) error {
	info, err := os.Lstat(d.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.mtime = time.Time{}
		return nil
	case err != nil:
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("build: found %s where directory %s should be", info.Mode().Type(), displayPath(d.path))
	}
	d.mtime = time.Unix(0, 0)
	return nil
}

func (d *DirectoryNode) makeDir(ctx context.Context) error {
	if info, err := os.Lstat(d.path); err == nil && !info.IsDir() {
		if err := os.Remove(d.path); err != nil {
			return err
		}
	}
	ctxlog.ForNode(ctx, d.name).Info("creating directory", "path", displayPath(d.path), "parents", d.parents)
	var err error
	if d.parents {
		err = os.MkdirAll(d.path, 0o755)
	} else {
		err = os.Mkdir(d.path, 0o755)
	}
	if err != nil {
		return err
	}
	d.modified = true
	return nil
}
