package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/docforge/internal/ctxlog"
)

// displayRoot, when set, makes log messages render node paths relative to
// the project root instead of as absolute paths.
var displayRoot string

// SetDisplayRoot configures the root against which paths are rendered in
// log messages. It affects logging only, never build semantics.
func SetDisplayRoot(root string) { displayRoot = root }

func displayPath(path string) string {
	if displayRoot == "" {
		return path
	}
	rel, err := filepath.Rel(displayRoot, path)
	if err != nil {
		return path
	}
	return rel
}

// PathNode is a dated node backed by a real filesystem path. Its mtime
// comes from filesystem metadata, and its rule execution owns the
// partial-failure cleanup contract: an artifact a failed rule began writing
// is deleted before the failure propagates.
type PathNode struct {
	DatedNode
	path string

	// followLinks selects between Stat and Lstat. The default observes the
	// path entry itself; FileNode flips it to observe the file content a
	// symlink resolves to.
	followLinks bool
}

// NewPathNode creates a node for the given absolute path. The node's name
// defaults to the path itself.
func NewPathNode(path string) (*PathNode, error) {
	n := &PathNode{}
	if err := n.initPath(path, false); err != nil {
		return nil, err
	}
	n.bind(n)
	return n, nil
}

func (p *PathNode) initPath(path string, followLinks bool) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("build: path node requires an absolute path, got %q", path)
	}
	p.initBase(path)
	p.path = path
	p.followLinks = followLinks
	return nil
}

// Path returns the absolute filesystem path this node is backed by.
func (p *PathNode) Path() string { return p.path }

// Stat returns the path's metadata, not following a final symlink unless
// the node kind follows links.
func (p *PathNode) Stat() (os.FileInfo, error) {
	if p.followLinks {
		return os.Stat(p.path)
	}
	return os.Lstat(p.path)
}

// refresh loads mtime from the filesystem: the zero time if the path does
// not exist, the stat mtime otherwise.
func (p *PathNode) refresh(ctx context.Context) error {
	info, err := p.Stat()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		p.mtime = time.Time{}
		return nil
	case err != nil:
		return err
	}
	p.mtime = info.ModTime()
	return nil
}

// runRules executes the registered rules with the path-node contract:
// record the pre-run mtime, delete a half-written artifact if a rule fails
// after touching the path, require a defined mtime after success, and mark
// the node modified when the artifact actually changed.
func (p *PathNode) runRules(ctx context.Context) error {
	prerun := p.mtime
	if err := p.DatedNode.runRules(ctx); err != nil {
		if rerr := p.self.refresh(ctx); rerr == nil && mtimeLess(prerun, p.mtime) {
			logger := ctxlog.ForNode(ctx, p.name)
			logger.Error("removing partially written artifact", "path", displayPath(p.path))
			if uerr := os.Remove(p.path); uerr != nil {
				logger.Error("failed to remove partially written artifact", "path", displayPath(p.path), "error", uerr)
			} else {
				p.mtime = time.Time{}
			}
		}
		return err
	}
	if err := p.self.refresh(ctx); err != nil {
		return err
	}
	if p.mtime.IsZero() {
		return &MissingTargetError{Node: p.name, Path: p.path}
	}
	if !p.mtime.Equal(prerun) {
		p.modified = true
	}
	return nil
}

// AddSubprocessRule attaches a rule that runs an external command in the
// given working directory. A non-zero exit is logged here and wrapped in a
// CommandError marked reported, so the top-level reporter stays quiet.
func (p *PathNode) AddSubprocessRule(argv []string, dir string) error {
	if len(argv) == 0 {
		return errors.New("build: subprocess rule requires a command")
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("build: subprocess rule requires an absolute working directory, got %q", dir)
	}
	p.AddRule(func(ctx context.Context) error {
		return p.runCommand(ctx, argv, dir)
	})
	return nil
}

func (p *PathNode) runCommand(ctx context.Context, argv []string, dir string) error {
	logger := ctxlog.ForNode(ctx, p.name)
	logger.Info("running command", "cwd", displayPath(dir), "command", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	cmdErr := &CommandError{Args: argv, Dir: dir, Code: -1, Err: err, Reported: true}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.Code = exitErr.ExitCode()
	}
	logger.Error("command failed", "command", argv[0], "code", cmdErr.Code)
	return cmdErr
}
