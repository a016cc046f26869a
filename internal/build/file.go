package build

import (
	"context"
	"errors"
	"os"

	"github.com/vk/docforge/internal/ctxlog"
)

// FileNode represents an ordinary file, existing or not yet. Unlike the
// PathNode default it follows symlinks when observing the path, so a link
// to a file behaves like the file itself.
type FileNode struct {
	PathNode
}

// NewFileNode creates a file node for the given absolute path.
func NewFileNode(path string) (*FileNode, error) {
	n := &FileNode{}
	if err := n.initPath(path, true); err != nil {
		return nil, err
	}
	n.bind(n)
	return n, nil
}

// Open opens the file for reading, following symlinks.
func (f *FileNode) Open() (*os.File, error) {
	return os.Open(f.path)
}

// Create truncates or creates the file for writing.
func (f *FileNode) Create() (*os.File, error) {
	return os.Create(f.path)
}

// runRules removes a symlink occupying the path before any rule runs.
// Writing through a stale link would silently modify whatever it points at.
func (f *FileNode) runRules(ctx context.Context) error {
	if info, err := os.Lstat(f.path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(f.path); err != nil {
			return err
		}
	}
	return f.PathNode.runRules(ctx)
}

// TextFunc lazily produces the content of a generated text file.
type TextFunc func() (string, error)

// TextNode is a file node whose single rule materializes generated text,
// with no subprocess involved.
type TextNode struct {
	FileNode
	textFn TextFunc
}

// NewTextNode creates a text node with fixed content.
func NewTextNode(path, text string) (*TextNode, error) {
	return NewTextFuncNode(path, func() (string, error) { return text, nil })
}

// NewTextFuncNode creates a text node whose content is computed when the
// rule runs, not at graph construction time.
func NewTextFuncNode(path string, textFn TextFunc) (*TextNode, error) {
	if textFn == nil {
		return nil, errors.New("build: text node requires a text source")
	}
	n := &TextNode{textFn: textFn}
	if err := n.initPath(path, true); err != nil {
		return nil, err
	}
	n.AddRule(n.writeText)
	n.bind(n)
	return n, nil
}

func (t *TextNode) writeText(ctx context.Context) error {
	ctxlog.ForNode(ctx, t.name).Info("writing generated text", "path", displayPath(t.path))
	text, err := t.textFn()
	if err != nil {
		return err
	}
	return os.WriteFile(t.path, []byte(text), 0o644)
}
