package build

import (
	"errors"
	"os"
	"time"
)

// ProductNode is a path node derived from exactly one upstream source node,
// which is unconditionally its first prerequisite.
type ProductNode struct {
	PathNode
	source Pathed
}

// NewProductNode creates a product of source at the given absolute path.
func NewProductNode(source Pathed, path string) (*ProductNode, error) {
	n := &ProductNode{}
	if err := n.initProduct(source, path, false); err != nil {
		return nil, err
	}
	n.bind(n)
	return n, nil
}

func (p *ProductNode) initProduct(source Pathed, path string, followLinks bool) error {
	if source == nil {
		return errors.New("build: product node requires a source")
	}
	if err := p.initPath(path, followLinks); err != nil {
		return err
	}
	p.source = source
	p.needs = append([]Node{source}, p.needs...)
	return nil
}

// Source returns the upstream node this product is derived from.
func (p *ProductNode) Source() Pathed { return p.source }

// TurnOlderThanSource ages the artifact to just below its source's mtime,
// used when a rebuild produced byte-identical output and dependents should
// not be re-triggered.
func (p *ProductNode) TurnOlderThanSource() error {
	return turnOlderThanSource(&p.PathNode, p.source)
}

// ProductFileNode is the common combination of product and file semantics:
// a filesystem product derived from one upstream file, following symlinks.
// Externally defined compilation rules build on it.
type ProductFileNode struct {
	FileNode
	source Pathed
}

// NewProductFileNode creates a file product of source at the given path.
func NewProductFileNode(source Pathed, path string) (*ProductFileNode, error) {
	if source == nil {
		return nil, errors.New("build: product node requires a source")
	}
	n := &ProductFileNode{source: source}
	if err := n.initPath(path, true); err != nil {
		return nil, err
	}
	n.needs = append([]Node{source}, n.needs...)
	n.bind(n)
	return n, nil
}

// Source returns the upstream node this product is derived from.
func (p *ProductFileNode) Source() Pathed { return p.source }

// TurnOlderThanSource ages the artifact to just below its source's mtime.
func (p *ProductFileNode) TurnOlderThanSource() error {
	return turnOlderThanSource(&p.PathNode, p.source)
}

func turnOlderThanSource(p *PathNode, source Pathed) error {
	info, err := source.Stat()
	if err != nil {
		return err
	}
	// A full second clears the timestamp granularity of any filesystem.
	ts := info.ModTime().Add(-time.Second)
	if err := os.Chtimes(p.path, ts, ts); err != nil {
		return err
	}
	p.mtime = ts
	return nil
}
