// Package manifest loads HCL build manifests and turns them into a graph
// of build nodes. It is the factory boundary in front of the engine: all
// build semantics live in the node kinds it instantiates.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/docforge/internal/build"
	"github.com/vk/docforge/internal/ctxlog"
	"github.com/vk/docforge/internal/fsutil"
)

// Extension is the file suffix manifest discovery looks for.
const Extension = ".hcl"

// Loader parses manifest files and builds the node graph.
type Loader struct{}

// NewLoader creates a manifest loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the manifest at path (a single file, or a directory searched
// recursively for manifest files) and constructs the node graph. Values in
// overrides shadow same-named entries of the manifest's vars blocks.
func (l *Loader) Load(ctx context.Context, path string, overrides map[string]string) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	var files []string
	root := abs
	if info.IsDir() {
		files, err = fsutil.FindFilesByExtension(abs, Extension)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("manifest: no %s files under %s", Extension, abs)
		}
	} else {
		root = filepath.Dir(abs)
		files = []string{abs}
	}
	logger.Debug("loading manifest", "root", root, "files", len(files))

	parser := hclparse.NewParser()
	bodies := make([]hcl.Body, 0, len(files))
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("manifest: parsing %s: %w", file, diags)
		}
		bodies = append(bodies, hclFile.Body)
	}

	evalCtx, err := buildEvalContext(bodies, overrides)
	if err != nil {
		return nil, err
	}

	roots := make([]*fileRoot, 0, len(bodies))
	for i, body := range bodies {
		var fr fileRoot
		if diags := gohcl.DecodeBody(body, evalCtx, &fr); diags.HasErrors() {
			return nil, fmt.Errorf("manifest: decoding %s: %w", files[i], diags)
		}
		roots = append(roots, &fr)
	}

	b := &builder{root: root, graph: newGraph()}
	graph, err := b.build(roots)
	if err != nil {
		return nil, err
	}
	logger.Debug("manifest loaded", "nodes", len(graph.order))
	return graph, nil
}

// buildEvalContext collects every vars block into the var.* namespace.
// Overrides win over manifest values; vars are plain literals, evaluated
// without access to other variables.
func buildEvalContext(bodies []hcl.Body, overrides map[string]string) (*hcl.EvalContext, error) {
	varsSchema := &hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "vars"}},
	}

	values := make(map[string]cty.Value)
	for _, body := range bodies {
		content, _, diags := body.PartialContent(varsSchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("manifest: reading vars: %w", diags)
		}
		for _, block := range content.Blocks {
			attrs, diags := block.Body.JustAttributes()
			if diags.HasErrors() {
				return nil, fmt.Errorf("manifest: reading vars: %w", diags)
			}
			for name, attr := range attrs {
				val, diags := attr.Expr.Value(nil)
				if diags.HasErrors() {
					return nil, fmt.Errorf("manifest: evaluating var %q: %w", name, diags)
				}
				values[name] = val
			}
		}
	}
	for name, val := range overrides {
		values[name] = cty.StringVal(val)
	}

	vars := map[string]cty.Value{}
	if len(values) > 0 {
		vars["var"] = cty.ObjectVal(values)
	} else {
		vars["var"] = cty.EmptyObjectVal
	}
	return &hcl.EvalContext{Variables: vars}, nil
}

// builder assembles the graph in three passes: leaf node kinds first, then
// source-bearing kinds (retrying until chained sources resolve), then
// dependency edges and force flags.
type builder struct {
	root  string
	graph *Graph
}

// edgeSpec defers needs/force wiring until every node exists.
type edgeSpec struct {
	addr  string
	needs []string
	force bool
}

// pendingNode defers construction of a source-bearing node until its
// source address resolves.
type pendingNode struct {
	addr   string
	source string
	make   func(src build.Pathed) (build.Node, error)
}

func (b *builder) build(roots []*fileRoot) (*Graph, error) {
	var edges []edgeSpec
	var pending []*pendingNode

	for _, fr := range roots {
		for _, blk := range fr.Files {
			n, err := build.NewFileNode(b.resolvePath(blk.Path))
			if err != nil {
				return nil, err
			}
			if err := b.register("file."+blk.Name, n); err != nil {
				return nil, err
			}
			edges = append(edges, edgeSpec{"file." + blk.Name, blk.Needs, blk.Force})
		}
		for _, blk := range fr.Texts {
			n, err := build.NewTextNode(b.resolvePath(blk.Path), blk.Content)
			if err != nil {
				return nil, err
			}
			if err := b.register("text."+blk.Name, n); err != nil {
				return nil, err
			}
			edges = append(edges, edgeSpec{"text." + blk.Name, blk.Needs, blk.Force})
		}
		for _, blk := range fr.Directories {
			n, err := build.NewDirectoryNode(b.resolvePath(blk.Path), blk.Parents)
			if err != nil {
				return nil, err
			}
			if err := b.register("directory."+blk.Name, n); err != nil {
				return nil, err
			}
			edges = append(edges, edgeSpec{"directory." + blk.Name, blk.Needs, blk.Force})
		}
		for _, blk := range fr.Products {
			blk := blk
			pending = append(pending, &pendingNode{
				addr:   "product." + blk.Name,
				source: blk.Source,
				make: func(src build.Pathed) (build.Node, error) {
					n, err := build.NewProductFileNode(src, b.resolvePath(blk.Path))
					if err != nil {
						return nil, err
					}
					cwd := b.root
					if blk.Cwd != "" {
						cwd = b.resolvePath(blk.Cwd)
					}
					if err := n.AddSubprocessRule(blk.Command, cwd); err != nil {
						return nil, err
					}
					return n, nil
				},
			})
			edges = append(edges, edgeSpec{"product." + blk.Name, blk.Needs, blk.Force})
		}
		for _, blk := range fr.Links {
			blk := blk
			pending = append(pending, &pendingNode{
				addr:   "link." + blk.Name,
				source: blk.Source,
				make: func(src build.Pathed) (build.Node, error) {
					relative := blk.Relative == nil || *blk.Relative
					return build.NewLinkNode(src, b.resolvePath(blk.Path), relative)
				},
			})
			edges = append(edges, edgeSpec{"link." + blk.Name, blk.Needs, blk.Force})
		}
	}

	if err := b.buildPending(pending); err != nil {
		return nil, err
	}

	for _, e := range edges {
		n, err := b.graph.resolve(e.addr)
		if err != nil {
			return nil, err
		}
		for _, ref := range e.needs {
			need, err := b.graph.resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("%w (needed by %q)", err, e.addr)
			}
			n.ExtendNeeds(need)
			b.graph.needed[ref] = true
		}
		if e.force {
			n.Force()
		}
	}

	return b.graph, nil
}

// buildPending constructs product and link nodes, retrying until chained
// source references (a product of a product) resolve. A full round without
// progress means an unknown or circular source reference.
func (b *builder) buildPending(pending []*pendingNode) error {
	for len(pending) > 0 {
		var next []*pendingNode
		for _, p := range pending {
			srcNode, ok := b.graph.nodes[p.source]
			if !ok {
				next = append(next, p)
				continue
			}
			src, ok := srcNode.(build.Pathed)
			if !ok {
				return fmt.Errorf("manifest: %q: source %q is not path-backed", p.addr, p.source)
			}
			n, err := p.make(src)
			if err != nil {
				return err
			}
			if err := b.register(p.addr, n); err != nil {
				return err
			}
			b.graph.needed[p.source] = true
		}
		if len(next) == len(pending) {
			var addrs []string
			for _, p := range next {
				addrs = append(addrs, fmt.Sprintf("%s (source %q)", p.addr, p.source))
			}
			return fmt.Errorf("manifest: unresolved source references: %v", addrs)
		}
		pending = next
	}
	return nil
}

func (b *builder) register(addr string, n build.Node) error {
	type named interface{ SetName(string) }
	if nn, ok := n.(named); ok {
		nn.SetName(addr)
	}
	return b.graph.add(addr, n)
}

func (b *builder) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.root, path)
}
