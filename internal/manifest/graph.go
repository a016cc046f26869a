package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/docforge/internal/build"
)

// Graph is the node graph loaded from a manifest, addressable by the
// "kind.name" labels the manifest declared.
type Graph struct {
	nodes map[string]build.Node
	order []string

	// needed marks addresses some other manifest node depends on; the
	// remaining addresses are the default build targets.
	needed map[string]bool
}

func newGraph() *Graph {
	return &Graph{
		nodes:  make(map[string]build.Node),
		needed: make(map[string]bool),
	}
}

func (g *Graph) add(addr string, n build.Node) error {
	if _, exists := g.nodes[addr]; exists {
		return fmt.Errorf("manifest: duplicate address %q", addr)
	}
	g.nodes[addr] = n
	g.order = append(g.order, addr)
	return nil
}

func (g *Graph) resolve(addr string) (build.Node, error) {
	n, ok := g.nodes[addr]
	if !ok {
		return nil, fmt.Errorf("manifest: reference to unknown node %q", addr)
	}
	return n, nil
}

// Node returns the node declared under the given address.
func (g *Graph) Node(addr string) (build.Node, bool) {
	n, ok := g.nodes[addr]
	return n, ok
}

// Addresses returns every declared address in declaration order.
func (g *Graph) Addresses() []string {
	return append([]string(nil), g.order...)
}

// Targets resolves the requested addresses, or returns the default targets
// when none are requested: the sinks, i.e. nodes nothing else depends on.
func (g *Graph) Targets(addrs []string) ([]build.Node, error) {
	if len(addrs) == 0 {
		return g.sinks(), nil
	}
	nodes := make([]build.Node, 0, len(addrs))
	for _, addr := range addrs {
		n, err := g.resolve(addr)
		if err != nil {
			return nil, fmt.Errorf("%w (known: %s)", err, strings.Join(g.Addresses(), ", "))
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (g *Graph) sinks() []build.Node {
	var out []build.Node
	for _, addr := range g.order {
		if !g.needed[addr] {
			out = append(out, g.nodes[addr])
		}
	}
	return out
}

// SinkAddresses lists the default target addresses, sorted for stable
// diagnostics.
func (g *Graph) SinkAddresses() []string {
	var out []string
	for _, addr := range g.order {
		if !g.needed[addr] {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}
