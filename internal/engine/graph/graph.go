// Package graph builds the file to package dependency graph of an analysis
// run and computes onion decompositions and Katz centrality over it.
package graph

import (
	"sort"
	"sync"

	"pyimports/internal/engine/resolver"
)

type NodeKind string

const (
	KindFile    NodeKind = "file"
	KindPackage NodeKind = "package"
)

type Node struct {
	Kind NodeKind `json:"kind"`
	Name string   `json:"name"`
}

// Graph is a weighted directed graph. Parallel edges are merged into one
// edge whose weight is the sum of their weights.
type Graph struct {
	mu sync.RWMutex

	nodes []Node
	index map[Node]int

	out []map[int]float64 // from -> to -> weight
	in  []map[int]float64 // to -> from -> weight
}

func NewGraph() *Graph {
	return &Graph{index: make(map[Node]int)}
}

// FromAttributions links every file to the packages it was attributed to.
// Standard-library and unresolved imports are not packages and are left out.
func FromAttributions(records []resolver.Attribution) *Graph {
	g := NewGraph()
	for _, r := range records {
		if r.Name == resolver.PackageBuiltin || r.Name == resolver.PackageUnknown {
			continue
		}
		g.AddEdge(Node{Kind: KindFile, Name: r.Filename}, Node{Kind: KindPackage, Name: r.Name}, 1)
	}
	return g
}

func (g *Graph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNode(n)
}

func (g *Graph) addNode(n Node) int {
	if i, ok := g.index[n]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[n] = i
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, make(map[int]float64))
	g.in = append(g.in, make(map[int]float64))
	return i
}

func (g *Graph) AddEdge(from, to Node, weight float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	u := g.addNode(from)
	v := g.addNode(to)
	g.out[u][v] += weight
	g.in[v][u] += weight
}

func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, targets := range g.out {
		n += len(targets)
	}
	return n
}

// Weight returns the weight of the edge from -> to, or 0 without an edge.
func (g *Graph) Weight(from, to Node) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	u, ok := g.index[from]
	if !ok {
		return 0
	}
	v, ok := g.index[to]
	if !ok {
		return 0
	}
	return g.out[u][v]
}

// Nodes returns the nodes sorted by kind then name.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	sortNodes(out)
	return out
}

// PackageFanIn counts the files that depend on each package.
func (g *Graph) PackageFanIn() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]int)
	for i, n := range g.nodes {
		if n.Kind == KindPackage {
			out[n.Name] = len(g.in[i])
		}
	}
	return out
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind < nodes[j].Kind
		}
		return nodes[i].Name < nodes[j].Name
	})
}
