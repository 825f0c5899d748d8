package graph

import (
	"math"
	"sort"
)

// Layer is the onion decomposition result of one node.
type Layer struct {
	Node     Node `json:"node"`
	Layer    int  `json:"layer"`
	Coreness int  `json:"coreness"`
}

type degreeFunc func(in, out int) int

// DirectedOnionLayers peels nodes whose in-degree or out-degree is at most the
// current core, raising the core to the smallest min(in, out) degree left
// whenever that exceeds it. Degrees count parallel edges, so an edge of
// weight 3 adds 3; a self loop counts on each side.
func (g *Graph) DirectedOnionLayers() []Layer {
	return g.onion(
		func(in, out int) int { return min(in, out) },
		func(core, in, out int) bool { return in <= core || out <= core },
	)
}

// BidirectionalOnionLayers runs separate decompositions on in-degree and on
// out-degree.
func (g *Graph) BidirectionalOnionLayers() (inward, outward []Layer) {
	inward = g.onion(
		func(in, _ int) int { return in },
		func(core, in, _ int) bool { return in <= core },
	)
	outward = g.onion(
		func(_, out int) int { return out },
		func(core, _, out int) bool { return out <= core },
	)
	return inward, outward
}

func (g *Graph) onion(degree degreeFunc, peel func(core, in, out int) bool) []Layer {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := len(g.nodes)
	alive := make([]bool, n)
	inDeg := make([]int, n)
	outDeg := make([]int, n)
	for i := 0; i < n; i++ {
		alive[i] = true
		inDeg[i] = multiplicity(g.in[i])
		outDeg[i] = multiplicity(g.out[i])
	}

	result := make([]Layer, 0, n)
	remaining := n
	core, layer := 0, 1
	for remaining > 0 {
		minDegree := -1
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			if d := degree(inDeg[i], outDeg[i]); minDegree < 0 || d < minDegree {
				minDegree = d
			}
		}
		if minDegree >= core+1 {
			core = minDegree
		}

		var shell []int
		for i := 0; i < n; i++ {
			if alive[i] && peel(core, inDeg[i], outDeg[i]) {
				shell = append(shell, i)
			}
		}
		for _, i := range shell {
			alive[i] = false
			result = append(result, Layer{Node: g.nodes[i], Layer: layer, Coreness: core})
		}
		for _, i := range shell {
			for v, w := range g.out[i] {
				if v != i {
					inDeg[v] -= edgeCount(w)
				}
			}
			for u, w := range g.in[i] {
				if u != i {
					outDeg[u] -= edgeCount(w)
				}
			}
		}
		remaining -= len(shell)
		layer++
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Layer != result[j].Layer {
			return result[i].Layer < result[j].Layer
		}
		a, b := result[i].Node, result[j].Node
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})
	return result
}

// edgeCount is the number of parallel edges merged into an edge of weight w.
func edgeCount(w float64) int {
	return max(1, int(math.Round(w)))
}

func multiplicity(edges map[int]float64) int {
	total := 0
	for _, w := range edges {
		total += edgeCount(w)
	}
	return total
}
