package graph

// HasCycle reports whether any directed cycle exists, self loops included.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycle()
}

func (g *Graph) hasCycle() bool {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(g.nodes))

	var visit func(u int) bool
	visit = func(u int) bool {
		state[u] = onStack
		for v := range g.out[u] {
			switch state[v] {
			case onStack:
				return true
			case unvisited:
				if visit(v) {
					return true
				}
			}
		}
		state[u] = done
		return false
	}

	for u := range g.nodes {
		if state[u] == unvisited && visit(u) {
			return true
		}
	}
	return false
}
