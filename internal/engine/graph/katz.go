package graph

import (
	"fmt"
	"math"
	"sort"

	"pyimports/internal/core/errors"
)

const (
	DefaultKatzBeta    = 1.0
	DefaultKatzMaxIter = 100000
	DefaultKatzTol     = 1e-6

	// fallbackKatzAlpha applies when the spectral radius is zero, which is
	// the case for every acyclic graph.
	fallbackKatzAlpha = 0.1
	alphaMargin       = 0.01

	spectralMaxIter = 10000
	spectralTol     = 1e-12
)

type KatzOptions struct {
	// Alpha is the attenuation factor. Zero derives it from the spectral
	// radius as 1/radius - 0.01.
	Alpha   float64
	Beta    float64
	MaxIter int
	Tol     float64
}

type Centrality struct {
	Node  Node    `json:"node"`
	Score float64 `json:"score"`
}

// KatzCentrality solves x = alpha * A^T x + beta by power iteration over
// weighted edges and returns the scores normalized to unit Euclidean length,
// highest first.
func (g *Graph) KatzCentrality(opts KatzOptions) ([]Centrality, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := len(g.nodes)
	if n == 0 {
		return nil, nil
	}

	if opts.Alpha <= 0 {
		opts.Alpha = g.katzAlpha()
	}
	if opts.Beta == 0 {
		opts.Beta = DefaultKatzBeta
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultKatzMaxIter
	}
	if opts.Tol <= 0 {
		opts.Tol = DefaultKatzTol
	}

	x := make([]float64, n)
	next := make([]float64, n)
	converged := false
	for iter := 0; iter < opts.MaxIter; iter++ {
		for i := range next {
			next[i] = 0
		}
		for u := 0; u < n; u++ {
			for v, w := range g.out[u] {
				next[v] += x[u] * w
			}
		}
		delta := 0.0
		for i := range next {
			next[i] = opts.Alpha*next[i] + opts.Beta
			delta += math.Abs(next[i] - x[i])
		}
		x, next = next, x
		if delta < float64(n)*opts.Tol {
			converged = true
			break
		}
	}
	if !converged {
		return nil, errors.New(errors.CodeInternal, fmt.Sprintf("katz centrality did not converge in %d iterations (alpha %g)", opts.MaxIter, opts.Alpha))
	}

	norm := 0.0
	for _, v := range x {
		norm += v * v
	}
	scale := 1.0
	if norm > 0 {
		scale = 1 / math.Sqrt(norm)
	}

	out := make([]Centrality, n)
	for i, node := range g.nodes {
		out[i] = Centrality{Node: node, Score: x[i] * scale}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		a, b := out[i].Node, out[j].Node
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})
	return out, nil
}

func (g *Graph) katzAlpha() float64 {
	radius := g.spectralRadius()
	if radius <= 0 {
		return fallbackKatzAlpha
	}
	alpha := 1/radius - alphaMargin
	if alpha <= 0 {
		return 0.5 / radius
	}
	return alpha
}

// SpectralRadius returns the largest eigenvalue of the weighted adjacency
// matrix. Edge weights must be non-negative.
func (g *Graph) SpectralRadius() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.spectralRadius()
}

// spectralRadius iterates on A + I, which shares the Perron root of A shifted
// by one and does not oscillate on periodic graphs. Acyclic graphs are
// nilpotent and short-circuit to zero.
func (g *Graph) spectralRadius() float64 {
	n := len(g.nodes)
	if n == 0 || !g.hasCycle() {
		return 0
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = 1 / float64(n)
	}
	y := make([]float64, n)
	prev := 0.0
	ratio := 0.0
	for iter := 0; iter < spectralMaxIter; iter++ {
		copy(y, x)
		for u := 0; u < n; u++ {
			for v, w := range g.out[u] {
				y[v] += x[u] * w
			}
		}
		sum := 0.0
		for _, v := range y {
			sum += v
		}
		ratio = sum
		for i := range y {
			x[i] = y[i] / sum
		}
		if iter > 0 && math.Abs(ratio-prev) < spectralTol*math.Max(1, ratio) {
			break
		}
		prev = ratio
	}
	return ratio - 1
}
