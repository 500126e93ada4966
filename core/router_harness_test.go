package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/encodeous/nyroute/state"
	"github.com/stretchr/testify/require"
)

// randomGraph builds a connected-or-not graph with n nodes and integer weights, reproducible from seed.
func randomGraph(t *testing.T, seed uint64, n int, density float64) *state.Graph {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	nodes := make([]state.NodeId, n)
	for i := range nodes {
		nodes[i] = state.NodeId(fmt.Sprintf("n%02d", i))
	}
	edges := make([]state.Edge, 0)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() > density {
				continue
			}
			w := float64(rng.IntN(10))
			edges = append(edges, state.Edge{U: nodes[i], V: nodes[j], Weight: w, Bandwidth: math.Inf(1)})
		}
	}
	g, err := state.NewGraph(state.Latency, nodes, edges)
	require.NoError(t, err)
	return g
}

// bruteShortest enumerates every simple path from src to dst.
func bruteShortest(g *state.Graph, src, dst state.NodeId) float64 {
	best := math.Inf(1)
	visited := map[state.NodeId]bool{src: true}
	var walk func(cur state.NodeId, dist float64)
	walk = func(cur state.NodeId, dist float64) {
		if cur == dst {
			best = min(best, dist)
			return
		}
		for _, nb := range g.Neighbours(cur) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			walk(nb, dist+g.Weight(cur, nb))
			visited[nb] = false
		}
	}
	walk(src, 0)
	return best
}

// bruteForest returns the minimum total weight of a spanning forest with the given number of edges,
// by trying every edge subset. Only usable for small edge counts.
func bruteForest(g *state.Graph, size int) float64 {
	edges := g.Edges()
	best := math.Inf(1)
	for mask := 0; mask < 1<<len(edges); mask++ {
		cnt := 0
		for m := mask; m != 0; m &= m - 1 {
			cnt++
		}
		if cnt != size {
			continue
		}
		dsu := NewDisjointSet(g.Nodes())
		total := 0.0
		acyclic := true
		for i, e := range edges {
			if mask&(1<<i) == 0 {
				continue
			}
			if !dsu.Union(e.U, e.V) {
				acyclic = false
				break
			}
			total += e.Weight
		}
		if acyclic {
			best = min(best, total)
		}
	}
	return best
}
