package state

import (
	"fmt"
	"math"
	"strings"
)

// Route is an ordered path from Nodes[0] to Nodes[len-1].
type Route struct {
	Nodes []NodeId
	// Distance is the sum of edge weights along the path
	Distance float64
	// EffectiveBandwidth is the bottleneck (minimum) raw bandwidth among the traversed edges, in Mbps. +Inf for a zero hop route.
	EffectiveBandwidth float64
}

func (r Route) Source() NodeId {
	return r.Nodes[0]
}

func (r Route) Destination() NodeId {
	return r.Nodes[len(r.Nodes)-1]
}

func (r Route) Hops() int {
	return len(r.Nodes) - 1
}

func (r Route) String() string {
	parts := make([]string, len(r.Nodes))
	for i, n := range r.Nodes {
		parts[i] = string(n)
	}
	s := fmt.Sprintf("%s (distance %.4f", strings.Join(parts, " -> "), r.Distance)
	if !math.IsInf(r.EffectiveBandwidth, 1) {
		s += fmt.Sprintf(", effective bandwidth %.2f Mbps", r.EffectiveBandwidth)
	}
	return s + ")"
}

// SpanningTree is the edge set selected by a minimum spanning tree computation.
// On a disconnected graph it covers fewer than NodeCount-1 edges.
type SpanningTree struct {
	Edges       []Edge
	TotalWeight float64
	NodeCount   int
}

// Spanning reports whether the tree reaches every node of the graph it was computed from
func (t SpanningTree) Spanning() bool {
	if t.NodeCount == 0 {
		return true
	}
	return len(t.Edges) == t.NodeCount-1
}

func (t SpanningTree) Contains(u, v NodeId) bool {
	key := MakeSortedPair(u, v)
	for _, e := range t.Edges {
		if e.Key() == key {
			return true
		}
	}
	return false
}
