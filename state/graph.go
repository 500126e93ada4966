package state

import (
	"fmt"
	"math"
	"slices"
)

// Edge is an undirected, weighted link between two nodes.
type Edge struct {
	U, V   NodeId
	Weight float64
	// Bandwidth is the raw bandwidth (Mbps) the weight was derived from. It is +Inf when unknown, e.g. on latency graphs.
	Bandwidth float64
	// Inferred edges were not measured, their metric is a proxy derived from the endpoints' own measurements.
	Inferred bool
}

func (e Edge) Key() Pair[NodeId, NodeId] {
	return MakeSortedPair(e.U, e.V)
}

// Other returns the endpoint of e that is not n
func (e Edge) Other(n NodeId) NodeId {
	if e.U == n {
		return e.V
	}
	return e.U
}

func (e Edge) String() string {
	s := fmt.Sprintf("%s -- %s (w=%.4f", e.U, e.V, e.Weight)
	if !math.IsInf(e.Bandwidth, 1) {
		s += fmt.Sprintf(", bw=%.2f", e.Bandwidth)
	}
	if e.Inferred {
		s += ", inferred"
	}
	return s + ")"
}

// Graph is an immutable undirected weighted graph. Adjacency is symmetric by construction.
type Graph struct {
	kind  MetricKind
	nodes []NodeId
	edges []Edge // insertion order
	adj   map[NodeId]map[NodeId]int
}

// NewGraph validates and freezes the given nodes and edges. Edges are kept in the order given.
func NewGraph(kind MetricKind, nodes []NodeId, edges []Edge) (*Graph, error) {
	g := &Graph{
		kind:  kind,
		nodes: make([]NodeId, 0, len(nodes)),
		edges: make([]Edge, 0, len(edges)),
		adj:   make(map[NodeId]map[NodeId]int, len(nodes)),
	}
	for _, n := range nodes {
		if _, ok := g.adj[n]; ok {
			return nil, fmt.Errorf("duplicate node %s", n)
		}
		g.adj[n] = make(map[NodeId]int)
		g.nodes = append(g.nodes, n)
	}
	for _, e := range edges {
		if e.U == e.V {
			return nil, fmt.Errorf("self loop on %s", e.U)
		}
		if math.IsNaN(e.Weight) || e.Weight < 0 {
			return nil, fmt.Errorf("edge %s -- %s has invalid weight %v", e.U, e.V, e.Weight)
		}
		au, ok := g.adj[e.U]
		if !ok {
			return nil, fmt.Errorf("edge %s -- %s: %w: %s", e.U, e.V, ErrUnknownNode, e.U)
		}
		av, ok := g.adj[e.V]
		if !ok {
			return nil, fmt.Errorf("edge %s -- %s: %w: %s", e.U, e.V, ErrUnknownNode, e.V)
		}
		if _, dup := au[e.V]; dup {
			return nil, fmt.Errorf("duplicate edge %s -- %s", e.U, e.V)
		}
		idx := len(g.edges)
		g.edges = append(g.edges, e)
		au[e.V] = idx
		av[e.U] = idx
	}
	return g, nil
}

// FromAdjacency builds a graph from a nested weight map such as {A:{B:10}, B:{A:10}}.
// Both directions must agree. Raw bandwidth is taken as the reciprocal of the weight.
func FromAdjacency(kind MetricKind, adj map[NodeId]map[NodeId]float64) (*Graph, error) {
	nodes := make([]NodeId, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	seen := make(map[Pair[NodeId, NodeId]]struct{})
	edges := make([]Edge, 0)
	for _, u := range nodes {
		nbrs := make([]NodeId, 0, len(adj[u]))
		for v := range adj[u] {
			nbrs = append(nbrs, v)
		}
		slices.Sort(nbrs)
		for _, v := range nbrs {
			w := adj[u][v]
			back, ok := adj[v][u]
			if !ok || back != w {
				return nil, fmt.Errorf("adjacency is not symmetric between %s and %s", u, v)
			}
			key := MakeSortedPair(u, v)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			bw := math.Inf(1)
			if kind == Bandwidth {
				bw = 1 / w
			}
			edges = append(edges, Edge{U: u, V: v, Weight: w, Bandwidth: bw})
		}
	}
	return NewGraph(kind, nodes, edges)
}

func (g *Graph) Kind() MetricKind {
	return g.kind
}

// Nodes returns the nodes in insertion order
func (g *Graph) Nodes() []NodeId {
	return slices.Clone(g.nodes)
}

// Edges returns every edge once, in insertion order
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

func (g *Graph) HasNode(n NodeId) bool {
	_, ok := g.adj[n]
	return ok
}

// Neighbours returns the adjacent nodes of n sorted by id.
func (g *Graph) Neighbours(n NodeId) []NodeId {
	out := make([]NodeId, 0, len(g.adj[n]))
	for v := range g.adj[n] {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Edge returns the edge between u and v, in either direction.
func (g *Graph) Edge(u, v NodeId) (Edge, bool) {
	idx, ok := g.adj[u][v]
	if !ok {
		return Edge{}, false
	}
	return g.edges[idx], true
}

// Weight returns the weight between u and v, +Inf if they are not adjacent.
func (g *Graph) Weight(u, v NodeId) float64 {
	e, ok := g.Edge(u, v)
	if !ok {
		return math.Inf(1)
	}
	return e.Weight
}

func (g *Graph) Len() int {
	return len(g.nodes)
}
