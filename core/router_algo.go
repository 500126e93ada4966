package core

import (
	"cmp"
	"container/heap"
	"fmt"
	"math"
	"slices"

	"github.com/encodeous/nyroute/state"
)

// PathTree is the result of a single-source shortest path search.
type PathTree struct {
	graph  *state.Graph
	source state.NodeId
	dist   map[state.NodeId]float64
	prev   map[state.NodeId]state.NodeId
}

type queueEntry struct {
	node state.NodeId
	dist float64
}

// pathQueue orders by tentative distance, ties broken by ascending node id so results are reproducible.
type pathQueue []queueEntry

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q pathQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x any)   { *q = append(*q, x.(queueEntry)) }
func (q *pathQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// ShortestPaths runs Dijkstra from source over g.
func ShortestPaths(g *state.Graph, source state.NodeId) (*PathTree, error) {
	if !g.HasNode(source) {
		return nil, fmt.Errorf("%w: %s", state.ErrUnknownNode, source)
	}
	t := &PathTree{
		graph:  g,
		source: source,
		dist:   make(map[state.NodeId]float64, g.Len()),
		prev:   make(map[state.NodeId]state.NodeId),
	}
	for _, n := range g.Nodes() {
		t.dist[n] = math.Inf(1)
	}
	t.dist[source] = 0

	visited := make(map[state.NodeId]bool, g.Len())
	q := &pathQueue{{node: source, dist: 0}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(queueEntry)
		if visited[cur.node] {
			continue // stale entry
		}
		visited[cur.node] = true
		for _, nb := range g.Neighbours(cur.node) {
			if visited[nb] {
				continue
			}
			nd := cur.dist + g.Weight(cur.node, nb)
			if nd < t.dist[nb] {
				t.dist[nb] = nd
				t.prev[nb] = cur.node
				heap.Push(q, queueEntry{node: nb, dist: nd})
			}
		}
	}
	return t, nil
}

func (t *PathTree) Source() state.NodeId {
	return t.source
}

// Distance returns the shortest distance to n, +Inf if n is unreachable or unknown.
func (t *PathTree) Distance(n state.NodeId) float64 {
	d, ok := t.dist[n]
	if !ok {
		return math.Inf(1)
	}
	return d
}

// Reachable lists the nodes with a finite distance, sorted by id
func (t *PathTree) Reachable() []state.NodeId {
	out := make([]state.NodeId, 0, len(t.dist))
	for n, d := range t.dist {
		if !math.IsInf(d, 1) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// RouteTo reconstructs the path to dest.
func (t *PathTree) RouteTo(dest state.NodeId) (state.Route, error) {
	if math.IsInf(t.Distance(dest), 1) {
		return state.Route{}, &state.RouteNotFoundError{Source: t.source, Destination: dest}
	}
	path := []state.NodeId{dest}
	for cur := dest; cur != t.source; {
		cur = t.prev[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)

	bw := math.Inf(1)
	for i := 0; i+1 < len(path); i++ {
		e, _ := t.graph.Edge(path[i], path[i+1])
		bw = min(bw, e.Bandwidth)
	}
	return state.Route{
		Nodes:              path,
		Distance:           t.dist[dest],
		EffectiveBandwidth: bw,
	}, nil
}

// ShortestRoute is a convenience wrapper for a single source/destination pair.
func ShortestRoute(g *state.Graph, src, dst state.NodeId) (state.Route, error) {
	t, err := ShortestPaths(g, src)
	if err != nil {
		return state.Route{}, err
	}
	return t.RouteTo(dst)
}

// MinimumSpanningTree runs Kruskal over g. Edges of equal weight are considered in insertion order.
// Edges with infinite weight are never selected, so a graph containing unusable links yields a tree
// with fewer than |nodes|-1 edges. That is not an error, callers check SpanningTree.Spanning.
func MinimumSpanningTree(g *state.Graph) state.SpanningTree {
	edges := g.Edges()
	slices.SortStableFunc(edges, func(a, b state.Edge) int {
		return cmp.Compare(a.Weight, b.Weight)
	})
	tree := state.SpanningTree{
		Edges:     make([]state.Edge, 0, max(g.Len()-1, 0)),
		NodeCount: g.Len(),
	}
	dsu := NewDisjointSet(g.Nodes())
	for _, e := range edges {
		if len(tree.Edges) == g.Len()-1 || math.IsInf(e.Weight, 1) {
			break
		}
		if dsu.Union(e.U, e.V) {
			tree.Edges = append(tree.Edges, e)
			tree.TotalWeight += e.Weight
		}
	}
	return tree
}
