package core

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/encodeous/nyroute/state"
)

type GraphOptions struct {
	// Origin is the synthetic node representing the local host
	Origin state.NodeId
	// Mesh adds inferred peer-to-peer edges next to the measured origin-to-peer ones.
	// Inferred edges are an approximation: nothing is measured between two peers, the
	// bottleneck of their own origin links is used as a proxy.
	Mesh bool
	Log  *slog.Logger
}

// BandwidthWeight converts a bandwidth in Mbps into a weight where lower is better.
func BandwidthWeight(bw float64) float64 {
	if bw > 0 {
		return 1 / bw
	}
	return math.Inf(1)
}

// BuildGraph turns one metric store into a graph with a synthetic origin node.
func BuildGraph(store *state.MetricStore, opts GraphOptions) (*state.Graph, error) {
	if store == nil || store.Len() == 0 {
		return nil, state.ErrEmptyMetricStore
	}
	if opts.Origin == "" {
		opts.Origin = state.DefaultOrigin
	}
	kind := store.Kind()
	peers := store.Peers()

	metric := make(map[state.NodeId]float64, len(peers))
	for _, p := range peers {
		if p == opts.Origin {
			return nil, fmt.Errorf("peer %s collides with the origin node", p)
		}
		v, _ := store.Value(p)
		if math.IsNaN(v) || v < 0 {
			if opts.Log != nil {
				opts.Log.Warn("invalid metric treated as a failed probe", "peer", p, "value", v, "kind", kind)
			}
			v = kind.Sentinel()
		}
		metric[p] = v
	}

	nodes := make([]state.NodeId, 0, len(peers)+1)
	nodes = append(nodes, opts.Origin)
	nodes = append(nodes, peers...)

	edges := make([]state.Edge, 0, len(peers))
	for _, p := range peers {
		edges = append(edges, measuredEdge(kind, opts.Origin, p, metric[p]))
	}
	if opts.Mesh {
		for i, p := range peers {
			for _, q := range peers[i+1:] {
				edges = append(edges, inferredEdge(kind, p, q, metric[p], metric[q]))
			}
		}
	}
	return state.NewGraph(kind, nodes, edges)
}

func measuredEdge(kind state.MetricKind, origin, peer state.NodeId, v float64) state.Edge {
	if kind == state.Latency {
		return state.Edge{U: origin, V: peer, Weight: v, Bandwidth: math.Inf(1)}
	}
	return state.Edge{U: origin, V: peer, Weight: BandwidthWeight(v), Bandwidth: v}
}

func inferredEdge(kind state.MetricKind, p, q state.NodeId, vp, vq float64) state.Edge {
	if kind == state.Latency {
		// the slower of the two legs
		return state.Edge{U: p, V: q, Weight: max(vp, vq), Bandwidth: math.Inf(1), Inferred: true}
	}
	bw := min(vp, vq)
	return state.Edge{U: p, V: q, Weight: BandwidthWeight(bw), Bandwidth: bw, Inferred: true}
}
