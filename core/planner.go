package core

import (
	"log/slog"

	"github.com/encodeous/nyroute/state"
)

// Plan holds the routing view computed from one metric store.
type Plan struct {
	Store *state.MetricStore
	Graph *state.Graph
	Paths *PathTree
	MST   state.SpanningTree
}

// NewPlan builds the graph for store and runs both graph algorithms over it, rooted at the origin.
func NewPlan(store *state.MetricStore, cfg state.GraphCfg, log *slog.Logger) (*Plan, error) {
	g, err := BuildGraph(store, GraphOptions{Origin: cfg.Origin, Mesh: cfg.Mesh, Log: log})
	if err != nil {
		return nil, err
	}
	origin := cfg.Origin
	if origin == "" {
		origin = state.DefaultOrigin
	}
	paths, err := ShortestPaths(g, origin)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Store: store,
		Graph: g,
		Paths: paths,
		MST:   MinimumSpanningTree(g),
	}, nil
}

func (p *Plan) RouteTo(dest state.NodeId) (state.Route, error) {
	return p.Paths.RouteTo(dest)
}

// Best returns the reachable peer with the lowest distance from the origin.
func (p *Plan) Best() (state.Route, bool) {
	var best state.Route
	found := false
	for _, n := range p.Paths.Reachable() {
		if n == p.Paths.Source() {
			continue
		}
		r, err := p.Paths.RouteTo(n)
		if err != nil {
			continue
		}
		if !found || r.Distance < best.Distance {
			best, found = r, true
		}
	}
	return best, found
}

func (p *Plan) Snapshot(route *state.Route) *Snapshot {
	return NewSnapshot(p.Store, p.Graph, route, p.MST)
}

// Log writes the route to every peer and the spanning tree summary.
func (p *Plan) Log(log *slog.Logger) {
	for _, peer := range p.Store.Peers() {
		r, err := p.RouteTo(peer)
		if err != nil {
			log.Warn("peer unreachable", "peer", peer, "error", err)
			continue
		}
		log.Info("route", "peer", peer, "path", r.String())
	}
	if best, ok := p.Best(); ok {
		log.Info("best peer", "peer", best.Destination(), "distance", best.Distance)
	}
	log.Info("spanning tree", "edges", len(p.MST.Edges), "weight", p.MST.TotalWeight, "spanning", p.MST.Spanning())
}
