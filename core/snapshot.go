package core

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/encodeous/nyroute/state"
	"github.com/goccy/go-yaml"
)

// SnapshotEdge is an edge as presented to renderers.
type SnapshotEdge struct {
	U         state.NodeId `yaml:"u"`
	V         state.NodeId `yaml:"v"`
	Weight    *float64     `yaml:"weight"`              // nil when unusable
	Bandwidth *float64     `yaml:"bandwidth,omitempty"` // raw Mbps, nil when unknown
	Label     string       `yaml:"label"`               // measured or inferred
	InMST     bool         `yaml:"in_mst"`
}

// Snapshot is everything a renderer needs to draw the current state of the network.
type Snapshot struct {
	Timestamp time.Time        `yaml:"timestamp"`
	Kind      state.MetricKind `yaml:"kind"`
	Nodes     []state.NodeId   `yaml:"nodes"`
	Edges     []SnapshotEdge   `yaml:"edges"`
	Route     []state.NodeId   `yaml:"route,omitempty"`
	Distance  *float64         `yaml:"distance,omitempty"`
	Hops      int              `yaml:"hops,omitempty"`
	// EffectiveBandwidth is the bottleneck bandwidth of the route in Mbps, nil on latency graphs
	EffectiveBandwidth *float64 `yaml:"effective_bandwidth,omitempty"`
	MSTWeight          float64  `yaml:"mst_weight"`
	Spanning           bool     `yaml:"spanning"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// NewSnapshot combines a store, the graph built from it, an optional route and the spanning tree.
func NewSnapshot(store *state.MetricStore, g *state.Graph, route *state.Route, mst state.SpanningTree) *Snapshot {
	s := &Snapshot{
		Kind:      g.Kind(),
		Nodes:     g.Nodes(),
		MSTWeight: mst.TotalWeight,
		Spanning:  mst.Spanning(),
	}
	if store != nil {
		s.Timestamp = store.Timestamp()
	}
	for _, e := range g.Edges() {
		se := SnapshotEdge{
			U:         e.U,
			V:         e.V,
			Weight:    finite(e.Weight),
			Bandwidth: finite(e.Bandwidth),
			Label:     "measured",
			InMST:     mst.Contains(e.U, e.V),
		}
		if e.Inferred {
			se.Label = "inferred"
		}
		s.Edges = append(s.Edges, se)
	}
	if route != nil {
		s.Route = append([]state.NodeId(nil), route.Nodes...)
		s.Distance = finite(route.Distance)
		s.Hops = route.Hops()
		s.EffectiveBandwidth = finite(route.EffectiveBandwidth)
	}
	return s
}

func (s *Snapshot) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}

func fmtOpt(v *float64, unit string) string {
	if v == nil {
		return "unusable"
	}
	return fmt.Sprintf("%.4f%s", *v, unit)
}

func (s *Snapshot) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%s graph, %d nodes, %d edges", s.Kind, len(s.Nodes), len(s.Edges))
	if !s.Timestamp.IsZero() {
		fmt.Fprintf(&sb, " (measured %s)", s.Timestamp.Format(time.DateTime))
	}
	sb.WriteString("\n")
	for _, e := range s.Edges {
		mark := " "
		if e.InMST {
			mark = "*"
		}
		fmt.Fprintf(&sb, " %s %s -- %s  weight %s", mark, e.U, e.V, fmtOpt(e.Weight, ""))
		if e.Bandwidth != nil && s.Kind == state.Bandwidth {
			fmt.Fprintf(&sb, "  %.2f Mbps", *e.Bandwidth)
		}
		if e.Label == "inferred" {
			sb.WriteString("  (inferred)")
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "spanning tree weight %.4f", s.MSTWeight)
	if !s.Spanning {
		sb.WriteString(" (not spanning, some nodes are unreachable)")
	}
	sb.WriteString("\n")
	if len(s.Route) > 0 {
		parts := make([]string, len(s.Route))
		for i, n := range s.Route {
			parts[i] = string(n)
		}
		fmt.Fprintf(&sb, "route %s, distance %s, %d hops", strings.Join(parts, " -> "), fmtOpt(s.Distance, ""), s.Hops)
		if s.EffectiveBandwidth != nil {
			fmt.Fprintf(&sb, ", effective bandwidth %.2f Mbps", *s.EffectiveBandwidth)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
