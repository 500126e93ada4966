package state

import (
	"fmt"
	"math"
)

type NodeId string

// MetricKind tells how a raw metric value is read.
type MetricKind int

const (
	// Bandwidth is measured in Mbps, higher is better. A failed probe is recorded as 0.
	Bandwidth MetricKind = iota
	// Latency is measured in milliseconds, lower is better. A failed probe is recorded as +Inf.
	Latency
)

func (k MetricKind) String() string {
	switch k {
	case Bandwidth:
		return "bandwidth"
	case Latency:
		return "latency"
	default:
		return fmt.Sprintf("MetricKind(%d)", int(k))
	}
}

// Unit returns the unit raw values of this kind are expressed in
func (k MetricKind) Unit() string {
	if k == Latency {
		return "ms"
	}
	return "Mbps"
}

// Sentinel is the value recorded for a peer whose probe failed
func (k MetricKind) Sentinel() float64 {
	if k == Latency {
		return math.Inf(1)
	}
	return 0
}

// IsFailure reports whether v means "no usable measurement" for this kind.
func (k MetricKind) IsFailure(v float64) bool {
	if math.IsNaN(v) || v < 0 {
		return true
	}
	if k == Latency {
		return math.IsInf(v, 1)
	}
	return v == 0
}

func ParseMetricKind(s string) (MetricKind, error) {
	switch s {
	case "", "bandwidth", "ancho_banda":
		return Bandwidth, nil
	case "latency", "latencia":
		return Latency, nil
	}
	return Bandwidth, fmt.Errorf("unknown metric kind %q, expected bandwidth or latency", s)
}

func (k MetricKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MetricKind) UnmarshalText(text []byte) error {
	v, err := ParseMetricKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
