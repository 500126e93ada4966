package state

import (
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// TimestampLayout is the timestamp format of result files, microseconds and no zone.
const TimestampLayout = "2006-01-02 15:04:05.000000"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// MetricStore is a snapshot of one probing run. It must not be modified once published, accessors return copies.
type MetricStore struct {
	timestamp time.Time
	kind      MetricKind
	runId     string
	values    map[NodeId]float64
	order     []NodeId
}

// NewMetricStore creates a store from peers in probe order. Every peer must have a value.
func NewMetricStore(kind MetricKind, timestamp time.Time, runId string, order []NodeId, values map[NodeId]float64) (*MetricStore, error) {
	if len(order) != len(values) {
		return nil, fmt.Errorf("metric store order has %d peers but %d values", len(order), len(values))
	}
	for _, n := range order {
		if _, ok := values[n]; !ok {
			return nil, fmt.Errorf("metric store has no value for %s", n)
		}
	}
	return &MetricStore{
		timestamp: timestamp,
		kind:      kind,
		runId:     runId,
		values:    maps.Clone(values),
		order:     slices.Clone(order),
	}, nil
}

func (m *MetricStore) Timestamp() time.Time {
	return m.timestamp
}

func (m *MetricStore) Kind() MetricKind {
	return m.kind
}

func (m *MetricStore) RunId() string {
	return m.runId
}

// Peers returns the peers in the order they were probed
func (m *MetricStore) Peers() []NodeId {
	return slices.Clone(m.order)
}

func (m *MetricStore) Value(n NodeId) (float64, bool) {
	v, ok := m.values[n]
	return v, ok
}

func (m *MetricStore) Values() map[NodeId]float64 {
	return maps.Clone(m.values)
}

func (m *MetricStore) Len() int {
	return len(m.order)
}

// Successful counts peers with a usable measurement
func (m *MetricStore) Successful() int {
	cnt := 0
	for _, v := range m.values {
		if !m.kind.IsFailure(v) {
			cnt++
		}
	}
	return cnt
}

type metricFile struct {
	Fecha string                     `json:"fecha"`
	Tipo  string                     `json:"tipo,omitempty"`
	Orden []NodeId                   `json:"orden,omitempty"`
	Datos map[NodeId]json.RawMessage `json:"datos"`
}

func (m *MetricStore) MarshalJSON() ([]byte, error) {
	f := metricFile{
		Fecha: m.timestamp.Format(TimestampLayout),
		Tipo:  m.kind.String(),
		Orden: m.order,
		Datos: make(map[NodeId]json.RawMessage, len(m.values)),
	}
	for n, v := range m.values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			f.Datos[n] = json.RawMessage("null")
			continue
		}
		f.Datos[n] = json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return json.Marshal(f)
}

func (m *MetricStore) UnmarshalJSON(data []byte) error {
	var f metricFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	kind, err := ParseMetricKind(f.Tipo)
	if err != nil {
		return err
	}
	ts, err := ParseTimestamp(f.Fecha)
	if err != nil {
		return err
	}
	values := make(map[NodeId]float64, len(f.Datos))
	for n, raw := range f.Datos {
		v, err := parseMetricValue(kind, raw)
		if err != nil {
			return fmt.Errorf("datos[%s]: %w", n, err)
		}
		values[n] = v
	}
	order := f.Orden
	if len(order) == 0 {
		// json objects carry no order, fall back to a stable one
		order = slices.Sorted(maps.Keys(values))
	}
	store, err := NewMetricStore(kind, ts, "", order, values)
	if err != nil {
		return err
	}
	*m = *store
	return nil
}

func parseMetricValue(kind MetricKind, raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	switch strings.ToLower(strings.Trim(s, `"`)) {
	case "null":
		return kind.Sentinel(), nil
	case "infinity", "inf", "+inf":
		return math.Inf(1), nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// bare non-finite literals are not JSON, but some writers emit them
var nonFiniteLiteral = regexp.MustCompile(`(:\s*)(-?Infinity|NaN)\b`)

// ParseMetricStore decodes a result file, tolerating bare Infinity/NaN literals.
func ParseMetricStore(data []byte) (*MetricStore, error) {
	data = nonFiniteLiteral.ReplaceAll(data, []byte("${1}null"))
	var m MetricStore
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func LoadMetricStore(path string) (*MetricStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseMetricStore(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

func SaveMetricStore(path string, m *MetricStore) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
