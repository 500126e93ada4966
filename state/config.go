package state

import (
	"net/netip"
	"time"
)

type ProbeCfg struct {
	Mode        MetricKind    `yaml:"mode"`                   // bandwidth or latency
	Port        int           `yaml:"port,omitempty"`         // port of each peer's payload server
	Path        string        `yaml:"path,omitempty"`         // path of the payload on the payload server
	PayloadSize int64         `yaml:"payload_size,omitempty"` // bytes read from the payload per probe
	Timeout     time.Duration `yaml:"timeout,omitempty"`      // per-probe timeout
	Pacing      time.Duration `yaml:"pacing,omitempty"`       // pause between two probes of a run
	Attempts    int           `yaml:"attempts,omitempty"`     // icmp echo attempts for latency probes
	BindIf      string        `yaml:"bind_if,omitempty"`      // local interface latency probes are sent from
	Schedule    string        `yaml:"schedule,omitempty"`     // cron schedule used by monitor, e.g. "@every 10m"
}

type GraphCfg struct {
	Origin NodeId `yaml:"origin,omitempty"` // label of the synthetic origin node
	Mesh   bool   `yaml:"mesh,omitempty"`   // add inferred peer-to-peer edges
}

type TransferCfg struct {
	Port           int           `yaml:"port,omitempty"`
	ReceiveDir     string        `yaml:"receive_dir,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	IOTimeout      time.Duration `yaml:"io_timeout,omitempty"`
	ChunkSize      int           `yaml:"chunk_size,omitempty"`
	RecentTTL      time.Duration `yaml:"recent_ttl,omitempty"` // how long finished transfers are kept for inspection
}

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id              NodeId         `yaml:"id"`                         // name of this node, used as log prefix
	Peers           []NodeId       `yaml:"peers"`                      // peers to probe, in probe order
	OverlayPrefixes []netip.Prefix `yaml:"overlay_prefixes,omitempty"` // address ranges of the overlay network
	Probe           ProbeCfg       `yaml:"probe"`
	Graph           GraphCfg       `yaml:"graph,omitempty"`
	Transfer        TransferCfg    `yaml:"transfer,omitempty"`
	MetricsPath     string         `yaml:"metrics_path,omitempty"` // where the latest metric store is written
	LogPath         string         `yaml:"log_path,omitempty"`     // if not empty, logs are also written to this file
}

// ApplyDefaults fills every unset field with its default
func ApplyDefaults(cfg *LocalCfg) {
	if len(cfg.OverlayPrefixes) == 0 {
		cfg.OverlayPrefixes = DefaultOverlayPrefixes
	}
	p := &cfg.Probe
	if p.Port == 0 {
		p.Port = DefaultProbePort
	}
	if p.Path == "" {
		p.Path = DefaultProbePath
	}
	if p.PayloadSize == 0 {
		p.PayloadSize = DefaultPayloadSize
	}
	if p.Timeout == 0 {
		p.Timeout = ProbeTimeout
	}
	if p.Pacing == 0 {
		p.Pacing = ProbePacing
	}
	if p.Attempts == 0 {
		p.Attempts = PingAttempts
	}
	if cfg.Graph.Origin == "" {
		cfg.Graph.Origin = DefaultOrigin
	}
	t := &cfg.Transfer
	if t.Port == 0 {
		t.Port = DefaultTransferPort
	}
	if t.ReceiveDir == "" {
		t.ReceiveDir = DefaultReceiveDir
	}
	if t.ConnectTimeout == 0 {
		t.ConnectTimeout = ConnectTimeout
	}
	if t.IOTimeout == 0 {
		t.IOTimeout = TransferIOTimeout
	}
	if t.ChunkSize == 0 {
		t.ChunkSize = ChunkSize
	}
	if t.RecentTTL == 0 {
		t.RecentTTL = RecentTransferTTL
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = DefaultMetricsPath
	}
}

// SampleConfig is the configuration written by `nyroute init`
func SampleConfig(id NodeId, peers []NodeId) LocalCfg {
	cfg := LocalCfg{
		Id:    id,
		Peers: peers,
		Probe: ProbeCfg{
			Mode:     Bandwidth,
			Schedule: "@every 10m",
		},
	}
	ApplyDefaults(&cfg)
	return cfg
}
