package state

import (
	"net/netip"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := LocalCfg{Id: "a"}
	ApplyDefaults(&cfg)
	assert.Equal(t, DefaultProbePort, cfg.Probe.Port)
	assert.Equal(t, "/10MB.bin", cfg.Probe.Path)
	assert.Equal(t, int64(10*1024*1024), cfg.Probe.PayloadSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Probe.Pacing)
	assert.Equal(t, 15*time.Second, cfg.Transfer.ConnectTimeout)
	assert.Equal(t, 4096, cfg.Transfer.ChunkSize)
	assert.Equal(t, NodeId("Origin"), cfg.Graph.Origin)
	assert.Equal(t, DefaultOverlayPrefixes, cfg.OverlayPrefixes)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := LocalCfg{
		Id:       "a",
		Probe:    ProbeCfg{Port: 9000, Pacing: time.Second},
		Transfer: TransferCfg{Port: AltTransferPort},
	}
	ApplyDefaults(&cfg)
	assert.Equal(t, 9000, cfg.Probe.Port)
	assert.Equal(t, time.Second, cfg.Probe.Pacing)
	assert.Equal(t, 55555, cfg.Transfer.Port)
}

func TestParseLocalConfig(t *testing.T) {
	input := `
id: node1
peers:
  - 25.0.0.2
  - 25.0.0.3
overlay_prefixes:
  - 25.0.0.0/8
probe:
  mode: latency
  timeout: 2s
  pacing: 1s
graph:
  mesh: true
transfer:
  port: 55555
`
	var cfg LocalCfg
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))
	ApplyDefaults(&cfg)
	require.NoError(t, ConfigValidator(&cfg))

	assert.Equal(t, NodeId("node1"), cfg.Id)
	assert.Equal(t, []NodeId{"25.0.0.2", "25.0.0.3"}, cfg.Peers)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("25.0.0.0/8")}, cfg.OverlayPrefixes)
	assert.Equal(t, Latency, cfg.Probe.Mode)
	assert.Equal(t, 2*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, time.Second, cfg.Probe.Pacing)
	assert.True(t, cfg.Graph.Mesh)
	assert.Equal(t, 55555, cfg.Transfer.Port)
}

func TestParseLocalConfig_UnknownMode(t *testing.T) {
	var cfg LocalCfg
	assert.Error(t, yaml.Unmarshal([]byte("id: a\nprobe:\n  mode: jitter\n"), &cfg))
}

func TestMetricKind(t *testing.T) {
	assert.Equal(t, 0.0, Bandwidth.Sentinel())
	assert.True(t, Bandwidth.IsFailure(0))
	assert.False(t, Bandwidth.IsFailure(5.2))
	assert.True(t, Latency.IsFailure(Latency.Sentinel()))
	assert.False(t, Latency.IsFailure(0))
	assert.True(t, Latency.IsFailure(-1))

	k, err := ParseMetricKind("latencia")
	require.NoError(t, err)
	assert.Equal(t, Latency, k)
	k, err = ParseMetricKind("")
	require.NoError(t, err)
	assert.Equal(t, Bandwidth, k)
}
