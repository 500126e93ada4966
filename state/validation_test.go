package state

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("1A"))
	assert.Error(t, NameValidator("node name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator("abcd-a.com\\hi"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func TestPeerValidator(t *testing.T) {
	assert.NoError(t, PeerValidator("25.3.10.4"))
	assert.NoError(t, PeerValidator("fd00::1"))
	assert.NoError(t, PeerValidator("Node-B.local"))
	assert.Error(t, PeerValidator(""))
	assert.Error(t, PeerValidator("a b"))
	assert.Error(t, PeerValidator("a|b"))
	assert.Error(t, PeerValidator(strings.Repeat("a", 254)))
}

func validConfig() *LocalCfg {
	cfg := SampleConfig("node1", []NodeId{"25.0.0.2", "25.0.0.3"})
	return &cfg
}

func TestConfigValidator_Sample(t *testing.T) {
	assert.NoError(t, ConfigValidator(validConfig()))
}

func TestPathValidator(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	assert.NoError(t, PathValidator(filepath.Join(dir, "out.json")))
	assert.NoError(t, PathValidator(filepath.Join(dir, "a", "b", "out.json")))
	assert.NoError(t, PathValidator("resultados/out.json"))
	assert.ErrorContains(t, PathValidator(filepath.Join(file, "out.json")), "is not a directory")
	assert.ErrorContains(t, PathValidator(filepath.Join(file, "a", "out.json")), "is not a directory")
	assert.Error(t, PathValidator(""))
}

func TestDirValidator(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	assert.NoError(t, DirValidator(dir))
	assert.NoError(t, DirValidator(filepath.Join(dir, "new")))
	assert.ErrorContains(t, DirValidator(file), "is not a directory")
	assert.ErrorContains(t, DirValidator(filepath.Join(file, "sub")), "is not a directory")
}

func TestConfigValidator_Invalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	tests := []struct {
		name   string
		modify func(cfg *LocalCfg)
		errMsg string
	}{
		{"duplicate peer", func(cfg *LocalCfg) { cfg.Peers = append(cfg.Peers, "25.0.0.2") }, "duplicate peer"},
		{"peer is origin", func(cfg *LocalCfg) { cfg.Peers = append(cfg.Peers, cfg.Graph.Origin) }, "collides with the origin"},
		{"bad probe port", func(cfg *LocalCfg) { cfg.Probe.Port = 70000 }, "probe.port"},
		{"bad transfer port", func(cfg *LocalCfg) { cfg.Transfer.Port = -1 }, "transfer.port"},
		{"relative path", func(cfg *LocalCfg) { cfg.Probe.Path = "10MB.bin" }, "must start with /"},
		{"no payload", func(cfg *LocalCfg) { cfg.Probe.PayloadSize = 0 }, "payload_size"},
		{"fast pacing", func(cfg *LocalCfg) { cfg.Probe.Pacing = 10 * time.Millisecond }, "below the minimum"},
		{"no attempts", func(cfg *LocalCfg) { cfg.Probe.Attempts = 0 }, "attempts"},
		{"no chunk", func(cfg *LocalCfg) { cfg.Transfer.ChunkSize = 0 }, "chunk_size"},
		{"bad prefix", func(cfg *LocalCfg) { cfg.OverlayPrefixes = []netip.Prefix{{}} }, "invalid"},
		{"metrics under a file", func(cfg *LocalCfg) { cfg.MetricsPath = filepath.Join(file, "m.json") }, "metrics_path"},
		{"no metrics path", func(cfg *LocalCfg) { cfg.MetricsPath = "" }, "metrics_path"},
		{"log under a file", func(cfg *LocalCfg) { cfg.LogPath = filepath.Join(file, "node.log") }, "log_path"},
		{"receive dir is a file", func(cfg *LocalCfg) { cfg.Transfer.ReceiveDir = file }, "transfer.receive_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			assert.ErrorContains(t, ConfigValidator(cfg), tt.errMsg)
		})
	}
}
