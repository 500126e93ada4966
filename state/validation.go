package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

// peers are overlay addresses or host names
var peerPattern, _ = regexp.Compile("^[0-9A-Za-z._:-]+$")

// PathValidator accepts a path whose nearest existing parent is a directory. Missing parents are created on first write.
func PathValidator(s string) error {
	if s == "" {
		return fmt.Errorf("path is empty")
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		return err
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s: %s is not a directory", s, dir)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) || filepath.Dir(dir) == dir {
			return err
		}
	}
}

// DirValidator is PathValidator for a directory, which may exist already.
func DirValidator(s string) error {
	info, err := os.Stat(s)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", s)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return PathValidator(s)
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func PeerValidator(s string) error {
	if !peerPattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid peer address, must match pattern %s", s, peerPattern.String())
	}
	if len(s) > 253 {
		return fmt.Errorf("len(\"%s\") = %d > 253 is too long", s, len(s))
	}
	return nil
}

func PortValidator(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d is out of range", port)
	}
	return nil
}

func ConfigValidator(cfg *LocalCfg) error {
	err := NameValidator(string(cfg.Id))
	if err != nil {
		return err
	}
	seen := make(map[NodeId]struct{})
	for _, peer := range cfg.Peers {
		if err := PeerValidator(string(peer)); err != nil {
			return err
		}
		if _, ok := seen[peer]; ok {
			return fmt.Errorf("duplicate peer %s", peer)
		}
		if peer == cfg.Graph.Origin {
			return fmt.Errorf("peer %s collides with the origin node", peer)
		}
		seen[peer] = struct{}{}
	}
	if err := PortValidator(cfg.Probe.Port); err != nil {
		return fmt.Errorf("probe.port: %w", err)
	}
	if err := PortValidator(cfg.Transfer.Port); err != nil {
		return fmt.Errorf("transfer.port: %w", err)
	}
	if !strings.HasPrefix(cfg.Probe.Path, "/") {
		return fmt.Errorf("probe.path %q must start with /", cfg.Probe.Path)
	}
	if cfg.Probe.PayloadSize <= 0 {
		return fmt.Errorf("probe.payload_size must be positive")
	}
	if cfg.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}
	if cfg.Probe.Pacing < MinProbePacing {
		return fmt.Errorf("probe.pacing %s is below the minimum of %s", cfg.Probe.Pacing, MinProbePacing)
	}
	if cfg.Probe.Attempts < 1 {
		return fmt.Errorf("probe.attempts must be at least 1")
	}
	if cfg.Transfer.ChunkSize <= 0 {
		return fmt.Errorf("transfer.chunk_size must be positive")
	}
	if cfg.Transfer.ConnectTimeout <= 0 || cfg.Transfer.IOTimeout <= 0 {
		return fmt.Errorf("transfer timeouts must be positive")
	}
	if err := PathValidator(cfg.MetricsPath); err != nil {
		return fmt.Errorf("metrics_path: %w", err)
	}
	if cfg.LogPath != "" {
		if err := PathValidator(cfg.LogPath); err != nil {
			return fmt.Errorf("log_path: %w", err)
		}
	}
	if err := DirValidator(cfg.Transfer.ReceiveDir); err != nil {
		return fmt.Errorf("transfer.receive_dir: %w", err)
	}
	for _, p := range cfg.OverlayPrefixes {
		if !p.IsValid() {
			return fmt.Errorf("overlay prefix %s is invalid", p)
		}
	}
	return nil
}
