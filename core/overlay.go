package core

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/gaissmai/bart"
)

// GetIfIP returns the first address of the given family assigned to the interface
func GetIfIP(itf string, is6 bool) (string, error) {
	ifp, err := net.InterfaceByName(itf)
	if err != nil {
		return "", err
	}

	addrs, err := ifp.Addrs()
	if err != nil {
		return "", err
	}

	for _, address := range addrs {
		pfx, err := netip.ParsePrefix(address.String())
		if err != nil {
			continue
		}
		addr := pfx.Addr()
		if addr.Is6() && is6 {
			return addr.String(), nil
		}
		if addr.Is4() && !is6 {
			return addr.String(), nil
		}
	}
	return "", fmt.Errorf("no address found for interface %s", itf)
}

// OverlayTable matches addresses against the address ranges of the overlay network.
type OverlayTable struct {
	table bart.Table[netip.Prefix]
}

func NewOverlayTable(prefixes []netip.Prefix) *OverlayTable {
	t := &OverlayTable{}
	for _, p := range prefixes {
		p = p.Masked()
		t.table.Insert(p, p)
	}
	return t
}

// Match returns the overlay prefix containing addr
func (t *OverlayTable) Match(addr netip.Addr) (netip.Prefix, bool) {
	return t.table.Lookup(addr.Unmap())
}

// Select returns the first of addrs inside the overlay network
func (t *OverlayTable) Select(addrs []netip.Addr) (netip.Addr, bool) {
	for _, a := range addrs {
		if _, ok := t.Match(a); ok {
			return a.Unmap(), true
		}
	}
	return netip.Addr{}, false
}

func interfaceAddrs() ([]netip.Addr, error) {
	raw, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	out := make([]netip.Addr, 0, len(raw))
	for _, a := range raw {
		pfx, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		out = append(out, pfx.Addr())
	}
	return out, nil
}

// DetectOverlayAddr finds the local address peers of the overlay network can reach this host on.
func DetectOverlayAddr(prefixes []netip.Prefix) (netip.Addr, error) {
	addrs, err := interfaceAddrs()
	if err != nil {
		return netip.Addr{}, err
	}
	if a, ok := NewOverlayTable(prefixes).Select(addrs); ok {
		return a, nil
	}
	return netip.Addr{}, fmt.Errorf("no local address inside overlay prefixes %v", prefixes)
}
