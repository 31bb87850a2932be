package ipmanager

import (
	"math"
	"net/netip"
)

func hostBits(prefix netip.Prefix) int {
	return prefix.Addr().BitLen() - prefix.Bits()
}

func capacity(bits int) int {
	if bits >= 62 {
		return math.MaxInt
	}
	return 1<<bits - 2
}

// ParseAddrs parses every non-empty string in raw, skipping what does not
// parse. A CIDR suffix is tolerated.
func ParseAddrs(raw []string) []netip.Addr {
	out := make([]netip.Addr, 0, len(raw))
	for _, s := range raw {
		if addr, ok := ParseAddr(s); ok {
			out = append(out, addr)
		}
	}
	return out
}

// ParseAddr parses s as an address, accepting "addr/bits" too.
func ParseAddr(s string) (netip.Addr, bool) {
	if s == "" {
		return netip.Addr{}, false
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap(), true
	}
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return prefix.Addr().Unmap(), true
	}
	return netip.Addr{}, false
}

// SameAddr reports whether a and b name the same address regardless of how
// they are spelled. Values that do not parse are compared as text.
func SameAddr(a, b string) bool {
	x, okA := ParseAddr(a)
	y, okB := ParseAddr(b)
	if okA && okB {
		return x == y
	}
	return a == b
}
