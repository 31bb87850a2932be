package ipmanager

import (
	"errors"
	"net/netip"
	"testing"
)

func addrs(t *testing.T, raw ...string) []netip.Addr {
	t.Helper()
	out := make([]netip.Addr, 0, len(raw))
	for _, s := range raw {
		out = append(out, netip.MustParseAddr(s))
	}
	return out
}

func TestPoolNextEmpty(t *testing.T) {
	pool, err := NewPool("10.8.0.0/24")
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if got := pool.Base(); got != netip.MustParseAddr("10.8.0.1") {
		t.Fatalf("unexpected base: %s", got)
	}

	got, err := pool.Next(nil)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != netip.MustParseAddr("10.8.0.2") {
		t.Fatalf("expected 10.8.0.2, got %s", got)
	}
}

func TestPoolNextFillsGap(t *testing.T) {
	pool, err := NewPool("10.8.0.0/24")
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	got, err := pool.Next(addrs(t, "10.8.0.4", "10.8.0.2"))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != netip.MustParseAddr("10.8.0.3") {
		t.Fatalf("expected gap 10.8.0.3, got %s", got)
	}

	got, err = pool.Next(addrs(t, "10.8.0.2", "10.8.0.3", "10.8.0.4"))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != netip.MustParseAddr("10.8.0.5") {
		t.Fatalf("expected 10.8.0.5, got %s", got)
	}

	got, err = pool.Next(addrs(t, "10.8.0.3"))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != netip.MustParseAddr("10.8.0.2") {
		t.Fatalf("expected first slot 10.8.0.2, got %s", got)
	}
}

func TestPoolNextIgnoresForeignAddresses(t *testing.T) {
	pool, err := NewPool("10.8.0.0/24")
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	got, err := pool.Next(addrs(t, "192.168.1.1", "10.8.0.1", "10.8.0.2", "10.8.0.2"))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != netip.MustParseAddr("10.8.0.3") {
		t.Fatalf("expected 10.8.0.3, got %s", got)
	}
}

func TestPoolNextIPv6(t *testing.T) {
	pool, err := NewPool("fdcc:ad94:bacf:61a4::cafe:0/112")
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	got, err := pool.Next(addrs(t, "fdcc:ad94:bacf:61a4::cafe:2", "fdcc:ad94:bacf:61a4::cafe:4"))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != netip.MustParseAddr("fdcc:ad94:bacf:61a4::cafe:3") {
		t.Fatalf("expected ::cafe:3, got %s", got)
	}
	if pool.Capacity() != 1<<16-2 {
		t.Fatalf("unexpected capacity %d", pool.Capacity())
	}
}

func TestAllocatorExhaustion(t *testing.T) {
	alloc, err := NewAllocator("10.8.0.0/29", "fd00::/112")
	if err != nil {
		t.Fatalf("NewAllocator failed: %v", err)
	}
	if alloc.Capacity() != 6 {
		t.Fatalf("expected capacity 6, got %d", alloc.Capacity())
	}

	var v4, v6 []netip.Addr
	for i := 0; i < alloc.Capacity(); i++ {
		a4, a6, err := alloc.Allocate(v4, v6)
		if err != nil {
			t.Fatalf("allocation %d failed: %v", i+1, err)
		}
		v4 = append(v4, a4)
		v6 = append(v6, a6)
	}
	if last := v4[len(v4)-1]; last != netip.MustParseAddr("10.8.0.7") {
		t.Fatalf("expected last address 10.8.0.7, got %s", last)
	}

	if _, _, err := alloc.Allocate(v4, v6); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestAllocatorCapacityUsesSmallerPool(t *testing.T) {
	alloc, err := NewAllocator("10.8.0.0/24", "fd00::/126")
	if err != nil {
		t.Fatalf("NewAllocator failed: %v", err)
	}
	if alloc.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", alloc.Capacity())
	}
}

func TestNewAllocatorRejectsWrongFamily(t *testing.T) {
	if _, err := NewAllocator("fd00::/112", "fd01::/112"); err == nil {
		t.Fatal("expected error for IPv6 pool in IPv4 slot")
	}
	if _, err := NewPool("10.0.0.1/32"); err == nil {
		t.Fatal("expected error for pool without host bits")
	}
}

func TestParseAddrAcceptsPrefix(t *testing.T) {
	got := ParseAddrs([]string{"10.8.0.2/24", "", "bogus", "fd00::2"})
	if len(got) != 2 {
		t.Fatalf("expected 2 addresses, got %v", got)
	}
	if got[0] != netip.MustParseAddr("10.8.0.2") {
		t.Fatalf("unexpected first address %s", got[0])
	}
}

func TestPoolAssignable(t *testing.T) {
	pool, err := NewPool("10.8.0.0/24")
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	tests := []struct {
		addr string
		want bool
	}{
		{"10.8.0.0", false},
		{"10.8.0.1", false},
		{"10.8.0.2", true},
		{"10.8.0.254", true},
		{"10.9.0.2", false},
		{"::ffff:10.8.0.7", true},
	}
	for _, tt := range tests {
		if got := pool.Assignable(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Fatalf("Assignable(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestSameAddr(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"fdcc::3", "FDCC:0::3", true},
		{"fdcc::3", "fdcc:0:0:0:0:0:0:3", true},
		{"10.8.0.2", "10.8.0.2/24", true},
		{"fdcc::3", "fdcc::4", false},
		{"", "", true},
		{"bogus", "10.8.0.2", false},
	}
	for _, tt := range tests {
		if got := SameAddr(tt.a, tt.b); got != tt.want {
			t.Fatalf("SameAddr(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
