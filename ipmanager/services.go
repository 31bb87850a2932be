package ipmanager

import (
	"fmt"
	"net/netip"
	"slices"
)

// NewPool parses cidr. The network address is masked, so "10.8.0.7/24" and
// "10.8.0.0/24" describe the same pool.
func NewPool(cidr string) (*Pool, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid pool %q: %w", cidr, err)
	}
	prefix = prefix.Masked()
	if hostBits(prefix) < 2 {
		return nil, fmt.Errorf("invalid pool %q: no room for peers", cidr)
	}
	return &Pool{prefix: prefix, base: prefix.Addr().Next()}, nil
}

// Base returns the server address of the pool.
func (p *Pool) Base() netip.Addr {
	return p.base
}

// Bits returns the prefix length of the pool.
func (p *Pool) Bits() int {
	return p.prefix.Bits()
}

// Contains reports whether addr is inside the pool.
func (p *Pool) Contains(addr netip.Addr) bool {
	return p.prefix.Contains(addr)
}

// Assignable reports whether addr may be held by a peer: inside the pool and
// above the server address.
func (p *Pool) Assignable(addr netip.Addr) bool {
	addr = addr.Unmap()
	return p.Contains(addr) && p.base.Less(addr)
}

// Capacity returns how many peers fit in the pool, 2^hostbits - 2, saturated
// at the largest int.
func (p *Pool) Capacity() int {
	return capacity(hostBits(p.prefix))
}

// Next returns the lowest address above the base that is not in assigned.
// Holes left by deleted peers are filled before the pool grows.
func (p *Pool) Next(assigned []netip.Addr) (netip.Addr, error) {
	taken := make([]netip.Addr, 0, len(assigned)+1)
	taken = append(taken, p.base)
	for _, addr := range assigned {
		if p.Assignable(addr) {
			taken = append(taken, addr.Unmap())
		}
	}
	slices.SortFunc(taken, netip.Addr.Compare)
	taken = slices.Compact(taken)

	candidate := taken[len(taken)-1].Next()
	for i := 0; i < len(taken)-1; i++ {
		if next := taken[i].Next(); next != taken[i+1] {
			candidate = next
			break
		}
	}

	if !candidate.IsValid() || !p.prefix.Contains(candidate) {
		return netip.Addr{}, fmt.Errorf("%w: %s", ErrPoolExhausted, p.prefix)
	}
	return candidate, nil
}

// NewAllocator builds an allocator over an IPv4 and an IPv6 pool.
func NewAllocator(v4, v6 string) (*Allocator, error) {
	p4, err := NewPool(v4)
	if err != nil {
		return nil, err
	}
	if !p4.base.Is4() {
		return nil, fmt.Errorf("invalid pool %q: not IPv4", v4)
	}
	p6, err := NewPool(v6)
	if err != nil {
		return nil, err
	}
	if !p6.base.Is6() {
		return nil, fmt.Errorf("invalid pool %q: not IPv6", v6)
	}
	return &Allocator{V4: p4, V6: p6}, nil
}

// Capacity is bounded by the smaller of the two pools.
func (a *Allocator) Capacity() int {
	return min(a.V4.Capacity(), a.V6.Capacity())
}

// Allocate returns the next free IPv4 and IPv6 address given the addresses
// already held by peers. The capacity check runs before any search.
func (a *Allocator) Allocate(v4, v6 []netip.Addr) (netip.Addr, netip.Addr, error) {
	if max(len(v4), len(v6)) >= a.Capacity() {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%w: %d of %d in use", ErrPoolExhausted, max(len(v4), len(v6)), a.Capacity())
	}
	addr4, err := a.V4.Next(v4)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, err
	}
	addr6, err := a.V6.Next(v6)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, err
	}
	return addr4, addr6, nil
}
