package ipmanager

import (
	"errors"
	"net/netip"
)

// ErrPoolExhausted is returned when no address is left in a pool.
var ErrPoolExhausted = errors.New("address pool exhausted")

// Pool is a CIDR range whose first usable address is reserved for the
// server. Peers get addresses strictly above it.
type Pool struct {
	prefix netip.Prefix
	base   netip.Addr
}

// Allocator hands out one address per family for a new peer.
type Allocator struct {
	V4 *Pool
	V6 *Pool
}
