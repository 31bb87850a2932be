package peermanager

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound is returned when no peer has the requested id.
	ErrConfigNotFound = errors.New("config not found")
	// ErrAddressAlreadyTaken is returned when an update would give a peer an
	// address another peer holds.
	ErrAddressAlreadyTaken = errors.New("address already taken")
	// ErrPublicKeyAlreadyTaken is returned when an update would give a peer
	// the public key of another peer.
	ErrPublicKeyAlreadyTaken = errors.New("public key already taken")
	// ErrConnectionLimitExceeded is returned when the address pool is full.
	ErrConnectionLimitExceeded = errors.New("connection limit exceeded")
)

// ValidationError reports a malformed update payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}
