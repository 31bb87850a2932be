package peermanager

import (
	"bytes"
	"encoding/json"
	"maps"
	"net/netip"
	"slices"

	"github.com/leonovk/wg-rest-api/models"
)

// PeerUpdate is a partial update. Nil fields are left untouched; Data is
// merged key by key into the stored data.
type PeerUpdate struct {
	Address      *string
	AddressIPv6  *string
	PrivateKey   *string
	PublicKey    *string
	PresharedKey *string
	Enable       *bool
	Data         models.Data
}

// apply returns peer with u written over it.
func (u PeerUpdate) apply(peer models.Peer) models.Peer {
	peer = peer.Clone()
	setString(&peer.Address, u.Address)
	setString(&peer.AddressIPv6, u.AddressIPv6)
	setString(&peer.PrivateKey, u.PrivateKey)
	setString(&peer.PublicKey, u.PublicKey)
	setString(&peer.PresharedKey, u.PresharedKey)
	if u.Enable != nil {
		peer.Enable = *u.Enable
	}
	if u.Data != nil {
		peer.Data = peer.Data.Merge(u.Data)
	}
	return peer
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

var null = []byte("null")

// ParseUpdate decodes and validates a PATCH body. Only the known fields are
// accepted; "data" may be null, meaning no change.
func ParseUpdate(raw []byte) (PeerUpdate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return PeerUpdate{}, &ValidationError{Field: "body", Reason: "must be a JSON object"}
	}

	var u PeerUpdate
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		value := bytes.TrimSpace(fields[key])
		var err error
		switch key {
		case "address":
			u.Address, err = parseAddress(key, value, func(a netip.Addr) bool { return a.Is4() }, "ipv4")
		case "address_ipv6":
			u.AddressIPv6, err = parseAddress(key, value, func(a netip.Addr) bool { return a.Is6() && !a.Is4In6() }, "ipv6")
		case "private_key":
			u.PrivateKey, err = parseString(key, value)
		case "public_key":
			u.PublicKey, err = parseString(key, value)
		case "preshared_key":
			u.PresharedKey, err = parseString(key, value)
		case "enable":
			var b bool
			if bytes.Equal(value, null) || json.Unmarshal(value, &b) != nil {
				err = &ValidationError{Field: key, Reason: "must be a boolean"}
			}
			u.Enable = &b
		case "data":
			if bytes.Equal(value, null) {
				continue
			}
			var data map[string]any
			if json.Unmarshal(value, &data) != nil {
				err = &ValidationError{Field: key, Reason: "must be an object"}
			}
			u.Data = data
		default:
			err = &ValidationError{Field: key, Reason: "is not allowed"}
		}
		if err != nil {
			return PeerUpdate{}, err
		}
	}
	return u, nil
}

func parseString(field string, value []byte) (*string, error) {
	var s string
	if bytes.Equal(value, null) || json.Unmarshal(value, &s) != nil {
		return nil, &ValidationError{Field: field, Reason: "must be a string"}
	}
	return &s, nil
}

func parseAddress(field string, value []byte, ok func(netip.Addr) bool, format string) (*string, error) {
	s, err := parseString(field, value)
	if err != nil {
		return nil, err
	}
	addr, err := netip.ParseAddr(*s)
	if err != nil || !ok(addr) || addr.Zone() != "" {
		return nil, &ValidationError{Field: field, Reason: "must be an " + format + " address"}
	}
	canonical := addr.String()
	return &canonical, nil
}
