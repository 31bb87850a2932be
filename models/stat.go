package models

// Traffic holds byte counters as reported by the interface.
type Traffic struct {
	Received int64 `json:"received"`
	Sent     int64 `json:"sent"`
}

// Total returns received+sent. A nil Traffic counts as zero.
func (t *Traffic) Total() int64 {
	if t == nil {
		return 0
	}
	return t.Received + t.Sent
}

// PeerStat is the last known state of a peer as seen on the interface, keyed
// by the peer public key. The zero value means the peer is known to the
// interface but reported nothing.
type PeerStat struct {
	LastOnline string   `json:"last_online,omitempty"`
	LastIP     string   `json:"last_ip,omitempty"`
	Traffic    *Traffic `json:"traffic,omitempty"`
}

// IsEmpty reports whether no field of s was observed.
func (s PeerStat) IsEmpty() bool {
	return s.LastOnline == "" && s.LastIP == "" && s.Traffic == nil
}

// EventKind is a peer life-cycle transition.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
)

// TimeLayout is the format of PeerStat.LastOnline.
const TimeLayout = "2006-01-02 15:04:05 -0700"
