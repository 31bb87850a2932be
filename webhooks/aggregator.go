// Package webhooks derives peer life-cycle events from consecutive
// statistics snapshots and delivers them to an HTTP sink.
package webhooks

import (
	"maps"
	"slices"

	"github.com/leonovk/wg-rest-api/models"
)

// Event is the payload POSTed to the webhook sink.
type Event struct {
	Peer  string           `json:"peer"`
	Event models.EventKind `json:"event"`
}

// Aggregate compares the persisted stats (last) with a fresh observation and
// derives at most one event per peer. The returned slice has one entry per
// peer in fresh, sorted by public key, with nil for peers that produced no
// event. The returned map is lastEvents updated with what was emitted and is
// meant to be persisted for the next pass; lastEvents itself is not modified.
func Aggregate(last, fresh map[string]models.PeerStat, lastEvents map[string]models.EventKind) ([]*Event, map[string]models.EventKind) {
	events := make([]*Event, 0, len(fresh))
	updated := maps.Clone(lastEvents)
	if updated == nil {
		updated = make(map[string]models.EventKind)
	}

	for _, peer := range slices.Sorted(maps.Keys(fresh)) {
		kind, ok := transition(last[peer], fresh[peer], updated[peer])
		if !ok {
			events = append(events, nil)
			continue
		}
		updated[peer] = kind
		events = append(events, &Event{Peer: peer, Event: kind})
	}
	return events, updated
}

func transition(last, fresh models.PeerStat, lastEvent models.EventKind) (models.EventKind, bool) {
	if fresh.IsEmpty() {
		return "", false
	}
	if last.IsEmpty() {
		return models.EventConnected, true
	}

	oldTotal, newTotal := last.Traffic.Total(), fresh.Traffic.Total()
	switch {
	case newTotal > oldTotal && lastEvent != models.EventConnected:
		return models.EventConnected, true
	case newTotal == oldTotal && lastEvent == models.EventConnected:
		return models.EventDisconnected, true
	}
	// A smaller total means the interface counters were reset.
	return "", false
}

// Compact drops the nil placeholders returned by Aggregate.
func Compact(events []*Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}
