package stats

import "github.com/leonovk/wg-rest-api/models"

// Reconcile merges a fresh observation into the persisted snapshot and
// returns the snapshot to persist next.
//
// Counters are replaced, not accumulated: a fresh traffic value overwrites
// the stored one. A fresh empty record never overwrites a stored non-empty
// one, so momentary gaps in the status output do not lose data. Peers that
// are only in prior are kept.
func Reconcile(prior, fresh map[string]models.PeerStat) map[string]models.PeerStat {
	next := make(map[string]models.PeerStat, max(len(prior), len(fresh)))
	for key, stat := range prior {
		next[key] = stat
	}

	for key, observed := range fresh {
		stored, ok := prior[key]
		switch {
		case !ok || stored.IsEmpty():
			next[key] = observed
		case observed.IsEmpty():
		default:
			next[key] = merge(stored, observed)
		}
	}
	return next
}

func merge(stored, observed models.PeerStat) models.PeerStat {
	if observed.LastOnline != "" {
		stored.LastOnline = observed.LastOnline
	}
	if observed.LastIP != "" {
		stored.LastIP = observed.LastIP
	}
	if observed.Traffic != nil {
		traffic := *observed.Traffic
		stored.Traffic = &traffic
	}
	return stored
}
