package repositories

import (
	"context"
	"errors"

	"github.com/leonovk/wg-rest-api/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would break a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violated")
)

// PeerRepository persists the server identity and the peer table.
type PeerRepository interface {
	LatestServer(ctx context.Context) (models.Server, error)
	InsertServer(ctx context.Context, server *models.Server) error

	// NextPeerID advances the peer id counter. Ids handed out are never
	// returned again, even when the insert that follows fails.
	NextPeerID(ctx context.Context) (uint, error)
	InsertPeer(ctx context.Context, peer *models.Peer) error
	FindPeer(ctx context.Context, id uint) (models.Peer, error)
	UpdatePeer(ctx context.Context, peer models.Peer) error
	DeletePeer(ctx context.Context, id uint) error
	ListPeers(ctx context.Context) ([]models.Peer, error)
}

// StatRepository persists the last known peer statistics and the last
// emitted life-cycle event, both keyed by peer public key.
type StatRepository interface {
	LoadStats(ctx context.Context) (map[string]models.PeerStat, error)
	SaveStats(ctx context.Context, stats map[string]models.PeerStat) error
	LoadEvents(ctx context.Context) (map[string]models.EventKind, error)
	SaveEvents(ctx context.Context, events map[string]models.EventKind) error
}
