package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/leonovk/wg-rest-api/models"
	"github.com/leonovk/wg-rest-api/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements repositories.PeerRepository and
// repositories.StatRepository on top of gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LatestServer retrieves the most recently inserted server identity.
func (r *Repository) LatestServer(ctx context.Context) (models.Server, error) {
	var server models.Server
	err := r.db.WithContext(ctx).Order("id desc").First(&server).Error
	return server, translate(err)
}

func (r *Repository) InsertServer(ctx context.Context, server *models.Server) error {
	return translate(r.db.WithContext(ctx).Create(server).Error)
}

// NextPeerID bumps the peer counter. The counter is seeded from the highest
// stored id the first time it is used.
func (r *Repository) NextPeerID(ctx context.Context) (uint, error) {
	var seq sequence
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&sequence{}).
			Where("name = ?", peerSequence).
			UpdateColumn("value", gorm.Expr("value + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var maxID uint
			if err := tx.Model(&models.Peer{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
				return err
			}
			if err := tx.Create(&sequence{Name: peerSequence, Value: maxID + 1}).Error; err != nil {
				return err
			}
		}
		return tx.Where("name = ?", peerSequence).First(&seq).Error
	})
	if err != nil {
		return 0, fmt.Errorf("next peer id: %w", translate(err))
	}
	return seq.Value, nil
}

// InsertPeer saves a new peer record.
func (r *Repository) InsertPeer(ctx context.Context, peer *models.Peer) error {
	return translate(r.db.WithContext(ctx).Create(peer).Error)
}

func (r *Repository) FindPeer(ctx context.Context, id uint) (models.Peer, error) {
	var peer models.Peer
	err := r.db.WithContext(ctx).First(&peer, id).Error
	return peer, translate(err)
}

// UpdatePeer overwrites every column of an existing peer.
func (r *Repository) UpdatePeer(ctx context.Context, peer models.Peer) error {
	res := r.db.WithContext(ctx).
		Model(&models.Peer{ID: peer.ID}).
		Select("address", "address_ipv6", "private_key", "public_key", "preshared_key", "enable", "data").
		Updates(&peer)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *Repository) DeletePeer(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Peer{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *Repository) ListPeers(ctx context.Context) ([]models.Peer, error) {
	var peers []models.Peer
	err := r.db.WithContext(ctx).Order("id").Find(&peers).Error
	return peers, translate(err)
}

func (r *Repository) LoadStats(ctx context.Context) (map[string]models.PeerStat, error) {
	var rows []clientStat
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	stats := make(map[string]models.PeerStat, len(rows))
	for _, row := range rows {
		stats[row.PublicKey] = row.toModel()
	}
	return stats, nil
}

// SaveStats upserts one row per public key.
func (r *Repository) SaveStats(ctx context.Context, stats map[string]models.PeerStat) error {
	if len(stats) == 0 {
		return nil
	}
	rows := make([]clientStat, 0, len(stats))
	for publicKey, stat := range stats {
		rows = append(rows, newClientStat(publicKey, stat))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PublicKey < rows[j].PublicKey })

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "public_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_online", "last_ip", "has_traffic", "received", "sent"}),
	}).Create(&rows).Error
	return translate(err)
}

func (r *Repository) LoadEvents(ctx context.Context) (map[string]models.EventKind, error) {
	var rows []clientEvent
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	events := make(map[string]models.EventKind, len(rows))
	for _, row := range rows {
		events[row.PublicKey] = models.EventKind(row.Kind)
	}
	return events, nil
}

func (r *Repository) SaveEvents(ctx context.Context, events map[string]models.EventKind) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]clientEvent, 0, len(events))
	for publicKey, kind := range events {
		rows = append(rows, clientEvent{PublicKey: publicKey, Kind: string(kind)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PublicKey < rows[j].PublicKey })

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "public_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind"}),
	}).Create(&rows).Error
	return translate(err)
}

// translate maps gorm errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", repositories.ErrConflict, err)
	default:
		return err
	}
}
