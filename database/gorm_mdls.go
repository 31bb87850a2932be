package database

import "github.com/leonovk/wg-rest-api/models"

const peerSequence = "client_configs"

// sequence backs counters that must never hand out the same value twice.
type sequence struct {
	Name  string `gorm:"primaryKey"`
	Value uint   `gorm:"not null"`
}

func (sequence) TableName() string {
	return "sequences"
}

type clientStat struct {
	ID         uint   `gorm:"primaryKey"`
	PublicKey  string `gorm:"uniqueIndex;not null"`
	LastOnline string
	LastIP     string
	HasTraffic bool `gorm:"not null"`
	Received   int64
	Sent       int64
}

func (clientStat) TableName() string {
	return "client_stats"
}

func (s clientStat) toModel() models.PeerStat {
	stat := models.PeerStat{LastOnline: s.LastOnline, LastIP: s.LastIP}
	if s.HasTraffic {
		stat.Traffic = &models.Traffic{Received: s.Received, Sent: s.Sent}
	}
	return stat
}

func newClientStat(publicKey string, stat models.PeerStat) clientStat {
	row := clientStat{
		PublicKey:  publicKey,
		LastOnline: stat.LastOnline,
		LastIP:     stat.LastIP,
	}
	if stat.Traffic != nil {
		row.HasTraffic = true
		row.Received = stat.Traffic.Received
		row.Sent = stat.Traffic.Sent
	}
	return row
}

type clientEvent struct {
	ID        uint   `gorm:"primaryKey"`
	PublicKey string `gorm:"uniqueIndex;not null"`
	Kind      string `gorm:"not null"`
}

func (clientEvent) TableName() string {
	return "client_events"
}
