package models

// Peer is a VPN client identity managed by the server.
type Peer struct {
	ID           uint   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Address      string `json:"address" gorm:"uniqueIndex;not null"`
	AddressIPv6  string `json:"address_ipv6" gorm:"column:address_ipv6;uniqueIndex;not null"`
	PrivateKey   string `json:"private_key" gorm:"not null"`
	PublicKey    string `json:"public_key" gorm:"uniqueIndex;not null"`
	PresharedKey string `json:"preshared_key"`
	Enable       bool   `json:"enable" gorm:"not null"`

	// Data belongs to the API caller. It is stored as a JSON object and never
	// interpreted by the server.
	Data Data `json:"data" gorm:"type:text"`
}

func (Peer) TableName() string {
	return "client_configs"
}

// Clone returns a copy of p that shares no mutable state with it.
func (p Peer) Clone() Peer {
	p.Data = p.Data.Clone()
	return p
}
