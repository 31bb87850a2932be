package models

// Server is the identity of the WireGuard interface itself. The record with
// the highest ID is the authoritative one.
type Server struct {
	ID          uint   `json:"-" gorm:"primaryKey"`
	PrivateKey  string `json:"-" gorm:"not null"`
	PublicKey   string `json:"public_key" gorm:"not null"`
	Address     string `json:"address" gorm:"not null"`
	AddressIPv6 string `json:"address_ipv6" gorm:"column:address_ipv6;not null"`
}

func (Server) TableName() string {
	return "server_configs"
}
