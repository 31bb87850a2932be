package types

import "github.com/leonovk/wg-rest-api/models"

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Client is a peer as returned by the API, ready to be turned into a client
// config file.
type Client struct {
	ID                  uint            `json:"id"`
	ServerPublicKey     string          `json:"server_public_key"`
	Address             string          `json:"address"`
	AddressIPv6         string          `json:"address_ipv6"`
	PrivateKey          string          `json:"private_key"`
	PublicKey           string          `json:"public_key"`
	PresharedKey        string          `json:"preshared_key"`
	Enable              bool            `json:"enable"`
	AllowedIPs          string          `json:"allowed_ips"`
	DNS                 string          `json:"dns"`
	PersistentKeepalive int             `json:"persistent_keepalive"`
	Endpoint            string          `json:"endpoint"`
	LastOnline          *string         `json:"last_online"`
	LastIP              *string         `json:"last_ip"`
	Traffic             *models.Traffic `json:"traffic"`
	Data                models.Data     `json:"data"`
}

type ServerInfo struct {
	PublicKey   string `json:"public_key"`
	Address     string `json:"address"`
	AddressIPv6 string `json:"address_ipv6"`
	Endpoint    string `json:"endpoint"`
}

type ServerResponse struct {
	Server                ServerInfo `json:"server"`
	ClientsCount          int        `json:"clients_count"`
	AvailableClientsCount int        `json:"available_clients_count"`
	InterfaceUp           bool       `json:"interface_up"`
}

type DeleteInactiveResponse struct {
	DeletedCount   int      `json:"deleted_count"`
	DeletedClients []Client `json:"deleted_clients"`
}
