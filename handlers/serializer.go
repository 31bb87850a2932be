package handlers

import (
	"fmt"

	"github.com/leonovk/wg-rest-api/models"
	"github.com/leonovk/wg-rest-api/pkg/types"
)

// Serializer adds the server-wide client settings to stored peers.
type Serializer struct {
	PrefixV4            int
	PrefixV6            int
	AllowedIPs          string
	DNS                 string
	PersistentKeepalive int
	Host                string
	Port                int
}

func (s Serializer) Client(peer models.Peer, serverPublicKey string, stat models.PeerStat) types.Client {
	client := types.Client{
		ID:                  peer.ID,
		ServerPublicKey:     serverPublicKey,
		Address:             fmt.Sprintf("%s/%d", peer.Address, s.PrefixV4),
		AddressIPv6:         fmt.Sprintf("%s/%d", peer.AddressIPv6, s.PrefixV6),
		PrivateKey:          peer.PrivateKey,
		PublicKey:           peer.PublicKey,
		PresharedKey:        peer.PresharedKey,
		Enable:              peer.Enable,
		AllowedIPs:          s.AllowedIPs,
		DNS:                 s.DNS,
		PersistentKeepalive: s.PersistentKeepalive,
		Endpoint:            s.Endpoint(),
		Traffic:             stat.Traffic,
		Data:                peer.Data,
	}
	if client.Data == nil {
		client.Data = models.Data{}
	}
	if stat.LastOnline != "" {
		client.LastOnline = &stat.LastOnline
	}
	if stat.LastIP != "" {
		client.LastIP = &stat.LastIP
	}
	return client
}

func (s Serializer) Clients(peers []models.Peer, serverPublicKey string, stats map[string]models.PeerStat) []types.Client {
	out := make([]types.Client, 0, len(peers))
	for _, peer := range peers {
		out = append(out, s.Client(peer, serverPublicKey, stats[peer.PublicKey]))
	}
	return out
}

// Endpoint is the host:port clients connect to.
func (s Serializer) Endpoint() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
