package wireguard

import (
	"context"
	"fmt"
	"net"

	"github.com/go-logr/logr"
	"github.com/leonovk/wg-rest-api/models"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// WGController allows querying and configuring WG devices. *wgctrl.Client
// satisfies it.
type WGController interface {
	Device(name string) (*wgtypes.Device, error)
	ConfigureDevice(name string, cfg wgtypes.Config) error
}

// DeviceStatus reads peer statistics straight from the kernel through
// wgctrl instead of parsing "wg show" output.
type DeviceStatus struct {
	Ctrl      WGController
	Interface string
}

// Snapshot returns one record per configured peer. Peers without a
// handshake and without traffic get an empty record.
func (s DeviceStatus) Snapshot(_ context.Context) (map[string]models.PeerStat, error) {
	device, err := s.Ctrl.Device(s.Interface)
	if err != nil {
		return nil, fmt.Errorf("get wg device %s: %w", s.Interface, err)
	}

	stats := make(map[string]models.PeerStat, len(device.Peers))
	for _, peer := range device.Peers {
		var stat models.PeerStat
		if !peer.LastHandshakeTime.IsZero() {
			stat.LastOnline = peer.LastHandshakeTime.Format(models.TimeLayout)
		}
		if peer.Endpoint != nil {
			stat.LastIP = peer.Endpoint.IP.String()
		}
		if peer.ReceiveBytes != 0 || peer.TransmitBytes != 0 {
			stat.Traffic = &models.Traffic{Received: peer.ReceiveBytes, Sent: peer.TransmitBytes}
		}
		stats[peer.PublicKey.String()] = stat
	}
	return stats, nil
}

// WgctrlReloader pushes the peer set to the running interface, replacing
// whatever peers it had.
type WgctrlReloader struct {
	Ctrl       WGController
	Interface  string
	ListenPort int
	Log        logr.Logger
}

func (r WgctrlReloader) Reload(_ context.Context, server models.Server, peers []models.Peer) error {
	privateKey, err := wgtypes.ParseKey(server.PrivateKey)
	if err != nil {
		return fmt.Errorf("invalid server private key: %w", err)
	}

	port := r.ListenPort
	cfg := wgtypes.Config{
		PrivateKey:   &privateKey,
		ListenPort:   &port,
		ReplacePeers: true,
		Peers:        make([]wgtypes.PeerConfig, 0, len(peers)),
	}
	for _, peer := range peers {
		if !peer.Enable {
			continue
		}
		peerCfg, err := buildPeerConfig(peer)
		if err != nil {
			r.Log.Error(err, "skipping peer", "id", peer.ID)
			continue
		}
		cfg.Peers = append(cfg.Peers, peerCfg)
	}

	if err := r.Ctrl.ConfigureDevice(r.Interface, cfg); err != nil {
		return fmt.Errorf("failed to configure device %s: %w", r.Interface, err)
	}
	r.Log.Info("wireguard peers synced", "interface", r.Interface, "peers", len(cfg.Peers))
	return nil
}

func buildPeerConfig(peer models.Peer) (wgtypes.PeerConfig, error) {
	publicKey, err := wgtypes.ParseKey(peer.PublicKey)
	if err != nil {
		return wgtypes.PeerConfig{}, fmt.Errorf("invalid public key: %w", err)
	}

	peerCfg := wgtypes.PeerConfig{
		PublicKey:         publicKey,
		ReplaceAllowedIPs: true,
	}
	if peer.PresharedKey != "" {
		psk, err := wgtypes.ParseKey(peer.PresharedKey)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("invalid preshared key: %w", err)
		}
		peerCfg.PresharedKey = &psk
	}

	for _, cidr := range allowedIPs(peer) {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("invalid allowed IP %s: %w", cidr, err)
		}
		peerCfg.AllowedIPs = append(peerCfg.AllowedIPs, *ipNet)
	}
	return peerCfg, nil
}
