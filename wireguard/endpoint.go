package wireguard

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/stun/v2"
)

const stunTimeout = 3 * time.Second

// DiscoverPublicIP asks a STUN server for the reflexive address of this host.
// It is used to fill the client endpoint when no host is configured.
func DiscoverPublicIP(ctx context.Context, stunServerAddr string) (string, error) {
	serverAddr, err := net.ResolveUDPAddr("udp", stunServerAddr)
	if err != nil {
		return "", fmt.Errorf("failed to resolve STUN server address: %w", err)
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return "", fmt.Errorf("failed to open UDP socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(stunTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("failed to set deadline: %w", err)
	}

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if _, err := conn.WriteTo(message.Raw, serverAddr); err != nil {
		return "", fmt.Errorf("failed to send STUN request: %w", err)
	}

	buf := make([]byte, 1500)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		return "", fmt.Errorf("failed to read STUN response: %w", err)
	}

	resp := new(stun.Message)
	resp.Raw = buf[:n]
	if err := resp.Decode(); err != nil {
		return "", fmt.Errorf("failed to decode STUN response: %w", err)
	}
	if resp.Type != stun.BindingSuccess {
		return "", fmt.Errorf("STUN request was not successful: %s", resp.Type)
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(resp); err != nil {
		return "", fmt.Errorf("failed to get XOR-Mapped-Address from STUN response: %w", err)
	}
	return xorAddr.IP.String(), nil
}
