package wireguard

import (
	"fmt"
	"strings"

	"github.com/leonovk/wg-rest-api/models"
)

// RenderOptions are the interface settings that do not live in the store.
type RenderOptions struct {
	ListenPort int
	PrefixV4   int
	PrefixV6   int
	PostUp     string
	PostDown   string
}

// Render produces the wg-quick configuration for the server and its enabled
// peers, in the order given.
func Render(opts RenderOptions, server models.Server, peers []models.Peer) string {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", server.PrivateKey)
	fmt.Fprintf(&b, "Address = %s/%d, %s/%d\n", server.Address, opts.PrefixV4, server.AddressIPv6, opts.PrefixV6)
	fmt.Fprintf(&b, "ListenPort = %d\n", opts.ListenPort)
	if opts.PostUp != "" {
		fmt.Fprintf(&b, "PostUp = %s\n", opts.PostUp)
	}
	if opts.PostDown != "" {
		fmt.Fprintf(&b, "PostDown = %s\n", opts.PostDown)
	}

	for _, peer := range peers {
		if !peer.Enable {
			continue
		}
		b.WriteString("\n[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", peer.PublicKey)
		if peer.PresharedKey != "" {
			fmt.Fprintf(&b, "PresharedKey = %s\n", peer.PresharedKey)
		}
		fmt.Fprintf(&b, "AllowedIPs = %s\n", strings.Join(allowedIPs(peer), ", "))
	}

	return b.String()
}

func allowedIPs(peer models.Peer) []string {
	ips := make([]string, 0, 2)
	if peer.Address != "" {
		ips = append(ips, peer.Address+"/32")
	}
	if peer.AddressIPv6 != "" {
		ips = append(ips, peer.AddressIPv6+"/128")
	}
	return ips
}
