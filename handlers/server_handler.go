package handlers

import (
	"github.com/go-logr/logr"
	"github.com/gofiber/fiber/v2"
	"github.com/leonovk/wg-rest-api/peermanager"
	"github.com/leonovk/wg-rest-api/pkg/types"
	"github.com/leonovk/wg-rest-api/wireguard"
)

// ServerHandler serves the server summary and the health check.
type ServerHandler struct {
	Peers      *peermanager.Manager
	Serializer Serializer
	Links      wireguard.LinkChecker
	Interface  string
	Version    string
	Log        logr.Logger
}

// Health handles GET /healthz
func (h *ServerHandler) Health(c *fiber.Ctx) error {
	return c.JSON(types.HealthResponse{Status: "ok", Version: h.Version})
}

// GetServer handles GET /server
func (h *ServerHandler) GetServer(c *fiber.Ctx) error {
	ctx := c.UserContext()
	server, err := h.Peers.Server(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	peers, err := h.Peers.List(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}

	up := false
	if h.Links != nil {
		if up, err = h.Links.LinkUp(h.Interface); err != nil {
			h.Log.V(1).Info("could not read interface state", "interface", h.Interface, "error", err.Error())
		}
	}

	return c.JSON(types.ServerResponse{
		Server: types.ServerInfo{
			PublicKey:   server.PublicKey,
			Address:     server.Address,
			AddressIPv6: server.AddressIPv6,
			Endpoint:    h.Serializer.Endpoint(),
		},
		ClientsCount:          len(peers),
		AvailableClientsCount: h.Peers.Capacity(),
		InterfaceUp:           up,
	})
}
