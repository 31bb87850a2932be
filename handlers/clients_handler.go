package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/gofiber/fiber/v2"
	"github.com/leonovk/wg-rest-api/models"
	"github.com/leonovk/wg-rest-api/peermanager"
	"github.com/leonovk/wg-rest-api/pkg/types"
	"github.com/leonovk/wg-rest-api/repositories"
)

// ClientHandler serves the /clients resource.
type ClientHandler struct {
	Peers      *peermanager.Manager
	Stats      repositories.StatRepository
	Serializer Serializer
	Log        logr.Logger
	Now        func() time.Time
}

func NewClientHandler(peers *peermanager.Manager, stats repositories.StatRepository, serializer Serializer, log logr.Logger) *ClientHandler {
	return &ClientHandler{
		Peers:      peers,
		Stats:      stats,
		Serializer: serializer,
		Log:        log,
		Now:        time.Now,
	}
}

// ListClients handles GET /clients
func (h *ClientHandler) ListClients(c *fiber.Ctx) error {
	ctx := c.UserContext()
	peers, err := h.Peers.List(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	server, stats, err := h.loadState(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(h.Serializer.Clients(peers, server.PublicKey, stats))
}

// GetClient handles GET /clients/:id
func (h *ClientHandler) GetClient(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	peer, err := h.Peers.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.writeClient(c, http.StatusOK, peer)
}

// CreateClient handles POST /clients. The body becomes the client data.
func (h *ClientHandler) CreateClient(c *fiber.Ctx) error {
	data, err := parseData(c.Body())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	peer, err := h.Peers.Create(c.UserContext(), data)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.writeClient(c, http.StatusCreated, peer)
}

// UpdateClient handles PATCH /clients/:id
func (h *ClientHandler) UpdateClient(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	update, err := peermanager.ParseUpdate(c.Body())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	peer, err := h.Peers.Update(c.UserContext(), id, update)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.writeClient(c, http.StatusOK, peer)
}

// DeleteClient handles DELETE /clients/:id
func (h *ClientHandler) DeleteClient(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Peers.Delete(c.UserContext(), id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(fiber.Map{})
}

// DeleteInactiveClients handles DELETE /clients/inactive?days=N
func (h *ClientHandler) DeleteInactiveClients(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		return writeError(c, h.Log, &peermanager.ValidationError{Field: "days", Reason: "must be a positive integer"})
	}

	ctx := c.UserContext()
	server, stats, err := h.loadState(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	cutoff := h.Now().Add(-time.Duration(days) * 24 * time.Hour)
	deleted, err := h.Peers.DeleteInactive(ctx, stats, cutoff)
	if err != nil {
		return writeError(c, h.Log, err)
	}

	return c.JSON(types.DeleteInactiveResponse{
		DeletedCount:   len(deleted),
		DeletedClients: h.Serializer.Clients(deleted, server.PublicKey, stats),
	})
}

func (h *ClientHandler) writeClient(c *fiber.Ctx, status int, peer models.Peer) error {
	server, stats, err := h.loadState(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.Status(status).JSON(h.Serializer.Client(peer, server.PublicKey, stats[peer.PublicKey]))
}

// loadState loads the server identity and the last known stats.
func (h *ClientHandler) loadState(c *fiber.Ctx) (models.Server, map[string]models.PeerStat, error) {
	ctx := c.UserContext()
	server, err := h.Peers.Server(ctx)
	if err != nil {
		return models.Server{}, nil, err
	}
	stats, err := h.Stats.LoadStats(ctx)
	if err != nil {
		return models.Server{}, nil, err
	}
	return server, stats, nil
}

// clientID parses the :id parameter. Ids that cannot exist are not found.
func clientID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, peermanager.ErrConfigNotFound
	}
	return uint(id), nil
}

func parseData(body []byte) (models.Data, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return models.Data{}, nil
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil || data == nil {
		return nil, &peermanager.ValidationError{Field: "body", Reason: "must be a JSON object"}
	}
	return data, nil
}
