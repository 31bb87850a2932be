// Package peermanager owns the peer life cycle: address allocation, key
// generation, partial updates and keeping the interface config in sync.
package peermanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/leonovk/wg-rest-api/ipmanager"
	"github.com/leonovk/wg-rest-api/models"
	"github.com/leonovk/wg-rest-api/repositories"
	"github.com/leonovk/wg-rest-api/wireguard"
)

const maxCreateAttempts = 3

// ConfigSyncer writes the interface config after the peer set changed.
// *wireguard.ConfigUpdater satisfies it.
type ConfigSyncer interface {
	Sync(ctx context.Context, server models.Server, peers []models.Peer) error
}

// Manager serializes mutations with a single lock. Every operation reads the
// current state from the repository; nothing is cached.
type Manager struct {
	mu     sync.Mutex
	repo   repositories.PeerRepository
	alloc  *ipmanager.Allocator
	keys   wireguard.KeyGenerator
	syncer ConfigSyncer
	log    logr.Logger
}

func New(repo repositories.PeerRepository, alloc *ipmanager.Allocator, keys wireguard.KeyGenerator, syncer ConfigSyncer, log logr.Logger) *Manager {
	return &Manager{
		repo:   repo,
		alloc:  alloc,
		keys:   keys,
		syncer: syncer,
		log:    log,
	}
}

// Initialize creates the server identity on first boot and returns the
// authoritative one.
func (m *Manager) Initialize(ctx context.Context) (models.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	server, err := m.repo.LatestServer(ctx)
	if err == nil {
		return server, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.Server{}, fmt.Errorf("load server config: %w", err)
	}

	privateKey, err := m.keys.PrivateKey(ctx)
	if err != nil {
		return models.Server{}, fmt.Errorf("generate server key: %w", err)
	}
	publicKey, err := m.keys.PublicKey(ctx, privateKey)
	if err != nil {
		return models.Server{}, fmt.Errorf("derive server public key: %w", err)
	}

	server = models.Server{
		PrivateKey:  privateKey,
		PublicKey:   publicKey,
		Address:     m.alloc.V4.Base().String(),
		AddressIPv6: m.alloc.V6.Base().String(),
	}
	if err := m.repo.InsertServer(ctx, &server); err != nil {
		return models.Server{}, fmt.Errorf("save server config: %w", err)
	}
	m.log.Info("created server identity", "public_key", server.PublicKey, "address", server.Address, "address_ipv6", server.AddressIPv6)
	return server, nil
}

// Server returns the current server identity.
func (m *Manager) Server(ctx context.Context) (models.Server, error) {
	server, err := m.repo.LatestServer(ctx)
	if err != nil {
		return models.Server{}, fmt.Errorf("load server config: %w", err)
	}
	return server, nil
}

// Sync rewrites the interface config from the stored state.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sync(ctx)
}

// Create allocates addresses and keys for a new enabled peer carrying data.
func (m *Manager) Create(ctx context.Context, data models.Data) (models.Peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 1; ; attempt++ {
		peer, err := m.create(ctx, data)
		if err == nil {
			m.log.Info("peer created", "id", peer.ID, "address", peer.Address, "address_ipv6", peer.AddressIPv6)
			return peer, m.sync(ctx)
		}
		if !errors.Is(err, repositories.ErrConflict) || attempt == maxCreateAttempts {
			return models.Peer{}, err
		}
		m.log.V(1).Info("allocation raced with another writer, retrying", "attempt", attempt, "error", err.Error())
	}
}

func (m *Manager) create(ctx context.Context, data models.Data) (models.Peer, error) {
	peers, err := m.repo.ListPeers(ctx)
	if err != nil {
		return models.Peer{}, fmt.Errorf("list peers: %w", err)
	}

	v4 := make([]string, 0, len(peers))
	v6 := make([]string, 0, len(peers))
	for _, p := range peers {
		v4 = append(v4, p.Address)
		v6 = append(v6, p.AddressIPv6)
	}
	addr4, addr6, err := m.alloc.Allocate(ipmanager.ParseAddrs(v4), ipmanager.ParseAddrs(v6))
	if errors.Is(err, ipmanager.ErrPoolExhausted) {
		return models.Peer{}, fmt.Errorf("%w: %d peers", ErrConnectionLimitExceeded, len(peers))
	}
	if err != nil {
		return models.Peer{}, err
	}

	privateKey, err := m.keys.PrivateKey(ctx)
	if err != nil {
		return models.Peer{}, fmt.Errorf("generate private key: %w", err)
	}
	publicKey, err := m.keys.PublicKey(ctx, privateKey)
	if err != nil {
		return models.Peer{}, fmt.Errorf("derive public key: %w", err)
	}
	presharedKey, err := m.keys.PresharedKey(ctx)
	if err != nil {
		return models.Peer{}, fmt.Errorf("generate preshared key: %w", err)
	}

	id, err := m.repo.NextPeerID(ctx)
	if err != nil {
		return models.Peer{}, fmt.Errorf("next peer id: %w", err)
	}

	peer := models.Peer{
		ID:           id,
		Address:      addr4.String(),
		AddressIPv6:  addr6.String(),
		PrivateKey:   privateKey,
		PublicKey:    publicKey,
		PresharedKey: presharedKey,
		Enable:       true,
		Data:         data.Clone(),
	}
	if err := m.repo.InsertPeer(ctx, &peer); err != nil {
		return models.Peer{}, fmt.Errorf("insert peer: %w", err)
	}
	return peer, nil
}

// Get returns the peer with id.
func (m *Manager) Get(ctx context.Context, id uint) (models.Peer, error) {
	peer, err := m.repo.FindPeer(ctx, id)
	if err != nil {
		return models.Peer{}, notFound(err, id)
	}
	return peer, nil
}

// List returns all peers ordered by id.
func (m *Manager) List(ctx context.Context) ([]models.Peer, error) {
	peers, err := m.repo.ListPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	return peers, nil
}

// Update applies u to the peer with id. Every check runs before anything is
// written.
func (m *Manager) Update(ctx context.Context, id uint, u PeerUpdate) (models.Peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.repo.FindPeer(ctx, id)
	if err != nil {
		return models.Peer{}, notFound(err, id)
	}
	if err := m.checkPool(u); err != nil {
		return models.Peer{}, err
	}
	updated := u.apply(current)

	peers, err := m.repo.ListPeers(ctx)
	if err != nil {
		return models.Peer{}, fmt.Errorf("list peers: %w", err)
	}
	if err := checkUnique(updated, peers); err != nil {
		return models.Peer{}, err
	}

	if err := m.repo.UpdatePeer(ctx, updated); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.Peer{}, fmt.Errorf("%w: %v", ErrAddressAlreadyTaken, err)
		}
		return models.Peer{}, notFound(err, id)
	}
	m.log.Info("peer updated", "id", id)
	return updated, m.sync(ctx)
}

// checkPool rejects addresses a peer cannot hold: outside the pool, the
// network address or the server's own address.
func (m *Manager) checkPool(u PeerUpdate) error {
	fields := []struct {
		name  string
		value *string
		pool  *ipmanager.Pool
	}{
		{"address", u.Address, m.alloc.V4},
		{"address_ipv6", u.AddressIPv6, m.alloc.V6},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		addr, ok := ipmanager.ParseAddr(*f.value)
		if !ok || !f.pool.Assignable(addr) {
			return &ValidationError{Field: f.name, Reason: fmt.Sprintf("must be a client address above %s in the pool", f.pool.Base())}
		}
	}
	return nil
}

func checkUnique(peer models.Peer, peers []models.Peer) error {
	for _, other := range peers {
		if other.ID == peer.ID {
			continue
		}
		switch {
		case ipmanager.SameAddr(other.Address, peer.Address):
			return fmt.Errorf("%w: %s is used by peer %d", ErrAddressAlreadyTaken, peer.Address, other.ID)
		case ipmanager.SameAddr(other.AddressIPv6, peer.AddressIPv6):
			return fmt.Errorf("%w: %s is used by peer %d", ErrAddressAlreadyTaken, peer.AddressIPv6, other.ID)
		case other.PublicKey == peer.PublicKey:
			return fmt.Errorf("%w: used by peer %d", ErrPublicKeyAlreadyTaken, other.ID)
		}
	}
	return nil
}

// Delete removes the peer with id.
func (m *Manager) Delete(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.DeletePeer(ctx, id); err != nil {
		return notFound(err, id)
	}
	m.log.Info("peer deleted", "id", id)
	return m.sync(ctx)
}

// DeleteInactive removes every peer whose last handshake in stats is older
// than cutoff. Peers that were never seen online are kept.
func (m *Manager) DeleteInactive(ctx context.Context, stats map[string]models.PeerStat, cutoff time.Time) ([]models.Peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	peers, err := m.repo.ListPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}

	var deleted []models.Peer
	for _, peer := range peers {
		lastOnline := stats[peer.PublicKey].LastOnline
		if lastOnline == "" {
			continue
		}
		seen, err := time.Parse(models.TimeLayout, lastOnline)
		if err != nil {
			m.log.Info("skipping peer with unreadable last_online", "id", peer.ID, "last_online", lastOnline)
			continue
		}
		if !seen.Before(cutoff) {
			continue
		}
		if err := m.repo.DeletePeer(ctx, peer.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return deleted, fmt.Errorf("delete peer %d: %w", peer.ID, err)
		}
		deleted = append(deleted, peer)
	}

	if len(deleted) == 0 {
		return nil, nil
	}
	m.log.Info("inactive peers deleted", "count", len(deleted), "cutoff", cutoff)
	return deleted, m.sync(ctx)
}

// Capacity is the number of peers the address pools can hold.
func (m *Manager) Capacity() int {
	return m.alloc.Capacity()
}

func (m *Manager) sync(ctx context.Context) error {
	if m.syncer == nil {
		return nil
	}
	server, err := m.repo.LatestServer(ctx)
	if err != nil {
		return fmt.Errorf("load server config: %w", err)
	}
	peers, err := m.repo.ListPeers(ctx)
	if err != nil {
		return fmt.Errorf("list peers: %w", err)
	}
	if err := m.syncer.Sync(ctx, server, peers); err != nil {
		return fmt.Errorf("sync interface config: %w", err)
	}
	return nil
}

func notFound(err error, id uint) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: id %d", ErrConfigNotFound, id)
	}
	return err
}
