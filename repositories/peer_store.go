package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leonovk/wg-rest-api/ipmanager"
	"github.com/leonovk/wg-rest-api/models"
)

// InMemoryPeerStore keeps peers in a map. It enforces the same uniqueness
// rules as the relational schema.
type InMemoryPeerStore struct {
	mu      sync.RWMutex
	servers []models.Server
	peers   map[uint]models.Peer
	lastID  uint
}

func NewInMemoryPeerStore() *InMemoryPeerStore {
	return &InMemoryPeerStore{
		peers: make(map[uint]models.Peer),
	}
}

func (s *InMemoryPeerStore) LatestServer(_ context.Context) (models.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.servers) == 0 {
		return models.Server{}, ErrNotFound
	}
	return s.servers[len(s.servers)-1], nil
}

func (s *InMemoryPeerStore) InsertServer(_ context.Context, server *models.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	server.ID = uint(len(s.servers) + 1)
	s.servers = append(s.servers, *server)
	return nil
}

func (s *InMemoryPeerStore) NextPeerID(_ context.Context) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID, nil
}

func (s *InMemoryPeerStore) InsertPeer(_ context.Context, peer *models.Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.peers[peer.ID]; exists {
		return fmt.Errorf("%w: id %d", ErrConflict, peer.ID)
	}
	if err := s.checkUnique(*peer); err != nil {
		return err
	}
	s.peers[peer.ID] = peer.Clone()
	if peer.ID > s.lastID {
		s.lastID = peer.ID
	}
	return nil
}

func (s *InMemoryPeerStore) FindPeer(_ context.Context, id uint) (models.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peer, exists := s.peers[id]
	if !exists {
		return models.Peer{}, ErrNotFound
	}
	return peer.Clone(), nil
}

func (s *InMemoryPeerStore) UpdatePeer(_ context.Context, peer models.Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.peers[peer.ID]; !exists {
		return ErrNotFound
	}
	if err := s.checkUnique(peer); err != nil {
		return err
	}
	s.peers[peer.ID] = peer.Clone()
	return nil
}

func (s *InMemoryPeerStore) DeletePeer(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.peers[id]; !exists {
		return ErrNotFound
	}
	delete(s.peers, id)
	return nil
}

func (s *InMemoryPeerStore) ListPeers(_ context.Context) ([]models.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.Peer, 0, len(s.peers))
	for _, peer := range s.peers {
		list = append(list, peer.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// checkUnique must be called with mu held.
func (s *InMemoryPeerStore) checkUnique(peer models.Peer) error {
	for id, other := range s.peers {
		if id == peer.ID {
			continue
		}
		switch {
		case ipmanager.SameAddr(other.Address, peer.Address):
			return fmt.Errorf("%w: address %s", ErrConflict, peer.Address)
		case ipmanager.SameAddr(other.AddressIPv6, peer.AddressIPv6):
			return fmt.Errorf("%w: address_ipv6 %s", ErrConflict, peer.AddressIPv6)
		case other.PublicKey == peer.PublicKey:
			return fmt.Errorf("%w: public_key", ErrConflict)
		}
	}
	return nil
}
