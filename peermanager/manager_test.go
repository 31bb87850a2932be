package peermanager

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/leonovk/wg-rest-api/ipmanager"
	"github.com/leonovk/wg-rest-api/models"
	"github.com/leonovk/wg-rest-api/repositories"
)

type fakeKeys struct{ n int }

func (k *fakeKeys) PrivateKey(context.Context) (string, error) {
	k.n++
	return fmt.Sprintf("priv-%d", k.n), nil
}

func (k *fakeKeys) PublicKey(_ context.Context, priv string) (string, error) {
	return "pub-" + priv, nil
}

func (k *fakeKeys) PresharedKey(context.Context) (string, error) {
	return fmt.Sprintf("psk-%d", k.n), nil
}

type recordingSyncer struct {
	calls int
	peers []models.Peer
	err   error
}

func (s *recordingSyncer) Sync(_ context.Context, _ models.Server, peers []models.Peer) error {
	s.calls++
	s.peers = peers
	return s.err
}

func newTestManager(t *testing.T, pool4, pool6 string) (*Manager, *recordingSyncer, repositories.PeerRepository) {
	t.Helper()
	alloc, err := ipmanager.NewAllocator(pool4, pool6)
	if err != nil {
		t.Fatalf("NewAllocator failed: %v", err)
	}
	repo := repositories.NewInMemoryPeerStore()
	syncer := &recordingSyncer{}
	m := New(repo, alloc, &fakeKeys{}, syncer, logr.Discard())
	if _, err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return m, syncer, repo
}

func TestInitializeOnce(t *testing.T) {
	m, _, _ := newTestManager(t, "10.8.0.0/24", "fdcc::/112")
	ctx := context.Background()

	server, err := m.Server(ctx)
	if err != nil {
		t.Fatalf("Server failed: %v", err)
	}
	if server.Address != "10.8.0.1" || server.AddressIPv6 != "fdcc::1" || server.PublicKey != "pub-priv-1" {
		t.Fatalf("unexpected server %+v", server)
	}

	again, err := m.Initialize(ctx)
	if err != nil || again.PublicKey != server.PublicKey {
		t.Fatalf("second Initialize must keep the identity, got %+v, %v", again, err)
	}
}

func TestCreateDeleteGapFill(t *testing.T) {
	m, syncer, _ := newTestManager(t, "10.8.0.0/24", "fdcc::/112")
	ctx := context.Background()

	first, err := m.Create(ctx, models.Data{"name": "laptop"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first.ID != 1 || first.Address != "10.8.0.2" || first.AddressIPv6 != "fdcc::2" {
		t.Fatalf("unexpected first peer %+v", first)
	}
	if !first.Enable || first.Data["name"] != "laptop" || first.PresharedKey == "" {
		t.Fatalf("unexpected first peer fields %+v", first)
	}

	second, err := m.Create(ctx, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if second.ID != 2 || second.Address != "10.8.0.3" || second.AddressIPv6 != "fdcc::3" {
		t.Fatalf("unexpected second peer %+v", second)
	}

	if err := m.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	third, err := m.Create(ctx, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if third.ID != 3 || third.Address != "10.8.0.2" || third.AddressIPv6 != "fdcc::2" {
		t.Fatalf("expected id 3 reusing the freed address, got %+v", third)
	}

	if syncer.calls != 4 || len(syncer.peers) != 2 {
		t.Fatalf("expected a sync per mutation with 2 peers, got %d calls, %d peers", syncer.calls, len(syncer.peers))
	}
}

func TestCreateConnectionLimit(t *testing.T) {
	m, syncer, _ := newTestManager(t, "10.8.0.0/29", "fdcc::/112")
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := m.Create(ctx, nil); err != nil {
			t.Fatalf("Create %d failed: %v", i+1, err)
		}
	}
	_, err := m.Create(ctx, nil)
	if !errors.Is(err, ErrConnectionLimitExceeded) {
		t.Fatalf("expected ErrConnectionLimitExceeded, got %v", err)
	}
	if syncer.calls != 6 {
		t.Fatalf("failed create must not sync, got %d calls", syncer.calls)
	}
}

type conflictOnce struct {
	repositories.PeerRepository
	failed bool
}

func (c *conflictOnce) InsertPeer(ctx context.Context, peer *models.Peer) error {
	if !c.failed {
		c.failed = true
		return repositories.ErrConflict
	}
	return c.PeerRepository.InsertPeer(ctx, peer)
}

func TestCreateRetriesOnConflict(t *testing.T) {
	alloc, _ := ipmanager.NewAllocator("10.8.0.0/24", "fdcc::/112")
	repo := &conflictOnce{PeerRepository: repositories.NewInMemoryPeerStore()}
	m := New(repo, alloc, &fakeKeys{}, nil, logr.Discard())
	ctx := context.Background()
	if _, err := m.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	peer, err := m.Create(ctx, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if peer.ID != 2 || peer.Address != "10.8.0.2" {
		t.Fatalf("expected a fresh id and the same address after retry, got %+v", peer)
	}
}

func TestGetAndDeleteNotFound(t *testing.T) {
	m, _, _ := newTestManager(t, "10.8.0.0/24", "fdcc::/112")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Create(ctx, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := m.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Get(ctx, 2); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
	if err := m.Delete(ctx, 2); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound on second delete, got %v", err)
	}
	for _, id := range []uint{1, 3} {
		if _, err := m.Get(ctx, id); err != nil {
			t.Fatalf("Get(%d) failed: %v", id, err)
		}
	}
	if _, err := m.Update(ctx, 2, PeerUpdate{}); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound on update, got %v", err)
	}
}

func mustParse(t *testing.T, raw string) PeerUpdate {
	t.Helper()
	u, err := ParseUpdate([]byte(raw))
	if err != nil {
		t.Fatalf("ParseUpdate(%s) failed: %v", raw, err)
	}
	return u
}

func TestUpdateMergesData(t *testing.T) {
	m, _, _ := newTestManager(t, "10.8.0.0/24", "fdcc::/112")
	ctx := context.Background()

	peer, _ := m.Create(ctx, models.Data{"a": float64(1)})

	updated, err := m.Update(ctx, peer.ID, mustParse(t, `{"enable": false}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Enable || !reflect.DeepEqual(updated.Data, models.Data{"a": float64(1)}) {
		t.Fatalf("update without data must keep data, got %+v", updated)
	}

	updated, err = m.Update(ctx, peer.ID, mustParse(t, `{"data": {"b": 2}}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !reflect.DeepEqual(updated.Data, models.Data{"a": float64(1), "b": float64(2)}) {
		t.Fatalf("expected union, got %v", updated.Data)
	}

	updated, err = m.Update(ctx, peer.ID, mustParse(t, `{"data": {"a": 3}, "address": "10.8.0.50"}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !reflect.DeepEqual(updated.Data, models.Data{"a": float64(3), "b": float64(2)}) || updated.Address != "10.8.0.50" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	updated, err = m.Update(ctx, peer.ID, mustParse(t, `{"data": null}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(updated.Data) != 2 {
		t.Fatalf("null data must leave data untouched, got %v", updated.Data)
	}

	stored, _ := m.Get(ctx, peer.ID)
	if !reflect.DeepEqual(stored, updated) {
		t.Fatalf("stored peer differs from returned one:\n%+v\n%+v", stored, updated)
	}
}

func TestUpdateUniqueness(t *testing.T) {
	m, syncer, _ := newTestManager(t, "10.8.0.0/24", "fdcc::/112")
	ctx := context.Background()

	x, _ := m.Create(ctx, nil)
	y, _ := m.Create(ctx, nil)
	calls := syncer.calls

	if _, err := m.Update(ctx, x.ID, PeerUpdate{Address: &y.Address}); !errors.Is(err, ErrAddressAlreadyTaken) {
		t.Fatalf("expected ErrAddressAlreadyTaken, got %v", err)
	}
	if _, err := m.Update(ctx, x.ID, PeerUpdate{AddressIPv6: &y.AddressIPv6}); !errors.Is(err, ErrAddressAlreadyTaken) {
		t.Fatalf("expected ErrAddressAlreadyTaken for ipv6, got %v", err)
	}
	for _, spelling := range []string{"fdcc:0::3", "FDCC::3", "fdcc:0:0:0:0:0:0:3"} {
		if _, err := m.Update(ctx, x.ID, PeerUpdate{AddressIPv6: &spelling}); !errors.Is(err, ErrAddressAlreadyTaken) {
			t.Fatalf("expected ErrAddressAlreadyTaken for %q held as %q, got %v", spelling, y.AddressIPv6, err)
		}
	}
	if _, err := m.Update(ctx, x.ID, PeerUpdate{PublicKey: &y.PublicKey}); !errors.Is(err, ErrPublicKeyAlreadyTaken) {
		t.Fatalf("expected ErrPublicKeyAlreadyTaken, got %v", err)
	}
	if syncer.calls != calls {
		t.Fatal("rejected updates must not sync")
	}

	if _, err := m.Update(ctx, x.ID, PeerUpdate{Address: &x.Address}); err != nil {
		t.Fatalf("updating to own address must succeed, got %v", err)
	}
	stored, _ := m.Get(ctx, x.ID)
	if stored.Address != x.Address {
		t.Fatalf("unexpected stored peer %+v", stored)
	}
}

func TestUpdateRejectsAddressesOutsidePool(t *testing.T) {
	m, syncer, _ := newTestManager(t, "10.8.0.0/24", "fdcc::/112")
	ctx := context.Background()

	x, _ := m.Create(ctx, nil)
	calls := syncer.calls

	tests := []struct {
		update PeerUpdate
		field  string
	}{
		{PeerUpdate{Address: ptr("10.8.0.1")}, "address"},
		{PeerUpdate{Address: ptr("10.8.0.0")}, "address"},
		{PeerUpdate{Address: ptr("10.9.0.5")}, "address"},
		{PeerUpdate{AddressIPv6: ptr("fdcc::1")}, "address_ipv6"},
		{PeerUpdate{AddressIPv6: ptr("fdcd::5")}, "address_ipv6"},
	}
	for _, tt := range tests {
		_, err := m.Update(ctx, x.ID, tt.update)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tt.field {
			t.Fatalf("expected validation error on %s, got %v", tt.field, err)
		}
	}
	if syncer.calls != calls {
		t.Fatal("rejected updates must not sync")
	}

	if _, err := m.Update(ctx, x.ID, PeerUpdate{Address: ptr("10.8.0.200"), AddressIPv6: ptr("fdcc::c8")}); err != nil {
		t.Fatalf("address inside the pool must be accepted, got %v", err)
	}
}

func TestParseUpdateCanonicalAddress(t *testing.T) {
	u, err := ParseUpdate([]byte(`{"address_ipv6": "FDCC:0:0::3"}`))
	if err != nil {
		t.Fatalf("ParseUpdate failed: %v", err)
	}
	if u.AddressIPv6 == nil || *u.AddressIPv6 != "fdcc::3" {
		t.Fatalf("expected canonical fdcc::3, got %v", u.AddressIPv6)
	}
}

func ptr(s string) *string {
	return &s
}

func TestParseUpdateValidation(t *testing.T) {
	tests := []struct {
		body  string
		field string
	}{
		{`[1]`, "body"},
		{`null`, "body"},
		{`{"address": "fdcc::5"}`, "address"},
		{`{"address": "10.8.0.300"}`, "address"},
		{`{"address_ipv6": "10.8.0.5"}`, "address_ipv6"},
		{`{"address": null}`, "address"},
		{`{"enable": "yes"}`, "enable"},
		{`{"enable": null}`, "enable"},
		{`{"public_key": 5}`, "public_key"},
		{`{"data": [1, 2]}`, "data"},
		{`{"id": 7}`, "id"},
	}

	for _, tt := range tests {
		_, err := ParseUpdate([]byte(tt.body))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tt.body, err)
		}
		if verr.Field != tt.field {
			t.Fatalf("%s: expected field %q, got %q", tt.body, tt.field, verr.Field)
		}
	}

	u := mustParse(t, `{"address": "10.8.0.9", "address_ipv6": "fdcc::9", "private_key": "k", "public_key": "p", "preshared_key": "s", "enable": true, "data": {}}`)
	if *u.Address != "10.8.0.9" || *u.AddressIPv6 != "fdcc::9" || !*u.Enable || u.Data == nil {
		t.Fatalf("unexpected update %+v", u)
	}
}

func TestDeleteInactive(t *testing.T) {
	m, syncer, _ := newTestManager(t, "10.8.0.0/24", "fdcc::/112")
	ctx := context.Background()

	stale, _ := m.Create(ctx, nil)
	fresh, _ := m.Create(ctx, nil)
	never, _ := m.Create(ctx, nil)
	calls := syncer.calls

	now := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)
	stats := map[string]models.PeerStat{
		stale.PublicKey: {LastOnline: now.AddDate(0, 0, -10).Format(models.TimeLayout)},
		fresh.PublicKey: {LastOnline: now.Add(-time.Hour).Format(models.TimeLayout)},
		never.PublicKey: {},
	}

	deleted, err := m.DeleteInactive(ctx, stats, now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("DeleteInactive failed: %v", err)
	}
	if len(deleted) != 1 || deleted[0].ID != stale.ID {
		t.Fatalf("expected only the stale peer deleted, got %+v", deleted)
	}
	if syncer.calls != calls+1 {
		t.Fatalf("expected one sync, got %d", syncer.calls-calls)
	}

	peers, _ := m.List(ctx)
	if len(peers) != 2 || peers[0].ID != fresh.ID || peers[1].ID != never.ID {
		t.Fatalf("unexpected remaining peers %+v", peers)
	}

	deleted, err = m.DeleteInactive(ctx, stats, now.AddDate(0, 0, -7))
	if err != nil || len(deleted) != 0 || syncer.calls != calls+1 {
		t.Fatalf("second pass must be a no-op, got %+v, %v", deleted, err)
	}
}
