package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/registry"
	"chatrelay/internal/core/domain"
)

func newLifecycleFixture() (*LifecycleService, *registry.Registry, *fakeGateway) {
	reg := registry.NewRegistry()
	gw := newFakeGateway()
	return NewLifecycleService(slog.Default(), reg, gw), reg, gw
}

func TestConnectNotifiesOnlineFriends(t *testing.T) {
	svc, reg, gw := newLifecycleFixture()
	gw.users["alice"] = &domain.UserRecord{ID: "alice", Friends: []string{"bob", "carol"}}
	gw.users["bob"] = &domain.UserRecord{ID: "bob"}
	bob := newFakeClient("h2", "bob")
	reg.Register("bob", bob)

	svc.HandleConnect(context.Background(), newFakeClient("h1", "alice"))

	require.Equal(t, 1, bob.count(domain.EventUserStatusUpdate))
	var status domain.StatusUpdatePayload
	require.NoError(t, bob.payload(0, &status))
	assert.Equal(t, "alice", status.Identity)
	assert.True(t, status.Online)
	assert.True(t, reg.IsOnline("alice"))
	assert.Equal(t, []string{"alice"}, gw.presenceCalls)
}

func TestSecondDeviceProducesNoDuplicateFanout(t *testing.T) {
	svc, reg, gw := newLifecycleFixture()
	gw.users["alice"] = &domain.UserRecord{ID: "alice", Friends: []string{"bob"}}
	gw.users["bob"] = &domain.UserRecord{ID: "bob"}
	bob := newFakeClient("h2", "bob")
	reg.Register("bob", bob)

	svc.HandleConnect(context.Background(), newFakeClient("h1", "alice"))
	svc.HandleConnect(context.Background(), newFakeClient("h1b", "alice"))

	assert.Equal(t, 1, bob.count(domain.EventUserStatusUpdate))
	assert.Len(t, reg.HandlesFor("alice"), 2)
}

func TestConnectSurvivesGatewayFailures(t *testing.T) {
	svc, reg, gw := newLifecycleFixture()
	gw.presenceErr = assert.AnError
	gw.friendsErr = assert.AnError

	svc.HandleConnect(context.Background(), newFakeClient("h1", "alice"))

	// Registry state must stay consistent even when the store is down.
	assert.True(t, reg.IsOnline("alice"))
}

func TestDisconnectLastConnectionBroadcastsOffline(t *testing.T) {
	svc, reg, gw := newLifecycleFixture()
	gw.users["alice"] = &domain.UserRecord{ID: "alice"}
	bob := newFakeClient("h2", "bob")
	carol := newFakeClient("h3", "carol")
	reg.Register("bob", bob)
	reg.Register("carol", carol)
	alice := newFakeClient("h1", "alice")
	reg.Register("alice", alice)

	svc.HandleDisconnect(context.Background(), "h1")

	assert.False(t, reg.IsOnline("alice"))
	// Offline is broadcast to every connected client exactly once.
	assert.Equal(t, 1, bob.count(domain.EventUserStatusUpdate))
	assert.Equal(t, 1, carol.count(domain.EventUserStatusUpdate))
	var status domain.StatusUpdatePayload
	require.NoError(t, bob.payload(0, &status))
	assert.Equal(t, "alice", status.Identity)
	assert.False(t, status.Online)
}

func TestDisconnectWithRemainingDeviceIsQuiet(t *testing.T) {
	svc, reg, gw := newLifecycleFixture()
	gw.users["alice"] = &domain.UserRecord{ID: "alice"}
	bob := newFakeClient("h3", "bob")
	reg.Register("bob", bob)
	reg.Register("alice", newFakeClient("h1", "alice"))
	reg.Register("alice", newFakeClient("h2", "alice"))

	svc.HandleDisconnect(context.Background(), "h1")

	assert.True(t, reg.IsOnline("alice"))
	assert.Empty(t, bob.events())
	assert.Empty(t, gw.presenceCalls)
}

func TestDisconnectUnknownHandleIsNoop(t *testing.T) {
	svc, reg, gw := newLifecycleFixture()
	bob := newFakeClient("h2", "bob")
	reg.Register("bob", bob)

	svc.HandleDisconnect(context.Background(), "nope")

	assert.Empty(t, bob.events())
	assert.Empty(t, gw.presenceCalls)
}
