package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/registry"
	"chatrelay/internal/core/domain"
)

func newRouterFixture() (*RouterService, *registry.Registry, *fakeGateway, *fakeCounter) {
	reg := registry.NewRegistry()
	gw := newFakeGateway()
	counter := newFakeCounter()
	router := NewRouterService(slog.Default(), reg, gw, counter)
	return router, reg, gw, counter
}

func TestFriendRequestDeliveredToAllReceiverHandles(t *testing.T) {
	router, reg, _, _ := newRouterFixture()
	h1 := newFakeClient("h1", "bob")
	h2 := newFakeClient("h2", "bob")
	reg.Register("bob", h1)
	reg.Register("bob", h2)

	router.FriendRequest(context.Background(), "alice", "bob")

	assert.Equal(t, []string{domain.EventRequestUpdate}, h1.events())
	assert.Equal(t, []string{domain.EventRequestUpdate}, h2.events())
}

func TestFriendRequestToOfflineReceiverIsDropped(t *testing.T) {
	router, reg, _, _ := newRouterFixture()
	sender := newFakeClient("h1", "alice")
	reg.Register("alice", sender)

	router.FriendRequest(context.Background(), "alice", "bob")

	// No queuing: the sender gets nothing, and nothing is held for bob.
	assert.Empty(t, sender.events())
}

func TestAcceptRequestNotifiesBothParties(t *testing.T) {
	router, reg, _, _ := newRouterFixture()
	alice := newFakeClient("h1", "alice")
	bob := newFakeClient("h2", "bob")
	reg.Register("alice", alice)
	reg.Register("bob", bob)

	router.AcceptRequest(context.Background(), "alice", "bob")

	assert.Equal(t, 1, alice.count(domain.EventRequestUpdate))
	assert.Equal(t, 1, bob.count(domain.EventRequestUpdate))
}

func TestAcceptRequestWithOnePartyOffline(t *testing.T) {
	router, reg, _, _ := newRouterFixture()
	alice := newFakeClient("h1", "alice")
	reg.Register("alice", alice)

	router.AcceptRequest(context.Background(), "alice", "bob")

	assert.Equal(t, 1, alice.count(domain.EventRequestUpdate))
}

func TestSendMessageDeliversRecordAndUnreadCount(t *testing.T) {
	router, reg, gw, _ := newRouterFixture()
	bob := newFakeClient("h1", "bob")
	reg.Register("bob", bob)
	gw.messages["m1"] = &domain.MessageRecord{
		ID:         "m1",
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    "hello",
	}

	require.NoError(t, router.SendMessage(context.Background(), "m1"))

	require.Equal(t, []string{domain.EventReceiveMessage, domain.EventUnreadCountChanged}, bob.events())
	var msg domain.MessageRecord
	require.NoError(t, bob.payload(0, &msg))
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hello", msg.Content)
	var unread domain.UnreadCountPayload
	require.NoError(t, bob.payload(1, &unread))
	assert.Equal(t, int64(1), unread.Count)
}

func TestSendMessageToOfflineReceiverIsDroppedWithNoBacklog(t *testing.T) {
	router, reg, gw, _ := newRouterFixture()
	gw.messages["m1"] = &domain.MessageRecord{ID: "m1", SenderID: "alice", ReceiverID: "bob"}

	require.NoError(t, router.SendMessage(context.Background(), "m1"))

	// bob connects later: nothing is replayed.
	bob := newFakeClient("h1", "bob")
	reg.Register("bob", bob)
	assert.Empty(t, bob.events())
}

func TestSendMessageUnknownIDIsDropped(t *testing.T) {
	router, reg, _, _ := newRouterFixture()
	bob := newFakeClient("h1", "bob")
	reg.Register("bob", bob)

	require.NoError(t, router.SendMessage(context.Background(), "missing"))
	assert.Empty(t, bob.events())
}

func TestSendMessageCounterFailureStillDelivers(t *testing.T) {
	router, reg, gw, counter := newRouterFixture()
	counter.err = assert.AnError
	bob := newFakeClient("h1", "bob")
	reg.Register("bob", bob)
	gw.messages["m1"] = &domain.MessageRecord{ID: "m1", SenderID: "alice", ReceiverID: "bob"}

	require.NoError(t, router.SendMessage(context.Background(), "m1"))

	require.Equal(t, []string{domain.EventReceiveMessage, domain.EventUnreadCountChanged}, bob.events())
	var unread domain.UnreadCountPayload
	require.NoError(t, bob.payload(1, &unread))
	assert.Equal(t, domain.UnknownCount, unread.Count)
}

func TestCreateGroupNotifiesOnlyOnlineMembers(t *testing.T) {
	router, reg, gw, _ := newRouterFixture()
	alice := newFakeClient("h1", "alice")
	carol := newFakeClient("h2", "carol")
	reg.Register("alice", alice)
	reg.Register("carol", carol)
	gw.groups["g1"] = &domain.GroupRecord{
		ID:      "g1",
		Name:    "trio",
		Members: []string{"alice", "bob", "carol"},
	}

	require.NoError(t, router.CreateGroup(context.Background(), "g1", []byte(`{"hello":1}`)))

	assert.Equal(t, 1, alice.count(domain.EventGroupCreated))
	assert.Equal(t, 1, carol.count(domain.EventGroupCreated))
	var got domain.GroupCreatedPayload
	require.NoError(t, alice.payload(0, &got))
	assert.Equal(t, "g1", got.Group.ID)
}

func TestCreateGroupMembershipResolvedAtEventTime(t *testing.T) {
	router, reg, gw, _ := newRouterFixture()
	bob := newFakeClient("h1", "bob")
	reg.Register("bob", bob)
	gw.groups["g1"] = &domain.GroupRecord{ID: "g1", Members: []string{"alice"}}

	require.NoError(t, router.CreateGroup(context.Background(), "g1", nil))
	assert.Empty(t, bob.events())

	gw.groups["g1"].Members = append(gw.groups["g1"].Members, "bob")
	require.NoError(t, router.CreateGroup(context.Background(), "g1", nil))
	assert.Equal(t, 1, bob.count(domain.EventGroupCreated))
}

func TestMarkReadNotifiesSenderAndReceiver(t *testing.T) {
	router, reg, gw, counter := newRouterFixture()
	alice := newFakeClient("h1", "alice")
	bob := newFakeClient("h2", "bob")
	reg.Register("alice", alice)
	reg.Register("bob", bob)
	counter.counts["bob"] = 3
	gw.messages["m1"] = &domain.MessageRecord{ID: "m1", SenderID: "alice", ReceiverID: "bob"}

	require.NoError(t, router.MarkRead(context.Background(), "m1"))

	assert.Equal(t, 1, bob.count(domain.EventUnreadCountChanged))
	require.Equal(t, 1, alice.count(domain.EventMessageRead))
	var read domain.MessageReadPayload
	require.NoError(t, alice.payload(0, &read))
	assert.Equal(t, "m1", read.MessageID)
	assert.Equal(t, "bob", read.ReceiverID)
	assert.Equal(t, "alice", read.SenderID)
	assert.WithinDuration(t, time.Now(), read.ReadAt, 5*time.Second)
	assert.True(t, gw.messages["m1"].IsRead)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	router, reg, gw, _ := newRouterFixture()
	alice := newFakeClient("h1", "alice")
	reg.Register("alice", alice)
	gw.messages["m1"] = &domain.MessageRecord{ID: "m1", SenderID: "alice", ReceiverID: "bob"}

	require.NoError(t, router.MarkRead(context.Background(), "m1"))
	require.NoError(t, router.MarkRead(context.Background(), "m1"))

	assert.Equal(t, 1, gw.markReadCalls)
	assert.Equal(t, 1, alice.count(domain.EventMessageRead))
}

func TestMarkReadUnknownMessageIsNoop(t *testing.T) {
	router, _, gw, _ := newRouterFixture()

	require.NoError(t, router.MarkRead(context.Background(), "missing"))
	assert.Zero(t, gw.markReadCalls)
}

func TestMarkReadEmitsNothingWhenPersistFails(t *testing.T) {
	router, reg, gw, _ := newRouterFixture()
	alice := newFakeClient("h1", "alice")
	reg.Register("alice", alice)
	gw.messages["m1"] = &domain.MessageRecord{ID: "m1", SenderID: "alice", ReceiverID: "bob"}
	gw.markReadErr = assert.AnError

	require.Error(t, router.MarkRead(context.Background(), "m1"))

	// Durability first: no messageRead may be observed before the write lands.
	assert.Empty(t, alice.events())
}

func TestMarkGroupReadNotifiesSenderOnce(t *testing.T) {
	router, reg, gw, _ := newRouterFixture()
	alice := newFakeClient("h1", "alice")
	reg.Register("alice", alice)
	gw.groupMessages["gm1"] = &domain.GroupMessageRecord{
		ID:       "gm1",
		GroupID:  "g1",
		SenderID: "alice",
	}

	require.NoError(t, router.MarkGroupRead(context.Background(), "gm1", "bob"))
	require.NoError(t, router.MarkGroupRead(context.Background(), "gm1", "bob"))

	assert.Equal(t, 1, alice.count(domain.EventGroupMessageRead))
	assert.Equal(t, []string{"bob"}, gw.groupMessages["gm1"].ReadBy)
}
