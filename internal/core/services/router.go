package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
)

var tracer = otel.Tracer("chatrelay-core")

// RouterService applies the per-event routing rules: consult the gateway for
// relationship/content data, snapshot the registry for target handles, then
// emit. Every fan-out is best-effort — offline targets are dropped with no
// queuing, and a send to a closing handle is swallowed.
type RouterService struct {
	log      *slog.Logger
	registry contracts.Registry
	gateway  domain.Gateway
	unread   contracts.UnreadCounter
}

func NewRouterService(
	log *slog.Logger,
	registry contracts.Registry,
	gateway domain.Gateway,
	unread contracts.UnreadCounter,
) *RouterService {
	return &RouterService{
		log:      log,
		registry: registry,
		gateway:  gateway,
		unread:   unread,
	}
}

// FriendRequest notifies the receiver that a request is pending. The pair is
// taken at face value; no persisted-graph check happens here.
func (r *RouterService) FriendRequest(ctx context.Context, senderID, receiverID string) {
	ctx, span := tracer.Start(ctx, "RouterService.FriendRequest", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("receiver_id", receiverID),
	))
	defer span.End()
	handles := r.registry.HandlesFor(receiverID)
	if len(handles) == 0 {
		r.log.InfoContext(ctx, "router - friend request - receiver offline, dropped", "receiver_id", receiverID)
		return
	}
	r.emit(ctx, handles, domain.EventRequestUpdate, nil)
	r.log.InfoContext(ctx, "router - friend request - delivered", "sender_id", senderID, "receiver_id", receiverID, "handles", len(handles))
}

// AcceptRequest notifies both parties of an accepted request; either side
// being offline is dropped independently.
func (r *RouterService) AcceptRequest(ctx context.Context, user, friend string) {
	ctx, span := tracer.Start(ctx, "RouterService.AcceptRequest", trace.WithAttributes(
		attribute.String("user", user),
		attribute.String("friend", friend),
	))
	defer span.End()
	for _, identity := range []string{user, friend} {
		handles := r.registry.HandlesFor(identity)
		if len(handles) == 0 {
			continue
		}
		r.emit(ctx, handles, domain.EventRequestUpdate, nil)
	}
	r.log.InfoContext(ctx, "router - accept request - delivered", "user", user, "friend", friend)
}

// SendMessage fetches the persisted direct message and forwards it to the
// receiver's live connections, together with an unread-count poke. An offline
// receiver means the event is dropped; the sender gets no delivery error.
func (r *RouterService) SendMessage(ctx context.Context, messageID string) error {
	ctx, span := tracer.Start(ctx, "RouterService.SendMessage", trace.WithAttributes(
		attribute.String("message_id", messageID),
	))
	defer span.End()
	msg, err := r.gateway.FindMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			r.log.InfoContext(ctx, "router - send message - unknown message, dropped", "message_id", messageID)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "message lookup failed")
		r.log.ErrorContext(ctx, "router - send message - message lookup failed", "message_id", messageID, "err", err)
		return err
	}
	handles := r.registry.HandlesFor(msg.ReceiverID)
	if len(handles) == 0 {
		r.log.InfoContext(ctx, "router - send message - receiver offline, dropped", "message_id", messageID, "receiver_id", msg.ReceiverID)
		return nil
	}
	count, err := r.unread.Increment(ctx, msg.ReceiverID)
	if err != nil {
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - send message - unread increment failed", "receiver_id", msg.ReceiverID, "err", err)
		count = domain.UnknownCount
	}
	r.emit(ctx, handles, domain.EventReceiveMessage, msg)
	r.emit(ctx, handles, domain.EventUnreadCountChanged, domain.UnreadCountPayload{Count: count})
	r.log.InfoContext(ctx, "router - send message - delivered", "message_id", messageID, "receiver_id", msg.ReceiverID, "handles", len(handles))
	return nil
}

// CreateGroup resolves the group's membership at event time and announces the
// group to every member that is currently online.
func (r *RouterService) CreateGroup(ctx context.Context, groupID string, payload []byte) error {
	ctx, span := tracer.Start(ctx, "RouterService.CreateGroup", trace.WithAttributes(
		attribute.String("group_id", groupID),
	))
	defer span.End()
	grp, err := r.gateway.FindGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, domain.ErrGroupNotFound) {
			r.log.InfoContext(ctx, "router - create group - unknown group, dropped", "group_id", groupID)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "group lookup failed")
		r.log.ErrorContext(ctx, "router - create group - group lookup failed", "group_id", groupID, "err", err)
		return err
	}
	out := domain.GroupCreatedPayload{Group: grp, Payload: payload}
	notified := 0
	for _, member := range grp.Members {
		handles := r.registry.HandlesFor(member)
		if len(handles) == 0 {
			continue
		}
		r.emit(ctx, handles, domain.EventGroupCreated, out)
		notified++
	}
	span.SetAttributes(attribute.Int("members_notified", notified))
	r.log.InfoContext(ctx, "router - create group - delivered", "group_id", groupID, "members", len(grp.Members), "online", notified)
	return nil
}

// MarkRead performs the idempotent read-mark transition for a direct message.
// The messageRead notification goes out only after the persisted write
// succeeds, so a client never observes "read" before durability.
func (r *RouterService) MarkRead(ctx context.Context, messageID string) error {
	ctx, span := tracer.Start(ctx, "RouterService.MarkRead", trace.WithAttributes(
		attribute.String("message_id", messageID),
	))
	defer span.End()
	msg, err := r.gateway.FindMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			r.log.InfoContext(ctx, "router - mark read - unknown message, dropped", "message_id", messageID)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "message lookup failed")
		r.log.ErrorContext(ctx, "router - mark read - message lookup failed", "message_id", messageID, "err", err)
		return err
	}
	if msg.IsRead {
		// Already read: re-invocation produces no further side effects.
		return nil
	}
	readAt := time.Now()
	if err := r.gateway.MarkMessageRead(ctx, messageID, readAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read-mark write failed")
		r.log.ErrorContext(ctx, "router - mark read - persist failed", "message_id", messageID, "err", err)
		return err
	}
	count, err := r.unread.Decrement(ctx, msg.ReceiverID)
	if err != nil {
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - mark read - unread decrement failed", "receiver_id", msg.ReceiverID, "err", err)
		count = domain.UnknownCount
	}
	if handles := r.registry.HandlesFor(msg.ReceiverID); len(handles) > 0 {
		r.emit(ctx, handles, domain.EventUnreadCountChanged, domain.UnreadCountPayload{Count: count})
	}
	if handles := r.registry.HandlesFor(msg.SenderID); len(handles) > 0 {
		r.emit(ctx, handles, domain.EventMessageRead, domain.MessageReadPayload{
			MessageID:  messageID,
			ReceiverID: msg.ReceiverID,
			SenderID:   msg.SenderID,
			ReadAt:     readAt,
		})
	}
	r.log.InfoContext(ctx, "router - mark read - persisted and notified", "message_id", messageID, "sender_id", msg.SenderID, "receiver_id", msg.ReceiverID)
	return nil
}

// MarkGroupRead appends the reader to a group message's read-by set and
// notifies the sender. Idempotent per (message, reader).
func (r *RouterService) MarkGroupRead(ctx context.Context, messageID, readerID string) error {
	ctx, span := tracer.Start(ctx, "RouterService.MarkGroupRead", trace.WithAttributes(
		attribute.String("message_id", messageID),
		attribute.String("reader_id", readerID),
	))
	defer span.End()
	gm, err := r.gateway.FindGroupMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrGroupMessageNotFound) {
			r.log.InfoContext(ctx, "router - mark group read - unknown message, dropped", "message_id", messageID)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "group message lookup failed")
		r.log.ErrorContext(ctx, "router - mark group read - lookup failed", "message_id", messageID, "err", err)
		return err
	}
	if gm.ReadByUser(readerID) {
		return nil
	}
	readAt := time.Now()
	if err := r.gateway.MarkGroupMessageRead(ctx, messageID, readerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read-by write failed")
		r.log.ErrorContext(ctx, "router - mark group read - persist failed", "message_id", messageID, "reader_id", readerID, "err", err)
		return err
	}
	if handles := r.registry.HandlesFor(gm.SenderID); len(handles) > 0 {
		r.emit(ctx, handles, domain.EventGroupMessageRead, domain.GroupMessageReadPayload{
			MessageID: messageID,
			GroupID:   gm.GroupID,
			ReaderID:  readerID,
			ReadAt:    readAt,
		})
	}
	r.log.InfoContext(ctx, "router - mark group read - persisted and notified", "message_id", messageID, "reader_id", readerID)
	return nil
}

// emit frames the event once and writes it to each handle. Send errors mean
// the handle is closing; the entry will be unregistered by its own lifecycle.
func (r *RouterService) emit(ctx context.Context, handles []contracts.Client, event string, data any) {
	raw, err := domain.EncodeEvent(event, data)
	if err != nil {
		r.log.ErrorContext(ctx, "router - emit - encode failed", "event", event, "err", err)
		return
	}
	for _, c := range handles {
		_ = c.Send(ctx, raw)
	}
}
