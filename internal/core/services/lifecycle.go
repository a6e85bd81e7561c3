package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
)

// LifecycleService drives the Connecting -> Open -> Closed transitions of a
// connection: registry mutation, the durable presence mirror, and the
// presence fan-out. Gateway failures are logged and never roll back the
// registry — in-memory presence stays consistent even when the store is down.
type LifecycleService struct {
	log      *slog.Logger
	registry contracts.Registry
	gateway  domain.Gateway
}

func NewLifecycleService(log *slog.Logger, registry contracts.Registry, gateway domain.Gateway) *LifecycleService {
	return &LifecycleService{
		log:      log,
		registry: registry,
		gateway:  gateway,
	}
}

// HandleConnect registers the announced client. On the identity's first
// connection it mirrors online=true to the gateway and notifies each online
// friend's connections; a second device produces no duplicate fan-out.
func (s *LifecycleService) HandleConnect(ctx context.Context, c contracts.Client) {
	identity := c.Identity()
	ctx, span := tracer.Start(ctx, "LifecycleService.HandleConnect", trace.WithAttributes(
		attribute.String("identity", identity),
		attribute.String("handle_id", c.ID()),
	))
	defer span.End()
	first := s.registry.Register(identity, c)
	s.log.InfoContext(ctx, "lifecycle - handle connect - registered", "identity", identity, "handle_id", c.ID(), "first", first)
	if !first {
		return
	}
	now := time.Now()
	if err := s.gateway.UpdateUserPresence(ctx, identity, true, now); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "lifecycle - handle connect - presence write failed", "identity", identity, "err", err)
	}
	friends, err := s.gateway.ListFriends(ctx, identity)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "lifecycle - handle connect - list friends failed", "identity", identity, "err", err)
		return
	}
	data, err := domain.EncodeEvent(domain.EventUserStatusUpdate, domain.StatusUpdatePayload{
		Identity: identity,
		Online:   true,
		LastSeen: now,
	})
	if err != nil {
		span.RecordError(err)
		return
	}
	notified := 0
	for _, friend := range friends {
		for _, fc := range s.registry.HandlesFor(friend) {
			_ = fc.Send(ctx, data)
			notified++
		}
	}
	span.SetAttributes(attribute.Int("notified", notified))
	s.log.InfoContext(ctx, "lifecycle - handle connect - online fanout sent", "identity", identity, "friends", len(friends), "notified", notified)
}

// HandleDisconnect removes the handle from the registry. When the identity's
// last connection closes it mirrors offline to the gateway and broadcasts the
// status change to every connected client.
func (s *LifecycleService) HandleDisconnect(ctx context.Context, handleID string) {
	ctx, span := tracer.Start(ctx, "LifecycleService.HandleDisconnect", trace.WithAttributes(
		attribute.String("handle_id", handleID),
	))
	defer span.End()
	identity, last := s.registry.Unregister(handleID)
	if identity == "" {
		return
	}
	s.log.InfoContext(ctx, "lifecycle - handle disconnect - unregistered", "identity", identity, "handle_id", handleID, "last", last)
	if !last {
		return
	}
	now := time.Now()
	if err := s.gateway.UpdateUserPresence(ctx, identity, false, now); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "lifecycle - handle disconnect - presence write failed", "identity", identity, "err", err)
	}
	data, err := domain.EncodeEvent(domain.EventUserStatusUpdate, domain.StatusUpdatePayload{
		Identity: identity,
		Online:   false,
		LastSeen: now,
	})
	if err != nil {
		span.RecordError(err)
		return
	}
	// Offline goes to everyone, not just friends, matching upstream behavior.
	for _, c := range s.registry.Snapshot() {
		_ = c.Send(ctx, data)
	}
	s.log.InfoContext(ctx, "lifecycle - handle disconnect - offline broadcast sent", "identity", identity)
}
