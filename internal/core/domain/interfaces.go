package domain

import (
	"context"
	"time"
)

// Gateway is the narrow persistence boundary the routing core depends on.
// Every call is a blocking I/O boundary: callers must not hold registry
// state locked across it. Implementations live under internal/plugins.
type Gateway interface {
	// FindUserByID returns the user record for an identity.
	FindUserByID(ctx context.Context, identity string) (*UserRecord, error)
	// UpdateUserPresence mirrors the registry's online/offline transition
	// into the durable store. Best-effort from the caller's point of view.
	UpdateUserPresence(ctx context.Context, identity string, online bool, lastSeen time.Time) error
	// ListFriends returns the identities on the user's friend list.
	ListFriends(ctx context.Context, identity string) ([]string, error)
	// FindMessageByID returns a direct message with sender/receiver views joined.
	FindMessageByID(ctx context.Context, id string) (*MessageRecord, error)
	// MarkMessageRead persists is_read=true and the read timestamp.
	MarkMessageRead(ctx context.Context, id string, readAt time.Time) error
	// FindGroupByID returns a group and its membership.
	FindGroupByID(ctx context.Context, id string) (*GroupRecord, error)
	// FindGroupMessageByID returns a group message including its read-by set.
	FindGroupMessageByID(ctx context.Context, id string) (*GroupMessageRecord, error)
	// MarkGroupMessageRead appends identity to the message's read-by set.
	MarkGroupMessageRead(ctx context.Context, id string, identity string) error
}
