package contracts

import "context"

// UnreadCounter tracks per-identity unread totals backing the
// unreadCountChanged payload. All calls are best-effort: a counter failure
// never blocks event delivery.
type UnreadCounter interface {
	// Increment bumps the identity's unread total and returns the new value.
	Increment(ctx context.Context, identity string) (int64, error)
	// Decrement lowers the total, flooring at zero, and returns the new value.
	Decrement(ctx context.Context, identity string) (int64, error)
	// Reset clears the identity's total.
	Reset(ctx context.Context, identity string) error
}
