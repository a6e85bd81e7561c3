package contracts

import "context"

// Client is the minimal surface the core needs to talk to one live
// transport connection. A closed client swallows Send calls.
type Client interface {
	// ID is the opaque connection handle, unique per physical connection.
	ID() string
	// Identity is the user key announced on this connection.
	Identity() string
	Send(ctx context.Context, data []byte) error
	Close()
}

// Registry is the sole source of truth for which identities are online and
// through which connections. It holds no durable state and never calls the
// persistence gateway.
type Registry interface {
	// Register adds the (identity, client) presence entry. Idempotent per
	// handle. Reports whether the identity transitioned offline -> online.
	Register(identity string, c Client) (first bool)
	// Unregister removes the entry for a handle. Unknown handles are a
	// no-op (identity == ""). Reports whether the identity transitioned
	// online -> offline.
	Unregister(handleID string) (identity string, last bool)
	// HandlesFor returns a snapshot of the identity's live clients. The
	// slice is the caller's to keep; it does not track later mutation.
	HandlesFor(identity string) []Client
	// IsOnline reports whether the identity has at least one live client.
	IsOnline(identity string) bool
	// Snapshot returns every live client across all identities.
	Snapshot() []Client
}
