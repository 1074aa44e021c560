package core

import (
	"context"
	"time"

	"github.com/dkeye/arena/internal/domain"
)

// Frame is a raw wire payload, already JSON-encoded.
type Frame []byte

// SignalConnection abstracts the messaging transport of one connection.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Coordinator owns room and player records and enforces capacity atomically.
type Coordinator interface {
	// Join adds the connection to the room, creating the room on first use.
	// Returns domain.ErrRoomFull when the room is at capacity; no mutation
	// is left behind in that case.
	Join(ctx context.Context, key domain.RoomKey, conn domain.ConnectionID, id domain.Identity) (*domain.Room, error)

	// Leave is idempotent. Removing the last member deletes the room.
	Leave(ctx context.Context, conn domain.ConnectionID) error

	// Members returns the current roster of the room, minus the excluded
	// identity when exclude is non-empty. Returns domain.ErrRoomNotFound
	// for an unknown key.
	Members(ctx context.Context, key domain.RoomKey, exclude domain.IdentityID) ([]domain.Identity, error)
}

// Broadcaster maintains the group name -> subscribed connections registry and
// fans frames out to a group. Delivery is best effort and at most once.
type Broadcaster interface {
	Subscribe(group string, conn domain.ConnectionID, sink SignalConnection)
	Unsubscribe(group string, conn domain.ConnectionID)
	// Send returns the number of connections the frame was handed to.
	Send(group string, frame Frame) int
}

// Presence tracks per-player last-activity and prunes stale players.
type Presence interface {
	Touch(ctx context.Context, conn domain.ConnectionID) error
	// Prune removes every player idle longer than maxAge, cascading room
	// deletion, and returns the removed connection ids.
	Prune(ctx context.Context, maxAge time.Duration) ([]domain.ConnectionID, error)
}

// Verifier resolves a credential token to an identity. An unknown or empty
// token yields the anonymous (zero) identity, not an error; errors mean the
// resolver itself failed.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}
