// Package store persists room and player records. Two implementations exist:
// a postgres one for real deployments and a mutex-guarded in-memory one for
// dev mode and tests. Both give the same answers under concurrent use; the
// capacity check and the member insert are a single atomic step.
package store

import (
	"context"
	"time"

	"github.com/dkeye/arena/internal/domain"
)

type RoomInfo struct {
	Key         domain.RoomKey `json:"key"`
	Capacity    int            `json:"capacity"`
	MemberCount int            `json:"member_count"`
}

type Store interface {
	// Join looks up or creates the room and inserts the player, checking
	// capacity in the same atomic step. A connection that already has a
	// player row is refreshed, not duplicated. Returns domain.ErrRoomFull
	// with no mutation when the room is at capacity.
	Join(ctx context.Context, key domain.RoomKey, capacity int, conn domain.ConnectionID, id domain.Identity) (*domain.Room, error)

	// Leave removes the player row for the connection if present, and the
	// room row when that removal emptied it. Safe to call twice.
	Leave(ctx context.Context, conn domain.ConnectionID) error

	// Members returns the room's identities in join order, or
	// domain.ErrRoomNotFound.
	Members(ctx context.Context, key domain.RoomKey) ([]domain.Identity, error)

	// Touch refreshes last_seen for the connection. No-op when the row is
	// already gone.
	Touch(ctx context.Context, conn domain.ConnectionID, at time.Time) error

	// Stale returns the connections whose last_seen is before cutoff.
	Stale(ctx context.Context, cutoff time.Time) ([]domain.ConnectionID, error)

	// Rooms lists all rooms with member counts.
	Rooms(ctx context.Context) ([]RoomInfo, error)
}
