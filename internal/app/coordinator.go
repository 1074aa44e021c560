package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/domain"
	"github.com/dkeye/arena/internal/store"
)

// Coordinator enforces room capacity and ownership of room/player records.
// All mutation goes through the store, which guarantees the check-and-insert
// is one atomic step.
type Coordinator struct {
	store  store.Store
	policy RoomPolicy
}

func NewCoordinator(s store.Store, policy RoomPolicy) *Coordinator {
	return &Coordinator{store: s, policy: policy}
}

func (c *Coordinator) Join(ctx context.Context, key domain.RoomKey, conn domain.ConnectionID, id domain.Identity) (*domain.Room, error) {
	if key == "" || len(key) > domain.MaxRoomKeyLen {
		return nil, domain.ErrRoomKeyInvalid
	}
	room, err := c.store.Join(ctx, key, c.policy.Capacity, conn, id)
	if err != nil {
		return nil, fmt.Errorf("join room %q: %w", key, err)
	}
	log.Info().Str("module", "app.coordinator").
		Str("room", string(key)).
		Str("conn", string(conn)).
		Str("identity", string(id.ID)).
		Int("members", len(room.Members)).
		Msg("player joined")
	return room, nil
}

func (c *Coordinator) Leave(ctx context.Context, conn domain.ConnectionID) error {
	if err := c.store.Leave(ctx, conn); err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	log.Info().Str("module", "app.coordinator").Str("conn", string(conn)).Msg("player left")
	return nil
}

func (c *Coordinator) Members(ctx context.Context, key domain.RoomKey, exclude domain.IdentityID) ([]domain.Identity, error) {
	members, err := c.store.Members(ctx, key)
	if err != nil {
		return nil, err
	}
	if exclude == "" {
		return members, nil
	}
	out := members[:0]
	for _, m := range members {
		if m.ID != exclude {
			out = append(out, m)
		}
	}
	return out, nil
}

// Rooms lists every room with its member count, for the stats endpoint.
func (c *Coordinator) Rooms(ctx context.Context) ([]store.RoomInfo, error) {
	return c.store.Rooms(ctx)
}

// Policy exposes the group naming and roster strategy to the gateway.
func (c *Coordinator) Policy() RoomPolicy {
	return c.policy
}
