package domain

import "time"

type (
	RoomKey      string
	ConnectionID string
)

// Room is a named, capacity-bounded membership group. Rooms are created on
// the first successful join of an unknown key and deleted the moment the last
// player leaves.
type Room struct {
	Key      RoomKey
	Capacity int
	Members  []Identity
}

// Player binds one live connection (and its identity) to a room. At most one
// row exists per connection id.
type Player struct {
	Room         RoomKey
	ConnectionID ConnectionID
	Identity     Identity
	LastSeen     time.Time
}
