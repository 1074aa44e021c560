package app

import (
	"fmt"

	"github.com/dkeye/arena/internal/domain"
)

// GroupNamer decides the broadcaster group names a connection subscribes to.
type GroupNamer interface {
	RoomGroup(key domain.RoomKey) string
	UserGroup(id domain.IdentityID) string
}

// PrefixNamer is the default naming strategy: "arena_<room>" and "user_<id>".
type PrefixNamer struct {
	RoomPrefix string
	UserPrefix string
}

func (n PrefixNamer) RoomGroup(key domain.RoomKey) string {
	return fmt.Sprintf("%s%s", n.RoomPrefix, key)
}

func (n PrefixNamer) UserGroup(id domain.IdentityID) string {
	return fmt.Sprintf("%s%s", n.UserPrefix, id)
}

// RoomPolicy bundles the per-room knobs: how many players fit, whether a
// roster query includes the asking player, and how groups are named.
type RoomPolicy struct {
	Capacity            int
	IncludeSelfInRoster bool
	Namer               GroupNamer
}

func DefaultPolicy(capacity int) RoomPolicy {
	return RoomPolicy{
		Capacity: capacity,
		Namer:    PrefixNamer{RoomPrefix: "arena_", UserPrefix: "user_"},
	}
}
