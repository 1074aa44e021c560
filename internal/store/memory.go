package store

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/arena/internal/domain"
)

type memRoom struct {
	capacity int
	members  []*domain.Player // join order
}

// Memory keeps all state behind one mutex, which makes every operation
// trivially atomic. Used in dev mode and throughout the tests.
type Memory struct {
	mu      sync.Mutex
	rooms   map[domain.RoomKey]*memRoom
	players map[domain.ConnectionID]*domain.Player
}

func NewMemory() *Memory {
	return &Memory{
		rooms:   make(map[domain.RoomKey]*memRoom),
		players: make(map[domain.ConnectionID]*domain.Player),
	}
}

func (m *Memory) Join(_ context.Context, key domain.RoomKey, capacity int, conn domain.ConnectionID, id domain.Identity) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.players[conn]; ok {
		// Subsequent connection with a known connection id refreshes the
		// existing row instead of creating a second one.
		p.LastSeen = time.Now()
		return m.snapshotLocked(p.Room), nil
	}

	room, ok := m.rooms[key]
	if !ok {
		room = &memRoom{capacity: capacity}
		m.rooms[key] = room
	}
	if len(room.members) >= room.capacity {
		if len(room.members) == 0 {
			delete(m.rooms, key)
		}
		return nil, domain.ErrRoomFull
	}

	p := &domain.Player{
		Room:         key,
		ConnectionID: conn,
		Identity:     id,
		LastSeen:     time.Now(),
	}
	room.members = append(room.members, p)
	m.players[conn] = p
	return m.snapshotLocked(key), nil
}

func (m *Memory) Leave(_ context.Context, conn domain.ConnectionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(conn)
	return nil
}

func (m *Memory) leaveLocked(conn domain.ConnectionID) {
	p, ok := m.players[conn]
	if !ok {
		return
	}
	delete(m.players, conn)

	room, ok := m.rooms[p.Room]
	if !ok {
		return
	}
	for i, member := range room.members {
		if member.ConnectionID == conn {
			room.members = append(room.members[:i], room.members[i+1:]...)
			break
		}
	}
	if len(room.members) == 0 {
		delete(m.rooms, p.Room)
	}
}

func (m *Memory) Members(_ context.Context, key domain.RoomKey) ([]domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[key]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	out := make([]domain.Identity, 0, len(room.members))
	for _, p := range room.members {
		out = append(out, p.Identity)
	}
	return out, nil
}

func (m *Memory) Touch(_ context.Context, conn domain.ConnectionID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[conn]; ok {
		p.LastSeen = at
	}
	return nil
}

func (m *Memory) Stale(_ context.Context, cutoff time.Time) ([]domain.ConnectionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ConnectionID
	for conn, p := range m.players {
		if p.LastSeen.Before(cutoff) {
			out = append(out, conn)
		}
	}
	return out, nil
}

func (m *Memory) Rooms(_ context.Context) ([]RoomInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RoomInfo, 0, len(m.rooms))
	for key, room := range m.rooms {
		out = append(out, RoomInfo{Key: key, Capacity: room.capacity, MemberCount: len(room.members)})
	}
	return out, nil
}

func (m *Memory) snapshotLocked(key domain.RoomKey) *domain.Room {
	room := m.rooms[key]
	members := make([]domain.Identity, 0, len(room.members))
	for _, p := range room.members {
		members = append(members, p.Identity)
	}
	return &domain.Room{Key: key, Capacity: room.capacity, Members: members}
}
