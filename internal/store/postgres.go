package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkeye/arena/internal/domain"
)

// Postgres backs the store with a pgx pool. Joins and leaves lock the room
// row (SELECT ... FOR UPDATE), so the capacity check, the member insert and
// the empty-room delete all serialize per room.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Join(ctx context.Context, key domain.RoomKey, capacity int, conn domain.ConnectionID, id domain.Identity) (*domain.Room, error) {
	// A join can race the delete of a just-emptied room: the room row
	// vanishes between our upsert and our lock. One retry re-creates it.
	for attempt := 0; attempt < 2; attempt++ {
		room, err := s.join(ctx, key, capacity, conn, id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		return room, err
	}
	return nil, fmt.Errorf("join %q: room row kept disappearing", key)
}

func (s *Postgres) join(ctx context.Context, key domain.RoomKey, capacity int, conn domain.ConnectionID, id domain.Identity) (*domain.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin join: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx,
		`INSERT INTO room (key, capacity) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, capacity,
	); err != nil {
		return nil, fmt.Errorf("upsert room: %w", err)
	}

	// Serializes concurrent joins and leaves on this room. ErrNoRows here
	// means the room was deleted out from under us; caller retries.
	var limit int
	if err = tx.QueryRow(ctx,
		`SELECT capacity FROM room WHERE key = $1 FOR UPDATE`, key,
	).Scan(&limit); err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO player (connection_id, room_key, identity_id, identity_name, last_seen)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (connection_id)
		 DO UPDATE SET room_key = EXCLUDED.room_key, last_seen = now()`,
		conn, key, id.ID, id.Name,
	); err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}

	var count int
	if err = tx.QueryRow(ctx,
		`SELECT count(*) FROM player WHERE room_key = $1`, key,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	if count > limit {
		// Rolling back undoes the insert (and the room row, if we created
		// it), so a rejected join leaves nothing behind.
		return nil, domain.ErrRoomFull
	}

	members, err := s.membersTx(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit join: %w", err)
	}
	return &domain.Room{Key: key, Capacity: limit, Members: members}, nil
}

func (s *Postgres) Leave(ctx context.Context, conn domain.ConnectionID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin leave: %w", err)
	}
	defer tx.Rollback(ctx)

	var key domain.RoomKey
	err = tx.QueryRow(ctx,
		`SELECT room_key FROM player WHERE connection_id = $1`, conn,
	).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find player: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`SELECT 1 FROM room WHERE key = $1 FOR UPDATE`, key,
	); err != nil {
		return fmt.Errorf("lock room: %w", err)
	}
	if _, err = tx.Exec(ctx,
		`DELETE FROM player WHERE connection_id = $1`, conn,
	); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}

	var remaining int
	if err = tx.QueryRow(ctx,
		`SELECT count(*) FROM player WHERE room_key = $1`, key,
	).Scan(&remaining); err != nil {
		return fmt.Errorf("count remaining: %w", err)
	}
	if remaining == 0 {
		if _, err = tx.Exec(ctx, `DELETE FROM room WHERE key = $1`, key); err != nil {
			return fmt.Errorf("delete empty room: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit leave: %w", err)
	}
	return nil
}

func (s *Postgres) Members(ctx context.Context, key domain.RoomKey) ([]domain.Identity, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM room WHERE key = $1)`, key,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check room: %w", err)
	}
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	return s.membersTx(ctx, s.pool, key)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Postgres) membersTx(ctx context.Context, q querier, key domain.RoomKey) ([]domain.Identity, error) {
	rows, err := q.Query(ctx,
		`SELECT identity_id, identity_name FROM player WHERE room_key = $1 ORDER BY joined_at, connection_id`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		var id domain.Identity
		if err := rows.Scan(&id.ID, &id.Name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Postgres) Touch(ctx context.Context, conn domain.ConnectionID, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE player SET last_seen = $2 WHERE connection_id = $1`, conn, at)
	if err != nil {
		return fmt.Errorf("touch player: %w", err)
	}
	return nil
}

func (s *Postgres) Stale(ctx context.Context, cutoff time.Time) ([]domain.ConnectionID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT connection_id FROM player WHERE last_seen < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale: %w", err)
	}
	defer rows.Close()

	var out []domain.ConnectionID
	for rows.Next() {
		var conn domain.ConnectionID
		if err := rows.Scan(&conn); err != nil {
			return nil, fmt.Errorf("scan stale: %w", err)
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}

func (s *Postgres) Rooms(ctx context.Context) ([]RoomInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.key, r.capacity, count(p.connection_id)
		 FROM room r LEFT JOIN player p ON p.room_key = r.key
		 GROUP BY r.key, r.capacity ORDER BY r.key`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var out []RoomInfo
	for rows.Next() {
		var info RoomInfo
		if err := rows.Scan(&info.Key, &info.Capacity, &info.MemberCount); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
