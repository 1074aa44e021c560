package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/domain"
	"github.com/dkeye/arena/internal/store"
)

// PresenceStore tracks last activity per player and removes the stale ones
// with full leave semantics, so pruning the last player of a room deletes
// the room exactly like a normal disconnect would.
type PresenceStore struct {
	store store.Store
}

func NewPresenceStore(s store.Store) *PresenceStore {
	return &PresenceStore{store: s}
}

func (p *PresenceStore) Touch(ctx context.Context, conn domain.ConnectionID) error {
	return p.store.Touch(ctx, conn, time.Now())
}

func (p *PresenceStore) Prune(ctx context.Context, maxAge time.Duration) ([]domain.ConnectionID, error) {
	stale, err := p.store.Stale(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("select stale players: %w", err)
	}

	pruned := make([]domain.ConnectionID, 0, len(stale))
	for _, conn := range stale {
		if err := p.store.Leave(ctx, conn); err != nil {
			log.Error().Str("module", "app.presence").Str("conn", string(conn)).Err(err).Msg("prune leave failed")
			continue
		}
		pruned = append(pruned, conn)
	}
	return pruned, nil
}

// Sweeper drives the prune on a fixed interval, independent of connection
// traffic. Pruned connections also get their socket torn down through the
// registry; their gateway cleanup is idempotent against the already-deleted
// player row.
type Sweeper struct {
	Presence *PresenceStore
	Registry *Registry
	MaxAge   time.Duration
	Interval time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.presence").
		Dur("interval", s.Interval).
		Dur("max_age", s.MaxAge).
		Msg("presence sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.presence").Msg("presence sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one prune pass. Run calls it on every tick; tests call it
// directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	pruned, err := s.Presence.Prune(ctx, s.MaxAge)
	if err != nil {
		// Transient store trouble is not fatal; the next tick retries.
		log.Error().Str("module", "app.presence").Err(err).Msg("prune sweep failed")
		return
	}
	for _, conn := range pruned {
		s.Registry.Cancel(conn)
	}
	if len(pruned) > 0 {
		log.Info().Str("module", "app.presence").Int("pruned", len(pruned)).Msg("pruned stale players")
	}
}
