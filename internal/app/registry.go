package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/domain"
)

// Registry tracks live connections so something other than the connection's
// own task (the prune sweep, shutdown) can tear one down. Cancelling the
// bound context runs the gateway's cleanup path; the registry never touches
// subscriptions or player rows itself.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnectionID]context.CancelFunc)}
}

func (r *Registry) Bind(conn domain.ConnectionID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn] = cancel
	log.Debug().Str("module", "app.registry").Str("conn", string(conn)).Msg("bound connection")
}

func (r *Registry) Unbind(conn domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn)
	log.Debug().Str("module", "app.registry").Str("conn", string(conn)).Msg("unbound connection")
}

func (r *Registry) Cancel(conn domain.ConnectionID) bool {
	r.mu.RLock()
	cancel, ok := r.conns[conn]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	cancel()
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Msg("canceled connection")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
