package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/core"
	"github.com/dkeye/arena/internal/domain"
)

// LocalBroadcaster is the in-process group registry. Each connection's own
// task edits only its own subscriptions; the mutex protects the maps, not
// any cross-connection protocol.
type LocalBroadcaster struct {
	mu     sync.RWMutex
	groups map[string]map[domain.ConnectionID]core.SignalConnection
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{
		groups: make(map[string]map[domain.ConnectionID]core.SignalConnection),
	}
}

func (b *LocalBroadcaster) Subscribe(group string, conn domain.ConnectionID, sink core.SignalConnection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.groups[group]
	if !ok {
		subs = make(map[domain.ConnectionID]core.SignalConnection)
		b.groups[group] = subs
	}
	subs[conn] = sink
}

func (b *LocalBroadcaster) Unsubscribe(group string, conn domain.ConnectionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.groups[group]
	if !ok {
		return
	}
	delete(subs, conn)
	if len(subs) == 0 {
		delete(b.groups, group)
	}
}

// Send fans the frame out to every subscriber of the group. Fire and forget:
// a full or closed connection drops the frame, it is never retried. Sending
// to a group nobody subscribed to is a no-op.
func (b *LocalBroadcaster) Send(group string, frame core.Frame) int {
	b.mu.RLock()
	sinks := make([]core.SignalConnection, 0, len(b.groups[group]))
	for _, sink := range b.groups[group] {
		sinks = append(sinks, sink)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sink := range sinks {
		if err := sink.TrySend(frame); err != nil {
			log.Warn().Str("module", "app.broadcaster").Str("group", group).Err(err).Msg("dropped frame")
			continue
		}
		delivered++
	}
	return delivered
}
