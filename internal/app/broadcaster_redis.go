package app

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/core"
	"github.com/dkeye/arena/internal/domain"
)

const broadcastChannel = "arena:broadcast"

type redisFrame struct {
	Group string `json:"group"`
	Frame []byte `json:"frame"`
}

// RedisBroadcaster shares group fan-out across processes. Subscriptions stay
// local to the process that owns the connection; Send publishes on one redis
// channel and every process delivers to its own local subscribers.
type RedisBroadcaster struct {
	local  *LocalBroadcaster
	client *redis.Client
}

func NewRedisBroadcaster(ctx context.Context, client *redis.Client) *RedisBroadcaster {
	b := &RedisBroadcaster{
		local:  NewLocalBroadcaster(),
		client: client,
	}
	go b.receive(ctx)
	return b
}

func (b *RedisBroadcaster) Subscribe(group string, conn domain.ConnectionID, sink core.SignalConnection) {
	b.local.Subscribe(group, conn, sink)
}

func (b *RedisBroadcaster) Unsubscribe(group string, conn domain.ConnectionID) {
	b.local.Unsubscribe(group, conn)
}

// Send publishes the frame for every process, then counts only local
// deliveries. Remote subscriber counts are unknowable without acks, and the
// contract is best effort anyway.
func (b *RedisBroadcaster) Send(group string, frame core.Frame) int {
	payload, err := json.Marshal(redisFrame{Group: group, Frame: frame})
	if err != nil {
		log.Error().Str("module", "app.broadcaster").Err(err).Msg("marshal redis frame")
		return 0
	}
	if err := b.client.Publish(context.Background(), broadcastChannel, payload).Err(); err != nil {
		// Degrade to local-only delivery rather than losing the message.
		log.Error().Str("module", "app.broadcaster").Err(err).Msg("redis publish failed")
		return b.local.Send(group, frame)
	}
	return len(b.localSinksSnapshot(group))
}

func (b *RedisBroadcaster) receive(ctx context.Context) {
	sub := b.client.Subscribe(ctx, broadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rf redisFrame
			if err := json.Unmarshal([]byte(msg.Payload), &rf); err != nil {
				log.Warn().Str("module", "app.broadcaster").Err(err).Msg("bad redis frame")
				continue
			}
			b.local.Send(rf.Group, rf.Frame)
		}
	}
}

func (b *RedisBroadcaster) localSinksSnapshot(group string) []core.SignalConnection {
	b.local.mu.RLock()
	defer b.local.mu.RUnlock()
	sinks := make([]core.SignalConnection, 0, len(b.local.groups[group]))
	for _, sink := range b.local.groups[group] {
		sinks = append(sinks, sink)
	}
	return sinks
}
