package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/core"
	"github.com/dkeye/arena/internal/domain"
)

// Sender identifies the connection an envelope arrived on. The sink is used
// for direct replies (errors, echo, roster) that must not fan out.
type Sender struct {
	Conn     domain.ConnectionID
	Identity domain.Identity
	Room     domain.RoomKey
	Sink     core.SignalConnection
}

type handlerFunc func(ctx context.Context, from Sender, env domain.Envelope) error

// Router dispatches inbound envelopes over a closed vocabulary. Unknown
// types get an error reply and the connection stays open; that policy is
// fixed here, not per call site.
type Router struct {
	broadcaster core.Broadcaster
	coordinator core.Coordinator
	includeSelf bool
	handlers    map[string]handlerFunc
}

func NewRouter(b core.Broadcaster, c core.Coordinator, policy RoomPolicy) *Router {
	r := &Router{
		broadcaster: b,
		coordinator: c,
		includeSelf: policy.IncludeSelfInRoster,
	}
	r.handlers = map[string]handlerFunc{
		domain.TypeChallengeOffer:   r.relayChallenge,
		domain.TypeChallengeAccept:  r.relayChallenge,
		domain.TypeChallengeDecline: r.relayChallenge,
		domain.TypeChallengeCounter: r.relayChallenge,
		domain.TypeRosterQuery:      r.roster,
		domain.TypeEcho:             r.echo,
	}
	return r
}

func (r *Router) Dispatch(ctx context.Context, from Sender, env domain.Envelope) error {
	h, ok := r.handlers[env.Type]
	if !ok {
		r.reply(from, domain.ErrorEnvelope(fmt.Sprintf("unsupported message type %q", env.Type)))
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedType, env.Type)
	}
	return h(ctx, from, env)
}

// relayChallenge forwards the envelope, unchanged, to every subscriber of
// the target group named in it.
func (r *Router) relayChallenge(_ context.Context, from Sender, env domain.Envelope) error {
	if env.GroupName == "" {
		r.reply(from, domain.ErrorEnvelope("group_name is required"))
		return nil
	}
	var payload domain.ChallengePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil || !payload.Valid() {
		r.reply(from, domain.ErrorEnvelope("bad challenge payload"))
		return nil
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	n := r.broadcaster.Send(env.GroupName, frame)
	log.Debug().Str("module", "app.router").
		Str("type", env.Type).
		Str("group", env.GroupName).
		Int("delivered", n).
		Msg("relayed")
	return nil
}

// roster answers only the requester with the current members of its room,
// excluding the requester's own identity unless configured otherwise.
func (r *Router) roster(ctx context.Context, from Sender, env domain.Envelope) error {
	exclude := from.Identity.ID
	if r.includeSelf {
		exclude = ""
	}
	members, err := r.coordinator.Members(ctx, from.Room, exclude)
	if err != nil {
		// A room can vanish between the query and the lookup, e.g. raced
		// with pruning. Tell the requester, keep the connection alive.
		r.reply(from, domain.ErrorEnvelope(fmt.Sprintf("room %q not found", from.Room)))
		return nil
	}
	data, err := json.Marshal(map[string]any{"members": members})
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	r.reply(from, domain.Envelope{Type: domain.TypeRosterQuery, Data: data})
	return nil
}

func (r *Router) echo(_ context.Context, from Sender, env domain.Envelope) error {
	r.reply(from, domain.Envelope{Type: env.Type, Data: env.Data})
	return nil
}

func (r *Router) reply(to Sender, env domain.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Str("module", "app.router").Err(err).Msg("marshal reply")
		return
	}
	if err := to.Sink.TrySend(frame); err != nil {
		log.Warn().Str("module", "app.router").Str("conn", string(to.Conn)).Err(err).Msg("reply dropped")
	}
}
