package app_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/arena/internal/app"
	"github.com/dkeye/arena/internal/domain"
	"github.com/dkeye/arena/internal/store"
)

func newRouterFixture(t *testing.T) (*app.Router, *app.Coordinator, *app.LocalBroadcaster) {
	t.Helper()
	policy := app.DefaultPolicy(2)
	coordinator := app.NewCoordinator(store.NewMemory(), policy)
	broadcaster := app.NewLocalBroadcaster()
	return app.NewRouter(broadcaster, coordinator, policy), coordinator, broadcaster
}

func challengeData(t *testing.T) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(domain.ChallengePayload{
		Colour:      domain.ColourWhite,
		TimeControl: domain.TimeControlRapid,
	})
	require.NoError(t, err)
	return data
}

func decodeEnvelope(t *testing.T, frame []byte) domain.Envelope {
	t.Helper()
	var env domain.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestRouter_UnknownTypeRepliesErrorAndKeepsConnection(t *testing.T) {
	router, _, _ := newRouterFixture(t)
	sink := &fakeSink{}
	from := app.Sender{Conn: "conn-1", Identity: domain.Identity{ID: "a"}, Room: "r1", Sink: sink}

	err := router.Dispatch(context.Background(), from, domain.Envelope{Type: "no.such.type"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	frames := sink.received()
	require.Len(t, frames, 1)
	assert.Equal(t, domain.TypeError, decodeEnvelope(t, frames[0]).Type)
}

func TestRouter_ChallengeRelayedToTargetGroupOnly(t *testing.T) {
	router, _, broadcaster := newRouterFixture(t)

	target := &fakeSink{}
	bystander := &fakeSink{}
	broadcaster.Subscribe("user_bob", "conn-2", target)
	broadcaster.Subscribe("user_carol", "conn-3", bystander)

	sender := &fakeSink{}
	from := app.Sender{Conn: "conn-1", Identity: domain.Identity{ID: "alice"}, Room: "r1", Sink: sender}
	env := domain.Envelope{
		Type:      domain.TypeChallengeOffer,
		Data:      challengeData(t),
		GroupName: "user_bob",
	}

	require.NoError(t, router.Dispatch(context.Background(), from, env))

	frames := target.received()
	require.Len(t, frames, 1)
	got := decodeEnvelope(t, frames[0])
	assert.Equal(t, domain.TypeChallengeOffer, got.Type)
	assert.Equal(t, "user_bob", got.GroupName)
	assert.JSONEq(t, string(env.Data), string(got.Data))

	assert.Empty(t, bystander.received())
	assert.Empty(t, sender.received())
}

func TestRouter_ChallengeWithoutGroupNameRejected(t *testing.T) {
	router, _, _ := newRouterFixture(t)
	sink := &fakeSink{}
	from := app.Sender{Conn: "conn-1", Identity: domain.Identity{ID: "a"}, Room: "r1", Sink: sink}

	err := router.Dispatch(context.Background(), from, domain.Envelope{
		Type: domain.TypeChallengeOffer,
		Data: challengeData(t),
	})
	require.NoError(t, err)

	frames := sink.received()
	require.Len(t, frames, 1)
	assert.Equal(t, domain.TypeError, decodeEnvelope(t, frames[0]).Type)
}

func TestRouter_ChallengeBadPayloadRejected(t *testing.T) {
	router, _, _ := newRouterFixture(t)
	sink := &fakeSink{}
	from := app.Sender{Conn: "conn-1", Identity: domain.Identity{ID: "a"}, Room: "r1", Sink: sink}

	bad, err := json.Marshal(domain.ChallengePayload{Colour: "purple", TimeControl: 42})
	require.NoError(t, err)

	require.NoError(t, router.Dispatch(context.Background(), from, domain.Envelope{
		Type:      domain.TypeChallengeCounter,
		Data:      bad,
		GroupName: "user_bob",
	}))

	frames := sink.received()
	require.Len(t, frames, 1)
	assert.Equal(t, domain.TypeError, decodeEnvelope(t, frames[0]).Type)
}

func TestRouter_RosterExcludesRequester(t *testing.T) {
	ctx := context.Background()

	policy := app.DefaultPolicy(3)
	coordinator := app.NewCoordinator(store.NewMemory(), policy)
	router := app.NewRouter(app.NewLocalBroadcaster(), coordinator, policy)

	for _, p := range []struct{ conn, id string }{
		{"conn-a", "A"}, {"conn-b", "B"}, {"conn-c", "C"},
	} {
		_, err := coordinator.Join(ctx, "r3", domain.ConnectionID(p.conn), domain.Identity{ID: domain.IdentityID(p.id), Name: p.id})
		require.NoError(t, err)
	}

	sink := &fakeSink{}
	from := app.Sender{Conn: "conn-a", Identity: domain.Identity{ID: "A"}, Room: "r3", Sink: sink}
	require.NoError(t, router.Dispatch(ctx, from, domain.Envelope{Type: domain.TypeRosterQuery}))

	frames := sink.received()
	require.Len(t, frames, 1)
	env := decodeEnvelope(t, frames[0])
	assert.Equal(t, domain.TypeRosterQuery, env.Type)

	var payload struct {
		Members []domain.Identity `json:"members"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Len(t, payload.Members, 2)
	assert.Equal(t, domain.IdentityID("B"), payload.Members[0].ID)
	assert.Equal(t, domain.IdentityID("C"), payload.Members[1].ID)
}

func TestRouter_RosterUnknownRoomRepliesError(t *testing.T) {
	router, _, _ := newRouterFixture(t)
	sink := &fakeSink{}
	from := app.Sender{Conn: "conn-1", Identity: domain.Identity{ID: "a"}, Room: "vanished", Sink: sink}

	require.NoError(t, router.Dispatch(context.Background(), from, domain.Envelope{Type: domain.TypeRosterQuery}))

	frames := sink.received()
	require.Len(t, frames, 1)
	assert.Equal(t, domain.TypeError, decodeEnvelope(t, frames[0]).Type)
}

func TestRouter_EchoRepliesOnlyToSender(t *testing.T) {
	router, _, broadcaster := newRouterFixture(t)

	other := &fakeSink{}
	broadcaster.Subscribe("arena_r1", "conn-2", other)

	sink := &fakeSink{}
	from := app.Sender{Conn: "conn-1", Identity: domain.Identity{ID: "a"}, Room: "r1", Sink: sink}
	data := json.RawMessage(`"test message"`)

	require.NoError(t, router.Dispatch(context.Background(), from, domain.Envelope{
		Type: domain.TypeEcho,
		Data: data,
	}))

	frames := sink.received()
	require.Len(t, frames, 1)
	env := decodeEnvelope(t, frames[0])
	assert.Equal(t, domain.TypeEcho, env.Type)
	assert.JSONEq(t, string(data), string(env.Data))
	assert.Empty(t, other.received())
}
