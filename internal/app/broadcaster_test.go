package app_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/arena/internal/adapters/signal"
	"github.com/dkeye/arena/internal/app"
	"github.com/dkeye/arena/internal/core"
)

type fakeSink struct {
	mu     sync.Mutex
	frames []core.Frame
	reject bool
}

func (f *fakeSink) TrySend(frame core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return signal.ErrBackpressure
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSink) Close() {}

func (f *fakeSink) received() []core.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func TestLocalBroadcaster_SendReachesExactlyTheGroup(t *testing.T) {
	b := app.NewLocalBroadcaster()

	first := &fakeSink{}
	second := &fakeSink{}
	other := &fakeSink{}

	b.Subscribe("user_42", "conn-1", first)
	b.Subscribe("user_42", "conn-2", second)
	b.Subscribe("user_7", "conn-3", other)

	n := b.Send("user_42", core.Frame(`{"type":"x"}`))
	assert.Equal(t, 2, n)

	require.Len(t, first.received(), 1)
	require.Len(t, second.received(), 1)
	assert.Equal(t, core.Frame(`{"type":"x"}`), first.received()[0])
	assert.Empty(t, other.received())
}

func TestLocalBroadcaster_SendToEmptyGroupIsNoop(t *testing.T) {
	b := app.NewLocalBroadcaster()
	assert.Equal(t, 0, b.Send("nobody", core.Frame("hi")))
}

func TestLocalBroadcaster_UnsubscribeIsIdempotent(t *testing.T) {
	b := app.NewLocalBroadcaster()
	sink := &fakeSink{}

	b.Subscribe("g", "conn-1", sink)
	b.Unsubscribe("g", "conn-1")
	b.Unsubscribe("g", "conn-1")
	b.Unsubscribe("never-existed", "conn-1")

	assert.Equal(t, 0, b.Send("g", core.Frame("hi")))
	assert.Empty(t, sink.received())
}

func TestLocalBroadcaster_SubscribeTwiceDeliversOnce(t *testing.T) {
	b := app.NewLocalBroadcaster()
	sink := &fakeSink{}

	b.Subscribe("g", "conn-1", sink)
	b.Subscribe("g", "conn-1", sink)

	assert.Equal(t, 1, b.Send("g", core.Frame("hi")))
	assert.Len(t, sink.received(), 1)
}

func TestLocalBroadcaster_RejectedSinkNotCounted(t *testing.T) {
	b := app.NewLocalBroadcaster()
	good := &fakeSink{}
	bad := &fakeSink{reject: true}

	b.Subscribe("g", "conn-1", good)
	b.Subscribe("g", "conn-2", bad)

	assert.Equal(t, 1, b.Send("g", core.Frame("hi")))
}

func TestLocalBroadcaster_SingleSenderOrderPreserved(t *testing.T) {
	b := app.NewLocalBroadcaster()
	sink := &fakeSink{}
	b.Subscribe("g", "conn-1", sink)

	b.Send("g", core.Frame("one"))
	b.Send("g", core.Frame("two"))
	b.Send("g", core.Frame("three"))

	frames := sink.received()
	require.Len(t, frames, 3)
	assert.Equal(t, core.Frame("one"), frames[0])
	assert.Equal(t, core.Frame("two"), frames[1])
	assert.Equal(t, core.Frame("three"), frames[2])
}
