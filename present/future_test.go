package present_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/triangle/present"
)

func TestReady(t *testing.T) {
	ready := present.Ready()
	require.True(t, ready.Done())
	require.NoError(t, ready.Wait(context.Background()))
	require.True(t, present.IsReady(ready))
	require.Empty(t, present.Parts(ready))
}

func TestJoin_DropsPlaceholders(t *testing.T) {
	require.True(t, present.IsReady(present.Join()))
	require.True(t, present.IsReady(present.Join(present.Ready(), present.Ready())))
	require.True(t, present.IsReady(present.Join(nil)))

	f := &fakeFuture{}
	require.Same(t, f, present.Join(present.Ready(), f))
}

func TestJoin_Flattens(t *testing.T) {
	a := &fakeFuture{name: "a"}
	b := &fakeFuture{name: "b"}
	c := &fakeFuture{name: "c"}

	joined := present.Join(present.Join(a, b), present.Ready(), c)
	require.Equal(t, []present.Future{a, b, c}, present.Parts(joined))
}

func TestJoin_Done(t *testing.T) {
	a := &fakeFuture{done: true}
	b := &fakeFuture{}

	joined := present.Join(a, b)
	require.False(t, joined.Done())

	b.done = true
	require.True(t, joined.Done())
}

func TestJoin_WaitAndCleanup(t *testing.T) {
	a := &fakeFuture{done: true}
	b := &fakeFuture{completeOnWait: true}

	joined := present.Join(a, b)
	require.NoError(t, joined.Wait(context.Background()))
	require.Equal(t, 1, a.waits)
	require.Equal(t, 1, b.waits)
	require.True(t, b.done)

	joined.CleanupFinished()
	require.Equal(t, 1, a.cleanups)
	require.Equal(t, 1, b.cleanups)
}

func TestJoin_WaitCancelled(t *testing.T) {
	pending := &fakeFuture{}
	joined := present.Join(&fakeFuture{done: true}, pending)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, joined.Wait(ctx), context.Canceled)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "NeedsRecreate", present.StateNeedsRecreate.String())
	require.Equal(t, "Idle", present.StateIdle.String())
	require.Equal(t, "Unknown", present.State(42).String())
	require.Equal(t, "CloseRequested", present.EventCloseRequested.String())
}
