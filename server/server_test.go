package server

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubaliski/cycletimer/client"
	"github.com/kubaliski/cycletimer/protocol"
	"github.com/kubaliski/cycletimer/timer"
	"github.com/kubaliski/cycletimer/transport/inproc"
)

func newTestServer(t *testing.T, clk clock.Clock, tick time.Duration) *Server {
	t.Helper()
	bind, _ := inproc.NewBind()
	srv, err := NewBuilder().
		AddCycle("work", 2).
		AddCycle("break", 2).
		SetLoop(timer.Infinite()).
		SetTickInterval(tick).
		SetClock(clk).
		AddBinding(bind).
		Build()
	require.NoError(t, err)
	return srv
}

func TestBuilder_RequiresAtLeastOneBinding(t *testing.T) {
	_, err := NewBuilder().
		AddCycle("work", 2).
		SetLoop(timer.Infinite()).
		Build()
	assert.Error(t, err)
}

func TestDispatch_LifecycleThroughStartPauseResumeStop(t *testing.T) {
	srv := newTestServer(t, clock.NewMock(), time.Second)

	resp := srv.Dispatch(protocol.NewStart())
	require.True(t, resp.Ok)
	assert.Equal(t, "running", resp.Snapshot.State)

	resp = srv.Dispatch(protocol.NewGet())
	require.True(t, resp.Ok)
	assert.Equal(t, "work", resp.Snapshot.CycleName)

	resp = srv.Dispatch(protocol.NewPause())
	require.True(t, resp.Ok)
	assert.Equal(t, "paused", resp.Snapshot.State)

	resp = srv.Dispatch(protocol.NewResume())
	require.True(t, resp.Ok)
	assert.Equal(t, "running", resp.Snapshot.State)

	resp = srv.Dispatch(protocol.NewStop())
	require.True(t, resp.Ok)
	assert.Equal(t, "stopped", resp.Snapshot.State)

	snap := srv.Stats().GetSnapshot()
	assert.Equal(t, uint64(1), snap.Skipped["work"])
}

func TestDispatch_SetDurationIsAllowedWhileStopped(t *testing.T) {
	srv := newTestServer(t, clock.NewMock(), time.Second)

	resp := srv.Dispatch(protocol.NewSetDuration(10))
	require.True(t, resp.Ok)
	assert.Equal(t, uint32(10), resp.Snapshot.CycleDuration)
	assert.Equal(t, "stopped", resp.Snapshot.State)
}

func TestDispatch_SetDurationRejectsZeroSeconds(t *testing.T) {
	srv := newTestServer(t, clock.NewMock(), time.Second)

	req := protocol.Request{Kind: protocol.KindSetDuration, Params: &protocol.RequestParams{Seconds: 0}}
	resp := srv.Dispatch(req)
	require.False(t, resp.Ok)
	assert.Equal(t, protocol.CodeConfigError, resp.Error.Code)
}

func TestDispatch_RejectsUnknownKind(t *testing.T) {
	srv := newTestServer(t, clock.NewMock(), time.Second)

	resp := srv.Dispatch(protocol.Request{Kind: "bogus"})
	require.False(t, resp.Ok)
	assert.Equal(t, protocol.CodeDecodeError, resp.Error.Code)
}

func TestDispatch_StatsReflectsTimerAndRecorder(t *testing.T) {
	srv := newTestServer(t, clock.NewMock(), time.Second)
	srv.Dispatch(protocol.NewStart())

	resp := srv.Dispatch(protocol.NewStats())
	require.True(t, resp.Ok)
	require.NotNil(t, resp.Stats)
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, "work", resp.Snapshot.CycleName)
	assert.Empty(t, resp.Stats.Completed)
}

func TestRun_TickDrivenCompletionRecordsStatsAndStreak(t *testing.T) {
	mock := clock.NewMock()
	srv := newTestServer(t, mock, time.Second)
	srv.Dispatch(protocol.NewStart())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond) // let runTickTask register its Ticker with the mock clock

	for i := 0; i < 4; i++ {
		mock.Add(time.Second)
	}

	require.Eventually(t, func() bool {
		snap := srv.Stats().GetSnapshot()
		return snap.Completed["work"] == 1 && snap.Completed["break"] == 1 && snap.CurrentStreak == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRun_ReturnsOnceAcceptLoopsAndTickTaskHaveDrained(t *testing.T) {
	srv := newTestServer(t, clock.NewMock(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after ctx cancellation")
	}
}

func TestEndToEnd_ClientAgainstRunningServer(t *testing.T) {
	bind, connector := inproc.NewBind()
	srv, err := NewBuilder().
		AddCycle("work", 60).
		SetLoop(timer.FixedLoop(1)).
		SetTickInterval(time.Second).
		AddBinding(bind).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	c := client.New(connector, time.Second)

	resp, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Ok)

	resp, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "work", resp.Snapshot.CycleName)

	resp, err = c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stopped", resp.Snapshot.State)
}
