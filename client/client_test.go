package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubaliski/cycletimer/client"
	"github.com/kubaliski/cycletimer/protocol"
	"github.com/kubaliski/cycletimer/timer"
	"github.com/kubaliski/cycletimer/transport"
	"github.com/kubaliski/cycletimer/transport/inproc"
)

func zeroSnapshot() timer.Snapshot {
	return timer.Snapshot{
		Cycles:      timer.CyclesSet{{Name: "work", DurationSeconds: 60}},
		Cycle:       timer.Cycle{Name: "work", DurationSeconds: 60},
		CyclesCount: timer.Infinite(),
	}
}

// echoServer accepts connections until the bind closes and, on each one,
// reflects back an OkResponse carrying a fixed snapshot for every request it
// reads, until that connection closes.
func echoServer(t *testing.T, bind *inproc.Bind) {
	t.Helper()
	go func() {
		for {
			conn, err := bind.Accept(context.Background())
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				for {
					req, err := conn.ReadRequest()
					if err != nil {
						return
					}
					_ = req
					if err := conn.WriteResponse(protocol.OkResponse(zeroSnapshot())); err != nil {
						return
					}
				}
			}()
		}
	}()
}

func TestClient_CallsRoundTripThroughInproc(t *testing.T) {
	bind, connector := inproc.NewBind()
	defer bind.Close()
	echoServer(t, bind)

	c := client.New(connector, time.Second)

	for _, call := range []func(context.Context) (protocol.Response, error){
		c.Start, c.Get, c.Pause, c.Resume, c.Stop, c.Stats,
	} {
		resp, err := call(context.Background())
		require.NoError(t, err)
		assert.True(t, resp.Ok)
	}

	resp, err := c.SetDuration(context.Background(), 90)
	require.NoError(t, err)
	assert.True(t, resp.Ok)
}

func TestClient_DefaultTimeoutAppliedWhenZero(t *testing.T) {
	bind, connector := inproc.NewBind()
	defer bind.Close()
	echoServer(t, bind)

	c := client.New(connector, 0)
	resp, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Ok)
}

func TestClient_TimesOutWhenServerNeverResponds(t *testing.T) {
	bind, connector := inproc.NewBind()
	defer bind.Close()

	go func() {
		conn, err := bind.Accept(context.Background())
		if err != nil {
			return
		}
		defer conn.Close()
		// Accept the request but never write a response.
		_, _ = conn.ReadRequest()
		<-context.Background().Done()
	}()

	c := client.New(connector, 20*time.Millisecond)
	_, err := c.Get(context.Background())
	assert.Error(t, err)
}

func TestClient_PropagatesConnectError(t *testing.T) {
	bind, connector := inproc.NewBind()
	require.NoError(t, bind.Close())

	c := client.New(connector, time.Second)
	_, err := c.Get(context.Background())
	assert.Error(t, err)
}

var _ transport.ClientConnect = (*inproc.Connector)(nil)
