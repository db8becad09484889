// Package client is the thin, connection-per-call API described in
// spec.md §4.4: typed methods that encode one Request, flush, and read
// exactly one Response. It owns a transport handle, never a Timer.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/kubaliski/cycletimer/protocol"
	"github.com/kubaliski/cycletimer/transport"
)

// DefaultTimeout is the per-call timeout applied when none is given to New,
// matching spec.md §5's "client operations should impose a per-call
// timeout."
const DefaultTimeout = 5 * time.Second

// Client issues typed requests through its connector, dialing a fresh
// ClientConn for every call and closing it once that call's single Response
// has been read.
type Client struct {
	connector transport.ClientConnect
	timeout   time.Duration
}

// New returns a Client that dials through connector, applying timeout to
// every call. A zero timeout selects DefaultTimeout.
func New(connector transport.ClientConnect, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{connector: connector, timeout: timeout}
}

// call establishes one connection, writes req, reads exactly one Response,
// and closes the connection. On timeout the connection is closed per
// spec.md §5's client-timeout clause.
func (c *Client) call(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.connector.Connect(ctx)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("client: connect: %w", err)
	}
	defer conn.Close()

	type result struct {
		resp protocol.Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		if err := conn.WriteRequest(req); err != nil {
			ch <- result{err: fmt.Errorf("client: write request: %w", err)}
			return
		}
		resp, err := conn.ReadResponse()
		if err != nil {
			ch <- result{err: fmt.Errorf("client: read response: %w", err)}
			return
		}
		ch <- result{resp: resp}
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		return protocol.Response{}, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

// Start issues the start request.
func (c *Client) Start(ctx context.Context) (protocol.Response, error) {
	return c.call(ctx, protocol.NewStart())
}

// Get issues the get request.
func (c *Client) Get(ctx context.Context) (protocol.Response, error) {
	return c.call(ctx, protocol.NewGet())
}

// Pause issues the pause request.
func (c *Client) Pause(ctx context.Context) (protocol.Response, error) {
	return c.call(ctx, protocol.NewPause())
}

// Resume issues the resume request.
func (c *Client) Resume(ctx context.Context) (protocol.Response, error) {
	return c.call(ctx, protocol.NewResume())
}

// Stop issues the stop request.
func (c *Client) Stop(ctx context.Context) (protocol.Response, error) {
	return c.call(ctx, protocol.NewStop())
}

// SetDuration issues the set_duration request.
func (c *Client) SetDuration(ctx context.Context, seconds uint32) (protocol.Response, error) {
	return c.call(ctx, protocol.NewSetDuration(seconds))
}

// Stats issues the supplemental stats request.
func (c *Client) Stats(ctx context.Context) (protocol.Response, error) {
	return c.call(ctx, protocol.NewStats())
}
