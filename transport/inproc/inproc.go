// Package inproc is an in-process transport for tests: connecting calls
// net.Pipe to synthesize a duplex in-memory stream, so the server and
// protocol logic can be exercised without touching a real socket. It
// satisfies the same transport.ServerBind/ClientConnect contracts as tcp,
// per spec.md §9's "transport pluggability" design note.
package inproc

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/kubaliski/cycletimer/transport"
)

type conn struct {
	transport.Framer
	nc net.Conn
}

func (c conn) Close() error { return c.nc.Close() }

// Bind is a transport.ServerBind with no real network address: Connect on
// its paired Connector hands it one end of a net.Pipe per call.
type Bind struct {
	mu      sync.Mutex
	pending chan net.Conn
	closed  bool
}

// NewBind creates a bound pair: the returned Bind accepts connections
// created by calling Connect on the returned Connector.
func NewBind() (*Bind, *Connector) {
	b := &Bind{pending: make(chan net.Conn)}
	return b, &Connector{bind: b}
}

// Addr reports a synthetic address, since there is no real network endpoint.
func (b *Bind) Addr() string { return "inproc" }

// Accept blocks until a paired Connector calls Connect, ctx is canceled, or
// Close is called.
func (b *Bind) Accept(ctx context.Context) (transport.ServerConn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case nc, ok := <-b.pending:
		if !ok {
			return nil, errors.New("inproc: bind closed")
		}
		return conn{Framer: transport.NewFramer(nc), nc: nc}, nil
	}
}

// Close unblocks any pending Accept with an error and rejects future
// Connect calls.
func (b *Bind) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.pending)
	return nil
}

// Connector is the transport.ClientConnect half of an inproc pair.
type Connector struct {
	bind *Bind
}

// Connect creates a net.Pipe, hands the server side to the paired Bind's
// Accept, and returns the client side.
func (c *Connector) Connect(ctx context.Context) (transport.ClientConn, error) {
	serverSide, clientSide := net.Pipe()

	c.bind.mu.Lock()
	if c.bind.closed {
		c.bind.mu.Unlock()
		serverSide.Close()
		clientSide.Close()
		return nil, errors.New("inproc: bind closed")
	}
	c.bind.mu.Unlock()

	select {
	case <-ctx.Done():
		serverSide.Close()
		clientSide.Close()
		return nil, ctx.Err()
	case c.bind.pending <- serverSide:
		return conn{Framer: transport.NewFramer(clientSide), nc: clientSide}, nil
	}
}
