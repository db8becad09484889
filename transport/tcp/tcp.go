// Package tcp is the reference transport: length-prefixed framing (see
// transport.Framer) over a plain stream socket. One connection per client
// request is sufficient; the framing layer does not reject pipelining.
//
// Grounded on the accept-loop / per-connection-goroutine / context
// cancellation shape of nabbar-golib's socket/server/tcp package, trimmed to
// the slice this spec needs: no TLS, no idle timeouts, no connection
// callbacks.
package tcp

import (
	"context"
	"net"

	"github.com/kubaliski/cycletimer/transport"
)

// conn adapts a net.Conn to transport.ServerConn/transport.ClientConn.
type conn struct {
	transport.Framer
	nc net.Conn
}

func (c conn) Close() error { return c.nc.Close() }

// Bind listens on addr (host:port) and accepts transport.ServerConn values.
type Bind struct {
	ln net.Listener
}

// Listen opens a TCP listener on addr.
func Listen(addr string) (*Bind, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Bind{ln: ln}, nil
}

// Addr returns the listener's bound address (useful when addr was ":0").
func (b *Bind) Addr() string { return b.ln.Addr().String() }

// Accept blocks until a connection arrives, ctx is canceled, or the listener
// is closed. It runs the listener's Accept in a goroutine and races it
// against ctx.Done(): on cancellation it returns ctx.Err() at once, while
// that goroutine stays blocked until a connection arrives or Close is
// called. After Close, Accept returns the net package's "use of closed
// network connection" error.
func (b *Bind) Accept(ctx context.Context) (transport.ServerConn, error) {
	type result struct {
		nc  net.Conn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		nc, err := b.ln.Accept()
		ch <- result{nc: nc, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return conn{Framer: transport.NewFramer(r.nc), nc: r.nc}, nil
	}
}

// Close stops accepting new connections.
func (b *Bind) Close() error { return b.ln.Close() }

// Connector dials a TCP address, implementing transport.ClientConnect.
type Connector struct {
	Addr string
}

// Connect dials Addr and returns a transport.ClientConn.
func (c Connector) Connect(ctx context.Context) (transport.ClientConn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, err
	}
	return conn{Framer: transport.NewFramer(nc), nc: nc}, nil
}
