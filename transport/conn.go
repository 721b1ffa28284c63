// Package transport wraps a raw net.Conn with the connect/read/write
// deadlines the Bolt client needs, without pulling protocol semantics into
// the socket layer.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/gobolt/driver/bolterr"
)

// Conn is a dialed socket plus the deadlines applied to each operation.
type Conn struct {
	net.Conn
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Dial opens a TCP connection to addr, optionally upgrading to TLS, honoring
// ctx for the connect phase.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, readTimeout, writeTimeout time.Duration) (*Conn, error) {
	d := net.Dialer{}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &bolterr.ConnectionFailed{Addr: addr, Err: err}
	}

	nc := raw
	if tlsConfig != nil {
		tc := tls.Client(raw, tlsConfig)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, &bolterr.ConnectionFailed{Addr: addr, Err: fmt.Errorf("tls handshake: %w", err)}
		}
		nc = tc
	}

	return &Conn{Conn: nc, addr: addr, readTimeout: readTimeout, writeTimeout: writeTimeout}, nil
}

// Wrap adapts an already-established net.Conn (e.g. one end of a net.Pipe
// in tests, or a connection handed off from elsewhere) with the same
// deadline behavior Dial applies.
func Wrap(nc net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{Conn: nc, addr: nc.RemoteAddr().String(), readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// Addr returns the dialed remote address.
func (c *Conn) Addr() string { return c.addr }

// SetTimeouts replaces the per-read and per-write deadlines applied to
// future operations, letting a caller shorten the connect-phase timeout
// used for the handshake into the longer steady-state query timeout once
// negotiation succeeds.
func (c *Conn) SetTimeouts(readTimeout, writeTimeout time.Duration) {
	c.readTimeout = readTimeout
	c.writeTimeout = writeTimeout
}

// Read applies the configured read deadline before delegating to the
// underlying socket.
func (c *Conn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	n, err := c.Conn.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, &bolterr.Timeout{Op: "read"}
		}
		return n, &bolterr.ConnectionFailed{Addr: c.addr, Err: err}
	}
	return n, nil
}

// Write applies the configured write deadline before delegating to the
// underlying socket.
func (c *Conn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	n, err := c.Conn.Write(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, &bolterr.Timeout{Op: "write"}
		}
		return n, &bolterr.ConnectionFailed{Addr: c.addr, Err: err}
	}
	return n, nil
}
