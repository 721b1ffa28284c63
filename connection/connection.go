// Package connection implements a single Bolt link: handshake, HELLO/LOGON
// authentication, and the RUN/PULL/BEGIN/COMMIT/ROLLBACK/RESET/GOODBYE
// request cycle, enforcing the protocol state machine of §4.4 and buffering
// partially-read server replies per §4.4's "reading with buffering" rule.
package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gobolt/driver/bolterr"
	"github.com/gobolt/driver/boltlog"
	"github.com/gobolt/driver/framing"
	"github.com/gobolt/driver/message"
	"github.com/gobolt/driver/packstream"
	"github.com/gobolt/driver/transport"
)

// Connection is a single negotiated, authenticated Bolt link. It is not
// safe for concurrent use: the pool (or caller) must ensure exclusive
// ownership for the duration of any operation sequence.
type Connection struct {
	conn    *transport.Conn
	version framing.BoltVersion
	state   State
	recvBuf []byte

	// correlationID is generated locally so log lines can be tied to one
	// physical link even before HELLO completes; it stays the log key after
	// HELLO too. The server's own connection_id, once known, is kept
	// separately in serverConnID.
	correlationID string
	serverConnID  string

	// Unhealthy is set when a codec or protocol error leaves the stream in
	// an unrecoverable position. It is checked by the pool on checkin.
	unhealthy bool

	log boltlog.Logger
}

// SetLogger replaces the connection's logger; nil restores boltlog.Default.
func (c *Connection) SetLogger(l boltlog.Logger) { c.log = l }

// Dial opens a TCP (optionally TLS) connection to addr and performs the
// Bolt handshake, leaving the Connection in Negotiating.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, connectTimeout, queryTimeout time.Duration) (*Connection, error) {
	tc, err := transport.Dial(ctx, addr, tlsConfig, connectTimeout, connectTimeout)
	if err != nil {
		return nil, err
	}

	v, err := framing.Handshake(ctx, tc, framing.ProposalOrder())
	if err != nil {
		_ = tc.Close()
		return nil, err
	}
	tc.SetTimeouts(queryTimeout, queryTimeout)

	return &Connection{conn: tc, version: v, state: Negotiating, correlationID: uuid.New().String()}, nil
}

// CorrelationID returns the locally generated identifier used to tie log
// lines to this link. ServerConnectionID returns the server's own
// connection_id from HELLO's SUCCESS metadata, or "" before authentication.
func (c *Connection) CorrelationID() string      { return c.correlationID }
func (c *Connection) ServerConnectionID() string { return c.serverConnID }

// State reports the connection's current protocol state.
func (c *Connection) State() State { return c.state }

// Version reports the negotiated Bolt protocol version.
func (c *Connection) Version() framing.BoltVersion { return c.version }

// Unhealthy reports whether the connection should be discarded rather than
// reused, per the pool's checkin validation rule.
func (c *Connection) Unhealthy() bool { return c.unhealthy || c.state == Defunct }

// markDefunct transitions to Defunct and flags the connection unhealthy;
// used whenever a codec or transport error leaves the stream desynchronized.
func (c *Connection) markDefunct() {
	c.state = Defunct
	c.unhealthy = true
	boltlog.For(c.log, c.correlationID).Warnf("connection marked defunct")
}

// markFailed transitions to Failed and logs it, since only RESET can recover
// from this state and an operator watching logs needs to know it happened.
func (c *Connection) markFailed(to State) {
	c.state = to
	boltlog.For(c.log, c.correlationID).Debugf("connection failed, awaiting RESET")
}

// Authenticate performs HELLO, merging auth fields into a single message by
// default; if the server answers FAILURE it retries with the split
// HELLO-then-LOGON sequence per §4.4's authentication note.
func (c *Connection) Authenticate(ctx context.Context, userAgent string, auth map[string]packstream.Value) error {
	if c.state != Negotiating {
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("authenticate called in state %s", c.state)}
	}

	merged := map[string]packstream.Value{"user_agent": userAgent}
	for k, v := range auth {
		merged[k] = v
	}

	c.state = Authenticating
	if err := c.sendStructure(message.Hello(merged)); err != nil {
		return err
	}
	resp, err := c.readResponse(ctx)
	if err != nil {
		return err
	}

	switch r := resp.(type) {
	case *message.Success:
		c.state = Ready
		if id, ok := r.Meta["connection_id"].(string); ok {
			c.serverConnID = id
		}
		return nil
	case *message.Failure:
		return c.authenticateSplit(ctx, userAgent, auth, r)
	default:
		c.markDefunct()
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("unexpected response to HELLO: %T", resp)}
	}
}

// authenticateSplit retries authentication as a bare HELLO (user_agent
// only) followed by LOGON, for servers that reject merged credentials.
func (c *Connection) authenticateSplit(ctx context.Context, userAgent string, auth map[string]packstream.Value, first *message.Failure) error {
	if err := c.sendStructure(message.Hello(map[string]packstream.Value{"user_agent": userAgent})); err != nil {
		return err
	}
	resp, err := c.readResponse(ctx)
	if err != nil {
		return err
	}
	if _, ok := resp.(*message.Success); !ok {
		c.markDefunct()
		return &bolterr.AuthFailed{Code: first.Code(), Message: first.Message()}
	}

	if err := c.sendStructure(message.Logon(auth)); err != nil {
		return err
	}
	resp, err = c.readResponse(ctx)
	if err != nil {
		return err
	}
	f, ok := resp.(*message.Failure)
	if ok {
		c.markDefunct()
		return &bolterr.AuthFailed{Code: f.Code(), Message: f.Message()}
	}
	s, ok := resp.(*message.Success)
	if !ok {
		c.markDefunct()
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("unexpected response to LOGON: %T", resp)}
	}
	if id, ok := s.Meta["connection_id"].(string); ok {
		c.serverConnID = id
	}

	c.state = Ready
	return nil
}

// Run writes RUN and returns the field names from its SUCCESS response,
// moving the connection into Streaming (from Ready) or TxStreaming (from
// TxReady).
func (c *Connection) Run(ctx context.Context, query string, params, extra map[string]packstream.Value) ([]string, error) {
	if c.state != Ready && c.state != TxReady {
		return nil, &bolterr.ProtocolError{Reason: fmt.Sprintf("run called in state %s", c.state)}
	}

	if err := c.sendStructure(message.Run(query, params, extra)); err != nil {
		return nil, err
	}
	resp, err := c.readResponse(ctx)
	if err != nil {
		return nil, err
	}

	switch r := resp.(type) {
	case *message.Success:
		to, ok := advance(c.state, triggerRunSuccess)
		if !ok {
			c.markDefunct()
			return nil, &bolterr.ProtocolError{Reason: "no legal transition for RUN/SUCCESS"}
		}
		c.state = to
		return fieldsFromMeta(r.Meta), nil
	case *message.Failure:
		to, _ := advance(c.state, triggerFailure)
		c.markFailed(to)
		return nil, &bolterr.QueryFailed{Code: r.Code(), Message: r.Message()}
	default:
		c.markDefunct()
		return nil, &bolterr.ProtocolError{Reason: fmt.Sprintf("unexpected response to RUN: %T", resp)}
	}
}

func fieldsFromMeta(meta map[string]packstream.Value) []string {
	raw, _ := meta["fields"].([]packstream.Value)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// PullResult carries one batch of a PULL's outcome.
type PullResult struct {
	Records []message.Record
	HasMore bool
	Summary map[string]packstream.Value
}

// Pull writes PULL{n, qid} and consumes RECORDs until a terminal SUCCESS or
// FAILURE, rejecting the call locally (without touching the wire) when the
// connection is not in a streaming state.
func (c *Connection) Pull(ctx context.Context, n int, qid int64) (*PullResult, error) {
	if c.state != Streaming && c.state != TxStreaming {
		return nil, &bolterr.ProtocolError{Reason: fmt.Sprintf("pull called in state %s without a prior run", c.state)}
	}

	if err := c.sendStructure(message.Pull(n, qid)); err != nil {
		return nil, err
	}

	result := &PullResult{}
	for {
		resp, err := c.readResponse(ctx)
		if err != nil {
			return nil, err
		}

		switch r := resp.(type) {
		case *message.Record:
			result.Records = append(result.Records, *r)
		case *message.Success:
			hasMore, _ := r.Meta["has_more"].(bool)
			trig := triggerPullDone
			if hasMore {
				trig = triggerPullMore
			}
			to, ok := advance(c.state, trig)
			if !ok {
				c.markDefunct()
				return nil, &bolterr.ProtocolError{Reason: "no legal transition for PULL/SUCCESS"}
			}
			c.state = to
			result.HasMore = hasMore
			result.Summary = r.Meta
			return result, nil
		case *message.Failure:
			to, _ := advance(c.state, triggerFailure)
			c.markFailed(to)
			return nil, &bolterr.QueryFailed{Code: r.Code(), Message: r.Message()}
		default:
			c.markDefunct()
			return nil, &bolterr.ProtocolError{Reason: fmt.Sprintf("unexpected response to PULL: %T", resp)}
		}
	}
}

// Discard writes DISCARD{n, qid} and consumes RECORDs silently until a
// terminal SUCCESS or FAILURE, for abandoning a stream's remaining rows
// without transferring them — used when a session or cursor is released
// mid-flight so no unread RECORDs carry into the connection's next use.
func (c *Connection) Discard(ctx context.Context, n int, qid int64) (*PullResult, error) {
	if c.state != Streaming && c.state != TxStreaming {
		return nil, &bolterr.ProtocolError{Reason: fmt.Sprintf("discard called in state %s without a prior run", c.state)}
	}

	if err := c.sendStructure(message.Discard(n, qid)); err != nil {
		return nil, err
	}

	result := &PullResult{}
	for {
		resp, err := c.readResponse(ctx)
		if err != nil {
			return nil, err
		}
		switch r := resp.(type) {
		case *message.Record:
			// Discarded: not appended to result.Records.
			_ = r
		case *message.Success:
			hasMore, _ := r.Meta["has_more"].(bool)
			trig := triggerPullDone
			if hasMore {
				trig = triggerPullMore
			}
			to, ok := advance(c.state, trig)
			if !ok {
				c.markDefunct()
				return nil, &bolterr.ProtocolError{Reason: "no legal transition for DISCARD/SUCCESS"}
			}
			c.state = to
			result.HasMore = hasMore
			result.Summary = r.Meta
			return result, nil
		case *message.Failure:
			to, _ := advance(c.state, triggerFailure)
			c.markFailed(to)
			return nil, &bolterr.QueryFailed{Code: r.Code(), Message: r.Message()}
		default:
			c.markDefunct()
			return nil, &bolterr.ProtocolError{Reason: fmt.Sprintf("unexpected response to DISCARD: %T", resp)}
		}
	}
}

// Begin writes BEGIN with the given metadata (mode, tx_timeout, ...),
// requiring Ready and transitioning to TxReady on SUCCESS.
func (c *Connection) Begin(ctx context.Context, meta map[string]packstream.Value) error {
	if c.state != Ready {
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("begin called in state %s", c.state)}
	}
	if err := c.sendStructure(message.Begin(meta)); err != nil {
		return err
	}
	resp, err := c.readResponse(ctx)
	if err != nil {
		return err
	}
	switch r := resp.(type) {
	case *message.Success:
		c.state, _ = advance(c.state, triggerBeginSuccess)
		return nil
	case *message.Failure:
		to, _ := advance(c.state, triggerFailure)
		c.markFailed(to)
		return &bolterr.QueryFailed{Code: r.Code(), Message: r.Message()}
	default:
		c.markDefunct()
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("unexpected response to BEGIN: %T", resp)}
	}
}

// Commit writes COMMIT and awaits SUCCESS, returning to Ready.
func (c *Connection) Commit(ctx context.Context) error {
	return c.endTransaction(ctx, message.Commit(), triggerCommit, "COMMIT")
}

// Rollback writes ROLLBACK and awaits SUCCESS, returning to Ready.
func (c *Connection) Rollback(ctx context.Context) error {
	return c.endTransaction(ctx, message.Rollback(), triggerRollback, "ROLLBACK")
}

func (c *Connection) endTransaction(ctx context.Context, s *packstream.Structure, trig trigger, name string) error {
	if c.state != TxReady {
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("%s called in state %s", name, c.state)}
	}
	if err := c.sendStructure(s); err != nil {
		return err
	}
	resp, err := c.readResponse(ctx)
	if err != nil {
		return err
	}
	switch r := resp.(type) {
	case *message.Success:
		c.state, _ = advance(c.state, trig)
		return nil
	case *message.Failure:
		c.markDefunct()
		return &bolterr.QueryFailed{Code: r.Code(), Message: r.Message()}
	default:
		c.markDefunct()
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("unexpected response to %s: %T", name, resp)}
	}
}

// Reset writes RESET, discards the receive buffer, and awaits SUCCESS,
// returning the connection from Failed to Ready.
func (c *Connection) Reset(ctx context.Context) error {
	if c.state != Failed {
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("reset called in state %s", c.state)}
	}
	c.recvBuf = nil
	if err := c.sendStructure(message.Reset()); err != nil {
		return err
	}
	resp, err := c.readResponse(ctx)
	if err != nil {
		return err
	}
	if _, ok := resp.(*message.Success); !ok {
		c.markDefunct()
		return &bolterr.ProtocolError{Reason: fmt.Sprintf("unexpected response to RESET: %T", resp)}
	}
	c.state, _ = advance(c.state, triggerReset)
	return nil
}

// Close writes GOODBYE (best-effort) and closes the transport, marking the
// connection Defunct regardless of outcome.
func (c *Connection) Close() error {
	defer c.markDefunct()
	if c.state == Defunct {
		return c.conn.Close()
	}
	_ = c.sendStructure(message.Goodbye())
	return c.conn.Close()
}

// sendStructure encodes s with PackStream, chunks the payload per §4.3, and
// writes it to the transport.
func (c *Connection) sendStructure(s *packstream.Structure) error {
	payload, err := packstream.Marshal(s)
	if err != nil {
		c.markDefunct()
		return &bolterr.InvalidArgument{Reason: err.Error()}
	}
	if _, err := c.conn.Write(framing.Chunk(payload)); err != nil {
		c.markDefunct()
		return err
	}
	return nil
}

// readResponse consumes the receive buffer first, decoding one complete
// framed message without touching the transport if possible, and only
// reads more bytes when the buffered data is an incomplete prefix.
func (c *Connection) readResponse(ctx context.Context) (packstream.Value, error) {
	for {
		msg, rest, err := framing.Dechunk(c.recvBuf)
		if err == nil {
			c.recvBuf = rest
			v, tail, uerr := packstream.Unmarshal(msg)
			if uerr != nil || len(tail) != 0 {
				c.markDefunct()
				return nil, &bolterr.ProtocolError{Reason: "malformed message", Err: uerr}
			}
			classified, cerr := message.Classify(v)
			if cerr != nil {
				c.markDefunct()
				return nil, &bolterr.ProtocolError{Reason: "unrecognized message shape", Err: cerr}
			}
			return classified, nil
		}

		if ctx.Err() != nil {
			c.markDefunct()
			return nil, ctx.Err()
		}

		buf := make([]byte, 4096)
		n, rerr := c.conn.Read(buf)
		if rerr != nil {
			c.markDefunct()
			return nil, rerr
		}
		c.recvBuf = append(c.recvBuf, buf[:n]...)
	}
}
