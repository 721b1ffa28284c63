package session

import (
	"context"

	"github.com/gobolt/driver/bolterr"
	"github.com/gobolt/driver/connection"
	"github.com/gobolt/driver/message"
	"github.com/gobolt/driver/packstream"
	"github.com/gobolt/driver/transaction"
)

// Options carries the per-call options recognized by Run/BeginTransaction:
// mode and tx_timeout are forwarded into RUN's extra metadata by Run and into
// BEGIN's metadata by BeginTransaction; timeout bounds
// the transport read (applied at the connection/transport layer, not here).
type Options struct {
	Mode      string // "r" or "w"
	TxTimeout int64  // ms
}

func (o Options) beginMeta() map[string]packstream.Value {
	meta := map[string]packstream.Value{}
	if o.Mode != "" {
		meta["mode"] = o.Mode
	}
	if o.TxTimeout > 0 {
		meta["tx_timeout"] = o.TxTimeout
	}
	return meta
}

// Session is a sequential execution surface bound to exactly one
// Connection for its whole lifetime, per the concurrency model's rule that
// no two callers ever share a connection.
type Session struct {
	conn *connection.Connection
}

// New wraps an already-authenticated, Ready connection as a Session.
func New(conn *connection.Connection) *Session {
	return &Session{conn: conn}
}

// Conn exposes the underlying connection, e.g. for a pool to inspect state
// on checkin.
func (s *Session) Conn() *connection.Connection { return s.conn }

// Run writes RUN, reads the field-bearing SUCCESS, writes PULL(n=-1), and
// drains RECORDs to a terminal SUCCESS, returning the full Result. A
// server FAILURE issues RESET before returning the typed error, so the
// connection is Ready again for the caller's next operation.
func (s *Session) Run(ctx context.Context, query string, params map[string]packstream.Value, opts Options) (*Result, error) {
	fields, err := s.conn.Run(ctx, query, params, opts.beginMeta())
	if err != nil {
		return nil, s.recoverFromFailure(ctx, err)
	}

	var records []message.Record
	for {
		batch, err := s.conn.Pull(ctx, -1, -1)
		if err != nil {
			return nil, s.recoverFromFailure(ctx, err)
		}
		records = append(records, batch.Records...)
		if !batch.HasMore {
			return &Result{
				Fields:  fields,
				Records: recordsFromRaw(fields, records),
				Summary: summaryFromMeta(batch.Summary),
			}, nil
		}
	}
}

// recoverFromFailure issues RESET after a QueryFailed so the next
// operation on this session starts from Ready, per §4.5's run() contract.
// If RESET itself fails the connection is already marked Defunct by
// Connection.Reset, and that secondary failure is not masked: the
// original err remains the returned error.
func (s *Session) recoverFromFailure(ctx context.Context, err error) error {
	var qf *bolterr.QueryFailed
	if !isQueryFailed(err, &qf) {
		return err
	}
	if s.conn.State() == connection.Failed {
		_ = s.conn.Reset(ctx)
	}
	return err
}

func isQueryFailed(err error, target **bolterr.QueryFailed) bool {
	qf, ok := err.(*bolterr.QueryFailed)
	if ok {
		*target = qf
	}
	return ok
}

// BeginTransaction validates Ready, writes BEGIN, and returns a handle the
// caller drives explicitly with Run/Commit/Rollback, or passes to
// transaction.WithTransaction for scoped commit-or-rollback.
func (s *Session) BeginTransaction(ctx context.Context, opts Options) (*transaction.Transaction, error) {
	return transaction.Begin(ctx, s.conn, transaction.Options{Mode: opts.Mode, TxTimeout: opts.TxTimeout})
}

// Close discards any stream left mid-flight (so no unread RECORDs carry
// into whatever happens to this connection next), then writes GOODBYE and
// closes the transport.
func (s *Session) Close() error {
	if st := s.conn.State(); st == connection.Streaming || st == connection.TxStreaming {
		_, _ = s.conn.Discard(context.Background(), -1, -1)
	}
	return s.conn.Close()
}
