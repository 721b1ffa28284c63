// Package transaction implements explicit BEGIN/COMMIT/ROLLBACK (§4.6) and
// the scoped WithTransaction builder design note (§9): a callback-shaped API
// that guarantees rollback on error without relying on destructor/exception
// semantics.
package transaction

import (
	"context"
	"fmt"

	"github.com/gobolt/driver/bolterr"
	"github.com/gobolt/driver/connection"
	"github.com/gobolt/driver/message"
	"github.com/gobolt/driver/packstream"
)

// Options mirrors session.Options for BEGIN metadata; duplicated rather
// than imported to keep transaction free of a dependency on session.
type Options struct {
	Mode      string
	TxTimeout int64
}

func (o Options) meta() map[string]packstream.Value {
	meta := map[string]packstream.Value{}
	if o.Mode != "" {
		meta["mode"] = o.Mode
	}
	if o.TxTimeout > 0 {
		meta["tx_timeout"] = o.TxTimeout
	}
	return meta
}

// Transaction is a Session whose connection is in TX_READY or TX_STREAMING,
// per §4.3's Transaction definition. Its zero value is not usable; obtain
// one via Begin.
type Transaction struct {
	conn     *connection.Connection
	resolved bool
}

// Begin validates Ready, writes BEGIN with opts' metadata, and returns a
// Transaction bound to conn.
func Begin(ctx context.Context, conn *connection.Connection, opts Options) (*Transaction, error) {
	if err := conn.Begin(ctx, opts.meta()); err != nil {
		return nil, err
	}
	return &Transaction{conn: conn}, nil
}

// Result mirrors session.Result's Fields and Records without importing
// package session; Summary is the raw terminal SUCCESS metadata map.
type Result struct {
	Fields  []string
	Records []Record
	Summary map[string]packstream.Value
}

// Record mirrors session.Record's position/name addressing.
type Record struct {
	fields []string
	values []packstream.Value
}

// Get returns the value at position i or under field name key.
func (r Record) Get(key any) packstream.Value {
	switch k := key.(type) {
	case int:
		if k < 0 || k >= len(r.values) {
			return nil
		}
		return r.values[k]
	case string:
		for i, f := range r.fields {
			if f == k {
				return r.values[i]
			}
		}
		return nil
	default:
		panic(fmt.Sprintf("transaction: Record.Get: key must be int or string, got %T", key))
	}
}

// Run is identical to Session.Run but asserts the connection is mid
// transaction (TX_READY or TX_STREAMING); it never issues RESET on
// failure, since a failed statement inside a transaction must still be
// rolled back by the caller, not silently cleared.
func (t *Transaction) Run(ctx context.Context, query string, params map[string]packstream.Value) (*Result, error) {
	if t.resolved {
		return nil, &bolterr.ProtocolError{Reason: "run called on a committed or rolled-back transaction"}
	}
	st := t.conn.State()
	if st != connection.TxReady && st != connection.TxStreaming {
		return nil, &bolterr.ProtocolError{Reason: fmt.Sprintf("transaction run called in state %s", st)}
	}

	fields, err := t.conn.Run(ctx, query, params, nil)
	if err != nil {
		return nil, err
	}

	var records []message.Record
	for {
		batch, err := t.conn.Pull(ctx, -1, -1)
		if err != nil {
			return nil, err
		}
		records = append(records, batch.Records...)
		if !batch.HasMore {
			out := make([]Record, len(records))
			for i, r := range records {
				out[i] = Record{fields: fields, values: r.Values}
			}
			return &Result{Fields: fields, Records: out, Summary: batch.Summary}, nil
		}
	}
}

// Commit writes COMMIT and awaits SUCCESS, returning the connection to Ready.
// A stream left mid-flight (the caller's Run wasn't drained to completion)
// is discarded first so no unread RECORDs are abandoned on the wire.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.resolved {
		return &bolterr.ProtocolError{Reason: "commit called on an already-resolved transaction"}
	}
	t.resolved = true
	if t.conn.State() == connection.TxStreaming {
		if _, err := t.conn.Discard(ctx, -1, -1); err != nil {
			return err
		}
	}
	return t.conn.Commit(ctx)
}

// Rollback writes ROLLBACK and awaits SUCCESS, returning the connection to
// Ready. Like Commit, it discards a mid-flight stream first.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.resolved {
		return &bolterr.ProtocolError{Reason: "rollback called on an already-resolved transaction"}
	}
	t.resolved = true
	if t.conn.State() == connection.TxStreaming {
		if _, err := t.conn.Discard(ctx, -1, -1); err != nil {
			return err
		}
	}
	return t.conn.Rollback(ctx)
}

// WithTransaction begins a transaction, runs fn with it, and commits on a
// nil return or rolls back on a non-nil one — the scoped-resource pattern
// §9 recommends in place of destructor-driven commit/rollback. A rollback
// failure is attached to the original error via bolterr.RollbackError
// rather than replacing it.
func WithTransaction(ctx context.Context, conn *connection.Connection, opts Options, fn func(*Transaction) error) error {
	tx, err := Begin(ctx, conn, opts)
	if err != nil {
		return err
	}

	fnErr := fn(tx)
	if fnErr == nil {
		return tx.Commit(ctx)
	}

	if rbErr := tx.Rollback(ctx); rbErr != nil {
		return &bolterr.RollbackError{Cause: fnErr, RollbackOn: rbErr}
	}
	return fnErr
}
