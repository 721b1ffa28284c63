// Package cursor implements the lazy batched PULL-continuation iterator of
// §4.7: RUN once, then repeatedly PULL a bounded batch and yield records,
// stopping at the server's terminal SUCCESS. Iteration is single-pass,
// lazy, and non-restartable — calling Next again after exhaustion or an
// error simply returns false.
package cursor

import (
	"context"

	"github.com/gobolt/driver/connection"
	"github.com/gobolt/driver/message"
	"github.com/gobolt/driver/packstream"
)

// DefaultBatchSize is used when Options.BatchSize is zero.
const DefaultBatchSize = 1000

// Options configures a Cursor's RUN metadata and pull batch size.
type Options struct {
	Mode      string
	TxTimeout int64
	BatchSize int
}

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o Options) runExtra() map[string]packstream.Value {
	extra := map[string]packstream.Value{}
	if o.Mode != "" {
		extra["mode"] = o.Mode
	}
	if o.TxTimeout > 0 {
		extra["tx_timeout"] = o.TxTimeout
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// Cursor iterates a result set one batch at a time. It is not safe for
// concurrent use; like the Connection it wraps, a Cursor belongs to exactly
// one caller for its lifetime.
type Cursor struct {
	conn  *connection.Connection
	qid   int64
	batch int

	fields  []string
	buf     []message.Record
	pos     int
	hasMore bool
	started bool
	done    bool
	err     error
	summary map[string]packstream.Value
}

// Run writes RUN and returns a Cursor positioned before the first record;
// call Next to advance it. The cursor's PULL/DISCARD requests always use
// qid -1 ("the last executed statement"), so it suits connections that run
// one statement at a time.
func Run(ctx context.Context, conn *connection.Connection, query string, params map[string]packstream.Value, opts Options) (*Cursor, error) {
	fields, err := conn.Run(ctx, query, params, opts.runExtra())
	if err != nil {
		return nil, err
	}
	return &Cursor{conn: conn, qid: -1, batch: opts.batchSize(), fields: fields}, nil
}

// Fields returns the result's column names, available as soon as Run
// returns.
func (c *Cursor) Fields() []string { return c.fields }

// Next advances the cursor to the next record, issuing a PULL for a fresh
// batch when the current one is exhausted. It returns false at end of
// stream or on error; check Err to distinguish the two.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.done || c.err != nil {
		return false
	}
	for {
		if c.pos < len(c.buf) {
			c.pos++
			return true
		}
		if c.started && !c.hasMore {
			c.done = true
			return false
		}
		c.started = true
		result, err := c.conn.Pull(ctx, c.batch, c.qid)
		if err != nil {
			c.err = err
			c.done = true
			return false
		}
		c.buf = result.Records
		c.pos = 0
		c.hasMore = result.HasMore
		c.summary = result.Summary
		if len(c.buf) == 0 && !c.hasMore {
			c.done = true
			return false
		}
	}
}

// Record returns the current record after a true return from Next.
func (c *Cursor) Record() Record {
	return Record{fields: c.fields, values: c.buf[c.pos-1].Values}
}

// Err returns the error that stopped iteration, or nil if the cursor was
// simply exhausted or hasn't been used yet.
func (c *Cursor) Err() error { return c.err }

// Summary returns the SUCCESS metadata of the most recent PULL: nil before
// the first PULL, the terminal SUCCESS metadata once iteration has completed
// normally.
func (c *Cursor) Summary() map[string]packstream.Value { return c.summary }

// Close abandons any remaining rows with DISCARD, a no-op if the stream
// already reached its terminal SUCCESS or FAILURE.
func (c *Cursor) Close(ctx context.Context) error {
	if c.done {
		return nil
	}
	c.done = true
	st := c.conn.State()
	if st != connection.Streaming && st != connection.TxStreaming {
		return nil
	}
	_, err := c.conn.Discard(ctx, -1, c.qid)
	return err
}

// Record is one row addressable by position or field name, mirroring
// session.Record.
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
	}
	return nil
}

// Values returns the record's values in field order.
func (r Record) Values() []packstream.Value { return r.values }
