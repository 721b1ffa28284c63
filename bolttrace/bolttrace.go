// Package bolttrace wraps Session.Run and Pool.Checkout with OpenTelemetry
// spans, so a caller that wires a TracerProvider gets query- and
// checkout-level timing for free without either package importing
// go.opentelemetry.io/otel directly.
package bolttrace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gobolt/driver/connection"
	"github.com/gobolt/driver/packstream"
	"github.com/gobolt/driver/pool"
	"github.com/gobolt/driver/session"
)

const instrumentationName = "github.com/gobolt/driver/bolttrace"

func tracer() trace.Tracer { return otel.Tracer(instrumentationName) }

// Session wraps a *session.Session, starting a span named "bolt.run" around
// each Run call.
type Session struct {
	inner *session.Session
}

// WrapSession returns a traced view of s.
func WrapSession(s *session.Session) *Session { return &Session{inner: s} }

// Run starts a span, delegates to the wrapped Session, and records the
// outcome: record count and summary type as attributes on success, the
// error (and its span status) on failure.
func (s *Session) Run(ctx context.Context, query string, params map[string]packstream.Value, opts session.Options) (*session.Result, error) {
	ctx, span := tracer().Start(ctx, "bolt.run", trace.WithAttributes(
		attribute.String("bolt.query", query),
	))
	defer span.End()

	result, err := s.inner.Run(ctx, query, params, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("bolt.record_count", len(result.Records)),
		attribute.String("bolt.summary_type", result.Summary.Type),
	)
	return result, nil
}

// Conn exposes the wrapped Session's underlying connection.
func (s *Session) Conn() *connection.Connection { return s.inner.Conn() }

// Close delegates to the wrapped Session.
func (s *Session) Close() error { return s.inner.Close() }

// Pool wraps a *pool.Pool, starting a span named "bolt.pool.checkout"
// around each Checkout call.
type Pool struct {
	inner *pool.Pool
}

// WrapPool returns a traced view of p.
func WrapPool(p *pool.Pool) *Pool { return &Pool{inner: p} }

// Checkout starts a span, delegates to the wrapped Pool, and records the
// resulting pool Stats as attributes so a trace backend can correlate
// checkout latency with contention.
func (p *Pool) Checkout(ctx context.Context, timeout time.Duration) (*pool.Worker, error) {
	_, span := tracer().Start(ctx, "bolt.pool.checkout")
	defer span.End()

	w, err := p.inner.Checkout(ctx, timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	stats := p.inner.Stats()
	span.SetAttributes(
		attribute.Int("bolt.pool.idle", stats.Idle),
		attribute.Int("bolt.pool.busy", stats.Busy),
		attribute.Int("bolt.pool.live", stats.Live),
	)
	return w, nil
}

// Checkin delegates to the wrapped Pool.
func (p *Pool) Checkin(w *pool.Worker) { p.inner.Checkin(w) }
