package bolttrace_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gobolt/driver/bolttrace"
	"github.com/gobolt/driver/connection"
	"github.com/gobolt/driver/framing"
	"github.com/gobolt/driver/message"
	"github.com/gobolt/driver/packstream"
	"github.com/gobolt/driver/pool"
	"github.com/gobolt/driver/session"
)

// With no TracerProvider registered, otel.Tracer returns a no-op tracer;
// these tests exercise that the tracing wrappers still delegate correctly
// and don't alter the wrapped call's behavior or error propagation.

func scriptedServer(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		var hs [20]byte
		if _, err := io.ReadFull(c, hs[:]); err != nil {
			return
		}
		if _, err := c.Write([]byte{0x00, 0x00, 0x04, 0x05}); err != nil {
			return
		}
		handle(c)
	}()

	return ln.Addr().String()
}

func readServerMessage(t *testing.T, c net.Conn) *packstream.Structure {
	t.Helper()
	var buf []byte
	for {
		msg, rest, err := framing.Dechunk(buf)
		if err == nil {
			_ = rest
			v, _, uerr := packstream.Unmarshal(msg)
			if uerr != nil {
				t.Fatalf("unmarshal client message: %v", uerr)
			}
			s, ok := v.(*packstream.Structure)
			if !ok {
				t.Fatalf("client message is not a structure: %#v", v)
			}
			return s
		}
		tmp := make([]byte, 4096)
		n, rerr := c.Read(tmp)
		if rerr != nil {
			t.Fatalf("read client message: %v", rerr)
		}
		buf = append(buf, tmp[:n]...)
	}
}

func sendServerStructure(t *testing.T, c net.Conn, s *packstream.Structure) {
	t.Helper()
	payload, err := packstream.Marshal(s)
	if err != nil {
		t.Fatalf("marshal server response: %v", err)
	}
	if _, err := c.Write(framing.Chunk(payload)); err != nil {
		t.Fatalf("write server response: %v", err)
	}
}

func successStructure(meta map[string]packstream.Value) *packstream.Structure {
	return &packstream.Structure{Signature: byte(message.SigSuccess), Fields: []packstream.Value{meta}}
}

func TestTracedSessionRunDelegates(t *testing.T) {
	addr := scriptedServer(t, func(c net.Conn) {
		readServerMessage(t, c) // HELLO
		sendServerStructure(t, c, successStructure(nil))
		readServerMessage(t, c) // RUN
		sendServerStructure(t, c, successStructure(map[string]packstream.Value{"fields": []packstream.Value{"n"}}))
		readServerMessage(t, c) // PULL
		sendServerStructure(t, c, successStructure(map[string]packstream.Value{"type": "r", "has_more": false}))
	})

	conn, err := connection.Dial(context.Background(), addr, nil, time.Second, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.Authenticate(context.Background(), "gobolt/1", nil); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	traced := bolttrace.WrapSession(session.New(conn))
	result, err := traced.Run(context.Background(), "RETURN 1 AS n", nil, session.Options{})
	if err != nil {
		t.Fatalf("traced run: %v", err)
	}
	if result.Summary.Type != "r" {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	_ = traced.Close()
}

func TestTracedPoolCheckoutDelegates(t *testing.T) {
	addr := scriptedServer(t, func(c net.Conn) {
		readServerMessage(t, c) // HELLO
		sendServerStructure(t, c, successStructure(nil))
	})

	dial := func(ctx context.Context) (*connection.Connection, error) {
		conn, err := connection.Dial(ctx, addr, nil, time.Second, time.Second)
		if err != nil {
			return nil, err
		}
		if err := conn.Authenticate(ctx, "gobolt/1", nil); err != nil {
			return nil, err
		}
		return conn, nil
	}

	p := pool.New(dial, pool.Config{BaseSize: 1, MaxOverflow: 0, Strategy: pool.FIFO})
	defer p.Close()

	traced := bolttrace.WrapPool(p)
	w, err := traced.Checkout(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("traced checkout: %v", err)
	}
	traced.Checkin(w)

	if stats := p.Stats(); stats.Idle != 1 {
		t.Fatalf("expected idle=1 after checkin, got %+v", stats)
	}
}
