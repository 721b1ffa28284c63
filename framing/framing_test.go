package framing_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gobolt/driver/framing"
)

func TestChunkDechunkRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("hello"),
		bytes.Repeat([]byte{0xAB}, framing.MaxChunkSize+10),
		bytes.Repeat([]byte{0x01}, framing.MaxChunkSize*2+3),
	}

	for _, p := range payloads {
		chunked := framing.Chunk(p)
		if len(chunked) < 2 || chunked[len(chunked)-2] != 0 || chunked[len(chunked)-1] != 0 {
			t.Fatalf("chunk(%d bytes) does not end in terminator", len(p))
		}
		msg, rest, err := framing.Dechunk(chunked)
		if err != nil {
			t.Fatalf("dechunk: %v", err)
		}
		if len(rest) != 0 {
			t.Fatalf("expected no trailing bytes, got %d", len(rest))
		}
		if !bytes.Equal(msg, p) {
			t.Fatalf("dechunk mismatch: want %d bytes got %d bytes", len(p), len(msg))
		}
	}
}

func TestDechunkIncrementalPrefixesNeedMore(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 200)
	full := framing.Chunk(payload)

	for n := 0; n < len(full); n++ {
		_, _, err := framing.Dechunk(full[:n])
		if !errors.Is(err, framing.ErrNeedMore) {
			t.Fatalf("prefix len %d: want ErrNeedMore, got %v", n, err)
		}
	}

	msg, rest, err := framing.Dechunk(full)
	if err != nil {
		t.Fatalf("dechunk(full): %v", err)
	}
	if len(rest) != 0 || !bytes.Equal(msg, payload) {
		t.Fatalf("dechunk(full) mismatch")
	}
}

func TestDechunkLeavesTrailingBytesForNextMessage(t *testing.T) {
	first := framing.Chunk([]byte("one"))
	second := framing.Chunk([]byte("two"))
	combined := append(append([]byte{}, first...), second...)

	msg1, rest, err := framing.Dechunk(combined)
	if err != nil {
		t.Fatalf("dechunk 1: %v", err)
	}
	if string(msg1) != "one" {
		t.Fatalf("want 'one', got %q", msg1)
	}
	msg2, rest2, err := framing.Dechunk(rest)
	if err != nil {
		t.Fatalf("dechunk 2: %v", err)
	}
	if string(msg2) != "two" || len(rest2) != 0 {
		t.Fatalf("want 'two' with no trailing, got %q / %d bytes", msg2, len(rest2))
	}
}

func TestHandshakeProposalEncoding(t *testing.T) {
	versions := []framing.BoltVersion{{5, 4}, {5, 3}, {5, 2}, {5, 1}}
	hs := framing.BuildHandshake(versions)
	if !bytes.Equal(hs[:4], framing.Magic[:]) {
		t.Fatalf("missing magic preamble")
	}
	if !bytes.Equal(hs[4:8], []byte{0x00, 0x00, 0x04, 0x05}) {
		t.Fatalf("unexpected first proposal encoding: % X", hs[4:8])
	}
}

func TestParseServerReplyAcceptsBothByteOrders(t *testing.T) {
	modern := [4]byte{0x00, 0x00, 0x04, 0x05} // minor=4, major=5 -> 5.4
	v, err := framing.ParseServerReply(modern)
	if err != nil || v != (framing.BoltVersion{Major: 5, Minor: 4}) {
		t.Fatalf("modern encoding: got %v, %v", v, err)
	}

	legacy := [4]byte{0x04, 0x00, 0x00, 0x05} // minor 00 00 major
	v, err = framing.ParseServerReply(legacy)
	if err != nil || v != (framing.BoltVersion{Major: 5, Minor: 4}) {
		t.Fatalf("legacy encoding: got %v, %v", v, err)
	}
}

func TestParseServerReplyRejectsNoOverlap(t *testing.T) {
	_, err := framing.ParseServerReply([4]byte{0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected VersionNegotiationFailed error")
	}
}

func TestHandshakeEndToEnd(t *testing.T) {
	srv := &loopback{reply: []byte{0x00, 0x00, 0x04, 0x05}}
	v, err := framing.Handshake(context.Background(), srv, framing.ProposalOrder())
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if v != (framing.BoltVersion{Major: 5, Minor: 4}) {
		t.Fatalf("unexpected negotiated version: %v", v)
	}
	if !bytes.Equal(srv.written[:4], framing.Magic[:]) {
		t.Fatalf("handshake did not write magic bytes")
	}
}

type loopback struct {
	written []byte
	reply   []byte
}

func (l *loopback) Write(p []byte) (int, error) {
	l.written = append(l.written, p...)
	return len(p), nil
}

func (l *loopback) Read(p []byte) (int, error) {
	n := copy(p, l.reply)
	l.reply = l.reply[n:]
	return n, nil
}
