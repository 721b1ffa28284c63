package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxChunkSize is the largest payload a single chunk header can address.
const MaxChunkSize = 65535

// ErrNeedMore is returned (wrapped) by Dechunk when buf holds a proper
// prefix of a framed message: the caller should read more bytes from the
// transport and retry rather than treat this as fatal.
var ErrNeedMore = errors.New("framing: need more data")

// Chunk splits an already-PackStream-encoded message payload into
// length-prefixed chunks of at most MaxChunkSize bytes, terminated by a
// zero-length chunk header.
func Chunk(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	for len(payload) > 0 {
		n := len(payload)
		if n > MaxChunkSize {
			n = MaxChunkSize
		}
		var hdr [2]byte
		binary.BigEndian.PutUint16(hdr[:], uint16(n))
		out = append(out, hdr[:]...)
		out = append(out, payload[:n]...)
		payload = payload[n:]
	}
	out = append(out, 0x00, 0x00)
	return out
}

// Dechunk consumes complete chunks from the front of buf, accumulating
// their bodies, until a zero-length terminator chunk is found. It returns
// the reassembled message payload and the remaining unconsumed bytes of
// buf. If buf ends before a terminator is seen, it returns ErrNeedMore and
// the caller should read more bytes and retry with the same buf prefix —
// Dechunk does not mutate or consume buf on that path.
func Dechunk(buf []byte) (message []byte, rest []byte, err error) {
	var payload []byte
	pos := 0

	for {
		if len(buf)-pos < 2 {
			return nil, nil, fmt.Errorf("framing: dechunk: %w", ErrNeedMore)
		}
		n := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
		pos += 2

		if n == 0 {
			return payload, buf[pos:], nil
		}

		if len(buf)-pos < n {
			return nil, nil, fmt.Errorf("framing: dechunk: %w", ErrNeedMore)
		}
		payload = append(payload, buf[pos:pos+n]...)
		pos += n
	}
}
