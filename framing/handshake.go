package framing

import (
	"context"
	"fmt"
	"io"

	"github.com/gobolt/driver/bolterr"
)

// Magic is the 4-byte Bolt handshake preamble.
var Magic = [4]byte{0x60, 0x60, 0xB0, 0x17}

const proposalSlots = 4

// BuildHandshake renders the magic bytes plus up to 4 version proposals in
// preference order. Unused slots are zero-filled. versions longer than 4
// entries are truncated, since the wire format has exactly 4 slots.
func BuildHandshake(versions []BoltVersion) []byte {
	buf := make([]byte, 0, 4+4*proposalSlots)
	buf = append(buf, Magic[:]...)
	for i := 0; i < proposalSlots; i++ {
		if i < len(versions) {
			buf = append(buf, encodeProposal(versions[i])...)
		} else {
			buf = append(buf, 0, 0, 0, 0)
		}
	}
	return buf
}

// encodeProposal renders (major, minor) as "00 00 minor major", the
// preferred wire encoding per §4.3.
func encodeProposal(v BoltVersion) []byte {
	return []byte{0x00, 0x00, v.Minor, v.Major}
}

// ParseServerReply decodes the server's 4-byte handshake reply. It accepts
// both the preferred "00 00 minor major" encoding and the historical
// "minor 00 00 major" encoding some servers still send. A reply of all
// zeros means no overlapping version was found.
func ParseServerReply(reply [4]byte) (BoltVersion, error) {
	if reply == ([4]byte{0, 0, 0, 0}) {
		return BoltVersion{}, &bolterr.HandshakeFailed{Reason: "server reported no overlapping protocol version"}
	}

	if v, ok := parseModernProposal(reply); ok && IsSupported(v) {
		return v, nil
	}
	if v, ok := parseLegacyProposal(reply); ok && IsSupported(v) {
		return v, nil
	}
	return BoltVersion{}, &bolterr.HandshakeFailed{
		Reason: fmt.Sprintf("unrecognized or unsupported version reply % X", reply),
	}
}

func parseModernProposal(b [4]byte) (BoltVersion, bool) {
	if b[0] != 0 || b[1] != 0 {
		return BoltVersion{}, false
	}
	return BoltVersion{Major: b[3], Minor: b[2]}, true
}

func parseLegacyProposal(b [4]byte) (BoltVersion, bool) {
	if b[1] != 0 || b[2] != 0 {
		return BoltVersion{}, false
	}
	return BoltVersion{Major: b[3], Minor: b[0]}, true
}

// Handshake performs the client side of the Bolt handshake over rw: write
// the magic and version proposals, then read and parse the 4-byte reply.
func Handshake(ctx context.Context, rw io.ReadWriter, proposals []BoltVersion) (BoltVersion, error) {
	if ctx.Err() != nil {
		return BoltVersion{}, ctx.Err()
	}

	if _, err := rw.Write(BuildHandshake(proposals)); err != nil {
		return BoltVersion{}, fmt.Errorf("framing: handshake: write: %w", err)
	}

	var reply [4]byte
	if _, err := io.ReadFull(rw, reply[:]); err != nil {
		return BoltVersion{}, fmt.Errorf("framing: handshake: read reply: %w", err)
	}

	return ParseServerReply(reply)
}
