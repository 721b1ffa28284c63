package framing

import (
	"fmt"
	"sort"

	hcversion "github.com/hashicorp/go-version"
)

// BoltVersion is a negotiated (major, minor) Bolt protocol version.
type BoltVersion struct {
	Major, Minor byte
}

func (v BoltVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// semantic renders v as a dotted string hashicorp/go-version can parse, so
// the supported-version list can be sorted and compared the way
// nabbar-golib orders its own component versions rather than hand-rolling
// tuple comparisons.
func (v BoltVersion) semantic() *hcversion.Version {
	sv, err := hcversion.NewVersion(fmt.Sprintf("%d.%d.0", v.Major, v.Minor))
	if err != nil {
		// Unreachable: Major/Minor are always small non-negative bytes.
		panic(fmt.Sprintf("framing: invalid bolt version %s: %v", v, err))
	}
	return sv
}

// SupportedVersions is every Bolt version this core speaks, (5,1) through
// (5,4) per §6. Defined ascending; ProposalOrder returns them highest-first.
var SupportedVersions = []BoltVersion{
	{5, 1}, {5, 2}, {5, 3}, {5, 4},
}

// ProposalOrder returns SupportedVersions sorted highest-first, the order
// client handshake proposals are sent in so the server's most-preferred
// overlapping version wins.
func ProposalOrder() []BoltVersion {
	out := make([]BoltVersion, len(SupportedVersions))
	copy(out, SupportedVersions)
	sort.Slice(out, func(i, j int) bool {
		return out[i].semantic().GreaterThan(out[j].semantic())
	})
	return out
}

// IsSupported reports whether v is in SupportedVersions.
func IsSupported(v BoltVersion) bool {
	for _, sv := range SupportedVersions {
		if sv.semantic().Equal(v.semantic()) {
			return true
		}
	}
	return false
}
