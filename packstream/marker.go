package packstream

// Marker bytes for the fixed-value and type markers in the PackStream grid.
// Tiny-sized containers encode their length in the low nibble of the marker
// (e.g. 0x90+n for an n-element list, n in 0..15).
const (
	markerNull  = 0xC0
	markerFalse = 0xC2
	markerTrue  = 0xC3
	markerFloat = 0xC1

	markerInt8  = 0xC8
	markerInt16 = 0xC9
	markerInt32 = 0xCA
	markerInt64 = 0xCB

	markerBytes8  = 0xCC
	markerBytes16 = 0xCD
	markerBytes32 = 0xCE

	tinyStringBase = 0x80
	tinyStringMax  = 0x8F
	markerString8  = 0xD0
	markerString16 = 0xD1
	markerString32 = 0xD2

	tinyListBase = 0x90
	tinyListMax  = 0x9F
	markerList8  = 0xD4
	markerList16 = 0xD5
	markerList32 = 0xD6

	tinyMapBase = 0xA0
	tinyMapMax  = 0xAF
	markerMap8  = 0xD8
	markerMap16 = 0xD9
	markerMap32 = 0xDA

	tinyStructBase = 0xB0
	tinyStructMax  = 0xBF
	markerStruct8  = 0xDC
	markerStruct16 = 0xDD

	tinyIntPosMax = 0x7F // 0x00-0x7F: tiny non-negative ints
	tinyIntNegMin = 0xF0 // 0xF0-0xFF: tiny negative ints, -16..-1
)

// Structure signatures. Message signatures live in package message; these
// are the graph-value and container signatures PackStream itself owns.
const (
	sigNode         = 0x4E
	sigRelationship = 0x52
	sigPath         = 0x50
	sigPoint2D      = 0x58
	sigPoint3D      = 0x59
	sigDate         = 0x44
	sigTime         = 0x54
	sigLocalTime    = 0x74
	sigDateTimeLegacyOffset   = 0x46
	sigDateTimeLegacyZoneName = 0x66
	sigDateTimeUTCOffset      = 0x49
	sigDateTimeUTCZoneName    = 0x69
	sigLocalDateTime          = 0x64
	sigDuration               = 0x45
)
