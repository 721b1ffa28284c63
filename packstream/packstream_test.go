package packstream_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/gobolt/driver/packstream"
)

func roundTrip(t *testing.T, v packstream.Value) packstream.Value {
	t.Helper()
	b, err := packstream.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal(%#v): %v", v, err)
	}
	got, rest, err := packstream.Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal(%#v): %v", v, err)
	}
	if len(rest) != 0 {
		t.Fatalf("Unmarshal(%#v): %d trailing bytes", v, len(rest))
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []packstream.Value{
		nil, true, false,
		int64(0), int64(-1), int64(-16), int64(-17),
		int64(127), int64(128), int64(-128), int64(-129),
		int64(32767), int64(-32768), int64(32768), int64(-32769),
		int64(math.MaxInt32), int64(math.MinInt32),
		int64(math.MaxInt32) + 1, int64(math.MinInt32) - 1,
		int64(math.MaxInt64), int64(math.MinInt64),
		float64(0), math.Copysign(0, -1), math.NaN(), math.Inf(1), math.Inf(-1),
		float64(3.14159),
		"", "hello", stringOfLen(15), stringOfLen(16), stringOfLen(255),
		stringOfLen(256), stringOfLen(65535), stringOfLen(65536),
	}

	for _, c := range cases {
		got := roundTrip(t, c)
		if f, ok := c.(float64); ok && math.IsNaN(f) {
			gf, ok := got.(float64)
			if !ok || !math.IsNaN(gf) {
				t.Errorf("NaN round trip: got %#v", got)
			}
			continue
		}
		if !reflect.DeepEqual(c, got) {
			t.Errorf("round trip mismatch: want %#v got %#v", c, got)
		}
	}
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return string(b)
}

func TestRoundTripContainers(t *testing.T) {
	sizes := []int{0, 15, 16, 255, 256, 65535, 65536}
	for _, n := range sizes {
		list := make([]packstream.Value, n)
		for i := range list {
			list[i] = int64(i)
		}
		got := roundTrip(t, list)
		if !reflect.DeepEqual(list, got) {
			t.Errorf("list size %d round trip mismatch", n)
		}
	}

	for _, n := range []int{0, 15, 16} {
		m := make(map[string]packstream.Value, n)
		for i := 0; i < n; i++ {
			m[stringOfLen(1)+string(rune('a'+i))] = int64(i)
		}
		got := roundTrip(t, m)
		gm, ok := got.(map[string]packstream.Value)
		if !ok || len(gm) != len(m) {
			t.Errorf("map size %d round trip mismatch: %#v", n, got)
		}
	}
}

func TestRoundTripNestedStructure(t *testing.T) {
	var v packstream.Value = int64(1)
	for i := 0; i < 8; i++ {
		v = &packstream.Structure{Signature: 0x01, Fields: []packstream.Value{v}}
	}
	got := roundTrip(t, v)
	s, ok := got.(*packstream.Structure)
	if !ok {
		t.Fatalf("expected *Structure at depth 8, got %T", got)
	}
	depth := 1
	for {
		inner, ok := s.Fields[0].(*packstream.Structure)
		if !ok {
			break
		}
		s = inner
		depth++
	}
	if depth != 8 {
		t.Errorf("expected nesting depth 8, got %d", depth)
	}
}

func TestRoundTripGraphTypes(t *testing.T) {
	node := packstream.Node{ID: 1, Labels: []string{"Person"}, Properties: map[string]packstream.Value{"name": "Ada"}, ElementID: "4:abc:1"}
	got := roundTrip(t, node)
	if !reflect.DeepEqual(node, got) {
		t.Errorf("Node round trip: want %#v got %#v", node, got)
	}

	rel := packstream.Relationship{ID: 2, StartID: 1, EndID: 3, Type: "KNOWS", Properties: map[string]packstream.Value{}, ElementID: "5:abc:2"}
	got = roundTrip(t, rel)
	if !reflect.DeepEqual(rel, got) {
		t.Errorf("Relationship round trip: want %#v got %#v", rel, got)
	}

	path := packstream.Path{
		Nodes:         []packstream.Node{{ID: 1, Properties: map[string]packstream.Value{}}, {ID: 2, Properties: map[string]packstream.Value{}}},
		Relationships: []packstream.Relationship{{ID: 9, StartID: 1, EndID: 2, Type: "KNOWS", Properties: map[string]packstream.Value{}}},
		Indices:       []int64{1, 1},
	}
	got = roundTrip(t, path)
	if !reflect.DeepEqual(path, got) {
		t.Errorf("Path round trip: want %#v got %#v", path, got)
	}

	p2 := packstream.NewPoint2D(1.5, 2.5)
	if got := roundTrip(t, p2); !reflect.DeepEqual(p2, got) {
		t.Errorf("Point2D round trip: want %#v got %#v", p2, got)
	}

	p3 := packstream.NewPoint3D(1, 2, 3)
	if got := roundTrip(t, p3); !reflect.DeepEqual(p3, got) {
		t.Errorf("Point3D round trip: want %#v got %#v", p3, got)
	}

	date := packstream.Date{Days: 19000}
	if got := roundTrip(t, date); !reflect.DeepEqual(date, got) {
		t.Errorf("Date round trip: want %#v got %#v", date, got)
	}

	dur := packstream.Duration{Months: -3, Days: 10, Seconds: -7, Nanos: 500}
	if got := roundTrip(t, dur); !reflect.DeepEqual(dur, got) {
		t.Errorf("Duration round trip: want %#v got %#v", dur, got)
	}

	for _, variant := range []packstream.DateTimeVariant{
		packstream.DateTimeLegacyOffset, packstream.DateTimeUTCOffset,
	} {
		dt := packstream.DateTime{Seconds: 1700000000, Nanos: 123, TZOffsetSeconds: 3600, Variant: variant}
		if got := roundTrip(t, dt); !reflect.DeepEqual(dt, got) {
			t.Errorf("DateTime(offset) round trip: want %#v got %#v", dt, got)
		}
	}
	for _, variant := range []packstream.DateTimeVariant{
		packstream.DateTimeLegacyZoneName, packstream.DateTimeUTCZoneName,
	} {
		dt := packstream.DateTime{Seconds: 1700000000, Nanos: 123, TZName: "Europe/Stockholm", Variant: variant}
		if got := roundTrip(t, dt); !reflect.DeepEqual(dt, got) {
			t.Errorf("DateTime(zone) round trip: want %#v got %#v", dt, got)
		}
	}
}

func TestUnknownSignatureDegradesToStructure(t *testing.T) {
	b, err := packstream.Marshal(&packstream.Structure{Signature: 0x7A, Fields: []packstream.Value{int64(1), "x"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, _, err := packstream.Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	s, ok := got.(*packstream.Structure)
	if !ok || s.Signature != 0x7A {
		t.Fatalf("expected generic Structure with signature 0x7A, got %#v", got)
	}
}

func TestDecodeNeedMoreOnPrefix(t *testing.T) {
	v := []packstream.Value{int64(1), "two", map[string]packstream.Value{"three": int64(3)}}
	full, err := packstream.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for n := 0; n < len(full); n++ {
		_, _, err := packstream.Unmarshal(full[:n])
		if !errors.Is(err, packstream.ErrNeedMore) {
			t.Fatalf("prefix len %d: want ErrNeedMore, got %v", n, err)
		}
	}
	got, rest, err := packstream.Unmarshal(full)
	if err != nil {
		t.Fatalf("Unmarshal(full): %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(rest))
	}
	if !reflect.DeepEqual(v, got) {
		t.Fatalf("want %#v got %#v", v, got)
	}
}

func TestDecodeInvalidMarker(t *testing.T) {
	_, _, err := packstream.Unmarshal([]byte{0xC5})
	if !errors.Is(err, packstream.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	_, _, err := packstream.Unmarshal([]byte{0x81, 0xFF})
	if !errors.Is(err, packstream.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestTrailingBytesAreNotConsumed(t *testing.T) {
	b, _ := packstream.Marshal(int64(1))
	b = append(b, 0xAA, 0xBB)
	v, rest, err := packstream.Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v != int64(1) {
		t.Fatalf("want 1, got %#v", v)
	}
	if len(rest) != 2 {
		t.Fatalf("want 2 trailing bytes, got %d", len(rest))
	}
}
