package packstream

import (
	"fmt"
	"math"
	"reflect"
)

// Marshal encodes a Value to its PackStream byte representation. Integer,
// string, list, and map markers are chosen as the smallest form that fits,
// matching the decode side exactly so decode(encode(v)) round-trips.
func Marshal(v Value) ([]byte, error) {
	e := &encoder{buf: make([]byte, 0, 64)}
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) encode(v Value) error {
	if v == nil {
		e.encodeNil()
		return nil
	}

	switch x := v.(type) {
	case bool:
		e.encodeBool(x)
		return nil
	case int:
		e.encodeInt(int64(x))
		return nil
	case int8:
		e.encodeInt(int64(x))
		return nil
	case int16:
		e.encodeInt(int64(x))
		return nil
	case int32:
		e.encodeInt(int64(x))
		return nil
	case int64:
		e.encodeInt(x)
		return nil
	case uint8:
		e.encodeInt(int64(x))
		return nil
	case uint16:
		e.encodeInt(int64(x))
		return nil
	case uint32:
		e.encodeInt(int64(x))
		return nil
	case float32:
		e.encodeFloat(float64(x))
		return nil
	case float64:
		e.encodeFloat(x)
		return nil
	case string:
		e.encodeString(x)
		return nil
	case []byte:
		e.encodeBytes(x)
		return nil
	case []Value:
		return e.encodeList(x)
	case map[string]Value:
		return e.encodeMap(x)
	case *Structure:
		return e.encodeStructure(x.Signature, x.Fields)
	case Structure:
		return e.encodeStructure(x.Signature, x.Fields)
	case Node, *Node, Relationship, *Relationship, Path, *Path,
		Point2D, *Point2D, Point3D, *Point3D,
		Date, *Date, LocalTime, *LocalTime, Time, *Time,
		LocalDateTime, *LocalDateTime, DateTime, *DateTime,
		Duration, *Duration:
		return e.encodeGraphValue(x)
	}

	return e.encodeReflect(v)
}

// encodeReflect handles maps and slices of concrete (non-Value) element
// types, e.g. map[string]int or []string, the way callers naturally build
// query parameters.
func (e *encoder) encodeReflect(v Value) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			e.encodeNil()
			return nil
		}
		return e.encode(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		items := make([]Value, n)
		for i := 0; i < n; i++ {
			items[i] = rv.Index(i).Interface()
		}
		return e.encodeList(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("packstream: encode: unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return e.encodeMap(m)
	case reflect.Bool:
		e.encodeBool(rv.Bool())
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.encodeInt(rv.Int())
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		e.encodeInt(int64(rv.Uint()))
		return nil
	case reflect.Float32, reflect.Float64:
		e.encodeFloat(rv.Float())
		return nil
	case reflect.String:
		e.encodeString(rv.String())
		return nil
	}

	return fmt.Errorf("packstream: encode: unsupported type %T", v)
}

func (e *encoder) encodeNil() {
	e.buf = append(e.buf, markerNull)
}

func (e *encoder) encodeBool(b bool) {
	if b {
		e.buf = append(e.buf, markerTrue)
	} else {
		e.buf = append(e.buf, markerFalse)
	}
}

func (e *encoder) encodeInt(n int64) {
	switch {
	case n >= -16 && n <= tinyIntPosMax:
		e.buf = append(e.buf, byte(n))
	case n >= math.MinInt8 && n <= math.MaxInt8:
		e.buf = append(e.buf, markerInt8, byte(n))
	case n >= math.MinInt16 && n <= math.MaxInt16:
		e.buf = appendBE(append(e.buf, markerInt16), uint64(uint16(n)), 2)
	case n >= math.MinInt32 && n <= math.MaxInt32:
		e.buf = appendBE(append(e.buf, markerInt32), uint64(uint32(n)), 4)
	default:
		e.buf = appendBE(append(e.buf, markerInt64), uint64(n), 8)
	}
}

func (e *encoder) encodeFloat(f float64) {
	bits := math.Float64bits(f)
	e.buf = appendBE(append(e.buf, markerFloat), bits, 8)
}

func (e *encoder) encodeString(s string) {
	n := len(s)
	e.buf = appendSized(e.buf, n, tinyStringBase, tinyStringMax-tinyStringBase,
		markerString8, markerString16, markerString32)
	e.buf = append(e.buf, s...)
}

func (e *encoder) encodeBytes(b []byte) {
	n := len(b)
	switch {
	case n <= math.MaxUint8:
		e.buf = append(e.buf, markerBytes8, byte(n))
	case n <= math.MaxUint16:
		e.buf = appendBE(append(e.buf, markerBytes16), uint64(n), 2)
	default:
		e.buf = appendBE(append(e.buf, markerBytes32), uint64(n), 4)
	}
	e.buf = append(e.buf, b...)
}

func (e *encoder) encodeList(items []Value) error {
	n := len(items)
	e.buf = appendSized(e.buf, n, tinyListBase, tinyListMax-tinyListBase,
		markerList8, markerList16, markerList32)
	for _, it := range items {
		if err := e.encode(it); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeMap(m map[string]Value) error {
	n := len(m)
	e.buf = appendSized(e.buf, n, tinyMapBase, tinyMapMax-tinyMapBase,
		markerMap8, markerMap16, markerMap32)
	for k, v := range m {
		e.encodeString(k)
		if err := e.encode(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeStructure(sig byte, fields []Value) error {
	n := len(fields)
	if n > 15 {
		// Bolt structures in practice never exceed 15 fields; extended
		// struct markers exist for forward compatibility only.
		if n <= math.MaxUint8 {
			e.buf = append(e.buf, markerStruct8, byte(n), sig)
		} else if n <= math.MaxUint16 {
			e.buf = appendBE(append(e.buf, markerStruct16), uint64(n), 2)
			e.buf = append(e.buf, sig)
		} else {
			return fmt.Errorf("packstream: encode: structure field count %d exceeds u16", n)
		}
	} else {
		e.buf = append(e.buf, byte(tinyStructBase+n), sig)
	}
	for _, f := range fields {
		if err := e.encode(f); err != nil {
			return err
		}
	}
	return nil
}

// appendSized writes the marker for a tiny/8/16/32-bit sized container and
// returns the updated buffer; the payload bytes are appended by the caller.
func appendSized(buf []byte, n int, tinyBase, tinyMax, m8, m16, m32 byte) []byte {
	switch {
	case n <= int(tinyMax):
		return append(buf, byte(tinyBase)+byte(n))
	case n <= math.MaxUint8:
		return append(buf, m8, byte(n))
	case n <= math.MaxUint16:
		return appendBE(append(buf, m16), uint64(n), 2)
	default:
		return appendBE(append(buf, m32), uint64(n), 4)
	}
}

func appendBE(buf []byte, v uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*uint(i))))
	}
	return buf
}
