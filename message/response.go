package message

import (
	"fmt"

	"github.com/gobolt/driver/packstream"
)

// Success carries a SUCCESS response's metadata map.
type Success struct {
	Meta map[string]packstream.Value
}

// Failure carries a FAILURE response's metadata map, normally {code,
// message}.
type Failure struct {
	Meta map[string]packstream.Value
}

// Code returns the server's error code, or "" if absent.
func (f *Failure) Code() string {
	s, _ := f.Meta["code"].(string)
	return s
}

// Message returns the server's human-readable error message, or "" if
// absent.
func (f *Failure) Message() string {
	s, _ := f.Meta["message"].(string)
	return s
}

// Ignored carries an IGNORED response, sent by the server for any request
// other than RESET while the connection is FAILED.
type Ignored struct {
	Meta map[string]packstream.Value
}

// Record carries one RECORD response: an ordered list of field values.
type Record struct {
	Values []packstream.Value
}

// Unknown carries a structure whose signature this package does not
// recognize as a response message.
type Unknown struct {
	Signature byte
	Fields    []packstream.Value
}

// Classify maps a decoded PackStream value to a typed response. v must be
// the *packstream.Structure produced by decoding one framed message; any
// other dynamic type is a protocol violation from the caller, not the wire.
func Classify(v packstream.Value) (packstream.Value, error) {
	s, ok := v.(*packstream.Structure)
	if !ok {
		return nil, fmt.Errorf("message: classify: decoded value is not a structure: %T", v)
	}

	switch Signature(s.Signature) {
	case SigSuccess:
		meta, err := asMeta(s.Fields)
		if err != nil {
			return nil, fmt.Errorf("message: classify SUCCESS: %w", err)
		}
		return &Success{Meta: meta}, nil
	case SigFailure:
		meta, err := asMeta(s.Fields)
		if err != nil {
			return nil, fmt.Errorf("message: classify FAILURE: %w", err)
		}
		return &Failure{Meta: meta}, nil
	case SigIgnored:
		meta := map[string]packstream.Value{}
		if len(s.Fields) > 0 {
			m, err := asMeta(s.Fields)
			if err == nil {
				meta = m
			}
		}
		return &Ignored{Meta: meta}, nil
	case SigRecord:
		if len(s.Fields) != 1 {
			return nil, fmt.Errorf("message: classify RECORD: expected 1 field, got %d", len(s.Fields))
		}
		values, ok := s.Fields[0].([]packstream.Value)
		if !ok {
			return nil, fmt.Errorf("message: classify RECORD: field is not a list: %T", s.Fields[0])
		}
		return &Record{Values: values}, nil
	}

	return &Unknown{Signature: s.Signature, Fields: s.Fields}, nil
}

func asMeta(fields []packstream.Value) (map[string]packstream.Value, error) {
	if len(fields) == 0 {
		return map[string]packstream.Value{}, nil
	}
	if len(fields) != 1 {
		return nil, fmt.Errorf("expected 1 field, got %d", len(fields))
	}
	m, ok := fields[0].(map[string]packstream.Value)
	if !ok {
		return nil, fmt.Errorf("field is not a map: %T", fields[0])
	}
	return m, nil
}
