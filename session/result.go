// Package session implements the sequential, auto-commit execution surface
// of §4.5: run a query to completion and assemble its records and summary.
package session

import (
	"fmt"

	"github.com/gobolt/driver/message"
	"github.com/gobolt/driver/packstream"
)

// Record is one row of a result, addressable by either position or field
// name (the field names are shared across every Record in a Result).
type Record struct {
	fields []string
	values []packstream.Value
}

// Get returns the value at position i or under field name key, depending on
// the dynamic type of key. It returns nil if the index/name is unknown, the
// same as for a value that is nil; any other key type panics.
func (r Record) Get(key any) packstream.Value {
	switch k := key.(type) {
	case int:
		if k < 0 || k >= len(r.values) {
			return nil
		}
		return r.values[k]
	case string:
		for i, f := range r.fields {
			if f == k {
				return r.values[i]
			}
		}
		return nil
	default:
		panic(fmt.Sprintf("session: Record.Get: key must be int or string, got %T", key))
	}
}

// Values returns the record's values in field order.
func (r Record) Values() []packstream.Value { return r.values }

// Fields returns the field names shared by every Record in the Result this
// one came from.
func (r Record) Fields() []string { return r.fields }

// Summary carries the terminal SUCCESS metadata for a completed query, per
// the "Observable results" table in §6.
type Summary struct {
	Type                 string
	Stats                map[string]packstream.Value
	Plan                 map[string]packstream.Value
	Profile              map[string]packstream.Value
	Notifications        []packstream.Value
	ResultAvailableAfter int64
	ResultConsumedAfter  int64
	Server               string
	DB                   string
}

func summaryFromMeta(meta map[string]packstream.Value) Summary {
	s := Summary{}
	if v, ok := meta["type"].(string); ok {
		s.Type = v
	}
	if v, ok := meta["stats"].(map[string]packstream.Value); ok {
		s.Stats = v
	}
	if v, ok := meta["plan"].(map[string]packstream.Value); ok {
		s.Plan = v
	}
	if v, ok := meta["profile"].(map[string]packstream.Value); ok {
		s.Profile = v
	}
	if v, ok := meta["notifications"].([]packstream.Value); ok {
		s.Notifications = v
	}
	if v, ok := meta["result_available_after"].(int64); ok {
		s.ResultAvailableAfter = v
	}
	if v, ok := meta["result_consumed_after"].(int64); ok {
		s.ResultConsumedAfter = v
	}
	if v, ok := meta["db"].(string); ok {
		s.DB = v
	}
	s.Server, _ = meta["server"].(string)
	return s
}

// Result is the outcome of a fully-drained Session.Run or Transaction.Run:
// every record plus the terminal summary.
type Result struct {
	Fields  []string
	Records []Record
	Summary Summary
}

func recordsFromRaw(fields []string, raw []message.Record) []Record {
	out := make([]Record, len(raw))
	for i, r := range raw {
		out[i] = Record{fields: fields, values: r.Values}
	}
	return out
}
