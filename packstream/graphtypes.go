package packstream

import "fmt"

// encodeGraphValue dispatches a known graph-value struct (or pointer to
// one) to its structure signature and field encoding.
func (e *encoder) encodeGraphValue(v Value) error {
	switch x := v.(type) {
	case Node:
		return e.encodeNode(&x)
	case *Node:
		return e.encodeNode(x)
	case Relationship:
		return e.encodeRelationship(&x)
	case *Relationship:
		return e.encodeRelationship(x)
	case Path:
		return e.encodePath(&x)
	case *Path:
		return e.encodePath(x)
	case Point2D:
		return e.encodePoint2D(&x)
	case *Point2D:
		return e.encodePoint2D(x)
	case Point3D:
		return e.encodePoint3D(&x)
	case *Point3D:
		return e.encodePoint3D(x)
	case Date:
		return e.encodeStructure(sigDate, []Value{x.Days})
	case *Date:
		return e.encodeStructure(sigDate, []Value{x.Days})
	case LocalTime:
		return e.encodeStructure(sigLocalTime, []Value{x.Nanos})
	case *LocalTime:
		return e.encodeStructure(sigLocalTime, []Value{x.Nanos})
	case Time:
		return e.encodeStructure(sigTime, []Value{x.Nanos, int64(x.TZOffsetSeconds)})
	case *Time:
		return e.encodeStructure(sigTime, []Value{x.Nanos, int64(x.TZOffsetSeconds)})
	case LocalDateTime:
		return e.encodeStructure(sigLocalDateTime, []Value{x.Seconds, int64(x.Nanos)})
	case *LocalDateTime:
		return e.encodeStructure(sigLocalDateTime, []Value{x.Seconds, int64(x.Nanos)})
	case DateTime:
		return e.encodeDateTime(&x)
	case *DateTime:
		return e.encodeDateTime(x)
	case Duration:
		return e.encodeDuration(&x)
	case *Duration:
		return e.encodeDuration(x)
	}
	return fmt.Errorf("packstream: encode: unsupported graph value %T", v)
}

func (e *encoder) encodeNode(n *Node) error {
	props := propsToValue(n.Properties)
	fields := []Value{n.ID, stringsToValue(n.Labels), props}
	if n.ElementID != "" {
		fields = append(fields, n.ElementID)
	}
	return e.encodeStructure(sigNode, fields)
}

func (e *encoder) encodeRelationship(r *Relationship) error {
	props := propsToValue(r.Properties)
	fields := []Value{r.ID, r.StartID, r.EndID, r.Type, props}
	if r.ElementID != "" {
		fields = append(fields, r.ElementID)
	}
	return e.encodeStructure(sigRelationship, fields)
}

func (e *encoder) encodePath(p *Path) error {
	nodes := make([]Value, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = n
	}
	rels := make([]Value, len(p.Relationships))
	for i, r := range p.Relationships {
		rels[i] = r
	}
	indices := make([]Value, len(p.Indices))
	for i, idx := range p.Indices {
		indices[i] = idx
	}
	return e.encodeStructure(sigPath, []Value{nodes, rels, indices})
}

func (e *encoder) encodePoint2D(p *Point2D) error {
	return e.encodeStructure(sigPoint2D, []Value{p.SRID, p.X, p.Y})
}

func (e *encoder) encodePoint3D(p *Point3D) error {
	return e.encodeStructure(sigPoint3D, []Value{p.SRID, p.X, p.Y, p.Z})
}

func (e *encoder) encodeDateTime(d *DateTime) error {
	switch d.Variant {
	case DateTimeLegacyOffset:
		return e.encodeStructure(sigDateTimeLegacyOffset, []Value{d.Seconds, int64(d.Nanos), int64(d.TZOffsetSeconds)})
	case DateTimeLegacyZoneName:
		return e.encodeStructure(sigDateTimeLegacyZoneName, []Value{d.Seconds, int64(d.Nanos), d.TZName})
	case DateTimeUTCOffset:
		return e.encodeStructure(sigDateTimeUTCOffset, []Value{d.Seconds, int64(d.Nanos), int64(d.TZOffsetSeconds)})
	case DateTimeUTCZoneName:
		return e.encodeStructure(sigDateTimeUTCZoneName, []Value{d.Seconds, int64(d.Nanos), d.TZName})
	}
	return fmt.Errorf("packstream: encode: unknown DateTime variant %d", d.Variant)
}

func (e *encoder) encodeDuration(d *Duration) error {
	return e.encodeStructure(sigDuration, []Value{d.Months, d.Days, d.Seconds, int64(d.Nanos)})
}

// structureToGraphValue dispatches a decoded (signature, fields) pair to a
// concrete graph-value struct. Unknown signatures, and known signatures
// whose field count or types do not match, decode to a generic *Structure
// so newer server-side types degrade gracefully instead of failing.
func structureToGraphValue(sig byte, fields []Value) (Value, error) {
	switch sig {
	case sigNode:
		if n, ok := decodeNode(fields); ok {
			return n, nil
		}
	case sigRelationship:
		if r, ok := decodeRelationship(fields); ok {
			return r, nil
		}
	case sigPath:
		if p, ok := decodePath(fields); ok {
			return p, nil
		}
	case sigPoint2D:
		if len(fields) == 3 {
			srid, ok1 := asUint32(fields[0])
			x, ok2 := asFloat(fields[1])
			y, ok3 := asFloat(fields[2])
			if ok1 && ok2 && ok3 {
				return Point2D{SRID: srid, X: x, Y: y}, nil
			}
		}
	case sigPoint3D:
		if len(fields) == 4 {
			srid, ok1 := asUint32(fields[0])
			x, ok2 := asFloat(fields[1])
			y, ok3 := asFloat(fields[2])
			z, ok4 := asFloat(fields[3])
			if ok1 && ok2 && ok3 && ok4 {
				return Point3D{SRID: srid, X: x, Y: y, Z: z}, nil
			}
		}
	case sigDate:
		if len(fields) == 1 {
			if days, ok := asInt64(fields[0]); ok {
				return Date{Days: days}, nil
			}
		}
	case sigLocalTime:
		if len(fields) == 1 {
			if nanos, ok := asInt64(fields[0]); ok {
				return LocalTime{Nanos: nanos}, nil
			}
		}
	case sigTime:
		if len(fields) == 2 {
			nanos, ok1 := asInt64(fields[0])
			off, ok2 := asInt64(fields[1])
			if ok1 && ok2 {
				return Time{Nanos: nanos, TZOffsetSeconds: int(off)}, nil
			}
		}
	case sigLocalDateTime:
		if len(fields) == 2 {
			secs, ok1 := asInt64(fields[0])
			nanos, ok2 := asInt64(fields[1])
			if ok1 && ok2 {
				return LocalDateTime{Seconds: secs, Nanos: int(nanos)}, nil
			}
		}
	case sigDateTimeLegacyOffset, sigDateTimeUTCOffset:
		if len(fields) == 3 {
			secs, ok1 := asInt64(fields[0])
			nanos, ok2 := asInt64(fields[1])
			off, ok3 := asInt64(fields[2])
			if ok1 && ok2 && ok3 {
				variant := DateTimeLegacyOffset
				if sig == sigDateTimeUTCOffset {
					variant = DateTimeUTCOffset
				}
				return DateTime{Seconds: secs, Nanos: int(nanos), TZOffsetSeconds: int(off), Variant: variant}, nil
			}
		}
	case sigDateTimeLegacyZoneName, sigDateTimeUTCZoneName:
		if len(fields) == 3 {
			secs, ok1 := asInt64(fields[0])
			nanos, ok2 := asInt64(fields[1])
			name, ok3 := fields[2].(string)
			if ok1 && ok2 && ok3 {
				variant := DateTimeLegacyZoneName
				if sig == sigDateTimeUTCZoneName {
					variant = DateTimeUTCZoneName
				}
				return DateTime{Seconds: secs, Nanos: int(nanos), TZName: name, Variant: variant}, nil
			}
		}
	case sigDuration:
		if len(fields) == 4 {
			months, ok1 := asInt64(fields[0])
			days, ok2 := asInt64(fields[1])
			secs, ok3 := asInt64(fields[2])
			nanos, ok4 := asInt64(fields[3])
			if ok1 && ok2 && ok3 && ok4 {
				return Duration{Months: months, Days: days, Seconds: secs, Nanos: int(nanos)}, nil
			}
		}
	}
	return &Structure{Signature: sig, Fields: fields}, nil
}

func decodeNode(fields []Value) (Node, bool) {
	if len(fields) != 3 && len(fields) != 4 {
		return Node{}, false
	}
	id, ok := asInt64(fields[0])
	if !ok {
		return Node{}, false
	}
	labels, ok := asStringList(fields[1])
	if !ok {
		return Node{}, false
	}
	if len(labels) == 0 {
		// An unlabeled Node (nil Labels) encodes as an empty list; decode it
		// back to nil so it round-trips.
		labels = nil
	}
	props, ok := asPropMap(fields[2])
	if !ok {
		return Node{}, false
	}
	n := Node{ID: id, Labels: labels, Properties: props}
	if len(fields) == 4 {
		eid, ok := fields[3].(string)
		if !ok {
			return Node{}, false
		}
		n.ElementID = eid
	}
	return n, true
}

func decodeRelationship(fields []Value) (Relationship, bool) {
	if len(fields) != 5 && len(fields) != 6 {
		return Relationship{}, false
	}
	id, ok1 := asInt64(fields[0])
	startID, ok2 := asInt64(fields[1])
	endID, ok3 := asInt64(fields[2])
	typ, ok4 := fields[3].(string)
	props, ok5 := asPropMap(fields[4])
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return Relationship{}, false
	}
	r := Relationship{ID: id, StartID: startID, EndID: endID, Type: typ, Properties: props}
	if len(fields) == 6 {
		eid, ok := fields[5].(string)
		if !ok {
			return Relationship{}, false
		}
		r.ElementID = eid
	}
	return r, true
}

func decodePath(fields []Value) (Path, bool) {
	if len(fields) != 3 {
		return Path{}, false
	}
	nodeVals, ok := fields[0].([]Value)
	if !ok {
		return Path{}, false
	}
	relVals, ok := fields[1].([]Value)
	if !ok {
		return Path{}, false
	}
	idxVals, ok := fields[2].([]Value)
	if !ok {
		return Path{}, false
	}

	nodes := make([]Node, len(nodeVals))
	for i, nv := range nodeVals {
		n, ok := nv.(Node)
		if !ok {
			return Path{}, false
		}
		nodes[i] = n
	}
	rels := make([]Relationship, len(relVals))
	for i, rv := range relVals {
		r, ok := rv.(Relationship)
		if !ok {
			return Path{}, false
		}
		rels[i] = r
	}
	indices := make([]int64, len(idxVals))
	for i, iv := range idxVals {
		n, ok := asInt64(iv)
		if !ok {
			return Path{}, false
		}
		indices[i] = n
	}
	return Path{Nodes: nodes, Relationships: rels, Indices: indices}, true
}

func asInt64(v Value) (int64, bool) {
	n, ok := v.(int64)
	return n, ok
}

func asUint32(v Value) (uint32, bool) {
	switch n := v.(type) {
	case int64:
		return uint32(n), true
	case uint32:
		return n, true
	}
	return 0, false
}

func asFloat(v Value) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asStringList(v Value) ([]string, bool) {
	items, ok := v.([]Value)
	if !ok {
		return nil, false
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func asPropMap(v Value) (map[string]Value, bool) {
	m, ok := v.(map[string]Value)
	return m, ok
}

func propsToValue(m map[string]Value) map[string]Value {
	if m == nil {
		return map[string]Value{}
	}
	return m
}

func stringsToValue(ss []string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
