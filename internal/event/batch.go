package event

import (
	"time"
)

// Row is a single event record: a mapping from field to value. Before type
// coercion values are whatever the collector's JSON decoder produced
// (strings, float64s, nil); after coercion they carry the kinds declared in
// the field registry. A missing value is an untyped nil (absent key and nil
// value are equivalent).
type Row map[Field]interface{}

// Batch is one in-memory collection of rows processed together through the
// pipeline. Each transformation step consumes a batch and produces a new
// one; a batch is never mutated in place across step boundaries.
type Batch []Row

// Clone returns a deep-enough copy of the row for steps that rewrite cells.
// Cell values themselves are treated as immutable.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for f, v := range r {
		out[f] = v
	}
	return out
}

// IsNil reports whether the field is absent or holds a nil value.
func (r Row) IsNil(f Field) bool {
	v, ok := r[f]
	return !ok || v == nil
}

// String returns the field's value as a string, or "" if it is nil or not
// a string.
func (r Row) String(f Field) string {
	if s, ok := r[f].(string); ok {
		return s
	}
	return ""
}

// Int returns the field's value as an int64 with an ok flag.
func (r Row) Int(f Field) (int64, bool) {
	v, ok := r[f].(int64)
	return v, ok
}

// Float returns the field's value as a float64 with an ok flag.
func (r Row) Float(f Field) (float64, bool) {
	v, ok := r[f].(float64)
	return v, ok
}

// Time returns the field's value as a timestamp with an ok flag.
func (r Row) Time(f Field) (time.Time, bool) {
	v, ok := r[f].(time.Time)
	return v, ok
}

// Bool returns the field's value as a bool with an ok flag.
func (r Row) Bool(f Field) (bool, bool) {
	v, ok := r[f].(bool)
	return v, ok
}

// EventName returns the row's event name. Valid only after coercion.
func (r Row) EventName() Name {
	return Name(r.String(FieldEventName))
}
