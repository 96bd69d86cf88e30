package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one entity instance: an ordered set of named values. Stored
// records carry exactly their kind's declared fields in declaration order;
// info views may append expanded reference fields after them.
type Record struct {
	kind   *Kind
	names  []string
	values map[string]any
}

// NewRecord returns a record of kind k with every declared field set to
// its zero form (nil, or an empty list for ids fields).
func NewRecord(k *Kind) *Record {
	r := &Record{
		kind:   k,
		names:  make([]string, 0, len(k.Fields)),
		values: make(map[string]any, len(k.Fields)),
	}
	for _, f := range k.Fields {
		r.names = append(r.names, f.Name)
		if f.Type == FieldIDs {
			r.values[f.Name] = []int64{}
		} else {
			r.values[f.Name] = nil
		}
	}
	return r
}

// Kind returns the record's kind.
func (r *Record) Kind() *Kind { return r.kind }

// Key returns the value of the kind's key field.
func (r *Record) Key() any { return r.values[r.kind.Key] }

// Get returns the named value.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// IDs returns the named ids field, or nil if it is not a list.
func (r *Record) IDs(name string) []int64 {
	ids, _ := r.values[name].([]int64)
	return ids
}

// Set assigns a value, appending the name if the record does not have it.
func (r *Record) Set(name string, v any) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// Fields returns the value names in order.
func (r *Record) Fields() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Clone returns a copy that shares no mutable state with r. Nested
// records (in views) are cloned as well.
func (r *Record) Clone() *Record {
	c := &Record{
		kind:   r.kind,
		names:  make([]string, len(r.names)),
		values: make(map[string]any, len(r.values)),
	}
	copy(c.names, r.names)
	for k, v := range r.values {
		c.values[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []int64:
		out := make([]int64, len(x))
		copy(out, x)
		return out
	case *Record:
		return x.Clone()
	case []*Record:
		out := make([]*Record, len(x))
		for i, rec := range x {
			out[i] = rec.Clone()
		}
		return out
	}
	return v
}

// Map returns the record's dictionary form. Nested records are converted
// recursively.
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		switch x := v.(type) {
		case *Record:
			m[k] = x.Map()
		case []*Record:
			list := make([]map[string]any, len(x))
			for i, rec := range x {
				list[i] = rec.Map()
			}
			m[k] = list
		default:
			m[k] = cloneValue(v)
		}
	}
	return m
}

// MarshalJSON encodes the record as a JSON object with keys in record
// order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", name, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the compact JSON form.
func (r *Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", r.kind.Name, err)
	}
	return string(b)
}

// DecodeRecord parses one persisted record of kind k. Values are coerced
// to the declared field types; fields missing from the input take their
// zero form and unknown fields are ignored.
func (k *Kind) DecodeRecord(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding %s record: %w", k.Name, err)
	}
	r := NewRecord(k)
	for i := range k.Fields {
		f := &k.Fields[i]
		v, ok := raw[f.Name]
		if !ok {
			continue
		}
		cv, err := f.Coerce(v)
		if err != nil {
			return nil, &FieldError{Kind: k.Name, Field: f.Name, Value: v, Err: err}
		}
		r.values[f.Name] = cv
	}
	if r.Key() == nil {
		return nil, &FieldError{Kind: k.Name, Field: k.Key, Err: errRequired}
	}
	return r, nil
}

// DecodeRecords parses a JSON array of records of kind k. An empty or
// null payload yields no records.
func (k *Kind) DecodeRecords(data []byte) ([]*Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", k.Name, err)
	}
	records := make([]*Record, 0, len(items))
	for _, item := range items {
		rec, err := k.DecodeRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// EncodeRecords encodes records as a JSON array. A nil slice encodes as [].
func EncodeRecords(records []*Record) (json.RawMessage, error) {
	if records == nil {
		records = []*Record{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
