package store

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

var errUnknownField = errors.New("field not declared")

// Tx performs mutations inside a Store.Batch call. It must not be used
// after the batch function returns.
type Tx struct {
	s       *Store
	dirty   bool
	changes int
}

// Add creates a primary or secondary record.
func (tx *Tx) Add(kind string, attrs map[string]any) (*types.Record, error) {
	c, err := tx.s.collection(kind)
	if err != nil {
		return nil, err
	}
	if c.kind.Role == types.RoleLink {
		return nil, fmt.Errorf("%w: add on link kind %q", types.ErrWrongRole, kind)
	}
	return tx.insert(c, attrs)
}

// CreateLink creates a link record. Every single reference must resolve;
// member ids given up front are checked as well. The first failing
// reference, in field order, is reported.
func (tx *Tx) CreateLink(kind string, attrs map[string]any) (*types.Record, error) {
	c, err := tx.s.collection(kind)
	if err != nil {
		return nil, err
	}
	if c.kind.Role != types.RoleLink {
		return nil, fmt.Errorf("%w: create on %s kind %q", types.ErrWrongRole, c.kind.Role, kind)
	}
	for _, f := range c.kind.References() {
		v, ok := attrs[f.Name]
		if !ok && f.Type == types.FieldIDs {
			continue
		}
		cv, err := f.Coerce(v)
		if err != nil {
			return nil, &types.FieldError{Kind: kind, Field: f.Name, Value: v, Err: err}
		}
		target := tx.s.colls[f.Ref]
		keys := []any{cv}
		if ids, isList := cv.([]int64); isList {
			keys = keys[:0]
			for _, id := range ids {
				keys = append(keys, id)
			}
		}
		for _, key := range keys {
			if target.find(key) < 0 {
				return nil, &types.ReferenceError{Kind: f.Ref, Subject: f.Label, Key: key, Reason: types.ReasonMissing}
			}
		}
	}
	return tx.insert(c, attrs)
}

// AttachMember appends memberID to the member list of the link record with
// key linkKey. The member is checked before the link, matching the order
// in which the two are prompted for.
func (tx *Tx) AttachMember(kind string, linkKey, memberID any) error {
	c, err := tx.s.collection(kind)
	if err != nil {
		return err
	}
	if c.kind.Members == "" {
		return fmt.Errorf("%w: %q has no member list", types.ErrWrongRole, kind)
	}
	mf, _ := c.kind.Field(c.kind.Members)
	members := tx.s.colls[mf.Ref]

	id, err := members.kind.KeyField().Coerce(memberID)
	if err != nil {
		return &types.FieldError{Kind: kind, Field: mf.Name, Value: memberID, Err: err}
	}
	if members.find(id) < 0 {
		return &types.ReferenceError{Kind: mf.Ref, Subject: mf.Label, Key: id, Reason: types.ReasonMissing}
	}

	key, err := c.kind.KeyField().Coerce(linkKey)
	if err != nil {
		return &types.FieldError{Kind: kind, Field: c.kind.Key, Value: linkKey, Err: err}
	}
	i := c.find(key)
	if i < 0 {
		return &types.ReferenceError{Kind: kind, Subject: keySubject(c.kind), Key: key, Reason: types.ReasonMissing}
	}

	memberKey, ok := id.(int64)
	if !ok {
		return &types.FieldError{Kind: kind, Field: mf.Name, Value: memberID, Err: errors.New("member keys must be integers")}
	}
	rec := c.records[i].Clone()
	rec.Set(mf.Name, append(rec.IDs(mf.Name), memberKey))
	c.records[i] = rec
	tx.touch(kind, key, "attach")
	return nil
}

// Complete sets the completion field of the link record with the given
// key. An already completed record is overwritten.
func (tx *Tx) Complete(kind string, key, value any) (*types.Record, error) {
	c, err := tx.s.collection(kind)
	if err != nil {
		return nil, err
	}
	if c.kind.Completion == "" {
		return nil, fmt.Errorf("%w: %q has no completion field", types.ErrWrongRole, kind)
	}
	k, err := c.kind.KeyField().Coerce(key)
	if err != nil {
		return nil, &types.FieldError{Kind: kind, Field: c.kind.Key, Value: key, Err: err}
	}
	i := c.find(k)
	if i < 0 {
		return nil, &types.ReferenceError{Kind: kind, Subject: keySubject(c.kind), Key: k, Reason: types.ReasonMissing}
	}
	cf, _ := c.kind.Field(c.kind.Completion)
	v, err := cf.Coerce(value)
	if err == nil && v == nil {
		err = errors.New("value required")
	}
	if err != nil {
		return nil, &types.FieldError{Kind: kind, Field: cf.Name, Value: value, Err: err}
	}
	rec := c.records[i].Clone()
	rec.Set(cf.Name, v)
	c.records[i] = rec
	tx.touch(kind, k, "complete")
	return rec.Clone(), nil
}

// insert builds a record from attrs, assigns its key and appends it.
func (tx *Tx) insert(c *collection, attrs map[string]any) (*types.Record, error) {
	k := c.kind
	for name, v := range attrs {
		if _, ok := k.Field(name); !ok {
			return nil, &types.FieldError{Kind: k.Name, Field: name, Value: v, Err: errUnknownField}
		}
	}

	rec := types.NewRecord(k)
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Name == k.Key && k.KeyMode == types.KeySequence {
			continue
		}
		v := attrs[f.Name]
		cv, err := f.Coerce(v)
		if err != nil {
			return nil, &types.FieldError{Kind: k.Name, Field: f.Name, Value: v, Err: err}
		}
		rec.Set(f.Name, cv)
	}

	switch k.KeyMode {
	case types.KeySequence:
		rec.Set(k.Key, c.nextID)
		c.nextID++
	case types.KeySupplied:
		if c.find(rec.Key()) >= 0 {
			return nil, fmt.Errorf("%w: %s %v already exists", types.ErrDuplicateKey, k.Title(), rec.Key())
		}
	}
	c.records = append(c.records, rec)
	tx.touch(k.Name, rec.Key(), "insert")
	return rec.Clone(), nil
}

func (tx *Tx) touch(kind string, key any, op string) {
	tx.dirty = true
	tx.changes++
	tx.s.log.Debug(op, zap.String("kind", kind), zap.Any("key", key))
}

// keySubject names a kind's key in error messages: "Transaction ID" for
// sequence keys, "Course" for supplied keys.
func keySubject(k *types.Kind) string {
	if k.KeyMode == types.KeySequence {
		return k.Title() + " ID"
	}
	return k.Title()
}
