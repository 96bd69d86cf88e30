package store

import (
	"fmt"

	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

// Info returns the view of the record with the given key. For kinds with
// references, each reference is resolved one level deep: a single
// reference with an Expand name gains an extra field holding the full
// referenced record, and a member list is replaced by the full member
// records in list order. A key that does not resolve yields a
// *types.ReferenceError with reason "not found".
func (s *Store) Info(kind string, key any) (*types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}
	c, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	k, err := c.kind.KeyField().Coerce(key)
	if err != nil {
		return nil, &types.FieldError{Kind: kind, Field: c.kind.Key, Value: key, Err: err}
	}
	i := c.find(k)
	if i < 0 {
		return nil, &types.ReferenceError{Kind: kind, Subject: c.kind.Title(), Key: k, Reason: types.ReasonNotFound}
	}
	return s.expand(c.records[i])
}

// expand builds the info view of rec. Member lists are replaced in place;
// expanded references are appended in the kind's expansion order.
func (s *Store) expand(rec *types.Record) (*types.Record, error) {
	view := rec.Clone()
	k := rec.Kind()
	for _, f := range k.References() {
		if f.Type != types.FieldIDs {
			continue
		}
		target := s.colls[f.Ref]
		ids := rec.IDs(f.Name)
		members := make([]*types.Record, 0, len(ids))
		for _, id := range ids {
			m, err := s.resolve(target, id)
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		view.Set(f.Name, members)
	}
	for _, f := range k.Expanded() {
		v, _ := rec.Get(f.Name)
		if v == nil {
			continue
		}
		m, err := s.resolve(s.colls[f.Ref], v)
		if err != nil {
			return nil, err
		}
		view.Set(f.Expand, m)
	}
	return view, nil
}

func (s *Store) resolve(c *collection, key any) (*types.Record, error) {
	i := c.find(key)
	if i < 0 {
		return nil, &types.ReferenceError{Kind: c.kind.Name, Subject: c.kind.Title(), Key: key, Reason: types.ReasonNotFound}
	}
	return c.records[i].Clone(), nil
}

// List returns copies of every record of kind in insertion order.
func (s *Store) List(kind string) ([]*types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}
	c, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.Clone()
	}
	return out, nil
}

// Related returns the info views of the kind's records whose reference
// field equals key, e.g. the appointments of one patient. The referenced
// record must exist.
func (s *Store) Related(kind, field string, key any) ([]*types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}
	c, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	f, ok := c.kind.Field(field)
	if !ok || f.Ref == "" || f.Type == types.FieldIDs {
		return nil, fmt.Errorf("%w: %s.%s is not a single reference", types.ErrWrongRole, kind, field)
	}
	target := s.colls[f.Ref]
	k, err := target.kind.KeyField().Coerce(key)
	if err != nil {
		return nil, &types.FieldError{Kind: kind, Field: field, Value: key, Err: err}
	}
	if target.find(k) < 0 {
		return nil, &types.ReferenceError{Kind: f.Ref, Subject: f.Label, Key: k, Reason: types.ReasonMissing}
	}

	var out []*types.Record
	for _, r := range c.records {
		if v, _ := r.Get(field); v != k {
			continue
		}
		view, err := s.expand(r)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}
