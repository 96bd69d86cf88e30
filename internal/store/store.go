// Package store implements the generic record store: in-memory collections
// for every entity kind of a schema, mirrored to a document through a
// types.Persister after every mutation.
//
// Every mutation runs inside a save point. Validation happens before any
// change is made; if the document cannot be written afterwards the
// in-memory state is rolled back to the save point, so memory and storage
// never diverge.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

// Observer receives operation outcomes and persist timings.
type Observer interface {
	ObserveOperation(kind, op string, err error)
	ObservePersist(d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, error) {}
func (nopObserver) ObservePersist(time.Duration, error)    {}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// ReadOnly opens the store for lookups only. A missing document is treated
// as empty and is not created; mutations return ErrReadOnly.
func ReadOnly() Option {
	return func(s *Store) { s.readOnly = true }
}

// Store owns the in-memory collections of one schema for the lifetime of
// the process. It is safe for concurrent use, but it does not coordinate
// with other processes writing the same document.
type Store struct {
	mu        sync.Mutex
	schema    *types.Schema
	persister types.Persister
	log       *zap.Logger
	observer  Observer
	readOnly  bool
	closed    bool
	colls     map[string]*collection
}

// collection holds the records of one kind in insertion order.
type collection struct {
	kind    *types.Kind
	records []*types.Record
	nextID  int64
}

// find returns the index of the first record whose key equals key, or -1.
func (c *collection) find(key any) int {
	for i, r := range c.records {
		if r.Key() == key {
			return i
		}
	}
	return -1
}

// Open loads the document through p and returns a Store over it. If no
// document exists yet, an empty one (every kind with no records) is
// written first, unless the store is read-only.
func Open(ctx context.Context, schema *types.Schema, p types.Persister, opts ...Option) (*Store, error) {
	s := &Store{
		schema:    schema,
		persister: p,
		log:       zap.NewNop(),
		observer:  nopObserver{},
		colls:     make(map[string]*collection, len(schema.Kinds)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("system", schema.Name))

	snap, err := p.Load(ctx)
	switch {
	case errors.Is(err, types.ErrNoDocument):
		snap = nil
	case err != nil:
		return nil, fmt.Errorf("load %s document: %w", schema.Name, err)
	}

	for _, k := range schema.Kinds {
		records, err := k.DecodeRecords(snap.Payload(k.Name))
		if err != nil {
			return nil, fmt.Errorf("load %s document: %w", schema.Name, err)
		}
		c := &collection{kind: k, records: records, nextID: 1}
		if k.KeyMode == types.KeySequence {
			for _, r := range records {
				if id, _ := r.Key().(int64); id >= c.nextID {
					c.nextID = id + 1
				}
			}
		}
		s.colls[k.Name] = c
	}

	if snap == nil && !s.readOnly {
		if err := s.persist(ctx); err != nil {
			return nil, fmt.Errorf("initialize %s document: %w", schema.Name, err)
		}
		s.log.Info("initialized empty document")
	}
	s.log.Debug("store opened", zap.Int("kinds", len(s.colls)))
	return s, nil
}

// Schema returns the schema the store was opened with.
func (s *Store) Schema() *types.Schema { return s.schema }

// Close releases the persister. Idempotent; after Close every operation
// returns ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.persister.Close()
}

// Add creates a primary or secondary record from attrs, assigns its key,
// and persists the document. Returns ErrWrongRole for link kinds.
func (s *Store) Add(ctx context.Context, kind string, attrs map[string]any) (*types.Record, error) {
	var rec *types.Record
	err := s.Batch(ctx, func(tx *Tx) error {
		var err error
		rec, err = tx.Add(kind, attrs)
		return err
	})
	s.observer.ObserveOperation(kind, "add", err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateLink creates a link record after checking that every referenced
// identifier exists. A missing reference yields a *types.ReferenceError
// naming it; nothing is changed in that case.
func (s *Store) CreateLink(ctx context.Context, kind string, attrs map[string]any) (*types.Record, error) {
	var rec *types.Record
	err := s.Batch(ctx, func(tx *Tx) error {
		var err error
		rec, err = tx.CreateLink(kind, attrs)
		return err
	})
	s.observer.ObserveOperation(kind, "create", err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AttachMember appends memberID to the member list of the link record
// identified by linkKey.
func (s *Store) AttachMember(ctx context.Context, kind string, linkKey, memberID any) error {
	err := s.Batch(ctx, func(tx *Tx) error {
		return tx.AttachMember(kind, linkKey, memberID)
	})
	s.observer.ObserveOperation(kind, "attach", err)
	return err
}

// Complete sets the completion field of the link record identified by key
// (a book's return date, an appointment's completion date).
func (s *Store) Complete(ctx context.Context, kind string, key, value any) (*types.Record, error) {
	var rec *types.Record
	err := s.Batch(ctx, func(tx *Tx) error {
		var err error
		rec, err = tx.Complete(kind, key, value)
		return err
	})
	s.observer.ObserveOperation(kind, "complete", err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Batch runs fn under a single save point. Operations performed through tx
// become visible immediately to later operations in fn. If fn fails, or
// the document cannot be written afterwards, all of them are rolled back.
// The document is written once, and only if something changed.
func (s *Store) Batch(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	if s.readOnly {
		return types.ErrReadOnly
	}

	sp := s.savepoint()
	tx := &Tx{s: s}
	if err := fn(tx); err != nil {
		s.rollback(sp)
		return err
	}
	if !tx.dirty {
		return nil
	}
	if err := s.persist(ctx); err != nil {
		s.rollback(sp)
		s.log.Error("persist failed, rolled back",
			zap.String("savepoint", sp.id), zap.Error(err))
		return fmt.Errorf("persist %s document: %w", s.schema.Name, err)
	}
	s.log.Debug("committed", zap.String("savepoint", sp.id), zap.Int("changes", tx.changes))
	return nil
}

// savepoint captures the collection slices and id counters. Records are
// replaced, never mutated in place, so copying the slices is enough.
type savepoint struct {
	id      string
	records map[string][]*types.Record
	nextIDs map[string]int64
}

func (s *Store) savepoint() savepoint {
	sp := savepoint{
		id:      newSavepointID(),
		records: make(map[string][]*types.Record, len(s.colls)),
		nextIDs: make(map[string]int64, len(s.colls)),
	}
	for name, c := range s.colls {
		records := make([]*types.Record, len(c.records))
		copy(records, c.records)
		sp.records[name] = records
		sp.nextIDs[name] = c.nextID
	}
	return sp
}

func (s *Store) rollback(sp savepoint) {
	for name, c := range s.colls {
		c.records = sp.records[name]
		c.nextID = sp.nextIDs[name]
	}
}

// persist writes every collection in schema order.
func (s *Store) persist(ctx context.Context) error {
	snap := make(types.Snapshot, 0, len(s.schema.Kinds))
	for _, k := range s.schema.Kinds {
		payload, err := types.EncodeRecords(s.colls[k.Name].records)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k.Name, err)
		}
		snap = append(snap, types.Bucket{Name: k.Name, Payload: payload})
	}
	start := time.Now()
	err := s.persister.Save(ctx, snap)
	s.observer.ObservePersist(time.Since(start), err)
	return err
}

func (s *Store) collection(kind string) (*collection, error) {
	c, ok := s.colls[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
	return c, nil
}

// newSavepointID generates a UUID v7 for save point identification.
func newSavepointID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
