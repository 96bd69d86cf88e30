package types

import (
	"context"
	"encoding/json"
)

// Bucket is one named collection of a persisted document, held as the
// encoded JSON array of its records.
type Bucket struct {
	Name    string
	Payload json.RawMessage
}

// Snapshot is a whole persisted document: one bucket per entity kind in
// schema order.
type Snapshot []Bucket

// Payload returns the payload of the named bucket, or nil if absent.
func (s Snapshot) Payload(name string) json.RawMessage {
	for _, b := range s {
		if b.Name == name {
			return b.Payload
		}
	}
	return nil
}

// Persister reads and writes a whole document. Implementations never
// write partial documents: Save replaces every bucket or fails.
type Persister interface {
	// Load returns the stored document. Returns ErrNoDocument if nothing
	// has been stored yet.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the stored document with snap.
	Save(ctx context.Context, snap Snapshot) error

	// Close releases backend resources. Idempotent.
	Close() error
}
