package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recordkeeper/internal/schema"
	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

var errDiskFull = errors.New("disk full")

// memPersister keeps the last saved document in memory and can be told to
// fail the next saves.
type memPersister struct {
	mu       sync.Mutex
	doc      types.Snapshot
	saves    int
	failSave bool
	closed   bool
}

func (m *memPersister) Load(context.Context) (types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, types.ErrNoDocument
	}
	return copySnapshot(m.doc), nil
}

func (m *memPersister) Save(_ context.Context, snap types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errDiskFull
	}
	m.saves++
	m.doc = copySnapshot(snap)
	return nil
}

func (m *memPersister) Close() error {
	m.closed = true
	return nil
}

// payload returns the stored bucket decoded into generic JSON values.
func (m *memPersister) payload(t *testing.T, name string) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(m.doc.Payload(name), &out))
	return out
}

func copySnapshot(s types.Snapshot) types.Snapshot {
	out := make(types.Snapshot, len(s))
	for i, b := range s {
		p := make(json.RawMessage, len(b.Payload))
		copy(p, b.Payload)
		out[i] = types.Bucket{Name: b.Name, Payload: p}
	}
	return out
}

// recordingObserver counts operation outcomes.
type recordingObserver struct {
	ops      map[string]int
	failures int
	persists int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ops: map[string]int{}}
}

func (o *recordingObserver) ObserveOperation(kind, op string, err error) {
	o.ops[kind+"/"+op]++
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) ObservePersist(time.Duration, error) { o.persists++ }

// openSystem opens a built-in system over a fresh in-memory persister.
func openSystem(t *testing.T, name string, opts ...Option) (*Store, *memPersister) {
	t.Helper()
	sch, err := schema.Load(name)
	require.NoError(t, err)
	p := &memPersister{}
	s, err := Open(context.Background(), sch, p, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, p
}

func mustLoad(t *testing.T, name string) *types.Schema {
	t.Helper()
	sch, err := schema.Load(name)
	require.NoError(t, err)
	return sch
}
