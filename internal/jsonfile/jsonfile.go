// Package jsonfile persists a whole document as one JSON object on disk,
// one array per entity kind:
//
//	{
//	    "students": [ {...}, ... ],
//	    "professors": [ ... ],
//	    "courses": [ ... ]
//	}
//
// Writes are atomic: the document is written to a temp file in the same
// directory, synced, and renamed over the old one.
package jsonfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

const indent = "    "

// Persister reads and writes a document file.
type Persister struct {
	path string
}

// New returns a Persister for the file at path. The parent directory is
// created on the first Save.
func New(path string) *Persister {
	return &Persister{path: path}
}

// Path returns the document file path.
func (p *Persister) Path() string { return p.path }

// Load reads the document. Returns types.ErrNoDocument if the file does
// not exist. Keys are returned in file order.
func (p *Persister) Load(_ context.Context) (types.Snapshot, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.path, err)
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p.path, err)
	}
	return snap, nil
}

// Save atomically replaces the document file.
func (p *Persister) Save(_ context.Context, snap types.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return writeFileAtomic(p.path, data)
}

// Close is a no-op; the file is not held open between calls.
func (p *Persister) Close() error { return nil }

// Decode splits a document object into buckets, preserving key order.
func Decode(data []byte) (types.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("document is not a JSON object")
	}
	var snap types.Snapshot
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var payload json.RawMessage
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("bucket %q: %w", name, err)
		}
		snap = append(snap, types.Bucket{Name: name, Payload: payload})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Encode renders buckets as one indented JSON object in bucket order.
func Encode(snap types.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range snap {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(b.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		payload := b.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("[]")
		}
		buf.Write(payload)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", indent); err != nil {
		return nil, fmt.Errorf("formatting document: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// writeFileAtomic writes data using the temp-file, fsync, rename pattern.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".document-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing document: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
