// Package schema loads the declared entity schemas of the record-keeping
// systems. The five built-in systems are embedded YAML documents; Parse
// accepts the same format from any source.
package schema

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

//go:embed schemas/*.yaml
var builtin embed.FS

// Names lists the built-in system names in alphabetical order.
func Names() []string {
	entries, err := builtin.ReadDir("schemas")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load returns the validated built-in schema with the given name.
// Returns ErrSchemaNotFound if no such system is embedded.
func Load(name string) (*types.Schema, error) {
	data, err := builtin.ReadFile(path.Join("schemas", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", types.ErrSchemaNotFound, name)
	}
	return Parse(data)
}

// Parse decodes and validates a schema document. Unknown keys are
// rejected so typos in declarations surface early.
func Parse(data []byte) (*types.Schema, error) {
	var s types.Schema
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSchema, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
