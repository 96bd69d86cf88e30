package types

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role classifies an entity kind.
type Role string

// Entity roles.
const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
	RoleLink      Role = "link"
)

// KeyMode says how a kind's identifier is produced.
type KeyMode string

// Key modes. Sequence keys are assigned by the store as max(existing)+1;
// supplied keys come from the caller and must be unique.
const (
	KeySequence KeyMode = "sequence"
	KeySupplied KeyMode = "supplied"
)

// FieldType is the declared type of a record field.
type FieldType string

// Field types.
const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldDate   FieldType = "date"
	FieldIDs    FieldType = "ids"
)

// DateLayout is the persisted form of date fields.
const DateLayout = "2006-01-02"

// Field declares one named field of a kind.
type Field struct {
	Name string    `yaml:"name"`
	Type FieldType `yaml:"type"`

	// Label names the field in prompts and error messages. Defaults to the
	// field name with underscores replaced by spaces.
	Label string `yaml:"label,omitempty"`

	// Ref names the kind whose key this field (or, for ids fields, each
	// element) references.
	Ref string `yaml:"ref,omitempty"`

	// Expand names the extra view field that carries the resolved record of
	// a single reference. Empty means the reference is not expanded.
	Expand string `yaml:"expand,omitempty"`

	// Optional fields may hold null.
	Optional bool `yaml:"optional,omitempty"`

	// Prompt replaces the generated input prompt.
	Prompt string `yaml:"prompt,omitempty"`
}

// Kind declares one entity kind: its collection name, role, key and fields.
type Kind struct {
	Name     string  `yaml:"name"`
	Singular string  `yaml:"singular"`
	Role     Role    `yaml:"role"`
	Key      string  `yaml:"key"`
	KeyMode  KeyMode `yaml:"key_mode"`
	Fields   []Field `yaml:"fields"`

	// Members names the ids field that AttachMember appends to.
	Members string `yaml:"members,omitempty"`

	// Completion names the optional field that Complete sets.
	Completion string `yaml:"completion,omitempty"`

	// Expansions orders the expanded references in the info view by their
	// Expand names. Empty means declaration order.
	Expansions []string `yaml:"expansions,omitempty"`

	fieldIndex map[string]int
}

// Title returns the capitalised singular name, e.g. "Student".
func (k *Kind) Title() string {
	return cases.Title(language.English).String(k.Singular)
}

// Field returns the declared field with the given name.
func (k *Kind) Field(name string) (*Field, bool) {
	i, ok := k.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return &k.Fields[i], true
}

// KeyField returns the field that holds the kind's identifier.
func (k *Kind) KeyField() *Field {
	f, _ := k.Field(k.Key)
	return f
}

// References returns the fields that reference another kind, in
// declaration order.
func (k *Kind) References() []*Field {
	var refs []*Field
	for i := range k.Fields {
		if k.Fields[i].Ref != "" {
			refs = append(refs, &k.Fields[i])
		}
	}
	return refs
}

// Expanded returns the single references that carry an Expand name, in
// the order their expansions appear in the info view.
func (k *Kind) Expanded() []*Field {
	var fields []*Field
	for _, f := range k.References() {
		if f.Expand != "" && f.Type != FieldIDs {
			fields = append(fields, f)
		}
	}
	if len(k.Expansions) == 0 {
		return fields
	}
	ordered := make([]*Field, 0, len(fields))
	for _, name := range k.Expansions {
		for _, f := range fields {
			if f.Expand == name {
				ordered = append(ordered, f)
			}
		}
	}
	return ordered
}

// MenuItem is one numbered entry of a system's interactive menu.
type MenuItem struct {
	Label  string `yaml:"label"`
	Action string `yaml:"action"`
	Kind   string `yaml:"kind"`

	// Field selects the reference field for the "related" action.
	Field string `yaml:"field,omitempty"`

	// Result overrides the verb phrase printed before a created or
	// completed record, e.g. "Borrowed book".
	Result string `yaml:"result,omitempty"`
}

// Menu actions.
const (
	ActionAdd      = "add"
	ActionCreate   = "create"
	ActionAttach   = "attach"
	ActionComplete = "complete"
	ActionInfo     = "info"
	ActionList     = "list"
	ActionRelated  = "related"
)

var knownActions = map[string]bool{
	ActionAdd:      true,
	ActionCreate:   true,
	ActionAttach:   true,
	ActionComplete: true,
	ActionInfo:     true,
	ActionList:     true,
	ActionRelated:  true,
}

// Schema declares the entity kinds of one record-keeping system.
type Schema struct {
	Name     string     `yaml:"name"`
	Title    string     `yaml:"title"`
	Document string     `yaml:"document"`
	Kinds    []*Kind    `yaml:"kinds"`
	Menu     []MenuItem `yaml:"menu"`

	kinds map[string]*Kind
}

// Kind returns the declared kind with the given collection name.
// Returns ErrUnknownKind if the schema does not declare it.
func (s *Schema) Kind(name string) (*Kind, error) {
	k, ok := s.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// KindNames lists the collection names in declaration order.
func (s *Schema) KindNames() []string {
	names := make([]string, len(s.Kinds))
	for i, k := range s.Kinds {
		names[i] = k.Name
	}
	return names
}

// Validate checks the schema for internal consistency and builds the
// lookup indexes used by Kind and Kind.Field. It must be called before the
// schema is used; every failure wraps ErrInvalidSchema.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidSchema)
	}
	if s.Document == "" {
		s.Document = s.Name + "_data.json"
	}
	s.kinds = make(map[string]*Kind, len(s.Kinds))
	for _, k := range s.Kinds {
		if err := k.index(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchema, s.Name, err)
		}
		if _, dup := s.kinds[k.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate kind %q", ErrInvalidSchema, s.Name, k.Name)
		}
		s.kinds[k.Name] = k
	}
	for _, k := range s.Kinds {
		for _, f := range k.References() {
			target, ok := s.kinds[f.Ref]
			if !ok {
				return fmt.Errorf("%w: %s.%s references unknown kind %q", ErrInvalidSchema, k.Name, f.Name, f.Ref)
			}
			if f.Label == "" {
				f.Label = target.Title() + " ID"
			}
		}
	}
	for i, item := range s.Menu {
		if !knownActions[item.Action] {
			return fmt.Errorf("%w: %s: menu item %d: unknown action %q", ErrInvalidSchema, s.Name, i+1, item.Action)
		}
		k, ok := s.kinds[item.Kind]
		if !ok {
			return fmt.Errorf("%w: %s: menu item %d: unknown kind %q", ErrInvalidSchema, s.Name, i+1, item.Kind)
		}
		if item.Action == ActionRelated {
			if _, ok := k.Field(item.Field); !ok {
				return fmt.Errorf("%w: %s: menu item %d: unknown field %q", ErrInvalidSchema, s.Name, i+1, item.Field)
			}
		}
	}
	return nil
}

func (k *Kind) index() error {
	if k.Name == "" || k.Singular == "" {
		return fmt.Errorf("kind needs name and singular")
	}
	switch k.Role {
	case RolePrimary, RoleSecondary, RoleLink:
	default:
		return fmt.Errorf("kind %q: unknown role %q", k.Name, k.Role)
	}
	switch k.KeyMode {
	case KeySequence, KeySupplied:
	default:
		return fmt.Errorf("kind %q: unknown key mode %q", k.Name, k.KeyMode)
	}
	k.fieldIndex = make(map[string]int, len(k.Fields))
	for i := range k.Fields {
		f := &k.Fields[i]
		switch f.Type {
		case FieldString, FieldInt, FieldFloat, FieldDate, FieldIDs:
		default:
			return fmt.Errorf("%s.%s: unknown type %q", k.Name, f.Name, f.Type)
		}
		if _, dup := k.fieldIndex[f.Name]; dup {
			return fmt.Errorf("%s: duplicate field %q", k.Name, f.Name)
		}
		k.fieldIndex[f.Name] = i
	}
	key, ok := k.Field(k.Key)
	if !ok {
		return fmt.Errorf("kind %q: key field %q not declared", k.Name, k.Key)
	}
	if k.KeyMode == KeySequence && key.Type != FieldInt {
		return fmt.Errorf("kind %q: sequence key must be int", k.Name)
	}
	if key.Optional || key.Type == FieldIDs {
		return fmt.Errorf("kind %q: key field must be a required scalar", k.Name)
	}
	if k.Members != "" {
		f, ok := k.Field(k.Members)
		if !ok || f.Type != FieldIDs || f.Ref == "" {
			return fmt.Errorf("kind %q: members field %q must be a referencing ids field", k.Name, k.Members)
		}
	}
	if k.Completion != "" {
		f, ok := k.Field(k.Completion)
		if !ok || !f.Optional {
			return fmt.Errorf("kind %q: completion field %q must be optional", k.Name, k.Completion)
		}
	}
	return k.checkExpansions()
}

// checkExpansions requires Expansions, when set, to name every expanded
// reference exactly once.
func (k *Kind) checkExpansions() error {
	if len(k.Expansions) == 0 {
		return nil
	}
	expands := map[string]bool{}
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Ref != "" && f.Expand != "" && f.Type != FieldIDs {
			expands[f.Expand] = false
		}
	}
	for _, name := range k.Expansions {
		seen, ok := expands[name]
		if !ok || seen {
			return fmt.Errorf("kind %q: expansion %q is unknown or repeated", k.Name, name)
		}
		expands[name] = true
	}
	if len(k.Expansions) != len(expands) {
		return fmt.Errorf("kind %q: expansions must list every expanded reference", k.Name)
	}
	return nil
}
