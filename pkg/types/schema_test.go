package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema builds a small college-like schema in code.
func testSchema() *Schema {
	return &Schema{
		Name: "college",
		Kinds: []*Kind{
			{
				Name: "students", Singular: "student", Role: RolePrimary,
				Key: "student_id", KeyMode: KeySequence,
				Fields: []Field{
					{Name: "name", Type: FieldString},
					{Name: "age", Type: FieldInt},
					{Name: "student_id", Type: FieldInt},
				},
			},
			{
				Name: "professors", Singular: "professor", Role: RoleSecondary,
				Key: "professor_id", KeyMode: KeySequence,
				Fields: []Field{
					{Name: "name", Type: FieldString},
					{Name: "department", Type: FieldString},
					{Name: "professor_id", Type: FieldInt},
				},
			},
			{
				Name: "courses", Singular: "course", Role: RoleLink,
				Key: "course_name", KeyMode: KeySupplied, Members: "students",
				Fields: []Field{
					{Name: "course_name", Type: FieldString},
					{Name: "professor_id", Type: FieldInt, Ref: "professors"},
					{Name: "students", Type: FieldIDs, Ref: "students"},
				},
			},
		},
		Menu: []MenuItem{{Label: "Add Student", Action: ActionAdd, Kind: "students"}},
	}
}

func TestSchemaValidate(t *testing.T) {
	s := testSchema()
	require.NoError(t, s.Validate())

	assert.Equal(t, "college_data.json", s.Document)
	assert.Equal(t, []string{"students", "professors", "courses"}, s.KindNames())

	courses, err := s.Kind("courses")
	require.NoError(t, err)
	assert.Equal(t, "Course", courses.Title())
	assert.Equal(t, "course_name", courses.KeyField().Name)

	refs := courses.References()
	require.Len(t, refs, 2)
	assert.Equal(t, "Professor ID", refs[0].Label)
	assert.Equal(t, "Student ID", refs[1].Label)

	_, err = s.Kind("rooms")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSchemaValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Schema)
	}{
		{"missing name", func(s *Schema) { s.Name = "" }},
		{"unknown role", func(s *Schema) { s.Kinds[0].Role = "tertiary" }},
		{"unknown key mode", func(s *Schema) { s.Kinds[0].KeyMode = "random" }},
		{"undeclared key", func(s *Schema) { s.Kinds[0].Key = "id" }},
		{"string sequence key", func(s *Schema) {
			s.Kinds[2].KeyMode = KeySequence
		}},
		{"unknown field type", func(s *Schema) { s.Kinds[0].Fields[0].Type = "blob" }},
		{"duplicate field", func(s *Schema) {
			s.Kinds[0].Fields = append(s.Kinds[0].Fields, Field{Name: "age", Type: FieldInt})
		}},
		{"dangling reference", func(s *Schema) { s.Kinds[2].Fields[1].Ref = "deans" }},
		{"members not ids", func(s *Schema) { s.Kinds[2].Members = "professor_id" }},
		{"completion not optional", func(s *Schema) { s.Kinds[2].Completion = "course_name" }},
		{"duplicate kind", func(s *Schema) { s.Kinds[1].Name = "students" }},
		{"unknown menu action", func(s *Schema) { s.Menu[0].Action = "delete" }},
		{"unknown menu kind", func(s *Schema) { s.Menu[0].Kind = "deans" }},
		{"unknown expansion", func(s *Schema) { s.Kinds[2].Expansions = []string{"dean"} }},
		{"repeated expansion", func(s *Schema) {
			s.Kinds[2].Fields[1].Expand = "professor"
			s.Kinds[2].Expansions = []string{"professor", "professor"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)
		})
	}
}

func TestKindExpandedOrder(t *testing.T) {
	k := &Kind{
		Name: "reservations", Singular: "reservation", Role: RoleLink,
		Key: "reservation_id", KeyMode: KeySequence,
		Fields: []Field{
			{Name: "reservation_id", Type: FieldInt},
			{Name: "room_number", Type: FieldString, Ref: "rooms", Expand: "room"},
			{Name: "guest_id", Type: FieldInt, Ref: "guests", Expand: "guest"},
			{Name: "note_ids", Type: FieldIDs, Ref: "notes", Expand: "notes"},
		},
	}
	require.NoError(t, k.index())
	names := func() []string {
		var out []string
		for _, f := range k.Expanded() {
			out = append(out, f.Expand)
		}
		return out
	}
	assert.Equal(t, []string{"room", "guest"}, names(), "declaration order by default")

	k.Expansions = []string{"guest", "room"}
	require.NoError(t, k.index())
	assert.Equal(t, []string{"guest", "room"}, names())

	k.Expansions = []string{"guest"}
	assert.Error(t, k.index(), "every expanded reference must be listed")
}

func TestReferenceError(t *testing.T) {
	err := error(&ReferenceError{Kind: "professors", Subject: "Professor ID", Key: int64(99), Reason: ReasonMissing})
	assert.EqualError(t, err, "Professor ID does not exist")
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	err = &ReferenceError{Kind: "courses", Subject: "Course", Key: "X", Reason: ReasonNotFound}
	assert.EqualError(t, err, "Course not found")
}
