package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recordkeeper/internal/jsonfile"
	"github.com/mesh-intelligence/recordkeeper/internal/schema"
	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

func TestOpenInitializesEmptyDocument(t *testing.T) {
	_, p := openSystem(t, "college")

	assert.Equal(t, 1, p.saves)
	require.Len(t, p.doc, 3)
	for _, b := range p.doc {
		assert.JSONEq(t, `[]`, string(b.Payload), b.Name)
	}
}

func TestCollegeScenario(t *testing.T) {
	ctx := context.Background()
	s, p := openSystem(t, "college")

	alice, err := s.Add(ctx, "students", map[string]any{"name": "Alice", "age": 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.Key())
	assert.Equal(t, map[string]any{"name": "Alice", "age": int64(20), "student_id": int64(1)}, alice.Map())
	assert.Equal(t, `{"name":"Alice","age":20,"student_id":1}`, alice.String())

	smith, err := s.Add(ctx, "professors", map[string]any{"name": "Dr. Smith", "department": "CS"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), smith.Key())

	course, err := s.CreateLink(ctx, "courses", map[string]any{"course_name": "Algorithms", "professor_id": 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{}, course.IDs("students"))

	_, err = s.CreateLink(ctx, "courses", map[string]any{"course_name": "X", "professor_id": 99})
	require.ErrorIs(t, err, types.ErrReferenceNotFound)
	assert.EqualError(t, err, "Professor ID does not exist")

	require.NoError(t, s.AttachMember(ctx, "courses", "Algorithms", 1))

	info, err := s.Info("courses", "Algorithms")
	require.NoError(t, err)
	m := info.Map()
	assert.Equal(t, "Algorithms", m["course_name"])
	assert.Equal(t, int64(1), m["professor_id"])
	assert.Equal(t, []map[string]any{{"name": "Alice", "age": int64(20), "student_id": int64(1)}}, m["students"])
	assert.Equal(t, map[string]any{"name": "Dr. Smith", "department": "CS", "professor_id": int64(1)}, m["professor"])

	stored := p.payload(t, "courses")
	require.Len(t, stored, 1)
	assert.Equal(t, []any{float64(1)}, stored[0]["students"])
}

func TestSequenceIdentifiersAreOneToN(t *testing.T) {
	ctx := context.Background()
	s, _ := openSystem(t, "library")

	for i := 1; i <= 25; i++ {
		rec, err := s.Add(ctx, "books", map[string]any{"title": "T", "author": "A", "isbn": "I"})
		require.NoError(t, err)
		assert.Equal(t, int64(i), rec.Key())
	}
	member, err := s.Add(ctx, "members", map[string]any{"name": "M"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), member.Key(), "sequences are independent per kind")
}

func TestReopenContinuesSequence(t *testing.T) {
	ctx := context.Background()
	sch, err := schema.Load("school")
	require.NoError(t, err)
	p := &memPersister{}

	s, err := Open(ctx, sch, p)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Add(ctx, "teachers", map[string]any{"name": "T", "subject": "Math"})
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = Open(ctx, sch, p)
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.Add(ctx, "teachers", map[string]any{"name": "U", "subject": "Art"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Key())
}

func TestRoundTripThroughJSONFile(t *testing.T) {
	ctx := context.Background()
	sch, err := schema.Load("college")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), sch.Document)

	s, err := Open(ctx, sch, jsonfile.New(path))
	require.NoError(t, err)
	_, err = s.Add(ctx, "students", map[string]any{"name": "Alice", "age": 20})
	require.NoError(t, err)
	_, err = s.Add(ctx, "students", map[string]any{"name": "Bob", "age": "21"})
	require.NoError(t, err)
	_, err = s.Add(ctx, "professors", map[string]any{"name": "Dr. Smith", "department": "CS"})
	require.NoError(t, err)
	_, err = s.CreateLink(ctx, "courses", map[string]any{"course_name": "Algorithms", "professor_id": 1})
	require.NoError(t, err)
	require.NoError(t, s.AttachMember(ctx, "courses", "Algorithms", 2))
	require.NoError(t, s.AttachMember(ctx, "courses", "Algorithms", 1))
	require.NoError(t, s.AttachMember(ctx, "courses", "Algorithms", 2))

	before := dump(t, s)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, sch, jsonfile.New(path))
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, before, dump(t, reopened))

	courses, err := reopened.List("courses")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 2}, courses[0].IDs("students"), "member order and duplicates survive")
}

func TestRoomNumbersAreText(t *testing.T) {
	ctx := context.Background()
	sch := mustLoad(t, "hotel")
	path := filepath.Join(t.TempDir(), sch.Document)

	s, err := Open(ctx, sch, jsonfile.New(path))
	require.NoError(t, err)
	room, err := s.Add(ctx, "rooms", map[string]any{"room_number": "12B", "room_type": "suite", "price_per_night": "310"})
	require.NoError(t, err)
	assert.Equal(t, "12B", room.Key())
	_, err = s.Add(ctx, "guests", map[string]any{"name": "Gail", "age": "33"})
	require.NoError(t, err)
	_, err = s.CreateLink(ctx, "reservations", map[string]any{
		"room_number": "12B", "guest_id": "1", "check_in_date": "2024-06-01", "check_out_date": "2024-06-04",
	})
	require.NoError(t, err)
	_, err = s.Add(ctx, "rooms", map[string]any{"room_number": "12B", "room_type": "single", "price_per_night": 90})
	assert.ErrorIs(t, err, types.ErrDuplicateKey)
	before := dump(t, s)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, sch, jsonfile.New(path))
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, before, dump(t, reopened))

	info, err := reopened.Info("rooms", "12B")
	require.NoError(t, err)
	assert.Equal(t, "suite", info.Map()["room_type"])
	res, err := reopened.Info("reservations", 1)
	require.NoError(t, err)
	assert.Equal(t, "12B", res.Map()["room"].(map[string]any)["room_number"])
}

func TestOpenAcceptsNumericRoomNumbers(t *testing.T) {
	sch := mustLoad(t, "hotel")
	p := &memPersister{doc: types.Snapshot{
		{Name: "rooms", Payload: []byte(`[{"room_number":"12B","room_type":"suite","price_per_night":310},{"room_number":101,"room_type":"single","price_per_night":80}]`)},
		{Name: "guests", Payload: []byte(`[{"name":"Gail","age":33,"guest_id":1}]`)},
		{Name: "reservations", Payload: []byte(`[{"reservation_id":1,"room_number":101,"guest_id":1,"check_in_date":"2024-06-01","check_out_date":"2024-06-04"}]`)},
	}}
	s, err := Open(context.Background(), sch, p)
	require.NoError(t, err)
	defer s.Close()

	rooms, err := s.List("rooms")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "12B", rooms[0].Key())
	assert.Equal(t, "101", rooms[1].Key())

	res, err := s.Info("reservations", 1)
	require.NoError(t, err)
	assert.Equal(t, "single", res.Map()["room"].(map[string]any)["room_type"])
}

func TestReadOnlyStore(t *testing.T) {
	ctx := context.Background()
	sch := mustLoad(t, "hotel")
	p := &memPersister{}

	s, err := Open(ctx, sch, p, ReadOnly())
	require.NoError(t, err)
	defer s.Close()
	assert.Zero(t, p.saves, "a missing document is not created")
	assert.Nil(t, p.doc)

	rooms, err := s.List("rooms")
	require.NoError(t, err)
	assert.Empty(t, rooms)

	_, err = s.Add(ctx, "rooms", map[string]any{"room_number": "1", "room_type": "single", "price_per_night": 80})
	assert.ErrorIs(t, err, types.ErrReadOnly)
	assert.Zero(t, p.saves)
}

func TestRoundTripLinkWithCompletion(t *testing.T) {
	ctx := context.Background()
	sch, err := schema.Load("library")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), sch.Document)

	s, err := Open(ctx, sch, jsonfile.New(path))
	require.NoError(t, err)
	_, err = s.Add(ctx, "books", map[string]any{"title": "Dune", "author": "Herbert", "isbn": "978-0441013593"})
	require.NoError(t, err)
	_, err = s.Add(ctx, "members", map[string]any{"name": "Ann"})
	require.NoError(t, err)
	_, err = s.CreateLink(ctx, "transactions", map[string]any{"book_id": 1, "member_id": 1, "borrow_date": "2024-01-05"})
	require.NoError(t, err)
	_, err = s.CreateLink(ctx, "transactions", map[string]any{"book_id": 1, "member_id": 1, "borrow_date": "2024-02-01"})
	require.NoError(t, err)
	_, err = s.Complete(ctx, "transactions", 1, "2024-01-20")
	require.NoError(t, err)

	before := dump(t, s)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, sch, jsonfile.New(path))
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, before, dump(t, reopened))

	txns, err := reopened.List("transactions")
	require.NoError(t, err)
	ret, _ := txns[1].Get("return_date")
	assert.Nil(t, ret)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s, p := openSystem(t, "hotel")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, p.closed)

	_, err := s.Add(context.Background(), "guests", map[string]any{"name": "G", "age": 30})
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = s.Info("guests", 1)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = s.List("guests")
	assert.ErrorIs(t, err, types.ErrStoreClosed)
}

func TestOpenRejectsCorruptDocument(t *testing.T) {
	sch, err := schema.Load("college")
	require.NoError(t, err)
	p := &memPersister{doc: types.Snapshot{{Name: "students", Payload: []byte(`[{"name":"A","age":"old","student_id":1}]`)}}}

	_, err = Open(context.Background(), sch, p)
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestObserverSeesOperations(t *testing.T) {
	ctx := context.Background()
	obs := newRecordingObserver()
	s, _ := openSystem(t, "hotel", WithObserver(obs))

	_, err := s.Add(ctx, "rooms", map[string]any{"room_number": "101", "room_type": "double", "price_per_night": 120.5})
	require.NoError(t, err)
	_, err = s.CreateLink(ctx, "reservations", map[string]any{
		"room_number": "102", "guest_id": 1, "check_in_date": "2024-05-01", "check_out_date": "2024-05-03",
	})
	require.Error(t, err)

	assert.Equal(t, 1, obs.ops["rooms/add"])
	assert.Equal(t, 1, obs.ops["reservations/create"])
	assert.Equal(t, 1, obs.failures)
	assert.Equal(t, 2, obs.persists, "initial document plus one successful add")
}

// dump returns the dictionary form of every collection.
func dump(t *testing.T, s *Store) map[string][]map[string]any {
	t.Helper()
	out := map[string][]map[string]any{}
	for _, name := range s.Schema().KindNames() {
		records, err := s.List(name)
		require.NoError(t, err)
		maps := make([]map[string]any, len(records))
		for i, r := range records {
			maps[i] = r.Map()
		}
		out[name] = maps
	}
	return out
}
