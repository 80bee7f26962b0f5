package form

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/state"
)

type insertCall struct {
	kind   entity.Kind
	fields mapper.Fields
}

type updateCall struct {
	kind   entity.Kind
	id     string
	fields mapper.Fields
}

type fakeStore struct {
	inserts []insertCall
	updates []updateCall
	rosters map[string][]string
	err     error
}

func (f *fakeStore) Insert(_ context.Context, kind entity.Kind, fields mapper.Fields) (mapper.Fields, error) {
	f.inserts = append(f.inserts, insertCall{kind, fields})
	if f.err != nil {
		return nil, f.err
	}
	out := mapper.Fields{"id": int64(99)}
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, kind entity.Kind, id string, fields mapper.Fields) (mapper.Fields, error) {
	f.updates = append(f.updates, updateCall{kind, id, fields})
	if f.err != nil {
		return nil, f.err
	}
	out := mapper.Fields{"id": id}
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) ReplaceClassRoster(_ context.Context, classID string, ids []string) error {
	if f.err != nil {
		return f.err
	}
	if f.rosters == nil {
		f.rosters = map[string][]string{}
	}
	f.rosters[classID] = ids
	return nil
}

type fakeCache struct {
	snap      *state.Snapshot
	reloads   int
	reloadErr error
}

func (f *fakeCache) Snapshot() *state.Snapshot { return f.snap }

func (f *fakeCache) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

type fakeWriter struct {
	course  string
	patient string
	notes   string
}

func (f *fakeWriter) GenerateCourseDescription(_ context.Context, name string) string {
	f.course = name
	return "A course about " + name
}

func (f *fakeWriter) SummarizePatientCase(_ context.Context, name, notes string) string {
	f.patient, f.notes = name, notes
	return "summary of " + name
}

type fakeHasher struct{}

func (fakeHasher) Hash(pw string) (string, string, error) { return "hashed:" + pw, "fake", nil }

func analyst(id entity.ID) *entity.ID { return &id }

func testSnapshot() *state.Snapshot {
	return &state.Snapshot{
		Users:          []entity.User{{ID: "1", Username: "admin", Role: entity.RoleAdmin}},
		Students:       []entity.Student{{ID: "1", Name: "Ana"}, {ID: "2", Name: "Bruno"}},
		Courses:        []entity.Course{{ID: "3", Name: "Psicanálise"}},
		Classes:        []entity.ClassRoom{{ID: "10", Name: "Turma A", CourseID: "3"}},
		Psychoanalysts: []entity.Psychoanalyst{{ID: "5", Name: "Dra. Reis"}},
		Patients: []entity.Patient{
			{ID: "7", Name: "Davi", ClinicalNotes: "anxiety"},
			{ID: "8", Name: "Eva", AnalystID: analyst("5")},
		},
	}
}

func newTestSubmitter() (*Submitter, *fakeStore, *fakeCache, *fakeWriter) {
	st := &fakeStore{}
	c := &fakeCache{snap: testSnapshot()}
	wr := &fakeWriter{}
	return NewSubmitter(st, c, wr, fakeHasher{}, nil), st, c, wr
}

func TestSaveCreateInsertsAndReloads(t *testing.T) {
	s, st, c, _ := newTestSubmitter()

	out, err := s.Submit(context.Background(), Save{Fields: &StudentFields{Name: "  Carla ", Email: "carla@example.com"}})
	require.NoError(t, err)

	require.Len(t, st.inserts, 1)
	assert.Equal(t, entity.KindStudent, st.inserts[0].kind)
	assert.Equal(t, "Carla", st.inserts[0].fields["name"])
	assert.Equal(t, ModeCreate, out.Mode)
	assert.EqualValues(t, 99, out.Record["id"])
	assert.Equal(t, 1, c.reloads)
	assert.Empty(t, out.Notice)
}

func TestSaveEditUpdates(t *testing.T) {
	s, st, _, _ := newTestSubmitter()

	out, err := s.Submit(context.Background(), Save{ID: "3", Fields: &CourseFields{Name: "Psicanálise II", Duration: "6 months"}})
	require.NoError(t, err)

	require.Len(t, st.updates, 1)
	assert.Equal(t, "3", st.updates[0].id)
	assert.Equal(t, "6 months", st.updates[0].fields["duration"])
	assert.Equal(t, ModeEdit, out.Mode)
	assert.Empty(t, st.inserts)
}

func TestSaveValidation(t *testing.T) {
	tests := []struct {
		name   string
		fields FieldSet
		want   []string
	}{
		{"student requires name and email", &StudentFields{Name: "   "}, []string{"name", "email"}},
		{"student email format", &StudentFields{Name: "Ana", Email: "nope"}, []string{"email"}},
		{"employee role", &EmployeeFields{Name: "Joana", Role: "Janitor"}, []string{"role"}},
		{"class requires course", &ClassFields{Name: "Turma B"}, []string{"courseId"}},
		{"patient birth date", &PatientFields{Name: "Davi", BirthDate: "31/12/2000"}, []string{"birthDate"}},
		{"user role", &UserFields{Username: "x", Password: "p", Role: "root"}, []string{"role"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st, c, _ := newTestSubmitter()
			_, err := s.Submit(context.Background(), Save{Fields: tt.fields})

			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			for _, f := range tt.want {
				assert.Contains(t, ve.Fields, f)
			}
			assert.Empty(t, st.inserts)
			assert.Zero(t, c.reloads)
		})
	}
}

func TestRequiredMessage(t *testing.T) {
	s, _, _, _ := newTestSubmitter()
	_, err := s.Submit(context.Background(), Save{Fields: &CourseFields{}})

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "this field is required", ve.Fields["name"])
}

func TestSaveRejectsUnknownReferences(t *testing.T) {
	s, st, _, _ := newTestSubmitter()

	_, err := s.Submit(context.Background(), Save{Fields: &ClassFields{Name: "Turma B", CourseID: "404"}})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "courseId")

	_, err = s.Submit(context.Background(), Save{Fields: &PatientFields{Name: "Davi", AnalystID: "404"}})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "analystId")
	assert.Empty(t, st.inserts)
}

func TestSavePatientOptionalFields(t *testing.T) {
	s, st, _, _ := newTestSubmitter()
	v := 80.5

	_, err := s.Submit(context.Background(), Save{Fields: &PatientFields{Name: "Davi"}})
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), Save{ID: "7", Fields: &PatientFields{Name: "Davi", SocialValue: &v, AnalystID: "5"}})
	require.NoError(t, err)

	assert.Nil(t, st.inserts[0].fields["socialValue"])
	assert.Equal(t, "", st.inserts[0].fields["analystId"])
	assert.Equal(t, 80.5, st.updates[0].fields["socialValue"])
	assert.Equal(t, "5", st.updates[0].fields["analystId"])
}

func TestSaveUserHashesPassword(t *testing.T) {
	s, st, _, _ := newTestSubmitter()

	out, err := s.Submit(context.Background(), Save{Fields: &UserFields{Username: "maria", Password: "s3cret"}})
	require.NoError(t, err)

	require.Len(t, st.inserts, 1)
	assert.Equal(t, "hashed:s3cret", st.inserts[0].fields["password"])
	assert.Equal(t, "USER", st.inserts[0].fields["role"])
	assert.NotContains(t, out.Record, "password")
}

func TestSaveUserPasswordRules(t *testing.T) {
	s, st, _, _ := newTestSubmitter()

	_, err := s.Submit(context.Background(), Save{Fields: &UserFields{Username: "maria"}})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, requiredText, ve.Fields["password"])

	_, err = s.Submit(context.Background(), Save{ID: "1", Fields: &UserFields{Username: "admin", Role: "admin"}})
	require.NoError(t, err)
	require.Len(t, st.updates, 1)
	assert.NotContains(t, st.updates[0].fields, "password")
	assert.Equal(t, "ADMIN", st.updates[0].fields["role"])
}

func TestSaveStoreFailureIsSyncError(t *testing.T) {
	s, st, c, _ := newTestSubmitter()
	st.err = errors.New("connection reset")

	_, err := s.Submit(context.Background(), Save{Fields: &AnalystFields{Name: "Dr. Lima"}})
	var se *apperr.SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create psychoanalysts", se.Op)
	assert.Zero(t, c.reloads)
}

func TestSaveStoreUnavailablePassesThrough(t *testing.T) {
	s, st, _, _ := newTestSubmitter()
	st.err = apperr.ErrStoreUnavailable

	_, err := s.Submit(context.Background(), Save{Fields: &AnalystFields{Name: "Dr. Lima"}})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestSaveReloadFailureKeepsWrite(t *testing.T) {
	s, st, c, _ := newTestSubmitter()
	c.reloadErr = errors.New("timeout")

	out, err := s.Submit(context.Background(), Save{Fields: &AnalystFields{Name: "Dr. Lima"}})
	require.NoError(t, err)
	assert.Len(t, st.inserts, 1)
	assert.Equal(t, RefreshFailedNotice, out.Notice)
}

func TestManageRoster(t *testing.T) {
	s, st, c, _ := newTestSubmitter()

	_, err := s.Submit(context.Background(), ManageRoster{ClassID: "10", StudentIDs: []string{"1", " 2 ", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, st.rosters["10"])
	assert.Equal(t, 1, c.reloads)

	_, err = s.Submit(context.Background(), ManageRoster{ClassID: "10", StudentIDs: []string{"9"}})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = s.Submit(context.Background(), ManageRoster{ClassID: "11"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLinkPatient(t *testing.T) {
	s, st, c, _ := newTestSubmitter()

	_, err := s.Submit(context.Background(), LinkPatient{AnalystID: "5", PatientID: "7"})
	require.NoError(t, err)
	require.Len(t, st.updates, 1)
	assert.Equal(t, updateCall{entity.KindPatient, "7", mapper.Fields{"analystId": "5"}}, st.updates[0])
	assert.Equal(t, 1, c.reloads)
}

func TestLinkPatientRejections(t *testing.T) {
	s, st, _, _ := newTestSubmitter()

	_, err := s.Submit(context.Background(), LinkPatient{AnalystID: "5", PatientID: "8"})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "patientId")

	_, err = s.Submit(context.Background(), LinkPatient{AnalystID: "6", PatientID: "7"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Submit(context.Background(), LinkPatient{AnalystID: "5"})
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, st.updates)
}

func TestGenerateDescriptionDoesNotPersist(t *testing.T) {
	s, st, c, wr := newTestSubmitter()

	out, err := s.Submit(context.Background(), GenerateDescription{CourseName: " Psicanálise "})
	require.NoError(t, err)
	assert.Equal(t, "A course about Psicanálise", out.Text)
	assert.Equal(t, "Psicanálise", wr.course)
	assert.Empty(t, st.inserts)
	assert.Zero(t, c.reloads)

	_, err = s.Submit(context.Background(), GenerateDescription{})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "courseName")
}

func TestSummarizeCase(t *testing.T) {
	s, _, _, wr := newTestSubmitter()

	out, err := s.Submit(context.Background(), SummarizeCase{PatientID: "7"})
	require.NoError(t, err)
	assert.Equal(t, "summary of Davi", out.Text)
	assert.Equal(t, "anxiety", wr.notes)

	_, err = s.Submit(context.Background(), SummarizeCase{PatientID: "404"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSaveWithoutFields(t *testing.T) {
	s, _, _, _ := newTestSubmitter()
	_, err := s.Submit(context.Background(), Save{})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
}
