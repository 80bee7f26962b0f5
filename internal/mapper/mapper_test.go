package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"numeric string", "42", int64(42)},
		{"padded numeric string", "  42 ", int64(42)},
		{"hyphenated", "abc-1", "abc-1"},
		{"negative keeps text", "-5", "-5"},
		{"uuid", "8c4a1e7e-8d1f-4d3b-9a59-1b2f0f3f6e11", "8c4a1e7e-8d1f-4d3b-9a59-1b2f0f3f6e11"},
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"nil", nil, nil},
		{"decimal", "1.5", 1.5},
		{"natural key", "TURMA_A", "TURMA_A"},
		{"infinity stays text", "Infinity", "Infinity"},
		{"int", 7, int64(7)},
		{"integral float", float64(9), int64(9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIdentifier(tt.in))
		})
	}
}

func TestToPersisted(t *testing.T) {
	in := Fields{
		"id":            int64(3),
		"name":          "Ana",
		"birthDate":     "",
		"analystId":     "12",
		"socialValue":   "80.5",
		"clinicalNotes": "  ",
		"patientIds":    []string{"1"},
		"nickname":      "ana",
	}
	got := ToPersisted(in)

	assert.Equal(t, Record{
		"id":             int64(3),
		"name":           "Ana",
		"birth_date":     nil,
		"analyst_id":     int64(12),
		"social_value":   80.5,
		"clinical_notes": nil,
		"nickname":       "ana",
	}, got)
}

func TestToPersistedDropsRoster(t *testing.T) {
	got := ToPersisted(Fields{"name": "C1", "courseId": "abc-9", "studentIds": []string{"1", "2"}})
	assert.Equal(t, Record{"name": "C1", "course_id": "abc-9"}, got)
}

func TestToPersistedKeepsUnparseableMoney(t *testing.T) {
	got := ToPersisted(Fields{"socialValue": "R$ 10"})
	assert.Equal(t, "R$ 10", got["social_value"])
}

func TestFromPersistedPassesUnknownColumns(t *testing.T) {
	got := FromPersisted(Record{"enrolled_at": "2024-02-01", "created_at": "2024-01-01"})
	assert.Equal(t, Fields{"enrolledAt": "2024-02-01", "created_at": "2024-01-01"}, got)
	assert.Nil(t, FromPersisted(nil))
	assert.Nil(t, ToPersisted(nil))
}

func TestRoundTripRestoresKnownFields(t *testing.T) {
	entities := []Fields{
		{"id": int64(1), "username": "admin", "password": "$2a$10$x", "role": "ADMIN"},
		{"id": int64(2), "name": "Bia", "email": "bia@example.com", "phone": "(11) 9999", "enrolledAt": "2024-03-01"},
		{"id": int64(3), "name": "Caio", "email": "caio@example.com", "role": "Professor", "department": "Math"},
		{"id": int64(4), "name": "Intro", "description": "Basics", "duration": "12 months"},
		{"id": int64(5), "name": "C1", "courseId": int64(4)},
		{"id": int64(6), "name": "Dra. Reis", "specialty": "Lacanian"},
		{"id": int64(7), "name": "Davi", "birthDate": "1990-05-02", "familyIncome": "R$ 3.000,00",
			"socialValue": 50.0, "analystId": int64(6), "clinicalNotes": "first session"},
	}
	for _, e := range entities {
		assert.Equal(t, e, FromPersisted(ToPersisted(e)))
	}

	withRoster := Fields{"id": int64(5), "name": "C1", "courseId": int64(4), "studentIds": []string{"2"}}
	back := FromPersisted(ToPersisted(withRoster))
	assert.NotContains(t, back, "studentIds")
	assert.Equal(t, "C1", back["name"])
}
