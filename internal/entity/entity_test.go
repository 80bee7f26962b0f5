package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Patients ")
	require.NoError(t, err)
	assert.Equal(t, KindPatient, k)
	assert.Equal(t, "patient", k.Label())

	_, err = ParseKind("class_students")
	assert.Error(t, err)
	assert.Len(t, Kinds(), 7)
}

func TestDecodeAcceptsNumericIDs(t *testing.T) {
	p, err := Decode[Patient](map[string]any{
		"id":          int64(10),
		"name":        "Davi",
		"analystId":   int64(4),
		"socialValue": 50.5,
		"birthDate":   nil,
	})
	require.NoError(t, err)
	assert.Equal(t, ID("10"), p.ID)
	require.NotNil(t, p.AnalystID)
	assert.Equal(t, ID("4"), *p.AnalystID)
	assert.False(t, p.Unassigned())
	assert.InDelta(t, 50.5, *p.SocialValue, 0.0001)
}

func TestDecodeNullAnalystIsUnassigned(t *testing.T) {
	p, err := Decode[Patient](map[string]any{"id": "abc-1", "name": "Eva", "analystId": nil})
	require.NoError(t, err)
	assert.Equal(t, ID("abc-1"), p.ID)
	assert.True(t, p.Unassigned())
}

func TestDecodeAll(t *testing.T) {
	rows := []map[string]any{
		{"id": int64(2), "name": "C1", "courseId": int64(1), "studentIds": []ID{"5", "6"}},
		{"id": int64(1), "name": "C0", "courseId": int64(1)},
	}
	classes, err := DecodeAll[ClassRoom](rows)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.True(t, classes[0].HasStudent("6"))
	assert.False(t, classes[1].HasStudent("6"))
}

func TestUserPublicHidesPassword(t *testing.T) {
	u := User{ID: "1", Username: "admin", Password: "$2a$10$hash", Role: RoleAdmin}
	assert.Empty(t, u.Public().Password)
	assert.Equal(t, "admin", u.DisplayName())
	assert.Equal(t, []any{"1", "admin", "ADMIN"}, u.Row())
}

func TestIDFrom(t *testing.T) {
	assert.Equal(t, ID("42"), IDFrom(int64(42)))
	assert.Equal(t, ID("x-1"), IDFrom([]byte(" x-1 ")))
	assert.Equal(t, ID(""), IDFrom(nil))
	assert.True(t, ID(" 7").Same("7"))
	assert.True(t, ID("07").Same("7"))
	assert.True(t, ID("abc-1").Same(" abc-1"))
	assert.False(t, ID("7").Same("8"))
	assert.False(t, ID("").Same(""))
}
