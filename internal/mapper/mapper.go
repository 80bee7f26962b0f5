// Package mapper translates entity field names to store column names and back.
package mapper

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fields is an entity keyed by its in-memory (camelCase) field names.
type Fields map[string]any

// Record is a row keyed by its store (snake_case) column names.
type Record map[string]any

var columnByField = map[string]string{
	"id":            "id",
	"name":          "name",
	"email":         "email",
	"role":          "role",
	"phone":         "phone",
	"enrolledAt":    "enrolled_at",
	"courseId":      "course_id",
	"specialty":     "specialty",
	"birthDate":     "birth_date",
	"familyIncome":  "family_income",
	"socialValue":   "social_value",
	"analystId":     "analyst_id",
	"clinicalNotes": "clinical_notes",
	"username":      "username",
	"password":      "password",
	"department":    "department",
	"description":   "description",
	"duration":      "duration",
}

var fieldByColumn = func() map[string]string {
	m := make(map[string]string, len(columnByField))
	for f, c := range columnByField {
		m[c] = f
	}
	return m
}()

// derived relationships live in the join table or are computed from other rows.
var derived = map[string]struct{}{
	"studentIds": {},
	"patientIds": {},
	"patientId":  {},
}

// Column returns the column name for an in-memory field; unknown names pass through.
func Column(field string) string {
	if c, ok := columnByField[field]; ok {
		return c
	}
	return field
}

// Field returns the in-memory field name for a column; unknown names pass through.
func Field(column string) string {
	if f, ok := fieldByColumn[column]; ok {
		return f
	}
	return column
}

// IsDerived reports whether a field is a derived relationship that is never stored.
func IsDerived(field string) bool {
	_, ok := derived[field]
	return ok
}

// NormalizeIdentifier trims raw and returns nil for blank input, a number when the
// text is a finite number without a hyphen, or the trimmed text otherwise.
// Integral numbers come back as int64, other numbers as float64.
func NormalizeIdentifier(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint32:
		return int64(v)
	case float32:
		return normalizeFloat(float64(v))
	case float64:
		return normalizeFloat(v)
	case string:
		return normalizeText(v)
	case fmt.Stringer:
		return normalizeText(v.String())
	default:
		return normalizeText(fmt.Sprint(v))
	}
}

func normalizeText(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.Contains(s, "-") {
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	return normalizeFloat(f)
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// toNumber coerces a monetary value; text that is not a number passes through.
func toNumber(v any) any {
	switch n := v.(type) {
	case string:
		s := strings.TrimSpace(n)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		return f
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// ToPersisted renames fields to columns, drops derived relationship fields, turns
// blank strings into nil and coerces reference and monetary fields.
func ToPersisted(f Fields) Record {
	if f == nil {
		return nil
	}
	out := make(Record, len(f))
	for k, v := range f {
		if IsDerived(k) {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			v = nil
		}
		if v != nil {
			switch k {
			case "analystId", "courseId":
				v = NormalizeIdentifier(v)
			case "socialValue":
				v = toNumber(v)
			}
		}
		out[Column(k)] = v
	}
	return out
}

// FromPersisted renames columns back to in-memory field names.
func FromPersisted(r Record) Fields {
	if r == nil {
		return nil
	}
	out := make(Fields, len(r))
	for k, v := range r {
		out[Field(k)] = v
	}
	return out
}
