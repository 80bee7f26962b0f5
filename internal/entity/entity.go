// Package entity defines the seven record kinds managed by the back-office.
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
)

// ID is a store-assigned identifier. It is kept as text in memory and accepts
// both JSON numbers and JSON strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Same compares identifiers the way the store does: "07" and "7" are the same
// row. Blank identifiers never match.
func (id ID) Same(other ID) bool {
	a := mapper.NormalizeIdentifier(string(id))
	b := mapper.NormalizeIdentifier(string(other))
	return a != nil && a == b
}

// IDFrom renders a scanned identifier value as an ID.
func IDFrom(v any) ID {
	switch n := v.(type) {
	case nil:
		return ""
	case int64:
		return ID(strconv.FormatInt(n, 10))
	case int:
		return ID(strconv.Itoa(n))
	case float64:
		return ID(strconv.FormatFloat(n, 'f', -1, 64))
	case string:
		return ID(strings.TrimSpace(n))
	case []byte:
		return ID(strings.TrimSpace(string(n)))
	default:
		return ID(fmt.Sprint(n))
	}
}

type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleUser  UserRole = "USER"
)

type EmployeeRole string

const (
	EmployeeProfessor  EmployeeRole = "Professor"
	EmployeeSecretaria EmployeeRole = "Secretaria"
	EmployeeDiretoria  EmployeeRole = "Diretoria"
)

// Item is implemented by every entity kind.
type Item interface {
	Key() ID
	DisplayName() string
	Header() []string
	Row() []any
}

type User struct {
	ID       ID       `json:"id"`
	Username string   `json:"username"`
	Password string   `json:"password,omitempty"`
	Role     UserRole `json:"role"`
}

// Public strips the stored password hash.
func (u User) Public() User {
	u.Password = ""
	return u
}

type Student struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	EnrolledAt string `json:"enrolledAt"`
}

type Employee struct {
	ID         ID           `json:"id"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Role       EmployeeRole `json:"role"`
	Department string       `json:"department"`
}

type Course struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
}

// ClassRoom carries StudentIDs derived from the roster join table.
type ClassRoom struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	CourseID   ID     `json:"courseId"`
	StudentIDs []ID   `json:"studentIds"`
}

// HasStudent reports whether the derived roster contains id.
func (c ClassRoom) HasStudent(id ID) bool {
	for _, s := range c.StudentIDs {
		if s.Same(id) {
			return true
		}
	}
	return false
}

type Psychoanalyst struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

type Patient struct {
	ID            ID       `json:"id"`
	Name          string   `json:"name"`
	BirthDate     string   `json:"birthDate,omitempty"`
	FamilyIncome  string   `json:"familyIncome,omitempty"`
	SocialValue   *float64 `json:"socialValue"`
	AnalystID     *ID      `json:"analystId"`
	ClinicalNotes string   `json:"clinicalNotes"`
}

// Unassigned reports a patient awaiting an analyst.
func (p Patient) Unassigned() bool {
	return p.AnalystID == nil || strings.TrimSpace(string(*p.AnalystID)) == ""
}

// Decode converts an entity field map into its typed form.
func Decode[T any](fields map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeAll converts a slice of field maps, stopping at the first failure.
func DecodeAll[T any, F ~map[string]any](rows []F) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := Decode[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
