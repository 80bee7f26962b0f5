package entity

import (
	"fmt"
	"strings"
)

// Kind is the type tag of an entity; its value is the table name.
type Kind string

const (
	KindUser          Kind = "users"
	KindStudent       Kind = "students"
	KindEmployee      Kind = "employees"
	KindCourse        Kind = "courses"
	KindClass         Kind = "classes"
	KindPsychoanalyst Kind = "psychoanalysts"
	KindPatient       Kind = "patients"
)

// RosterTable is the join table between classes and students.
const RosterTable = "class_students"

var kinds = []Kind{KindUser, KindStudent, KindEmployee, KindCourse, KindClass, KindPsychoanalyst, KindPatient}

var labels = map[Kind]string{
	KindUser:          "user",
	KindStudent:       "student",
	KindEmployee:      "employee",
	KindCourse:        "course",
	KindClass:         "class",
	KindPsychoanalyst: "psychoanalyst",
	KindPatient:       "patient",
}

// Kinds returns every entity kind.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind accepts a table name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := labels[k]; !ok {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// Table returns the store table backing the kind.
func (k Kind) Table() string { return string(k) }

// Label is the human-readable singular name of the kind.
func (k Kind) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return "item"
}

func (k Kind) String() string { return string(k) }
