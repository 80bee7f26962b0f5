package form

import (
	"fmt"
	"strings"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
)

// FieldSet is the typed field set of one entity kind.
type FieldSet interface {
	Kind() entity.Kind
	normalize()
	fields() mapper.Fields
}

// NewFieldSet returns an empty field set for kind, ready to be decoded into.
func NewFieldSet(kind entity.Kind) (FieldSet, error) {
	switch kind {
	case entity.KindStudent:
		return &StudentFields{}, nil
	case entity.KindEmployee:
		return &EmployeeFields{}, nil
	case entity.KindCourse:
		return &CourseFields{}, nil
	case entity.KindClass:
		return &ClassFields{}, nil
	case entity.KindPsychoanalyst:
		return &AnalystFields{}, nil
	case entity.KindPatient:
		return &PatientFields{}, nil
	case entity.KindUser:
		return &UserFields{}, nil
	}
	return nil, fmt.Errorf("no form for kind %q", kind)
}

type StudentFields struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone"`
	EnrolledAt string `json:"enrolledAt" validate:"omitempty,datetime=2006-01-02"`
}

func (f *StudentFields) Kind() entity.Kind { return entity.KindStudent }

func (f *StudentFields) normalize() {
	trim(&f.Name, &f.Email, &f.Phone, &f.EnrolledAt)
}

func (f *StudentFields) fields() mapper.Fields {
	return mapper.Fields{"name": f.Name, "email": f.Email, "phone": f.Phone, "enrolledAt": f.EnrolledAt}
}

type EmployeeFields struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Role       string `json:"role" validate:"required,oneof=Professor Secretaria Diretoria"`
	Department string `json:"department"`
}

func (f *EmployeeFields) Kind() entity.Kind { return entity.KindEmployee }

func (f *EmployeeFields) normalize() {
	trim(&f.Name, &f.Email, &f.Role, &f.Department)
}

func (f *EmployeeFields) fields() mapper.Fields {
	return mapper.Fields{"name": f.Name, "email": f.Email, "role": f.Role, "department": f.Department}
}

type CourseFields struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
}

func (f *CourseFields) Kind() entity.Kind { return entity.KindCourse }

func (f *CourseFields) normalize() {
	trim(&f.Name, &f.Description, &f.Duration)
}

func (f *CourseFields) fields() mapper.Fields {
	return mapper.Fields{"name": f.Name, "description": f.Description, "duration": f.Duration}
}

// ClassFields never carries the roster; that is managed through ManageRoster.
type ClassFields struct {
	Name     string    `json:"name" validate:"required"`
	CourseID entity.ID `json:"courseId" validate:"required"`
}

func (f *ClassFields) Kind() entity.Kind { return entity.KindClass }

func (f *ClassFields) normalize() {
	trim(&f.Name)
	f.CourseID = entity.ID(strings.TrimSpace(string(f.CourseID)))
}

func (f *ClassFields) fields() mapper.Fields {
	return mapper.Fields{"name": f.Name, "courseId": string(f.CourseID)}
}

type AnalystFields struct {
	Name      string `json:"name" validate:"required"`
	Specialty string `json:"specialty"`
}

func (f *AnalystFields) Kind() entity.Kind { return entity.KindPsychoanalyst }

func (f *AnalystFields) normalize() {
	trim(&f.Name, &f.Specialty)
}

func (f *AnalystFields) fields() mapper.Fields {
	return mapper.Fields{"name": f.Name, "specialty": f.Specialty}
}

type PatientFields struct {
	Name          string    `json:"name" validate:"required"`
	BirthDate     string    `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	FamilyIncome  string    `json:"familyIncome"`
	SocialValue   *float64  `json:"socialValue" validate:"omitempty,gte=0"`
	AnalystID     entity.ID `json:"analystId"`
	ClinicalNotes string    `json:"clinicalNotes"`
}

func (f *PatientFields) Kind() entity.Kind { return entity.KindPatient }

func (f *PatientFields) normalize() {
	trim(&f.Name, &f.BirthDate, &f.FamilyIncome)
	f.AnalystID = entity.ID(strings.TrimSpace(string(f.AnalystID)))
}

func (f *PatientFields) fields() mapper.Fields {
	out := mapper.Fields{
		"name":          f.Name,
		"birthDate":     f.BirthDate,
		"familyIncome":  f.FamilyIncome,
		"analystId":     string(f.AnalystID),
		"clinicalNotes": f.ClinicalNotes,
		"socialValue":   nil,
	}
	if f.SocialValue != nil {
		out["socialValue"] = *f.SocialValue
	}
	return out
}

// UserFields holds the cleartext password only until it is hashed on submit.
type UserFields struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"required,oneof=ADMIN USER"`
}

func (f *UserFields) Kind() entity.Kind { return entity.KindUser }

func (f *UserFields) normalize() {
	trim(&f.Username, &f.Role)
	f.Role = strings.ToUpper(f.Role)
	if f.Role == "" {
		f.Role = string(entity.RoleUser)
	}
}

// fields omits the password; the submitter adds the hash when one is set.
func (f *UserFields) fields() mapper.Fields {
	return mapper.Fields{"username": f.Username, "role": f.Role}
}

func trim(ptrs ...*string) {
	for _, p := range ptrs {
		*p = strings.TrimSpace(*p)
	}
}
