package state

import (
	"strings"
	"time"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
)

// Snapshot is a complete copy of every collection. Published snapshots are never
// mutated; changes produce a new Snapshot.
type Snapshot struct {
	Users          []entity.User          `json:"users"`
	Students       []entity.Student       `json:"students"`
	Employees      []entity.Employee      `json:"employees"`
	Courses        []entity.Course        `json:"courses"`
	Classes        []entity.ClassRoom     `json:"classes"`
	Psychoanalysts []entity.Psychoanalyst `json:"psychoanalysts"`
	Patients       []entity.Patient       `json:"patients"`
	LoadedAt       time.Time              `json:"loadedAt"`
}

// Counts feeds the dashboard.
type Counts struct {
	Students           int `json:"students"`
	Employees          int `json:"employees"`
	Courses            int `json:"courses"`
	Classes            int `json:"classes"`
	Psychoanalysts     int `json:"psychoanalysts"`
	Patients           int `json:"patients"`
	UnassignedPatients int `json:"unassignedPatients"`
	Users              int `json:"users"`
}

func emptySnapshot(users []entity.User) *Snapshot {
	return &Snapshot{
		Users:          append([]entity.User{}, users...),
		Students:       []entity.Student{},
		Employees:      []entity.Employee{},
		Courses:        []entity.Course{},
		Classes:        []entity.ClassRoom{},
		Psychoanalysts: []entity.Psychoanalyst{},
		Patients:       []entity.Patient{},
	}
}

// Items returns the collection of kind as generic items.
func (s *Snapshot) Items(kind entity.Kind) []entity.Item {
	switch kind {
	case entity.KindUser:
		return items(s.Users)
	case entity.KindStudent:
		return items(s.Students)
	case entity.KindEmployee:
		return items(s.Employees)
	case entity.KindCourse:
		return items(s.Courses)
	case entity.KindClass:
		return items(s.Classes)
	case entity.KindPsychoanalyst:
		return items(s.Psychoanalysts)
	case entity.KindPatient:
		return items(s.Patients)
	}
	return nil
}

func items[T entity.Item](in []T) []entity.Item {
	out := make([]entity.Item, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// Find looks an item up by id in the collection of kind.
func (s *Snapshot) Find(kind entity.Kind, id string) (entity.Item, bool) {
	for _, it := range s.Items(kind) {
		if it.Key().Same(entity.ID(id)) {
			return it, true
		}
	}
	return nil, false
}

// Patient returns the cached patient with id.
func (s *Snapshot) Patient(id string) (entity.Patient, bool) {
	for _, p := range s.Patients {
		if p.ID.Same(entity.ID(id)) {
			return p, true
		}
	}
	return entity.Patient{}, false
}

// Class returns the cached class with id.
func (s *Snapshot) Class(id string) (entity.ClassRoom, bool) {
	for _, c := range s.Classes {
		if c.ID.Same(entity.ID(id)) {
			return c, true
		}
	}
	return entity.ClassRoom{}, false
}

// ClassStudents resolves the derived roster of a class to students.
func (s *Snapshot) ClassStudents(classID string) []entity.Student {
	out := []entity.Student{}
	c, ok := s.Class(classID)
	if !ok {
		return out
	}
	for _, st := range s.Students {
		if c.HasStudent(st.ID) {
			out = append(out, st)
		}
	}
	return out
}

// AnalystPatients lists the patients assigned to an analyst.
func (s *Snapshot) AnalystPatients(analystID string) []entity.Patient {
	out := []entity.Patient{}
	for _, p := range s.Patients {
		if !p.Unassigned() && p.AnalystID.Same(entity.ID(analystID)) {
			out = append(out, p)
		}
	}
	return out
}

// UnassignedPatients lists the patients awaiting an analyst.
func (s *Snapshot) UnassignedPatients() []entity.Patient {
	out := []entity.Patient{}
	for _, p := range s.Patients {
		if p.Unassigned() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Snapshot) Counts() Counts {
	return Counts{
		Students:           len(s.Students),
		Employees:          len(s.Employees),
		Courses:            len(s.Courses),
		Classes:            len(s.Classes),
		Psychoanalysts:     len(s.Psychoanalysts),
		Patients:           len(s.Patients),
		UnassignedPatients: len(s.UnassignedPatients()),
		Users:              len(s.Users),
	}
}

// FindUser matches username case-insensitively after trimming.
func (s *Snapshot) FindUser(username string) (entity.User, bool) {
	want := strings.ToLower(strings.TrimSpace(username))
	if want == "" {
		return entity.User{}, false
	}
	for _, u := range s.Users {
		if strings.ToLower(strings.TrimSpace(u.Username)) == want {
			return u, true
		}
	}
	return entity.User{}, false
}

// Public returns a copy safe to hand to clients: user passwords are removed.
func (s *Snapshot) Public() *Snapshot {
	cp := *s
	cp.Users = make([]entity.User, len(s.Users))
	for i, u := range s.Users {
		cp.Users[i] = u.Public()
	}
	return &cp
}

// without returns a copy of s lacking the item kind/id. Removing a student also
// drops it from every class roster.
func (s *Snapshot) without(kind entity.Kind, id string) *Snapshot {
	cp := *s
	key := entity.ID(id)
	switch kind {
	case entity.KindUser:
		cp.Users = filter(s.Users, key)
	case entity.KindStudent:
		cp.Students = filter(s.Students, key)
		cp.Classes = make([]entity.ClassRoom, len(s.Classes))
		for i, c := range s.Classes {
			ids := make([]entity.ID, 0, len(c.StudentIDs))
			for _, sid := range c.StudentIDs {
				if !sid.Same(key) {
					ids = append(ids, sid)
				}
			}
			c.StudentIDs = ids
			cp.Classes[i] = c
		}
	case entity.KindEmployee:
		cp.Employees = filter(s.Employees, key)
	case entity.KindCourse:
		cp.Courses = filter(s.Courses, key)
	case entity.KindClass:
		cp.Classes = filter(s.Classes, key)
	case entity.KindPsychoanalyst:
		cp.Psychoanalysts = filter(s.Psychoanalysts, key)
	case entity.KindPatient:
		cp.Patients = filter(s.Patients, key)
	}
	return &cp
}

func filter[T entity.Item](in []T, id entity.ID) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !v.Key().Same(id) {
			out = append(out, v)
		}
	}
	return out
}
