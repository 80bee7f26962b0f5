package entity

func (u User) Key() ID { return u.ID }
func (u User) DisplayName() string { return firstNonEmpty(u.Username, string(u.ID)) }
func (u User) Header() []string { return []string{"ID", "Username", "Role"} }
func (u User) Row() []any { return []any{string(u.ID), u.Username, string(u.Role)} }

func (s Student) Key() ID { return s.ID }
func (s Student) DisplayName() string { return firstNonEmpty(s.Name, string(s.ID)) }

func (s Student) Header() []string {
	return []string{"ID", "Name", "Email", "Phone", "Enrolled At"}
}

func (s Student) Row() []any {
	return []any{string(s.ID), s.Name, s.Email, s.Phone, s.EnrolledAt}
}

func (e Employee) Key() ID { return e.ID }
func (e Employee) DisplayName() string { return firstNonEmpty(e.Name, string(e.ID)) }

func (e Employee) Header() []string {
	return []string{"ID", "Name", "Email", "Role", "Department"}
}

func (e Employee) Row() []any {
	return []any{string(e.ID), e.Name, e.Email, string(e.Role), e.Department}
}

func (c Course) Key() ID { return c.ID }
func (c Course) DisplayName() string { return firstNonEmpty(c.Name, string(c.ID)) }
func (c Course) Header() []string { return []string{"ID", "Name", "Description", "Duration"} }
func (c Course) Row() []any { return []any{string(c.ID), c.Name, c.Description, c.Duration} }

func (c ClassRoom) Key() ID { return c.ID }
func (c ClassRoom) DisplayName() string { return firstNonEmpty(c.Name, string(c.ID)) }
func (c ClassRoom) Header() []string { return []string{"ID", "Name", "Course ID", "Students"} }

func (c ClassRoom) Row() []any {
	return []any{string(c.ID), c.Name, string(c.CourseID), len(c.StudentIDs)}
}

func (p Psychoanalyst) Key() ID { return p.ID }
func (p Psychoanalyst) DisplayName() string { return firstNonEmpty(p.Name, string(p.ID)) }
func (p Psychoanalyst) Header() []string { return []string{"ID", "Name", "Specialty"} }
func (p Psychoanalyst) Row() []any { return []any{string(p.ID), p.Name, p.Specialty} }

func (p Patient) Key() ID { return p.ID }
func (p Patient) DisplayName() string { return firstNonEmpty(p.Name, string(p.ID)) }

func (p Patient) Header() []string {
	return []string{"ID", "Name", "Birth Date", "Family Income", "Social Value", "Analyst ID", "Clinical Notes"}
}

func (p Patient) Row() []any {
	var social any
	if p.SocialValue != nil {
		social = *p.SocialValue
	}
	analyst := ""
	if p.AnalystID != nil {
		analyst = string(*p.AnalystID)
	}
	return []any{string(p.ID), p.Name, p.BirthDate, p.FamilyIncome, social, analyst, p.ClinicalNotes}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
