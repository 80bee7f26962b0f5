// Package form turns submitted drafts into store mutations. Every submission is one
// Intent; the Submitter validates it, writes it and refreshes the cache.
package form

// Intent is one of Save, ManageRoster, LinkPatient, GenerateDescription or
// SummarizeCase.
type Intent interface {
	intent()
}

// Save creates a record when ID is empty and edits it otherwise.
type Save struct {
	ID     string
	Fields FieldSet
}

// ManageRoster replaces the set of students enrolled in a class.
type ManageRoster struct {
	ClassID    string
	StudentIDs []string
}

// LinkPatient assigns an unassigned patient to an analyst.
type LinkPatient struct {
	AnalystID string
	PatientID string
}

// GenerateDescription drafts a course description. Nothing is persisted.
type GenerateDescription struct {
	CourseName string `json:"courseName" validate:"required"`
}

// SummarizeCase condenses a patient's clinical notes. Nothing is persisted.
type SummarizeCase struct {
	PatientID string
}

func (Save) intent()                {}
func (ManageRoster) intent()        {}
func (LinkPatient) intent()         {}
func (GenerateDescription) intent() {}
func (SummarizeCase) intent()       {}

// Mode tells create and edit apart.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

func (s Save) Mode() Mode {
	if s.ID == "" {
		return ModeCreate
	}
	return ModeEdit
}
