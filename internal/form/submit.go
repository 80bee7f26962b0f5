package form

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/state"
)

// Store is the part of the gateway the submitter writes through.
type Store interface {
	Insert(ctx context.Context, kind entity.Kind, fields mapper.Fields) (mapper.Fields, error)
	Update(ctx context.Context, kind entity.Kind, id string, partial mapper.Fields) (mapper.Fields, error)
	ReplaceClassRoster(ctx context.Context, classID string, studentIDs []string) error
}

// Cache is the state the submitter reads candidates from and refreshes after writes.
type Cache interface {
	Snapshot() *state.Snapshot
	Reload(ctx context.Context) error
}

// Writer produces generated text; it never fails, it falls back to fixed text.
type Writer interface {
	GenerateCourseDescription(ctx context.Context, courseName string) string
	SummarizePatientCase(ctx context.Context, patientName, notes string) string
}

type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
}

// RefreshFailedNotice is returned when a write succeeded but the reload did not.
const RefreshFailedNotice = "saved, but the data could not be refreshed"

// Outcome is the result of a successful submission.
type Outcome struct {
	Kind   entity.Kind   `json:"kind,omitempty"`
	Mode   Mode          `json:"mode,omitempty"`
	Record mapper.Fields `json:"record,omitempty"`
	Text   string        `json:"text,omitempty"`
	Notice string        `json:"notice,omitempty"`
}

type Submitter struct {
	store     Store
	cache     Cache
	writer    Writer
	hasher    PasswordHasher
	validator *Validator
	logger    *zap.SugaredLogger
}

func NewSubmitter(store Store, cache Cache, writer Writer, hasher PasswordHasher, logger *zap.SugaredLogger) *Submitter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Submitter{
		store:     store,
		cache:     cache,
		writer:    writer,
		hasher:    hasher,
		validator: NewValidator(),
		logger:    logger,
	}
}

// Submit dispatches in to its handler.
func (s *Submitter) Submit(ctx context.Context, in Intent) (*Outcome, error) {
	switch v := in.(type) {
	case Save:
		return s.save(ctx, v)
	case ManageRoster:
		return s.manageRoster(ctx, v)
	case LinkPatient:
		return s.linkPatient(ctx, v)
	case GenerateDescription:
		return s.generateDescription(ctx, v)
	case SummarizeCase:
		return s.summarizeCase(ctx, v)
	}
	return nil, fmt.Errorf("unsupported intent %T", in)
}

func (s *Submitter) save(ctx context.Context, in Save) (*Outcome, error) {
	if in.Fields == nil {
		return nil, apperr.Invalid("fields", "no fields submitted")
	}
	in.ID = strings.TrimSpace(in.ID)
	in.Fields.normalize()
	if err := s.validator.Struct(in.Fields); err != nil {
		return nil, err
	}
	kind := in.Fields.Kind()
	mode := in.Mode()
	fields := in.Fields.fields()

	if err := s.checkReferences(in.Fields); err != nil {
		return nil, err
	}
	if u, ok := in.Fields.(*UserFields); ok {
		if err := s.applyPassword(fields, u, mode); err != nil {
			return nil, err
		}
	}

	var (
		rec mapper.Fields
		err error
	)
	if mode == ModeCreate {
		rec, err = s.store.Insert(ctx, kind, fields)
	} else {
		rec, err = s.store.Update(ctx, kind, in.ID, fields)
	}
	if err != nil {
		return nil, apperr.Sync(fmt.Sprintf("%s %s", mode, kind), err)
	}
	if kind == entity.KindUser {
		delete(rec, "password")
	}
	out := &Outcome{Kind: kind, Mode: mode, Record: rec}
	s.refresh(ctx, out)
	return out, nil
}

// checkReferences rejects references the cache does not know about.
func (s *Submitter) checkReferences(fs FieldSet) error {
	snap := s.cache.Snapshot()
	switch f := fs.(type) {
	case *ClassFields:
		if _, ok := snap.Find(entity.KindCourse, string(f.CourseID)); !ok {
			return apperr.Invalid("courseId", "unknown course")
		}
	case *PatientFields:
		if f.AnalystID == "" {
			return nil
		}
		if _, ok := snap.Find(entity.KindPsychoanalyst, string(f.AnalystID)); !ok {
			return apperr.Invalid("analystId", "unknown psychoanalyst")
		}
	}
	return nil
}

// applyPassword hashes a submitted password. A blank password on edit keeps the
// stored hash.
func (s *Submitter) applyPassword(fields mapper.Fields, u *UserFields, mode Mode) error {
	if strings.TrimSpace(u.Password) == "" {
		if mode == ModeCreate {
			return apperr.Invalid("password", requiredText)
		}
		return nil
	}
	hash, _, err := s.hasher.Hash(u.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	fields["password"] = hash
	u.Password = ""
	return nil
}

func (s *Submitter) manageRoster(ctx context.Context, in ManageRoster) (*Outcome, error) {
	snap := s.cache.Snapshot()
	classID := strings.TrimSpace(in.ClassID)
	if _, ok := snap.Class(classID); !ok {
		return nil, fmt.Errorf("class %s: %w", classID, apperr.ErrNotFound)
	}
	ids := make([]string, 0, len(in.StudentIDs))
	for _, id := range in.StudentIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := snap.Find(entity.KindStudent, id); !ok {
			return nil, apperr.Invalid("studentIds", "unknown student "+id)
		}
		ids = append(ids, id)
	}
	if err := s.store.ReplaceClassRoster(ctx, classID, ids); err != nil {
		return nil, apperr.Sync("replace class roster", err)
	}
	out := &Outcome{Kind: entity.KindClass, Mode: ModeEdit}
	s.refresh(ctx, out)
	return out, nil
}

func (s *Submitter) linkPatient(ctx context.Context, in LinkPatient) (*Outcome, error) {
	snap := s.cache.Snapshot()
	analystID := strings.TrimSpace(in.AnalystID)
	patientID := strings.TrimSpace(in.PatientID)
	if _, ok := snap.Find(entity.KindPsychoanalyst, analystID); !ok {
		return nil, fmt.Errorf("psychoanalyst %s: %w", analystID, apperr.ErrNotFound)
	}
	if patientID == "" {
		return nil, apperr.Invalid("patientId", requiredText)
	}
	p, ok := snap.Patient(patientID)
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", patientID, apperr.ErrNotFound)
	}
	if !p.Unassigned() {
		return nil, apperr.Invalid("patientId", "patient already has an analyst")
	}
	rec, err := s.store.Update(ctx, entity.KindPatient, patientID, mapper.Fields{"analystId": analystID})
	if err != nil {
		return nil, apperr.Sync("link patient", err)
	}
	out := &Outcome{Kind: entity.KindPatient, Mode: ModeEdit, Record: rec}
	s.refresh(ctx, out)
	return out, nil
}

func (s *Submitter) generateDescription(ctx context.Context, in GenerateDescription) (*Outcome, error) {
	in.CourseName = strings.TrimSpace(in.CourseName)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	return &Outcome{Kind: entity.KindCourse, Text: s.writer.GenerateCourseDescription(ctx, in.CourseName)}, nil
}

func (s *Submitter) summarizeCase(ctx context.Context, in SummarizeCase) (*Outcome, error) {
	p, ok := s.cache.Snapshot().Patient(strings.TrimSpace(in.PatientID))
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", in.PatientID, apperr.ErrNotFound)
	}
	return &Outcome{Kind: entity.KindPatient, Text: s.writer.SummarizePatientCase(ctx, p.Name, p.ClinicalNotes)}, nil
}

// refresh reloads the cache after a successful write. The write stands even when
// the reload fails.
func (s *Submitter) refresh(ctx context.Context, out *Outcome) {
	if err := s.cache.Reload(ctx); err != nil {
		s.logger.Warnw("reload after write failed", "kind", out.Kind, "err", err)
		out.Notice = RefreshFailedNotice
	}
}
