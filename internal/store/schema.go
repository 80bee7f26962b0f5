package store

import (
	"context"
	"fmt"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
)

// schema lists the tables in dependency order.
var schema = []struct {
	table string
	ddl   string
}{
	{"users", `CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL,
  password TEXT,
  role TEXT NOT NULL DEFAULT 'USER'
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (lower(username));`},
	{"students", `CREATE TABLE IF NOT EXISTS students (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  enrolled_at DATE
);`},
	{"employees", `CREATE TABLE IF NOT EXISTS employees (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT,
  role TEXT,
  department TEXT
);`},
	{"courses", `CREATE TABLE IF NOT EXISTS courses (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  duration TEXT
);`},
	{"classes", `CREATE TABLE IF NOT EXISTS classes (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  course_id BIGINT REFERENCES courses (id)
);
CREATE INDEX IF NOT EXISTS idx_classes_course_id ON classes (course_id);`},
	{"psychoanalysts", `CREATE TABLE IF NOT EXISTS psychoanalysts (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  specialty TEXT
);`},
	{"patients", `CREATE TABLE IF NOT EXISTS patients (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  birth_date DATE,
  family_income TEXT,
  social_value DOUBLE PRECISION,
  analyst_id BIGINT REFERENCES psychoanalysts (id),
  clinical_notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_patients_analyst_id ON patients (analyst_id);`},
	{"class_students", `CREATE TABLE IF NOT EXISTS class_students (
  class_id BIGINT NOT NULL REFERENCES classes (id) ON DELETE CASCADE,
  student_id BIGINT NOT NULL REFERENCES students (id) ON DELETE CASCADE,
  PRIMARY KEY (class_id, student_id)
);`},
}

// EnsureSchema creates every table if missing (idempotent).
// It suits development and first boot; production changes should ship as migrations.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	if g.db == nil {
		return apperr.ErrStoreUnavailable
	}
	for _, t := range schema {
		if _, err := g.db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("ensure table %s: %w", t.table, err)
		}
		g.logger.Debugw("table ensured", "table", t.table)
	}
	return nil
}
