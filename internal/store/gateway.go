package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
)

// pq error code for foreign_key_violation.
const codeForeignKeyViolation = "23503"

// Gateway is the record store: per-kind CRUD plus the class roster join table.
// A Gateway without a database reports every call as unavailable.
type Gateway struct {
	db     *sqlx.DB
	logger *zap.SugaredLogger
}

// NewGateway wraps db; db may be nil when the store is not configured.
func NewGateway(db *sqlx.DB, logger *zap.SugaredLogger) *Gateway {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Gateway{db: db, logger: logger}
}

// Configured reports whether a database is attached.
func (g *Gateway) Configured() bool { return g.db != nil }

// ListAll returns every row of the kind's table, newest id first.
func (g *Gateway) ListAll(ctx context.Context, kind entity.Kind) ([]mapper.Fields, error) {
	if g.db == nil {
		return nil, apperr.ErrStoreUnavailable
	}
	q := fmt.Sprintf("SELECT * FROM %s ORDER BY id DESC", pq.QuoteIdentifier(kind.Table()))
	rows, err := g.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	out := make([]mapper.Fields, 0)
	for rows.Next() {
		rec := make(map[string]any)
		if err := rows.MapScan(rec); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, mapper.FromPersisted(normalizeRecord(rec)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

// GetByID returns the row matching id. A missing row is reported with found=false
// and a nil error.
func (g *Gateway) GetByID(ctx context.Context, kind entity.Kind, id string) (mapper.Fields, bool, error) {
	if g.db == nil {
		return nil, false, apperr.ErrStoreUnavailable
	}
	key := mapper.NormalizeIdentifier(id)
	if key == nil {
		return nil, false, nil
	}
	q := fmt.Sprintf("SELECT * FROM %s WHERE id = $1 LIMIT 1", pq.QuoteIdentifier(kind.Table()))
	rec := make(map[string]any)
	if err := g.db.QueryRowxContext(ctx, q, key).MapScan(rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return mapper.FromPersisted(normalizeRecord(rec)), true, nil
}

// Insert writes a new row and returns it as stored, including store-assigned fields.
func (g *Gateway) Insert(ctx context.Context, kind entity.Kind, fields mapper.Fields) (mapper.Fields, error) {
	if g.db == nil {
		return nil, apperr.ErrStoreUnavailable
	}
	cols, args := columnsAndArgs(mapper.ToPersisted(fields))
	table := pq.QuoteIdentifier(kind.Table())

	var q string
	if len(cols) == 0 {
		q = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", table)
	} else {
		quoted := make([]string, len(cols))
		marks := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = pq.QuoteIdentifier(c)
			marks[i] = "$" + strconv.Itoa(i+1)
		}
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			table, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	}

	rec := make(map[string]any)
	if err := g.db.QueryRowxContext(ctx, q, args...).MapScan(rec); err != nil {
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}
	return mapper.FromPersisted(normalizeRecord(rec)), nil
}

// Update writes the given fields onto the row matching id and returns the result.
func (g *Gateway) Update(ctx context.Context, kind entity.Kind, id string, partial mapper.Fields) (mapper.Fields, error) {
	if g.db == nil {
		return nil, apperr.ErrStoreUnavailable
	}
	key := mapper.NormalizeIdentifier(id)
	if key == nil {
		return nil, fmt.Errorf("update %s: %w", kind, apperr.ErrNotFound)
	}
	cols, args := columnsAndArgs(mapper.ToPersisted(partial))
	if len(cols) == 0 {
		cur, found, err := g.GetByID(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("update %s %s: %w", kind, id, apperr.ErrNotFound)
		}
		return cur, nil
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), i+1)
	}
	args = append(args, key)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING *",
		pq.QuoteIdentifier(kind.Table()), strings.Join(sets, ", "), len(args))

	rec := make(map[string]any)
	if err := g.db.QueryRowxContext(ctx, q, args...).MapScan(rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update %s %s: %w", kind, id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	return mapper.FromPersisted(normalizeRecord(rec)), nil
}

// Delete removes the row matching id. A foreign-key violation is reported as a
// referential conflict.
func (g *Gateway) Delete(ctx context.Context, kind entity.Kind, id string) error {
	if g.db == nil {
		return apperr.ErrStoreUnavailable
	}
	key := mapper.NormalizeIdentifier(id)
	if key == nil {
		return fmt.Errorf("delete %s: %w", kind, apperr.ErrNotFound)
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pq.QuoteIdentifier(kind.Table()))
	res, err := g.db.ExecContext(ctx, q, key)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == codeForeignKeyViolation {
			g.logger.Debugw("delete blocked by references", "table", kind.Table(), "id", id, "constraint", pqErr.Constraint)
			return apperr.NewConflict(kind.Table(), id, err)
		}
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %s: %w", kind, id, apperr.ErrNotFound)
	}
	return nil
}

// columnsAndArgs returns the writable columns in a stable order with their values.
// The id column is never written.
func columnsAndArgs(rec mapper.Record) ([]string, []any) {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		if c == "id" {
			continue
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = rec[c]
	}
	return cols, args
}

var numericColumns = map[string]struct{}{"social_value": {}}

// normalizeRecord turns driver values into the plain forms the rest of the
// application expects: text for byte slices, ISO text for dates and timestamps.
func normalizeRecord(rec map[string]any) mapper.Record {
	out := make(mapper.Record, len(rec))
	for k, v := range rec {
		switch t := v.(type) {
		case []byte:
			v = string(t)
		case time.Time:
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
				v = t.Format("2006-01-02")
			} else {
				v = t.Format(time.RFC3339)
			}
		}
		if _, ok := numericColumns[k]; ok {
			if s, isText := v.(string); isText {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					v = f
				}
			}
		}
		out[k] = v
	}
	return out
}
