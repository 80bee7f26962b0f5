package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
)

// ListClassRoster returns the student ids enrolled in a class. Failures are logged
// and reported as an empty roster.
func (g *Gateway) ListClassRoster(ctx context.Context, classID string) []string {
	if g.db == nil {
		return []string{}
	}
	key := mapper.NormalizeIdentifier(classID)
	if key == nil {
		return []string{}
	}
	q := fmt.Sprintf("SELECT student_id FROM %s WHERE class_id = $1 ORDER BY student_id",
		pq.QuoteIdentifier(entity.RosterTable))
	var raw []string
	if err := g.db.SelectContext(ctx, &raw, q, key); err != nil {
		g.logger.Warnw("list class roster failed", "class_id", classID, "err", err)
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if id := strings.TrimSpace(v); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ReplaceClassRoster makes the roster of classID exactly studentIDs. The delete
// and the insert run in one transaction, so a failure keeps the previous roster.
func (g *Gateway) ReplaceClassRoster(ctx context.Context, classID string, studentIDs []string) (err error) {
	if g.db == nil {
		return apperr.ErrStoreUnavailable
	}
	key := mapper.NormalizeIdentifier(classID)
	if key == nil {
		return fmt.Errorf("replace roster: class: %w", apperr.ErrNotFound)
	}
	table := pq.QuoteIdentifier(entity.RosterTable)

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace roster of class %s: begin: %w", classID, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				g.logger.Warnw("roster rollback failed", "class_id", classID, "err", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE class_id = $1", table), key); err != nil {
		return fmt.Errorf("replace roster of class %s: clear: %w", classID, err)
	}

	ids := uniqueIDs(studentIDs)
	if len(ids) > 0 {
		values := make([]string, len(ids))
		args := make([]any, 0, len(ids)+1)
		args = append(args, key)
		for i, sid := range ids {
			values[i] = fmt.Sprintf("($1, $%d)", i+2)
			args = append(args, mapper.NormalizeIdentifier(sid))
		}
		q := fmt.Sprintf("INSERT INTO %s (class_id, student_id) VALUES %s", table, strings.Join(values, ", "))
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("replace roster of class %s: insert: %w", classID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("replace roster of class %s: commit: %w", classID, err)
	}
	return nil
}

// uniqueIDs trims ids, drops blanks and collapses ids naming the same row
// ("1" and "01"), keeping first order.
func uniqueIDs(ids []string) []string {
	seen := make(map[any]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		key := mapper.NormalizeIdentifier(id)
		if key == nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}
