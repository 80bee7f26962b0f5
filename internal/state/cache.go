// Package state keeps the in-memory snapshot of every collection that the API
// serves reads from.
package state

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
)

// Source is the subset of the record store the cache loads from.
type Source interface {
	ListAll(ctx context.Context, kind entity.Kind) ([]mapper.Fields, error)
	ListClassRoster(ctx context.Context, classID string) []string
}

// Cache owns the current Snapshot. Reloads and local patches are serialized;
// readers always see a whole snapshot.
type Cache struct {
	src       Source
	logger    *zap.SugaredLogger
	seedUsers []entity.User
	now       func() time.Time

	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	group   singleflight.Group
}

type Option func(*Cache)

// WithSeedUsers sets the users served when the users table cannot be read at startup.
func WithSeedUsers(users ...entity.User) Option {
	return func(c *Cache) { c.seedUsers = append([]entity.User{}, users...) }
}

// WithClock overrides the clock stamping LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(src Source, logger *zap.SugaredLogger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Cache{src: src, logger: logger, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	c.current.Store(emptySnapshot(c.seedUsers))
	return c
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (c *Cache) Snapshot() *Snapshot { return c.current.Load() }

// FindUser looks a user up in the current snapshot.
func (c *Cache) FindUser(username string) (entity.User, bool) {
	return c.Snapshot().FindUser(username)
}

// Reload fetches every collection and commits them together. On failure the
// previous snapshot is kept. Concurrent callers share one reload; it is detached
// from ctx so one caller giving up does not fail the others.
func (c *Cache) Reload(ctx context.Context) error {
	ch := c.group.DoChan("reload", func() (any, error) {
		return nil, c.reload(context.WithoutCancel(ctx), false)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Bootstrap loads the first snapshot without failing: unreadable collections
// become empty and unreadable users fall back to the seed users.
func (c *Cache) Bootstrap(ctx context.Context) {
	if err := c.reload(ctx, true); err != nil {
		c.logger.Warnw("bootstrap load failed", "err", err)
	}
}

// RemoveLocal drops an item from the current snapshot after a confirmed remote delete.
func (c *Cache) RemoveLocal(kind entity.Kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(c.current.Load().without(kind, id))
}

func (c *Cache) reload(ctx context.Context, tolerant bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.now()
	next, err := c.fetch(ctx, tolerant)
	if err != nil {
		c.logger.Warnw("reload aborted, keeping previous snapshot", "err", err)
		return err
	}
	next.LoadedAt = c.now()
	c.current.Store(next)
	c.logger.Debugw("snapshot reloaded",
		"students", len(next.Students),
		"classes", len(next.Classes),
		"patients", len(next.Patients),
		"duration_ms", float64(next.LoadedAt.Sub(start).Microseconds())/1000.0,
	)
	return nil
}

func (c *Cache) fetch(ctx context.Context, tolerant bool) (*Snapshot, error) {
	kinds := entity.Kinds()
	rows := make([][]mapper.Fields, len(kinds))
	failed := make([]bool, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			r, err := c.src.ListAll(gctx, kind)
			if err != nil {
				if tolerant {
					c.logger.Warnw("collection unavailable, serving empty", "kind", kind, "err", err)
					failed[i] = true
					return nil
				}
				return err
			}
			rows[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	next := emptySnapshot(nil)
	for i, kind := range kinds {
		if err := decodeInto(next, kind, rows[i]); err != nil {
			if !tolerant {
				return nil, err
			}
			c.logger.Warnw("collection undecodable, serving empty", "kind", kind, "err", err)
			failed[i] = true
		}
		if kind == entity.KindUser && failed[i] {
			next.Users = append([]entity.User{}, c.seedUsers...)
		}
	}

	rg, rctx := errgroup.WithContext(ctx)
	rg.SetLimit(8)
	for i := range next.Classes {
		rg.Go(func() error {
			ids := c.src.ListClassRoster(rctx, string(next.Classes[i].ID))
			roster := make([]entity.ID, len(ids))
			for j, id := range ids {
				roster[j] = entity.ID(id)
			}
			next.Classes[i].StudentIDs = roster
			return nil
		})
	}
	_ = rg.Wait()
	return next, nil
}

func decodeInto(s *Snapshot, kind entity.Kind, rows []mapper.Fields) error {
	var err error
	switch kind {
	case entity.KindUser:
		s.Users, err = decode[entity.User](rows)
	case entity.KindStudent:
		s.Students, err = decode[entity.Student](rows)
	case entity.KindEmployee:
		s.Employees, err = decode[entity.Employee](rows)
	case entity.KindCourse:
		s.Courses, err = decode[entity.Course](rows)
	case entity.KindClass:
		s.Classes, err = decode[entity.ClassRoom](rows)
	case entity.KindPsychoanalyst:
		s.Psychoanalysts, err = decode[entity.Psychoanalyst](rows)
	case entity.KindPatient:
		s.Patients, err = decode[entity.Patient](rows)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

func decode[T any](rows []mapper.Fields) ([]T, error) {
	out, err := entity.DecodeAll[T](rows)
	if err != nil {
		return []T{}, err
	}
	return out, nil
}
