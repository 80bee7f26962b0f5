// Package deleteflow runs the two-step delete: fetch and show the target, then
// delete it once the operator confirms.
package deleteflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
)

type State string

const (
	Idle         State = "idle"
	PendingFetch State = "pending_fetch"
	Confirming   State = "confirming"
	Executing    State = "executing"
)

var (
	ErrBusy           = errors.New("a delete is already in progress")
	ErrNothingPending = errors.New("no delete awaiting confirmation")
)

// NotFoundMessage is shown when the item vanished before it could be confirmed.
const NotFoundMessage = "the item no longer exists; the list was refreshed"

// Store is the part of the gateway used by the flow.
type Store interface {
	GetByID(ctx context.Context, kind entity.Kind, id string) (mapper.Fields, bool, error)
	Delete(ctx context.Context, kind entity.Kind, id string) error
}

// Cache is refreshed after every outcome.
type Cache interface {
	Reload(ctx context.Context) error
	RemoveLocal(kind entity.Kind, id string)
}

// Target is the item awaiting confirmation.
type Target struct {
	Kind      entity.Kind `json:"kind"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	TypeLabel string      `json:"typeLabel"`
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Flow is one delete confirmation. It is safe for concurrent use; transitions that
// do not start from the expected state fail with ErrBusy or ErrNothingPending.
type Flow struct {
	mu     sync.Mutex
	state  State
	target Target
	store  Store
	cache  Cache
	logger *zap.SugaredLogger
}

func NewFlow(store Store, cache Cache, logger *zap.SugaredLogger) *Flow {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Flow{state: Idle, store: store, cache: cache, logger: logger}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Target returns the item awaiting confirmation, if any.
func (f *Flow) Target() (Target, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target, f.state == Confirming
}

// Request fetches kind/id and moves to Confirming. A missing item triggers a full
// reload and returns apperr.ErrNotFound.
func (f *Flow) Request(ctx context.Context, kind entity.Kind, id string) (Target, error) {
	id = strings.TrimSpace(id)
	if err := f.transition(Idle, PendingFetch); err != nil {
		return Target{}, err
	}

	fields, found, err := f.store.GetByID(ctx, kind, id)
	if err != nil {
		f.set(Idle, Target{})
		return Target{}, fmt.Errorf("fetch %s %s: %w", kind, id, err)
	}
	if !found {
		f.set(Idle, Target{})
		f.reload(ctx, kind)
		return Target{}, fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
	}

	// The stored id is canonical; "07" in a path names row 7.
	if canonical := entity.IDFrom(fields["id"]); canonical != "" {
		id = canonical.String()
	}
	t := Target{Kind: kind, ID: id, Name: displayName(fields, id), TypeLabel: kind.Label()}
	f.set(Confirming, t)
	return t, nil
}

// Cancel abandons the pending confirmation without touching the store.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Confirming {
		return ErrNothingPending
	}
	f.state, f.target = Idle, Target{}
	return nil
}

// Confirm deletes the target. Success patches the cache locally; any failure
// reloads everything. The flow ends in Idle either way.
func (f *Flow) Confirm(ctx context.Context) (Notice, error) {
	f.mu.Lock()
	if f.state != Confirming {
		f.mu.Unlock()
		return Notice{}, ErrNothingPending
	}
	f.state = Executing
	t := f.target
	f.mu.Unlock()
	defer f.set(Idle, Target{})

	if err := f.store.Delete(ctx, t.Kind, t.ID); err != nil {
		f.logger.Warnw("delete failed", "kind", t.Kind, "id", t.ID, "err", err)
		f.reload(ctx, t.Kind)
		return Notice{Level: NoticeError, Message: failureMessage(err)}, err
	}
	f.cache.RemoveLocal(t.Kind, t.ID)
	return Notice{Level: NoticeSuccess, Message: fmt.Sprintf("%s %q deleted", capitalize(t.TypeLabel), t.Name)}, nil
}

func (f *Flow) transition(from, to State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != from {
		return ErrBusy
	}
	f.state = to
	return nil
}

func (f *Flow) set(s State, t Target) {
	f.mu.Lock()
	f.state, f.target = s, t
	f.mu.Unlock()
}

func (f *Flow) reload(ctx context.Context, kind entity.Kind) {
	if err := f.cache.Reload(ctx); err != nil {
		f.logger.Warnw("reload after delete flow failed", "kind", kind, "err", err)
	}
}

func failureMessage(err error) string {
	var ce *apperr.ConflictError
	switch {
	case errors.As(err, &ce):
		return ce.Error()
	case errors.Is(err, apperr.ErrNotFound):
		return NotFoundMessage
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return "the store is not available"
	}
	return "the item could not be deleted"
}

// displayName prefers name, then username, then the id.
func displayName(fields mapper.Fields, id string) string {
	for _, key := range []string{"name", "username"} {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return id
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
