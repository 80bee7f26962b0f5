package deleteflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/pkg/utilities"
)

const DefaultTTL = 5 * time.Minute

type pending struct {
	flow    *Flow
	expires time.Time
}

// Registry keeps the flows awaiting confirmation, keyed by a snowflake token.
// Expired entries are dropped on access.
type Registry struct {
	mu     sync.Mutex
	flows  map[string]*pending
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
	store  Store
	cache  Cache
	logger *zap.SugaredLogger
}

func NewRegistry(store Store, cache Cache, ttl time.Duration, logger *zap.SugaredLogger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{
		flows:  map[string]*pending{},
		ttl:    ttl,
		now:    time.Now,
		newID:  utilities.NewSnowflakeID,
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Begin starts a flow for kind/id and returns its token once the target is known.
func (r *Registry) Begin(ctx context.Context, kind entity.Kind, id string) (string, Target, error) {
	f := NewFlow(r.store, r.cache, r.logger)
	t, err := f.Request(ctx, kind, id)
	if err != nil {
		return "", Target{}, err
	}
	token := r.newID()
	r.mu.Lock()
	r.sweepLocked()
	r.flows[token] = &pending{flow: f, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return token, t, nil
}

// Guard vets the target of a token before it is confirmed or cancelled. A
// non-nil error leaves the token in place.
type Guard func(Target) error

// Confirm executes the flow behind token. The token is consumed unless guard
// rejects it.
func (r *Registry) Confirm(ctx context.Context, token string, guard Guard) (Notice, error) {
	f, err := r.take(token, guard)
	if err != nil {
		return Notice{}, err
	}
	return f.Confirm(ctx)
}

// Cancel abandons the flow behind token.
func (r *Registry) Cancel(token string, guard Guard) error {
	f, err := r.take(token, guard)
	if err != nil {
		return err
	}
	return f.Cancel()
}

// Len reports the number of live flows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.flows)
}

func (r *Registry) take(token string, guard Guard) (*Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	p, ok := r.flows[token]
	if !ok {
		return nil, ErrNothingPending
	}
	if guard != nil {
		t, _ := p.flow.Target()
		if err := guard(t); err != nil {
			return nil, err
		}
	}
	delete(r.flows, token)
	return p.flow, nil
}

func (r *Registry) sweepLocked() {
	now := r.now()
	for token, p := range r.flows {
		if now.After(p.expires) {
			delete(r.flows, token)
		}
	}
}
