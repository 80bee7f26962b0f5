package session

import (
	"context"
	"sync"
	"time"

	"github.com/SamuelPedraGoncalves/gerenciador/pkg/kv"
)

const revokedPrefix = "gerenciador:session:revoked:"

// Revocations records logged-out token ids until the token would have expired.
type Revocations interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	Revoked(ctx context.Context, jti string) (bool, error)
}

// KVRevocations keeps revoked ids in Redis with a TTL.
type KVRevocations struct {
	kv  kv.KV
	now func() time.Time
}

func NewKVRevocations(store kv.KV) *KVRevocations {
	return &KVRevocations{kv: store, now: time.Now}
}

func (r *KVRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.kv.Set(ctx, revokedPrefix+jti, "1", ttl)
}

func (r *KVRevocations) Revoked(ctx context.Context, jti string) (bool, error) {
	return r.kv.Exists(ctx, revokedPrefix+jti)
}

// MemoryRevocations is used when Redis is not configured.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: map[string]time.Time{}, now: time.Now}
}

func (r *MemoryRevocations) Revoke(_ context.Context, jti string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, exp := range r.revoked {
		if now.After(exp) {
			delete(r.revoked, id)
		}
	}
	if until.After(now) {
		r.revoked[jti] = until
	}
	return nil
}

func (r *MemoryRevocations) Revoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.revoked[jti]
	return ok && r.now().Before(exp), nil
}
