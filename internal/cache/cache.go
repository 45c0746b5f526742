package cache

import (
	"context"
	"sync"
	"time"
)

// TokenRevoker remembers access tokens that were logged out before they
// expired.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type MemoryTokenRevoker struct {
	mu      sync.Mutex
	now     func() time.Time
	revoked map[string]time.Time
}

func NewMemoryTokenRevoker(now func() time.Time) *MemoryTokenRevoker {
	if now == nil {
		now = time.Now
	}
	return &MemoryTokenRevoker{now: now, revoked: make(map[string]time.Time)}
}

func (m *MemoryTokenRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, until := range m.revoked {
		if !until.After(now) {
			delete(m.revoked, id)
		}
	}
	m.revoked[tokenID] = now.Add(ttl)
	return nil
}

func (m *MemoryTokenRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.revoked[tokenID]
	return ok && until.After(m.now()), nil
}
