package principal

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/MrEthical07/authcore/permission"
)

// MemoryStore is an in-process [Store] for tests and single-node development.
type MemoryStore struct {
	clock clock.PassiveClock

	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Principal
}

// NewMemoryStore returns an empty store. A nil clk uses the real clock.
func NewMemoryStore(clk clock.PassiveClock) *MemoryStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MemoryStore{clock: clk, byID: make(map[int64]*Principal)}
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return *p, nil
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (Principal, error) {
	return s.find(func(p *Principal) bool { return p.Username == username })
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (Principal, error) {
	return s.find(func(p *Principal) bool { return p.Email == email })
}

func (s *MemoryStore) GetByExternalIdentity(_ context.Context, identity string) (Principal, error) {
	if identity == "" {
		return Principal{}, ErrNotFound
	}
	return s.find(func(p *Principal) bool { return p.ExternalIdentity == identity })
}

func (s *MemoryStore) find(match func(*Principal) bool) (Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if match(p) {
			return *p, nil
		}
	}
	return Principal{}, ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, p Principal) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		switch {
		case existing.Username == p.Username:
			return Principal{}, ErrDuplicateUsername
		case existing.Email == p.Email:
			return Principal{}, ErrDuplicateEmail
		case p.ExternalIdentity != "" && existing.ExternalIdentity == p.ExternalIdentity:
			return Principal{}, ErrDuplicateExternalIdentity
		}
	}

	s.nextID++
	now := s.clock.Now()
	p.ID = s.nextID
	p.CreatedAt = now
	p.UpdatedAt = now
	stored := p
	s.byID[p.ID] = &stored
	return p, nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	return s.update(id, func(p *Principal) { p.PasswordHash = hash })
}

func (s *MemoryStore) UpdatePermissions(_ context.Context, id int64, mask permission.Mask) error {
	return s.update(id, func(p *Principal) { p.Permissions = mask })
}

func (s *MemoryStore) SetActive(_ context.Context, id int64, active bool) error {
	return s.update(id, func(p *Principal) { p.Active = active })
}

func (s *MemoryStore) IncrementTokenVersion(_ context.Context, id int64) (int64, error) {
	var v int64
	err := s.update(id, func(p *Principal) {
		p.TokenVersion++
		v = p.TokenVersion
	})
	return v, err
}

func (s *MemoryStore) RecordLogin(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(p *Principal) { p.LastLoginAt = &at })
}

func (s *MemoryStore) update(id int64, fn func(*Principal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(p)
	p.UpdatedAt = s.clock.Now()
	return nil
}
