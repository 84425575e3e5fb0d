package crossaccount

import (
	"context"
	"sync"
	"time"
)

// MemoryAccountStore is an in-memory AccountStore for tests and local use.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryAccountStore creates an empty in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]Account)}
}

// Get implements AccountStore.
func (s *MemoryAccountStore) Get(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound("account", id)
	}
	return &a, nil
}

// Put implements AccountStore.
func (s *MemoryAccountStore) Put(ctx context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account.UpdatedAt = time.Now()
	s.accounts[account.ID] = account
	return nil
}

// ListActiveByGroup implements AccountStore.
func (s *MemoryAccountStore) ListActiveByGroup(ctx context.Context, group string) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Account
	for _, a := range s.accounts {
		if a.Status != StatusActive || a.Group != group {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// MemoryRoleStore is an in-memory RoleStore for tests and local use.
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]Role
}

// NewMemoryRoleStore creates an empty in-memory role store.
func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]Role)}
}

// Get implements RoleStore.
func (s *MemoryRoleStore) Get(ctx context.Context, name string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[name]
	if !ok {
		return nil, ErrNotFound("role", name)
	}
	return &r, nil
}

// Put implements RoleStore.
func (s *MemoryRoleStore) Put(ctx context.Context, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role.UpdatedAt = time.Now()
	s.roles[role.Name] = role
	return nil
}

// ListActiveForGroup implements RoleStore.
func (s *MemoryRoleStore) ListActiveForGroup(ctx context.Context, group string) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Role
	for _, r := range s.roles {
		if r.Status != StatusActive {
			continue
		}
		if r.Group != group && r.Group != DefaultGroup {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// MemoryBindingStore is an in-memory BindingStore for tests and local use.
type MemoryBindingStore struct {
	mu       sync.RWMutex
	bindings map[bindingKey]Binding
}

type bindingKey struct {
	role    string
	account string
}

// NewMemoryBindingStore creates an empty in-memory binding store.
func NewMemoryBindingStore() *MemoryBindingStore {
	return &MemoryBindingStore{bindings: make(map[bindingKey]Binding)}
}

// Put implements BindingStore.
func (s *MemoryBindingStore) Put(ctx context.Context, binding Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding.UpdatedAt = time.Now()
	s.bindings[bindingKey{binding.Role, binding.AccountID}] = binding
	return nil
}

// ListActive implements BindingStore.
func (s *MemoryBindingStore) ListActive(ctx context.Context) ([]Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Binding
	for _, b := range s.bindings {
		if b.Status == StatusActive {
			out = append(out, b)
		}
	}
	return out, nil
}

// Get returns a binding by its composite key. Used by tests to observe
// transitions.
func (s *MemoryBindingStore) Get(role, accountID string) (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[bindingKey{role, accountID}]
	return b, ok
}
