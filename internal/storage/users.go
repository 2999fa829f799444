package storage

import (
	"errors"
	"sort"
	"sync"

	"itemstore/internal/pkg/security"
)

// Credential store errors.
var (
	ErrUserExists         = errors.New("storage: user already exists")
	ErrUserNotFound       = errors.New("storage: user not found")
	ErrInvalidCredentials = errors.New("storage: invalid credentials")
)

// DemoUsers are the accounts seeded at startup.
var DemoUsers = map[string]string{
	"admin1": "admin1",
	"user1":  "pass1",
	"user2":  "pass2",
}

// UserStore keeps username to bcrypt hash mappings in memory for the lifetime
// of the process. The lock only covers map access; hashing and comparison run
// outside of it.
type UserStore struct {
	mu    sync.Mutex
	users map[string]string
	cost  int
}

// NewUserStore creates an empty UserStore hashing with the given bcrypt cost.
func NewUserStore(cost int) *UserStore {
	return &UserStore{users: make(map[string]string), cost: cost}
}

// Seed registers every name/password pair, in name order.
func (s *UserStore) Seed(users map[string]string) error {
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.Register(name, users[name]); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a new user. It fails with ErrUserExists if name is taken,
// including when a concurrent registration wins the race during hashing.
func (s *UserStore) Register(name, password string) error {
	if s.exists(name) {
		return ErrUserExists
	}

	hash, err := security.HashPassword(password, s.cost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; ok {
		return ErrUserExists
	}
	s.users[name] = hash
	return nil
}

// Verify checks password against the stored hash of name.
func (s *UserStore) Verify(name, password string) error {
	s.mu.Lock()
	hash, ok := s.users[name]
	s.mu.Unlock()
	if !ok {
		return ErrUserNotFound
	}

	if err := security.CheckPassword(hash, password); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *UserStore) exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[name]
	return ok
}
