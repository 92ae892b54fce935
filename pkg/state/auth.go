package state

import (
	"sync"

	"github.com/4xmen/memeboard/pkg/models"
)

type AuthSnapshot struct {
	User    *models.User
	Token   string
	Version uint64
}

// LoggedIn reports whether a user is signed in.
func (a AuthSnapshot) LoggedIn() bool { return a.User != nil }

type AuthStore struct {
	mu      sync.RWMutex
	user    *models.User
	token   string
	version uint64
}

func NewAuthStore() *AuthStore {
	return &AuthStore{}
}

func (s *AuthStore) SetSession(user *models.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = cloneUser(user)
	s.token = token
	s.version++
}

func (s *AuthStore) SetUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = cloneUser(user)
	s.version++
}

func (s *AuthStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
	s.version++
}

func (s *AuthStore) Snapshot() AuthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AuthSnapshot{User: cloneUser(s.user), Token: s.token, Version: s.version}
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
