package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"house-points-service/internal/domain"
)

// Identity is an in-memory implementation of app.Identity handing out
// opaque uuid user ids. Passwords are held only to honor the interface;
// nothing authenticates against this store.
type Identity struct {
	mu    sync.Mutex
	users map[string]string // lowercased email -> user id
}

func NewIdentity() *Identity {
	return &Identity{users: make(map[string]string)}
}

func (i *Identity) CreateUser(_ context.Context, email, _ string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := i.users[key]; ok {
		return "", domain.ErrUserExists
	}
	id := uuid.NewString()
	i.users[key] = id
	return id, nil
}

func (i *Identity) FindUserByEmail(_ context.Context, email string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	id, ok := i.users[strings.ToLower(email)]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return id, nil
}
