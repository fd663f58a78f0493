package users

import (
	"context"
	"strconv"
	"sync"

	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/server/models"
)

// MemoryRepository is a map-backed Repository used in tests.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]*models.User{}}
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Login == user.Login {
			return nil, common.ErrLoginAlreadyExists
		}
	}

	r.nextID++
	user.ID = strconv.Itoa(r.nextID)
	stored := *user
	r.byID[user.ID] = &stored
	return user, nil
}

func (r *MemoryRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Login == login {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}
