// Package repository maps domain records onto a ports.DocumentStore.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

type UserRepository struct {
	store ports.DocumentStore
}

func NewUserRepository(store ports.DocumentStore) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var users []*domain.User
	if err := r.store.Query(ctx, ports.CollectionUsers, ports.Filters{"email": email}, &users); err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if len(users) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return users[0], nil
}

func (r *UserRepository) FindByUID(ctx context.Context, uid string) (*domain.User, error) {
	var u domain.User
	if err := r.store.Get(ctx, ports.CollectionUsers, uid, &u); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// Create inserts user. The unique email index turns a concurrent
// registration of the same address into ErrEmailRegistered.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.store.Insert(ctx, ports.CollectionUsers, user.UID, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.ErrEmailRegistered
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
