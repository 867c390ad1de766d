package ports

import (
	"context"

	"github.com/kakitori/kakitori-api/internal/core/domain"
)

// UserRepository defines persistence for registered users.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUID(ctx context.Context, uid string) (*domain.User, error)
	// Create fails with domain.ErrEmailRegistered when the email is taken.
	Create(ctx context.Context, user *domain.User) error
}
