package ports

import (
	"context"
	"time"

	"github.com/kakitori/kakitori-api/internal/core/domain"
)

// Claims is the verified identity carried by a session token.
type Claims struct {
	UID       string
	Email     string
	ExpiresAt time.Time
}

type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Account(ctx context.Context, uid string) (*domain.User, error)
}

// TokenVerifier validates session tokens presented by clients.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}
