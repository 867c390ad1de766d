package ports

import (
	"context"

	"github.com/kakitori/kakitori-api/internal/core/domain"
)

// PredictionRepository defines persistence for prediction records.
type PredictionRepository interface {
	Save(ctx context.Context, p *domain.Prediction) error
	// Insert creates p, failing with domain.ErrDuplicate when a record for the
	// same (user, category, character) already exists.
	Insert(ctx context.Context, p *domain.Prediction) error
	FindLabeled(ctx context.Context, userID, category, character string) (*domain.Prediction, error)
	// List returns all predictions, or only userID's when it is non-empty.
	List(ctx context.Context, userID string) ([]*domain.Prediction, error)
	ListLabeled(ctx context.Context, userID string) ([]*domain.Prediction, error)
}
