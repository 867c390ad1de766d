package ports

import (
	"context"

	"github.com/kakitori/kakitori-api/internal/core/domain"
)

// ProgressCache stores computed progress per user. A miss returns (nil, nil).
type ProgressCache interface {
	Get(ctx context.Context, userID string) ([]domain.CategoryProgress, error)
	Set(ctx context.Context, userID string, progress []domain.CategoryProgress) error
	Delete(ctx context.Context, userID string) error
}

// ImageArchive keeps a copy of classified images. Put returns the storage key.
type ImageArchive interface {
	Put(ctx context.Context, predictionID string, image []byte, contentType string) (string, error)
}
