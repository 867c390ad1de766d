package ports

import (
	"context"

	"github.com/kakitori/kakitori-api/internal/core/domain"
)

// Tensor is a single image batch shaped [1][height][width][channels].
type Tensor [][][][]float32

// Model is a handle to a loaded classification model.
type Model interface {
	// Predict returns one probability per class, in domain.Labels order.
	Predict(ctx context.Context, input Tensor) ([]float32, error)
	Ping(ctx context.Context) error
}

// Classifier turns raw image bytes into a labelled classification.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*domain.Classification, error)
}
