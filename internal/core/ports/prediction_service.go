package ports

import (
	"context"

	"github.com/kakitori/kakitori-api/internal/core/domain"
)

// PredictImageInput carries an uploaded image to classify.
type PredictImageInput struct {
	UserID string // empty for anonymous callers
	Image  []byte
}

// LabeledPredictionInput carries a pre-labeled prediction submitted by a client.
type LabeledPredictionInput struct {
	UserID          string
	Category        string
	Character       string
	ConfidenceScore float64
	Result          string
	Suggestion      string
}

// UpsertResult is returned by SubmitLabeled.
type UpsertResult struct {
	Outcome    domain.UpsertOutcome
	Prediction *domain.Prediction
	// SubmittedScore is the score the client sent; it differs from
	// Prediction.ConfidenceScore when the stored record was kept.
	SubmittedScore float64
}

// PredictionService defines use-case operations for predictions.
type PredictionService interface {
	PredictImage(ctx context.Context, in PredictImageInput) (*domain.Prediction, error)
	SubmitLabeled(ctx context.Context, in LabeledPredictionInput) (*UpsertResult, error)
	Histories(ctx context.Context, userID string) ([]*domain.Prediction, error)
}

// ProgressService aggregates a user's labeled predictions into per-category progress.
type ProgressService interface {
	Progress(ctx context.Context, userID string) ([]domain.CategoryProgress, error)
	// Invalidate drops any cached progress for userID.
	Invalidate(ctx context.Context, userID string)
}
