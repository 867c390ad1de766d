package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

// KeyedRunner runs fn so that calls sharing a key never overlap.
type KeyedRunner interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type predictionService struct {
	repo       ports.PredictionRepository
	classifier ports.Classifier
	progress   ports.ProgressService
	archive    ports.ImageArchive // optional
	runner     KeyedRunner
	log        zerolog.Logger
	now        func() time.Time
}

// NewPredictionService returns a PredictionService implementation. archive may be nil.
func NewPredictionService(
	repo ports.PredictionRepository,
	classifier ports.Classifier,
	progress ports.ProgressService,
	archive ports.ImageArchive,
	runner KeyedRunner,
	log zerolog.Logger,
) ports.PredictionService {
	return &predictionService{
		repo:       repo,
		classifier: classifier,
		progress:   progress,
		archive:    archive,
		runner:     runner,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PredictImage classifies an uploaded image and stores the result.
func (s *predictionService) PredictImage(ctx context.Context, in ports.PredictImageInput) (*domain.Prediction, error) {
	if len(in.Image) > domain.MaxImageBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	result, err := s.classifier.Classify(ctx, in.Image)
	if err != nil {
		return nil, fmt.Errorf("predict image: %w", err)
	}

	now := s.now()
	p := &domain.Prediction{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		ConfidenceScore: result.ConfidenceScore,
		Result:          result.Label,
		Suggestion:      result.Explanation,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Archiving is best effort.
	if s.archive != nil {
		key, err := s.archive.Put(ctx, p.ID, in.Image, http.DetectContentType(in.Image))
		if err != nil {
			s.log.Warn().Err(err).Str("prediction_id", p.ID).Msg("failed to archive image")
		} else {
			p.ImageKey = key
		}
	}

	if err := s.repo.Save(ctx, p); err != nil {
		s.log.Error().Err(err).Str("prediction_id", p.ID).Msg("failed to store prediction")
		return nil, fmt.Errorf("predict image: store: %w", err)
	}

	s.log.Info().Str("prediction_id", p.ID).Str("result", p.Result).Float64("score", p.ConfidenceScore).Msg("image predicted")
	return p, nil
}

// SubmitLabeled stores a pre-labeled prediction, keeping only the highest
// confidence score per (user, category, character).
func (s *predictionService) SubmitLabeled(ctx context.Context, in ports.LabeledPredictionInput) (*ports.UpsertResult, error) {
	if _, ok := domain.LookupCategory(in.Category); !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, in.Category)
	}

	var res *ports.UpsertResult
	key := in.UserID + "\x00" + in.Category + "\x00" + in.Character
	err := s.runner.Do(ctx, key, func(ctx context.Context) error {
		var err error
		res, err = s.upsert(ctx, in)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("submit prediction: %w", err)
	}

	if res.Outcome != domain.OutcomeUnchanged {
		s.progress.Invalidate(ctx, in.UserID)
	}

	s.log.Info().
		Str("user_id", in.UserID).
		Str("category", in.Category).
		Str("outcome", string(res.Outcome)).
		Msg("labeled prediction submitted")

	return res, nil
}

func (s *predictionService) upsert(ctx context.Context, in ports.LabeledPredictionInput) (*ports.UpsertResult, error) {
	existing, err := s.repo.FindLabeled(ctx, in.UserID, in.Category, in.Character)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		created, err := s.create(ctx, in)
		if !errors.Is(err, domain.ErrDuplicate) {
			return created, err
		}
		// Another instance inserted the same key first; compare against its record.
		existing, err = s.repo.FindLabeled(ctx, in.UserID, in.Category, in.Character)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if in.ConfidenceScore <= existing.ConfidenceScore {
		return &ports.UpsertResult{
			Outcome:        domain.OutcomeUnchanged,
			Prediction:     existing,
			SubmittedScore: in.ConfidenceScore,
		}, nil
	}

	existing.ConfidenceScore = in.ConfidenceScore
	existing.Result = resultOf(in)
	existing.Suggestion = suggestionOf(in)
	existing.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, existing); err != nil {
		return nil, err
	}

	return &ports.UpsertResult{
		Outcome:        domain.OutcomeUpdated,
		Prediction:     existing,
		SubmittedScore: in.ConfidenceScore,
	}, nil
}

func (s *predictionService) create(ctx context.Context, in ports.LabeledPredictionInput) (*ports.UpsertResult, error) {
	now := s.now()
	p := &domain.Prediction{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		Category:        in.Category,
		Character:       in.Character,
		ConfidenceScore: in.ConfidenceScore,
		Result:          resultOf(in),
		Suggestion:      suggestionOf(in),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	return &ports.UpsertResult{
		Outcome:        domain.OutcomeCreated,
		Prediction:     p,
		SubmittedScore: in.ConfidenceScore,
	}, nil
}

// Histories lists stored predictions, scoped to userID when it is non-empty.
func (s *predictionService) Histories(ctx context.Context, userID string) ([]*domain.Prediction, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("histories: %w", err)
	}
	return items, nil
}

func resultOf(in ports.LabeledPredictionInput) string {
	if in.Result != "" {
		return in.Result
	}
	return in.Character
}

func suggestionOf(in ports.LabeledPredictionInput) string {
	if in.Suggestion != "" {
		return in.Suggestion
	}
	return domain.Explain(resultOf(in))
}
