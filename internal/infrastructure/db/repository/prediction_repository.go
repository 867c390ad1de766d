package repository

import (
	"context"
	"fmt"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

type PredictionRepository struct {
	store ports.DocumentStore
}

func NewPredictionRepository(store ports.DocumentStore) *PredictionRepository {
	return &PredictionRepository{store: store}
}

func (r *PredictionRepository) Save(ctx context.Context, p *domain.Prediction) error {
	return r.store.Put(ctx, ports.CollectionPredictions, p.ID, p)
}

func (r *PredictionRepository) Insert(ctx context.Context, p *domain.Prediction) error {
	return r.store.Insert(ctx, ports.CollectionPredictions, p.ID, p)
}

func (r *PredictionRepository) FindLabeled(ctx context.Context, userID, category, character string) (*domain.Prediction, error) {
	filters := ports.Filters{"userId": userID, "category": category, "character": character}

	var found []*domain.Prediction
	if err := r.store.Query(ctx, ports.CollectionPredictions, filters, &found); err != nil {
		return nil, fmt.Errorf("find labeled prediction: %w", err)
	}
	if len(found) == 0 {
		return nil, domain.ErrNotFound
	}
	return found[0], nil
}

func (r *PredictionRepository) List(ctx context.Context, userID string) ([]*domain.Prediction, error) {
	var filters ports.Filters
	if userID != "" {
		filters = ports.Filters{"userId": userID}
	}

	items := []*domain.Prediction{}
	if err := r.store.Query(ctx, ports.CollectionPredictions, filters, &items); err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return items, nil
}

// ListLabeled returns userID's pre-labeled predictions only.
func (r *PredictionRepository) ListLabeled(ctx context.Context, userID string) ([]*domain.Prediction, error) {
	items, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	labeled := items[:0]
	for _, p := range items {
		if p.Labeled() {
			labeled = append(labeled, p)
		}
	}
	return labeled, nil
}
