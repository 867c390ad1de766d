package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

// ProgressService computes per-category completion from labeled predictions.
type ProgressService struct {
	repo  ports.PredictionRepository
	cache ports.ProgressCache // optional
	log   zerolog.Logger

	// generations are bumped by Invalidate. A snapshot is only cached when
	// the user's stripe did not move while it was computed.
	generations [64]atomic.Uint64
}

func NewProgressService(repo ports.PredictionRepository, cache ports.ProgressCache, log zerolog.Logger) *ProgressService {
	return &ProgressService{repo: repo, cache: cache, log: log}
}

func (s *ProgressService) generation(userID string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.generations[h.Sum32()%uint32(len(s.generations))]
}

func (s *ProgressService) Progress(ctx context.Context, userID string) ([]domain.CategoryProgress, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("progress cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	gen := s.generation(userID)
	before := gen.Load()

	preds, err := s.repo.ListLabeled(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("progress: %w", err)
	}

	done := make(map[string]map[string]struct{}, len(domain.Categories))
	for _, p := range preds {
		if done[p.Category] == nil {
			done[p.Category] = make(map[string]struct{})
		}
		done[p.Category][p.Character] = struct{}{}
	}

	out := make([]domain.CategoryProgress, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		out = append(out, domain.NewCategoryProgress(c, len(done[c.Name])))
	}

	if s.cache != nil && gen.Load() == before {
		if err := s.cache.Set(ctx, userID, out); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("progress cache write failed")
		} else if gen.Load() != before {
			// An invalidation landed between the check and the write.
			_ = s.cache.Delete(ctx, userID)
		}
	}
	return out, nil
}

func (s *ProgressService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	s.generation(userID).Add(1)
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("progress cache invalidation failed")
	}
}
