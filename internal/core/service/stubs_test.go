package service

import (
	"context"
	"sort"
	"sync"

	"github.com/kakitori/kakitori-api/internal/core/domain"
)

// stubPredictionRepo mirrors the document store semantics in memory.
type stubPredictionRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Prediction
	saveErr   error
	insertErr error // returned once by Insert, then cleared
	onInsert  func()
	onList    func() // runs inside ListLabeled, before the read
	saves     int
}

func newStubPredictionRepo() *stubPredictionRepo {
	return &stubPredictionRepo{byID: make(map[string]*domain.Prediction)}
}

func (r *stubPredictionRepo) Save(_ context.Context, p *domain.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	clone := *p
	r.byID[p.ID] = &clone
	r.saves++
	return nil
}

func (r *stubPredictionRepo) Insert(_ context.Context, p *domain.Prediction) error {
	if r.onInsert != nil {
		r.onInsert()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		err := r.insertErr
		r.insertErr = nil
		return err
	}
	for _, q := range r.byID {
		if q.Labeled() && q.UserID == p.UserID && q.Category == p.Category && q.Character == p.Character {
			return domain.ErrDuplicate
		}
	}
	clone := *p
	r.byID[p.ID] = &clone
	return nil
}

func (r *stubPredictionRepo) FindLabeled(_ context.Context, userID, category, character string) (*domain.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.byID {
		if q.UserID == userID && q.Category == category && q.Character == character {
			clone := *q
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubPredictionRepo) List(_ context.Context, userID string) ([]*domain.Prediction, error) {
	return r.filter(func(p *domain.Prediction) bool { return userID == "" || p.UserID == userID }), nil
}

func (r *stubPredictionRepo) ListLabeled(_ context.Context, userID string) ([]*domain.Prediction, error) {
	if r.onList != nil {
		r.onList()
	}
	return r.filter(func(p *domain.Prediction) bool { return p.Labeled() && p.UserID == userID }), nil
}

func (r *stubPredictionRepo) filter(keep func(*domain.Prediction) bool) []*domain.Prediction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Prediction
	for _, p := range r.byID {
		if keep(p) {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *stubPredictionRepo) labeledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.byID {
		if p.Labeled() {
			n++
		}
	}
	return n
}

// inlineRunner runs fn under a single mutex, like a dispatcher with one shard.
type inlineRunner struct {
	mu   sync.Mutex
	keys []string
}

func (r *inlineRunner) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return fn(ctx)
}

type stubProgress struct {
	mu          sync.Mutex
	invalidated []string
}

func (p *stubProgress) Progress(context.Context, string) ([]domain.CategoryProgress, error) {
	return nil, nil
}

func (p *stubProgress) Invalidate(_ context.Context, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidated = append(p.invalidated, userID)
}
