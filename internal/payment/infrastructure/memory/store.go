// Package memory keeps payments in process memory, indexed by id and public id.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/payment-console/internal/payment/domain"
)

type Store struct {
	mu         sync.RWMutex
	payments   []domain.Payment
	byID       map[string]int
	byPublicID map[string]int
	now        func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		byID:       make(map[string]int),
		byPublicID: make(map[string]int),
		now:        now,
	}
}

func (s *Store) GetAll(ctx context.Context) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Payment, len(s.payments))
	copy(out, s.payments)
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Payment{}, &domain.NotFoundError{Key: "id", Value: id}
	}
	return s.payments[i], nil
}

func (s *Store) GetByPublicID(ctx context.Context, publicID string) (domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byPublicID[publicID]
	if !ok {
		return domain.Payment{}, &domain.NotFoundError{Key: "publicId", Value: publicID}
	}
	return s.payments[i], nil
}

func (s *Store) Create(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return domain.Payment{}, &domain.ConflictError{ID: p.ID, Reason: "id already exists"}
	}
	if _, ok := s.byPublicID[p.PublicID]; ok {
		return domain.Payment{}, &domain.ConflictError{ID: p.ID, Reason: "public id already exists"}
	}
	s.payments = append(s.payments, p)
	s.byID[p.ID] = len(s.payments) - 1
	s.byPublicID[p.PublicID] = len(s.payments) - 1
	return p, nil
}

func (s *Store) Update(ctx context.Context, id string, patch domain.Patch) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Payment{}, &domain.NotFoundError{Key: "id", Value: id}
	}
	updated, err := s.payments[i].Apply(patch, s.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return domain.Payment{}, err
	}
	s.payments[i] = updated
	return updated, nil
}
