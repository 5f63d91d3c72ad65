// Package storetest holds the behaviour every PaymentStore backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/payment-console/internal/payment/application"
	"github.com/dmehra2102/payment-console/internal/payment/domain"
)

// Clock is a manually advanced time source, safe for concurrent use.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Factory builds an empty store using clock for update timestamps.
type Factory func(t *testing.T, clock func() time.Time) application.PaymentStore

func Payment(n int, created time.Time) domain.Payment {
	return domain.Payment{
		ID:              fmt.Sprintf("pay_%04d", n),
		PublicID:        fmt.Sprintf("PUB%029d", n),
		Amount:          int64(1000 + n),
		Currency:        domain.CurrencyEGP,
		Status:          domain.StatusPending,
		MerchantOrderID: fmt.Sprintf("ORDER-%d", n),
		CreatedAt:       created,
		UpdatedAt:       created,
		Version:         1,
	}
}

func Run(t *testing.T, newStore Factory) {
	t.Run("empty", func(t *testing.T) {
		s := newStore(t, NewClock().Now)
		all, err := s.GetAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("create then get round trip", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)
		ctx := context.Background()
		p := Payment(1, clock.Now())

		created, err := s.Create(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, p, created)

		byID, err := s.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p, byID)

		byPublic, err := s.GetByPublicID(ctx, p.PublicID)
		require.NoError(t, err)
		assert.Equal(t, p, byPublic)
	})

	t.Run("insertion order", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)
		ctx := context.Background()
		for _, n := range []int{3, 1, 2} {
			_, err := s.Create(ctx, Payment(n, clock.Now()))
			require.NoError(t, err)
		}
		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"pay_0003", "pay_0001", "pay_0002"}, []string{all[0].ID, all[1].ID, all[2].ID})
	})

	t.Run("not found", func(t *testing.T) {
		s := newStore(t, NewClock().Now)
		ctx := context.Background()
		var nf *domain.NotFoundError

		_, err := s.GetByID(ctx, "pay_missing")
		assert.True(t, errors.As(err, &nf))
		_, err = s.GetByPublicID(ctx, "nonexistent")
		assert.True(t, errors.As(err, &nf))
		_, err = s.Update(ctx, "pay_missing", domain.Patch{})
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("duplicate identifiers rejected", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)
		ctx := context.Background()
		p := Payment(1, clock.Now())
		_, err := s.Create(ctx, p)
		require.NoError(t, err)

		var conflict *domain.ConflictError
		_, err = s.Create(ctx, p)
		assert.True(t, errors.As(err, &conflict))

		samePublic := Payment(2, clock.Now())
		samePublic.PublicID = p.PublicID
		_, err = s.Create(ctx, samePublic)
		assert.True(t, errors.As(err, &conflict))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("update merges and stamps", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)
		ctx := context.Background()
		p := Payment(1, clock.Now())
		_, err := s.Create(ctx, p)
		require.NoError(t, err)

		clock.Advance(90 * time.Second)
		updated, err := s.Update(ctx, p.ID, domain.StatusPatch(domain.StatusPaid, 1))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, updated.Status)
		assert.Equal(t, p.CreatedAt, updated.CreatedAt)
		assert.Equal(t, clock.Now(), updated.UpdatedAt)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, p.Amount, updated.Amount)

		stored, err := s.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, stored)
	})

	t.Run("update without clock movement still advances updatedAt", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)
		ctx := context.Background()
		p := Payment(1, clock.Now())
		_, err := s.Create(ctx, p)
		require.NoError(t, err)

		updated, err := s.Update(ctx, p.ID, domain.StatusPatch(domain.StatusPaid, 1))
		require.NoError(t, err)
		assert.True(t, updated.UpdatedAt.After(p.UpdatedAt))
		assert.Equal(t, p.CreatedAt, updated.CreatedAt)
	})

	t.Run("stale version rejected", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)
		ctx := context.Background()
		p := Payment(1, clock.Now())
		_, err := s.Create(ctx, p)
		require.NoError(t, err)
		_, err = s.Update(ctx, p.ID, domain.StatusPatch(domain.StatusPaid, 1))
		require.NoError(t, err)

		var conflict *domain.ConflictError
		_, err = s.Update(ctx, p.ID, domain.StatusPatch(domain.StatusCanceled, 1))
		require.True(t, errors.As(err, &conflict))

		stored, err := s.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, stored.Status)
	})
}
