package application

import (
	"context"

	"github.com/dmehra2102/payment-console/internal/payment/domain"
)

// PaymentStore owns the payment collection. Lookups return
// *domain.NotFoundError on a miss; persistence failures come back as
// *domain.StorageError.
type PaymentStore interface {
	GetAll(ctx context.Context) ([]domain.Payment, error)
	GetByID(ctx context.Context, id string) (domain.Payment, error)
	GetByPublicID(ctx context.Context, publicID string) (domain.Payment, error)
	Create(ctx context.Context, p domain.Payment) (domain.Payment, error)
	Update(ctx context.Context, id string, patch domain.Patch) (domain.Payment, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, aggregateID string, payload []byte) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, []byte) error { return nil }
