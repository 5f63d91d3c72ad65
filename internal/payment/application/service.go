package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmehra2102/payment-console/internal/payment/domain"
)

type CreatePaymentInput struct {
	Amount          int64           `validate:"gt=0"`
	Currency        domain.Currency `validate:"supported_currency"`
	MerchantOrderID string          `validate:"required"`
}

type ListQuery struct {
	Search string
	Status string
}

type Service struct {
	log       *slog.Logger
	store     PaymentStore
	publisher EventPublisher
	ids       domain.IDGenerator
	now       func() time.Time
	validate  *validator.Validate
}

type Option func(*Service)

func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }

func WithIDGenerator(g domain.IDGenerator) Option { return func(s *Service) { s.ids = g } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(log *slog.Logger, store PaymentStore, opts ...Option) *Service {
	v := validator.New()
	if err := v.RegisterValidation("supported_currency", func(fl validator.FieldLevel) bool {
		return domain.Currency(fl.Field().String()).Supported()
	}); err != nil {
		panic(fmt.Sprintf("register currency validation: %v", err))
	}

	s := &Service{
		log:       log,
		store:     store,
		publisher: NopPublisher{},
		ids:       domain.RandomIDs{},
		now:       time.Now,
		validate:  v,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (domain.Payment, error) {
	in.MerchantOrderID = strings.TrimSpace(in.MerchantOrderID)
	in.Currency = domain.Currency(strings.ToUpper(strings.TrimSpace(string(in.Currency))))
	if in.Currency == "" {
		in.Currency = domain.DefaultCurrency
	}
	if err := s.validateInput(in); err != nil {
		return domain.Payment{}, err
	}

	id, err := s.ids.SystemID()
	if err != nil {
		return domain.Payment{}, err
	}
	publicID, err := s.ids.PublicID()
	if err != nil {
		return domain.Payment{}, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	p := domain.Payment{
		ID:              id,
		PublicID:        publicID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Status:          domain.StatusPending,
		MerchantOrderID: in.MerchantOrderID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}

	created, err := s.store.Create(ctx, p)
	if err != nil {
		return domain.Payment{}, err
	}
	s.log.Info("payment created", "payment_id", created.ID, "merchant_order_id", created.MerchantOrderID, "amount", created.Amount)
	s.publish(ctx, created)
	return created, nil
}

func (s *Service) MarkPaid(ctx context.Context, publicID string) (domain.Payment, error) {
	return s.transition(ctx, publicID, domain.StatusPaid)
}

func (s *Service) MarkCanceled(ctx context.Context, publicID string) (domain.Payment, error) {
	return s.transition(ctx, publicID, domain.StatusCanceled)
}

func (s *Service) transition(ctx context.Context, publicID string, to domain.Status) (domain.Payment, error) {
	p, err := s.store.GetByPublicID(ctx, publicID)
	if err != nil {
		return domain.Payment{}, err
	}
	if err := p.CanTransitionTo(to); err != nil {
		return domain.Payment{}, err
	}

	updated, err := s.store.Update(ctx, p.ID, domain.StatusPatch(to, p.Version))
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		// Someone else moved it first; report what they left behind.
		current, getErr := s.store.GetByID(ctx, p.ID)
		if getErr != nil {
			return domain.Payment{}, getErr
		}
		if stateErr := current.CanTransitionTo(to); stateErr != nil {
			return domain.Payment{}, stateErr
		}
		return domain.Payment{}, err
	}
	if err != nil {
		return domain.Payment{}, err
	}

	s.log.Info("payment status changed", "payment_id", updated.ID, "from", p.Status, "to", updated.Status)
	s.publish(ctx, updated)
	return updated, nil
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]domain.Payment, error) {
	status, err := domain.ParseStatusFilter(q.Status)
	if err != nil {
		return nil, err
	}
	all, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterAndSort(all, q.Search, status), nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Payment, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) GetByPublicID(ctx context.Context, publicID string) (domain.Payment, error) {
	return s.store.GetByPublicID(ctx, publicID)
}

func (s *Service) validateInput(in CreatePaymentInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Reason: err.Error()}
	}
	switch fe := verrs[0]; fe.Field() {
	case "Amount":
		return &domain.ValidationError{Field: "amount", Reason: "Invalid amount"}
	case "MerchantOrderID":
		return &domain.ValidationError{Field: "merchantOrderId", Reason: "Merchant Order ID is required"}
	case "Currency":
		return &domain.ValidationError{Field: "currency", Reason: fmt.Sprintf("Unsupported currency %q", in.Currency)}
	default:
		return &domain.ValidationError{Field: fe.Field(), Reason: fe.Error()}
	}
}

// publish is best effort: the state change is already persisted.
func (s *Service) publish(ctx context.Context, p domain.Payment) {
	eventType, event := domain.EventFor(p)
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("event marshal failed", "payment_id", p.ID, "err", err)
		return
	}
	if err := s.publisher.Publish(ctx, eventType, p.ID, payload); err != nil {
		s.log.Error("event publish failed", "payment_id", p.ID, "type", eventType, "err", err)
	}
}
