package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/payment-console/internal/payment/domain"
	"github.com/dmehra2102/payment-console/pkg/tracing"
)

const uniqueViolation = "23505"

const paymentColumns = `id, public_id, amount, currency, status, merchant_order_id, created_at, updated_at, version`

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	now    func() time.Time
	outbox bool
}

type Option func(*Repository)

// WithOutbox writes a lifecycle event to the outbox table in the same
// transaction as every create and update.
func WithOutbox() Option { return func(r *Repository) { r.outbox = true } }

func WithClock(now func() time.Time) Option { return func(r *Repository) { r.now = now } }

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{log: log, pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var (
		p                domain.Payment
		currency, status string
	)
	err := row.Scan(&p.ID, &p.PublicID, &p.Amount, &currency, &status, &p.MerchantOrderID, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return domain.Payment{}, err
	}
	p.Currency = domain.Currency(currency)
	p.Status = domain.Status(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (r *Repository) GetAll(ctx context.Context) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY seq`)
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "list", Err: err}
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	return payments, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	return r.getOne(ctx, "id", `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
}

func (r *Repository) GetByPublicID(ctx context.Context, publicID string) (domain.Payment, error) {
	return r.getOne(ctx, "publicId", `SELECT `+paymentColumns+` FROM payments WHERE public_id=$1`, publicID)
}

func (r *Repository) getOne(ctx context.Context, key, query, value string) (domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, query, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, &domain.NotFoundError{Key: key, Value: value}
	}
	if err != nil {
		return domain.Payment{}, &domain.StorageError{Op: "get", Err: err}
	}
	return p, nil
}

func (r *Repository) Create(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO payments (`+paymentColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			p.ID, p.PublicID, p.Amount, string(p.Currency), string(p.Status), p.MerchantOrderID, p.CreatedAt, p.UpdatedAt, p.Version)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &domain.ConflictError{ID: p.ID, Reason: "identifier already exists (" + pgErr.ConstraintName + ")"}
		}
		if err != nil {
			return err
		}
		return r.writeOutbox(ctx, tx, p)
	})
	if err != nil {
		return domain.Payment{}, storageErr("create", err)
	}
	return p, nil
}

func (r *Repository) Update(ctx context.Context, id string, patch domain.Patch) (domain.Payment, error) {
	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	var updated domain.Payment
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE payments
			SET status = COALESCE($2, status), version = version + 1,
			    updated_at = GREATEST($3::timestamptz, updated_at + interval '1 millisecond')
			WHERE id = $1 AND ($4::bigint IS NULL OR version = $4)
			RETURNING `+paymentColumns,
			id, status, r.now().UTC().Truncate(time.Millisecond), patch.IfVersion)

		var err error
		updated, err = scanPayment(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missOrConflict(ctx, tx, id, patch)
		}
		if err != nil {
			return err
		}
		return r.writeOutbox(ctx, tx, updated)
	})
	if err != nil {
		return domain.Payment{}, storageErr("update", err)
	}
	return updated, nil
}

func (r *Repository) missOrConflict(ctx context.Context, tx pgx.Tx, id string, patch domain.Patch) error {
	var version int64
	err := tx.QueryRow(ctx, `SELECT version FROM payments WHERE id=$1`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.NotFoundError{Key: "id", Value: id}
	}
	if err != nil {
		return err
	}
	_, err = domain.Payment{ID: id, Version: version}.Apply(patch, time.Time{})
	return err
}

func (r *Repository) writeOutbox(ctx context.Context, tx pgx.Tx, p domain.Payment) error {
	if !r.outbox {
		return nil
	}
	eventType, event := domain.EventFor(p)
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	headers := map[string]string{"source": "payment-console"}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"payment", p.ID, eventType, payload, headers, tracing.Traceparent(ctx))
	return err
}

func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func storageErr(op string, err error) error {
	var (
		conflict *domain.ConflictError
		notFound *domain.NotFoundError
	)
	if errors.As(err, &conflict) || errors.As(err, &notFound) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
