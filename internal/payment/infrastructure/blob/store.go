// Package blob persists the whole payment collection as one JSON document
// under a single key. Every mutation rewrites the document.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/payment-console/internal/payment/domain"
)

const (
	DefaultKey = "payments_mock_data"

	schemaVersion = 1
)

// document is the persisted layout. Version 0 is the legacy bare array.
type document struct {
	SchemaVersion int              `json:"schemaVersion"`
	Revision      int64            `json:"revision"`
	Payments      []domain.Payment `json:"payments"`
}

var errCorrupt = errors.New("persisted payments are unreadable")

func decode(data []byte) (document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return document{SchemaVersion: schemaVersion}, nil
	}

	var doc document
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &doc.Payments); err != nil {
			return document{}, fmt.Errorf("%w: %v", errCorrupt, err)
		}
	case '{':
		if err := json.Unmarshal(data, &doc); err != nil {
			return document{}, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		if doc.SchemaVersion > schemaVersion {
			return document{}, fmt.Errorf("%w: schema version %d is newer than %d", errCorrupt, doc.SchemaVersion, schemaVersion)
		}
	default:
		return document{}, errCorrupt
	}
	return doc, nil
}

func encode(doc document) ([]byte, error) {
	doc.SchemaVersion = schemaVersion
	if doc.Payments == nil {
		doc.Payments = []domain.Payment{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

type Store struct {
	log *slog.Logger
	kv  KV
	key string
	now func() time.Time
}

func NewStore(log *slog.Logger, kv KV, key string, now func() time.Time) *Store {
	if key == "" {
		key = DefaultKey
	}
	if now == nil {
		now = time.Now
	}
	return &Store{log: log, kv: kv, key: key, now: now}
}

// load reads the document. An undecodable document is logged and read as
// empty; a failing backend is reported.
func (s *Store) load(ctx context.Context) (document, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return document{}, &domain.StorageError{Op: "read", Err: err}
	}
	doc, err := decode(data)
	if err != nil {
		s.log.Error("payments blob unreadable, treating as empty", "key", s.key, "err", err)
		return document{SchemaVersion: schemaVersion}, nil
	}
	return doc, nil
}

func (s *Store) GetAll(ctx context.Context) ([]domain.Payment, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if doc.Payments == nil {
		return []domain.Payment{}, nil
	}
	return doc.Payments, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return domain.Payment{}, err
	}
	for _, p := range doc.Payments {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Payment{}, &domain.NotFoundError{Key: "id", Value: id}
}

func (s *Store) GetByPublicID(ctx context.Context, publicID string) (domain.Payment, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return domain.Payment{}, err
	}
	for _, p := range doc.Payments {
		if p.PublicID == publicID {
			return p, nil
		}
	}
	return domain.Payment{}, &domain.NotFoundError{Key: "publicId", Value: publicID}
}

func (s *Store) Create(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	err := s.mutate(ctx, func(doc *document) error {
		for _, existing := range doc.Payments {
			if existing.ID == p.ID {
				return &domain.ConflictError{ID: p.ID, Reason: "id already exists"}
			}
			if existing.PublicID == p.PublicID {
				return &domain.ConflictError{ID: p.ID, Reason: "public id already exists"}
			}
		}
		doc.Payments = append(doc.Payments, p)
		return nil
	})
	if err != nil {
		return domain.Payment{}, storageErr("create", err)
	}
	return p, nil
}

func (s *Store) Update(ctx context.Context, id string, patch domain.Patch) (domain.Payment, error) {
	var updated domain.Payment
	err := s.mutate(ctx, func(doc *document) error {
		for i, p := range doc.Payments {
			if p.ID != id {
				continue
			}
			next, err := p.Apply(patch, s.now().UTC().Truncate(time.Millisecond))
			if err != nil {
				return err
			}
			doc.Payments[i] = next
			updated = next
			return nil
		}
		return &domain.NotFoundError{Key: "id", Value: id}
	})
	if err != nil {
		return domain.Payment{}, storageErr("update", err)
	}
	return updated, nil
}

// mutate is the read-modify-write cycle. A corrupt document is never overwritten.
func (s *Store) mutate(ctx context.Context, fn func(*document) error) error {
	return s.kv.Update(ctx, s.key, func(cur []byte) ([]byte, error) {
		doc, err := decode(cur)
		if err != nil {
			return nil, &domain.StorageError{Op: "decode", Err: err}
		}
		if err := fn(&doc); err != nil {
			return nil, err
		}
		doc.Revision++
		return encode(doc)
	})
}

// storageErr leaves domain errors alone and wraps everything else.
func storageErr(op string, err error) error {
	var (
		conflict *domain.ConflictError
		notFound *domain.NotFoundError
		storage  *domain.StorageError
	)
	if errors.As(err, &conflict) || errors.As(err, &notFound) || errors.As(err, &storage) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
