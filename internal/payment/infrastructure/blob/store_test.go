package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/payment-console/internal/payment/application"
	"github.com/dmehra2102/payment-console/internal/payment/domain"
	"github.com/dmehra2102/payment-console/internal/payment/storetest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestStoreContract(t *testing.T) {
	backends := map[string]func(t *testing.T) KV{
		"memory": func(t *testing.T) KV { return NewMemoryKV() },
		"file": func(t *testing.T) KV {
			kv, err := NewFileKV(t.TempDir())
			require.NoError(t, err)
			return kv
		},
		"redis": func(t *testing.T) KV { return NewRedisKV(newRedisClient(t)) },
	}
	for name, newKV := range backends {
		t.Run(name, func(t *testing.T) {
			storetest.Run(t, func(t *testing.T, now func() time.Time) application.PaymentStore {
				return NewStore(discardLogger(), newKV(t), "", now)
			})
		})
	}
}

const legacyArray = `[
  {
    "id": "pay_m1abc123xyz",
    "publicId": "AbCdEfGhIjKlMnOpQrStUvWxYz012345",
    "amount": 1000,
    "currency": "EGP",
    "status": "pending",
    "merchantOrderId": "ORDER-1",
    "createdAt": "2025-01-01T10:00:00.000Z",
    "updatedAt": "2025-01-01T10:00:00.000Z"
  }
]`

func TestReadsLegacyArray(t *testing.T) {
	kv := NewMemoryKV()
	kv.Set(DefaultKey, []byte(legacyArray))
	s := NewStore(discardLogger(), kv, DefaultKey, nil)
	ctx := context.Background()

	p, err := s.GetByPublicID(ctx, "AbCdEfGhIjKlMnOpQrStUvWxYz012345")
	require.NoError(t, err)
	assert.Equal(t, "pay_m1abc123xyz", p.ID)
	assert.Equal(t, int64(0), p.Version)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt)

	// First write upgrades the layout.
	_, err = s.Update(ctx, p.ID, domain.StatusPatch(domain.StatusPaid, 0))
	require.NoError(t, err)

	raw, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, schemaVersion, doc.SchemaVersion)
	assert.Equal(t, int64(1), doc.Revision)
	require.Len(t, doc.Payments, 1)
	assert.Equal(t, domain.StatusPaid, doc.Payments[0].Status)
}

func TestCorruptDocument(t *testing.T) {
	kv := NewMemoryKV()
	kv.Set(DefaultKey, []byte("{not json"))
	s := NewStore(discardLogger(), kv, DefaultKey, nil)
	ctx := context.Background()

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	var nf *domain.NotFoundError
	_, err = s.GetByID(ctx, "pay_x")
	assert.True(t, errors.As(err, &nf))

	_, err = s.Create(ctx, storetest.Payment(1, time.Now().UTC()))
	var storageErr *domain.StorageError
	require.True(t, errors.As(err, &storageErr))

	raw, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw), "corrupt data must not be overwritten")
}

func TestNewerSchemaRefused(t *testing.T) {
	kv := NewMemoryKV()
	kv.Set(DefaultKey, []byte(`{"schemaVersion": 99, "payments": []}`))
	s := NewStore(discardLogger(), kv, DefaultKey, nil)

	_, err := s.Create(context.Background(), storetest.Payment(1, time.Now().UTC()))
	var storageErr *domain.StorageError
	assert.True(t, errors.As(err, &storageErr))
}

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingKV) Update(context.Context, string, func([]byte) ([]byte, error)) error {
	return f.err
}

func TestBackendFailuresPropagate(t *testing.T) {
	s := NewStore(discardLogger(), failingKV{err: errors.New("disk gone")}, "", nil)
	ctx := context.Background()
	var storageErr *domain.StorageError

	_, err := s.GetAll(ctx)
	assert.True(t, errors.As(err, &storageErr))

	_, err = s.Create(ctx, storetest.Payment(1, time.Now().UTC()))
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "create", storageErr.Op)
}

func TestFileKVLayout(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	s := NewStore(discardLogger(), kv, "console", nil)

	_, err = s.Create(context.Background(), storetest.Payment(1, time.Now().UTC()))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "console.json"))
	assert.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileKVSharedDirectoryWriters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// Separate FileKV values stand in for the server and the CLI.
	kvA, err := NewFileKV(dir)
	require.NoError(t, err)
	kvB, err := NewFileKV(dir)
	require.NoError(t, err)
	a := NewStore(discardLogger(), kvA, "shared", nil)
	b := NewStore(discardLogger(), kvB, "shared", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := a
			if i%2 == 1 {
				s = b
			}
			_, err := s.Create(ctx, storetest.Payment(i, time.Now().UTC()))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := a.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestRedisConcurrentWriters(t *testing.T) {
	rdb := newRedisClient(t)
	ctx := context.Background()

	// Two stores over the same key stand in for two console instances.
	a := NewStore(discardLogger(), NewRedisKV(rdb), "shared", nil)
	b := NewStore(discardLogger(), NewRedisKV(rdb), "shared", nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		s := a
		if i%2 == 1 {
			s = b
		}
		wg.Add(1)
		go func(n int, s *Store) {
			defer wg.Done()
			_, err := s.Create(ctx, storetest.Payment(n, time.Now().UTC()))
			errs <- err
		}(i, s)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		}
	}
	all, err := a.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, created, fmt.Sprintf("lost updates: %d created, %d stored", created, len(all)))
	assert.Positive(t, created)
}
