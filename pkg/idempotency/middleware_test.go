package idempotency

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Minute), mr
}

func TestMiddleware(t *testing.T) {
	store, mr := newTestStore(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	status := http.StatusCreated
	calls := 0
	h := Middleware(log, store, "create-payment")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		if key != "" {
			req.Header.Set(Header, key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, do("k1"))
	assert.Equal(t, http.StatusConflict, do("k1"))
	assert.Equal(t, 1, calls)

	assert.Equal(t, http.StatusCreated, do(""))
	assert.Equal(t, http.StatusCreated, do(""))
	assert.Equal(t, 3, calls)

	status = http.StatusInternalServerError
	assert.Equal(t, http.StatusInternalServerError, do("k2"))
	assert.False(t, mr.Exists("idem:create-payment:k2"))

	mr.FastForward(2 * time.Minute)
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, do("k1"))
}

func TestKeysAreScopedPerOperation(t *testing.T) {
	store, mr := newTestStore(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	for _, scope := range []string{"create-payment", "mark-paid"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(Header, "same-key")
		rec := httptest.NewRecorder()
		Middleware(log, store, scope)(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, scope)
	}
	assert.True(t, mr.Exists("idem:create-payment:same-key"))
	assert.True(t, mr.Exists("idem:mark-paid:same-key"))
}
