package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/payment-console/internal/config"
	"github.com/dmehra2102/payment-console/internal/payment/application"
)

func TestBuildBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := map[string]config.Config{
		"memory": {StoreBackend: config.BackendMemory},
		"file":   {StoreBackend: config.BackendFile, StoreDir: t.TempDir(), StoreKey: "payments"},
		"redis":  {StoreBackend: config.BackendRedis, RedisAddr: mr.Addr(), StoreKey: "payments"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			app, err := Build(context.Background(), log, cfg)
			require.NoError(t, err)
			defer app.Close()
			assert.Nil(t, app.Relay)

			ctx := context.Background()
			p, err := app.Service.CreatePayment(ctx, application.CreatePaymentInput{Amount: 1000, MerchantOrderID: "ORDER-1"})
			require.NoError(t, err)
			got, err := app.Service.GetByPublicID(ctx, p.PublicID)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestBuildRedisIdempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := Build(context.Background(), log, config.Config{StoreBackend: config.BackendMemory, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	defer app.Close()
	assert.NotNil(t, app.Idempotency)
}

func TestBuildUnknownBackend(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := Build(context.Background(), log, config.Config{StoreBackend: "tape"})
	assert.Error(t, err)
}
