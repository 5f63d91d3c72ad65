package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublicID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		id, err := NewPublicID()
		require.NoError(t, err)
		require.Len(t, id, PublicIDLength)
		assert.True(t, ValidPublicID(id), "bad alphabet in %q", id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate public id %q", id)
		seen[id] = struct{}{}
	}
}

func TestNewSystemID(t *testing.T) {
	a, err := NewSystemID()
	require.NoError(t, err)
	b, err := NewSystemID()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, SystemIDPrefix))
	assert.Len(t, a, len(SystemIDPrefix)+32)
	assert.NotEqual(t, a, b)
}

func TestValidPublicID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdef", true},
		{"0123456789abcdefghijABCDEFGHIJKL", true},
		{"short", false},
		{"ABCDEFGHIJKLMNOPQRSTUVWXYZabcde-", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPublicID(tt.in), tt.in)
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusCanceled, true},
		{StatusPending, StatusPending, false},
		{StatusPaid, StatusCanceled, false},
		{StatusPaid, StatusPaid, false},
		{StatusCanceled, StatusPaid, false},
		{StatusCanceled, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := Payment{Status: tt.from}.CanTransitionTo(tt.to)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			var stateErr *InvalidStateError
			require.True(t, errors.As(err, &stateErr))
			assert.Equal(t, tt.from, stateErr.From)
		})
	}
}

func TestApply(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	later := created.Add(time.Minute)
	p := Payment{ID: "pay_1", Status: StatusPending, CreatedAt: created, UpdatedAt: created, Version: 1}

	got, err := p.Apply(StatusPatch(StatusPaid, 1), later)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, later, got.UpdatedAt)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, StatusPending, p.Status, "receiver must not change")

	_, err = p.Apply(StatusPatch(StatusPaid, 7), later)
	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))

	touched, err := p.Apply(Patch{}, later)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, touched.Status)
	assert.Equal(t, later, touched.UpdatedAt)
}

func TestApplyAdvancesUpdatedAtWithinSameMillisecond(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	p := Payment{ID: "pay_1", Status: StatusPending, CreatedAt: created, UpdatedAt: created, Version: 1}

	tests := map[string]time.Time{
		"same instant": created,
		"clock behind": created.Add(-time.Second),
	}
	for name, now := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := p.Apply(StatusPatch(StatusPaid, 1), now)
			require.NoError(t, err)
			assert.Equal(t, created.Add(time.Millisecond), got.UpdatedAt)
			assert.Equal(t, created, got.CreatedAt)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10.00 EGP", FormatAmount(1000, CurrencyEGP))
	assert.Equal(t, "0.05 USD", FormatAmount(5, CurrencyUSD))
	assert.Equal(t, "1234.56 EUR", FormatAmount(123456, CurrencyEUR))
}

func TestEventForOmitsPublicID(t *testing.T) {
	p := Payment{ID: "pay_1", PublicID: "secret", Status: StatusCanceled}
	typ, ev := EventFor(p)
	assert.Equal(t, EventPaymentCanceled, typ)
	assert.Equal(t, "pay_1", ev.PaymentID)
}
