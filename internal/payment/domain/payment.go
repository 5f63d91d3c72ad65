package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCanceled
}

type Currency string

const (
	CurrencyEGP Currency = "EGP"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"

	DefaultCurrency = CurrencyEGP
)

var SupportedCurrencies = []Currency{CurrencyEGP, CurrencyUSD, CurrencyEUR}

func (c Currency) Supported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

type Payment struct {
	ID              string    `json:"id"`
	PublicID        string    `json:"publicId"`
	Amount          int64     `json:"amount"`
	Currency        Currency  `json:"currency"`
	Status          Status    `json:"status"`
	MerchantOrderID string    `json:"merchantOrderId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Version         int64     `json:"version"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status *Status
	// IfVersion makes the update conditional on the stored version.
	IfVersion *int64
}

func StatusPatch(to Status, ifVersion int64) Patch {
	return Patch{Status: &to, IfVersion: &ifVersion}
}

// Apply merges the patch into p and stamps the mutation. UpdatedAt always
// moves forward, by at least a millisecond when now does not.
func (p Payment) Apply(patch Patch, now time.Time) (Payment, error) {
	if patch.IfVersion != nil && *patch.IfVersion != p.Version {
		return Payment{}, &ConflictError{ID: p.ID, Reason: fmt.Sprintf("version %d, expected %d", p.Version, *patch.IfVersion)}
	}
	if !now.After(p.UpdatedAt) {
		now = p.UpdatedAt.Add(time.Millisecond)
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	p.Version++
	p.UpdatedAt = now
	return p, nil
}

// CanTransitionTo returns nil when p may move to target.
func (p Payment) CanTransitionTo(target Status) error {
	if p.Status == StatusPending && target.IsTerminal() {
		return nil
	}
	return &InvalidStateError{PublicID: p.PublicID, From: p.Status, To: target}
}

// FormatAmount renders minor units as "10.00 EGP".
func FormatAmount(amount int64, currency Currency) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, currency)
}

func (p Payment) DisplayAmount() string {
	return FormatAmount(p.Amount, p.Currency)
}
