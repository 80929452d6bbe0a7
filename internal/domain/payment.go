package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/corerr"
)

// PaymentStatus is the lifecycle state of one atomic cross-border
// payment as it moves through compliance, risk, liquidity hold,
// obligation creation, clearing, settlement, and completion.
type PaymentStatus string

const (
	PaymentInitiated   PaymentStatus = "Initiated"
	PaymentCompliance  PaymentStatus = "Compliance"
	PaymentRisk        PaymentStatus = "Risk"
	PaymentLiquidity   PaymentStatus = "LiquidityHeld"
	PaymentObligated   PaymentStatus = "Obligated"
	PaymentCleared     PaymentStatus = "Cleared"
	PaymentSettled     PaymentStatus = "Settled"
	PaymentCompleted   PaymentStatus = "Completed"
	PaymentRejected    PaymentStatus = "Rejected"
	PaymentCompensated PaymentStatus = "Compensated"
)

// paymentTransitions enumerates the legal status moves (§9). Rejected
// is reachable from any pre-Obligated stage; Compensated only follows
// a rollback initiated after Obligated.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentInitiated:  {PaymentCompliance, PaymentRejected},
	PaymentCompliance: {PaymentRisk, PaymentRejected},
	PaymentRisk:       {PaymentLiquidity, PaymentRejected},
	PaymentLiquidity:  {PaymentObligated, PaymentRejected},
	PaymentObligated:  {PaymentCleared, PaymentCompensated},
	PaymentCleared:    {PaymentSettled, PaymentCompensated},
	PaymentSettled:    {PaymentCompleted},
}

// CanTransitionPayment reports whether moving from from to to is legal.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Payment is one atomic cross-border payment request.
type Payment struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	UETR           string          `json:"uetr"`
	Currency       Currency        `json:"currency"`
	Payer          BankID          `json:"payer"`
	Payee          BankID          `json:"payee"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PaymentStatus   `json:"status"`
	WindowID       string          `json:"window_id,omitempty"`
	ObligationID   string          `json:"obligation_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewPayment constructs a fresh payment in the Initiated state. Rejects
// a non-positive amount with a Validation error.
func NewPayment(idempotencyKey string, currency Currency, payer, payee BankID, amount decimal.Decimal) (Payment, error) {
	if amount.Sign() <= 0 {
		return Payment{}, corerr.New(corerr.KindValidation, "payment amount must be greater than zero")
	}
	now := time.Now()
	return Payment{
		ID:             NewID(),
		IdempotencyKey: idempotencyKey,
		UETR:           NewID(),
		Currency:       currency,
		Payer:          payer,
		Payee:          payee,
		Amount:         amount,
		Status:         PaymentInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
