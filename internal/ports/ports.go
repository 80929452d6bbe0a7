// Package ports declares the interfaces the clearing core uses to
// reach external collaborators — compliance, risk, the bank adapter,
// settlement, and FX pricing. Per the out-of-scope boundary, only
// local stub/fake implementations ship here; production adapters live
// outside this module.
package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/domain"
)

// RiskReviewer approves or rejects a settlement instruction before
// hand-off (§4.4 step 6).
type RiskReviewer interface {
	ReviewInstruction(ctx context.Context, instr domain.SettlementInstruction) (approved bool, err error)
}

// SettlementPublisher hands a settlement instruction off to the
// external settlement collaborator (§4.4 step 7).
type SettlementPublisher interface {
	RequestSettlement(ctx context.Context, instr domain.SettlementInstruction) error
}

// ComplianceClient submits a payment for a compliance vote.
type ComplianceClient interface {
	Review(ctx context.Context, p domain.Payment) (domain.Vote, string, error)
}

// RiskClient submits a payment for a risk vote.
type RiskClient interface {
	Score(ctx context.Context, p domain.Payment) (domain.Vote, string, error)
}

// BankBalanceProvider is polled by reconciliation Tier 2 for an
// account's current bank-reported balance.
type BankBalanceProvider interface {
	CurrentBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// FXProvider supplies a spot rate for cross-currency route
// optimization (§4.4 step 4), consumed only when present.
type FXProvider interface {
	Rate(ctx context.Context, from, to domain.Currency) (decimal.Decimal, bool, error)
}
