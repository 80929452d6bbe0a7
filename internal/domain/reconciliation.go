package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscrepancySeverity classifies the magnitude of a drift observation
// against the configured threshold bands.
type DiscrepancySeverity string

const (
	SeverityOk        DiscrepancySeverity = "Ok"
	SeverityMinor     DiscrepancySeverity = "Minor"
	SeverityChallenge DiscrepancySeverity = "Significant"
	SeverityCritical  DiscrepancySeverity = "Critical"
)

// DiscrepancyType names the kind of mismatch a reconciliation pass found.
type DiscrepancyType string

const (
	DiscrepancyBalanceMismatch DiscrepancyType = "BalanceMismatch"
	DiscrepancyMissingTxn      DiscrepancyType = "MissingTxn"
	DiscrepancyDuplicateTxn    DiscrepancyType = "DuplicateTxn"
	DiscrepancyAmountMismatch  DiscrepancyType = "AmountMismatch"
)

// Thresholds is the drift-band configuration: ratio bounds at which a
// discrepancy escalates from Ok through Minor/Significant to Critical.
// A ledger balance exceeding the bank-reported balance is always
// Critical regardless of ratio, matching the stricter-than-symmetric
// bias of the EMI account model.
type Thresholds struct {
	Minor       float64
	Significant float64
	Critical    float64
}

// Classify returns the severity of a drift given the ledger and
// bank-reported balances.
func (t Thresholds) Classify(ledger, bankReported decimal.Decimal) DiscrepancySeverity {
	if bankReported.IsZero() {
		if ledger.IsZero() {
			return SeverityOk
		}
		return SeverityCritical
	}

	diff := ledger.Sub(bankReported).Abs()
	denom := decimal.Max(bankReported.Abs(), decimal.NewFromInt(1))
	ratio, _ := diff.Div(denom).Float64()

	if ledger.GreaterThan(bankReported) {
		return SeverityCritical
	}

	switch {
	case ratio >= t.Critical:
		return SeverityCritical
	case ratio >= t.Significant:
		return SeverityChallenge
	case ratio >= t.Minor:
		return SeverityMinor
	default:
		return SeverityOk
	}
}

// AccountSnapshot is one point-in-time comparison of an EMI account's
// internal ledger balance against the bank-reported balance.
type AccountSnapshot struct {
	ID         string              `json:"id"`
	AccountID  string              `json:"account_id"`
	Tier       int                 `json:"tier"`
	LedgerBal  decimal.Decimal     `json:"ledger_balance"`
	BankBal    decimal.Decimal     `json:"bank_balance"`
	Severity   DiscrepancySeverity `json:"severity"`
	ObservedAt time.Time           `json:"observed_at"`
}

// Discrepancy records one reconciliation finding requiring operator
// attention or automatic circuit-breaker action.
type Discrepancy struct {
	ID         string              `json:"id"`
	AccountID  string              `json:"account_id"`
	Type       DiscrepancyType     `json:"type"`
	Severity   DiscrepancySeverity `json:"severity"`
	LedgerBal  decimal.Decimal     `json:"ledger_balance"`
	BankBal    decimal.Decimal     `json:"bank_balance"`
	DetectedAt time.Time           `json:"detected_at"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty"`
}

// BreakerStatus is the persisted state of an EMI account's business-rule
// circuit breaker (distinct from the process-local resilience breaker).
type BreakerStatus string

const (
	BreakerClosed BreakerStatus = "Closed"
	BreakerOpen   BreakerStatus = "Open"
)

// EMIAccount is one e-money-institution settlement account tracked by
// reconciliation.
type EMIAccount struct {
	ID                  string          `json:"id"`
	BankID              BankID          `json:"bank_id"`
	Currency            Currency        `json:"currency"`
	LedgerBalance       decimal.Decimal `json:"ledger_balance"`
	BankReportedBalance decimal.Decimal `json:"bank_reported_balance"`
	Reserved            decimal.Decimal `json:"reserved"`
	Breaker             BreakerStatus   `json:"breaker_status"`
	BreakerReason       string          `json:"breaker_reason,omitempty"`
	BreakerOpenedAt     *time.Time      `json:"breaker_opened_at,omitempty"`
	BreakerActor        string          `json:"breaker_actor,omitempty"`
	// PendingReadmission is set when an operator resets an open breaker;
	// it stays true (mint/payout still blocked) until the next Tier-2
	// pass observes Ok, per the reset contract.
	PendingReadmission bool `json:"pending_readmission"`
	// Version supports CAS updates, mirroring ClearingWindow.Version.
	Version int64 `json:"version"`
}

// Available is the balance free to reserve: ledger less what is
// already held.
func (a EMIAccount) Available() decimal.Decimal {
	return a.LedgerBalance.Sub(a.Reserved)
}

// Blocked reports whether mint/payout must be refused for this
// account: an open breaker, or a reset awaiting re-admission.
func (a EMIAccount) Blocked() bool {
	return a.Breaker == BreakerOpen || a.PendingReadmission
}
