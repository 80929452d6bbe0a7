// Package domain defines the shared data model of the clearing core:
// banks, payments, obligations, clearing windows, net positions,
// settlement instructions, EMI accounts, reconciliation snapshots and
// discrepancies, decision records, and idempotency records. Amounts use
// shopspring/decimal throughout so conservation invariants can be
// checked exactly; identifiers use google/uuid.
package domain

import "github.com/google/uuid"

// BankID identifies a participant bank.
type BankID string

// Currency is an ISO 4217 currency code (e.g. "USD", "SGD").
type Currency string

// NewID generates a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}
