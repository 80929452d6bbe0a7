package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObligationStatus is the lifecycle state of a single debt-graph edge.
type ObligationStatus string

const (
	ObligationPending   ObligationStatus = "Pending"
	ObligationNetted    ObligationStatus = "Netted"
	ObligationSettled   ObligationStatus = "Settled"
	ObligationCancelled ObligationStatus = "Cancelled"
)

// obligationTransitions enumerates the legal status moves; anything not
// listed here is rejected by Obligation.CanTransition.
var obligationTransitions = map[ObligationStatus][]ObligationStatus{
	ObligationPending: {ObligationNetted, ObligationCancelled},
	ObligationNetted:  {ObligationSettled, ObligationCancelled},
}

// Obligation is one directed debt owed by Payer to Payee in Currency,
// contributed to a clearing window's debt graph by a single payment.
type Obligation struct {
	ID        string           `json:"id"`
	WindowID  string           `json:"window_id"`
	PaymentID string           `json:"payment_id"`
	Currency  Currency         `json:"currency"`
	Payer     BankID           `json:"payer"`
	Payee     BankID           `json:"payee"`
	Amount    decimal.Decimal  `json:"amount"`
	Status    ObligationStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	PreCutoff bool             `json:"pre_cutoff"`
}

// CanTransition reports whether moving from the obligation's current
// status to to is a legal move.
func (o Obligation) CanTransition(to ObligationStatus) bool {
	for _, s := range obligationTransitions[o.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// NewObligation constructs a Pending obligation rejecting self-loops
// (payer == payee) and non-positive amounts, per the debt graph's
// add() contract.
func NewObligation(windowID, paymentID string, currency Currency, payer, payee BankID, amount decimal.Decimal) (Obligation, bool) {
	if payer == payee || amount.Sign() <= 0 {
		return Obligation{}, false
	}
	return Obligation{
		ID:        NewID(),
		WindowID:  windowID,
		PaymentID: paymentID,
		Currency:  currency,
		Payer:     payer,
		Payee:     payee,
		Amount:    amount,
		Status:    ObligationPending,
		CreatedAt: time.Now(),
	}, true
}

// NetPosition is one unordered bank pair's bilateral net position in
// one currency after cycle elimination. BankA/BankB are ordered
// lexicographically so the pair is a stable key regardless of flow
// direction; GrossAB/GrossBA are the surviving directional exposures
// the net was computed from.
type NetPosition struct {
	WindowID         string          `json:"window_id"`
	Currency         Currency        `json:"currency"`
	BankA            BankID          `json:"bank_a"`
	BankB            BankID          `json:"bank_b"`
	GrossAB          decimal.Decimal `json:"gross_ab"`
	GrossBA          decimal.Decimal `json:"gross_ba"`
	Net              decimal.Decimal `json:"net"`
	Payer            BankID          `json:"payer"`
	Payee            BankID          `json:"payee"`
	ObligationsCount int             `json:"obligations_count"`
	Saved            decimal.Decimal `json:"saved"`
}

// SettlementInstruction is one payment leg produced after netting, to
// be handed to the settlement collaborator.
type SettlementInstruction struct {
	ID       string          `json:"id"`
	WindowID string          `json:"window_id"`
	Currency Currency        `json:"currency"`
	Payer    BankID          `json:"payer"`
	Payee    BankID          `json:"payee"`
	Amount   decimal.Decimal `json:"amount"`
	Priority int             `json:"priority"`
	Deadline time.Time       `json:"deadline"`
}
