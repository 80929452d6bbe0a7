package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObligationNoSelfLoop(t *testing.T) {
	_, ok := NewObligation("w1", "p1", "USD", "bankA", "bankA", decimal.NewFromInt(100))
	assert.False(t, ok, "obligation with identical payer and payee must be rejected")
}

func TestObligationRejectsNonPositiveAmount(t *testing.T) {
	_, ok := NewObligation("w1", "p1", "USD", "bankA", "bankB", decimal.Zero)
	assert.False(t, ok, "zero-amount obligation must be rejected")

	_, ok = NewObligation("w1", "p1", "USD", "bankA", "bankB", decimal.NewFromInt(-100))
	assert.False(t, ok, "negative-amount obligation must be rejected")
}

func TestNewPaymentRejectsNonPositiveAmount(t *testing.T) {
	_, err := NewPayment("idem-1", "USD", "bankA", "bankB", decimal.Zero)
	require.Error(t, err)

	_, err = NewPayment("idem-2", "USD", "bankA", "bankB", decimal.NewFromInt(-50))
	require.Error(t, err)

	p, err := NewPayment("idem-3", "USD", "bankA", "bankB", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, PaymentInitiated, p.Status)
}

func TestObligationTransitions(t *testing.T) {
	o, ok := NewObligation("w1", "p1", "USD", "bankA", "bankB", decimal.NewFromInt(100))
	require.True(t, ok)
	assert.True(t, o.CanTransition(ObligationNetted))
	assert.True(t, o.CanTransition(ObligationCancelled))
	assert.False(t, o.CanTransition(ObligationSettled))

	o.Status = ObligationNetted
	assert.True(t, o.CanTransition(ObligationSettled))
	assert.False(t, o.CanTransition(ObligationPending))
}

func TestWindowTransitions(t *testing.T) {
	assert.True(t, CanTransitionWindow(WindowScheduled, WindowOpen))
	assert.True(t, CanTransitionWindow(WindowOpen, WindowClosing))
	assert.True(t, CanTransitionWindow(WindowClosing, WindowClosed))
	assert.True(t, CanTransitionWindow(WindowFailed, WindowRolledBack))
	assert.False(t, CanTransitionWindow(WindowCompleted, WindowOpen))
	assert.False(t, CanTransitionWindow(WindowScheduled, WindowClosed))
}

func TestPaymentTransitions(t *testing.T) {
	assert.True(t, CanTransitionPayment(PaymentInitiated, PaymentCompliance))
	assert.True(t, CanTransitionPayment(PaymentInitiated, PaymentRejected))
	assert.True(t, CanTransitionPayment(PaymentObligated, PaymentCompensated))
	assert.False(t, CanTransitionPayment(PaymentCompleted, PaymentRejected))
	assert.False(t, CanTransitionPayment(PaymentSettled, PaymentCompensated))
}

func TestThresholdsClassify(t *testing.T) {
	th := Thresholds{Minor: 1e-4, Significant: 5e-4, Critical: 5e-3}

	ledger := decimal.NewFromInt(1000000)
	exactMatch := th.Classify(ledger, ledger)
	assert.Equal(t, SeverityOk, exactMatch)

	// ledger=1,000,000 vs bank=990,000: diff ratio ~0.0101 >= critical (5e-3).
	bank := decimal.NewFromInt(990000)
	assert.Equal(t, SeverityCritical, th.Classify(ledger, bank))

	// ledger ahead of bank by any amount is always Critical.
	assert.Equal(t, SeverityCritical, th.Classify(decimal.NewFromInt(101), decimal.NewFromInt(100)))
}

func TestDecisionPriority(t *testing.T) {
	cases := []struct {
		name       string
		compliance Vote
		risk       Vote
		balanceOK  bool
		want       Outcome
	}{
		{"compliance reject wins over everything", VoteReject, VoteReject, true, OutcomeRejectedCompliance},
		{"risk reject wins over balance reject", VoteApprove, VoteReject, false, OutcomeRejectedRisk},
		{"balance reject wins over review", VoteApprove, VoteReview, false, OutcomeRejectedFunds},
		{"review holds over approval", VoteReview, VoteApprove, true, OutcomePendingReview},
		{"all approved", VoteApprove, VoteApprove, true, OutcomeApproved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := NewDecisionRecord("p1")
			rec.RecordComplianceVote(tc.compliance, "")
			rec.RecordRiskVote(tc.risk, "")
			rec.RecordBalanceCheck(tc.balanceOK)
			assert.Equal(t, tc.want, rec.Outcome)
		})
	}
}

func TestDecisionMissingVoteStaysPending(t *testing.T) {
	rec := NewDecisionRecord("p1")
	rec.RecordComplianceVote(VoteApprove, "")
	rec.RecordRiskVote(VoteApprove, "")
	assert.Equal(t, OutcomePendingReview, rec.Outcome)
}

func TestWindowAcceptsAtBoundary(t *testing.T) {
	cutoff := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w := ClearingWindow{Cutoff: cutoff, Grace: 5 * time.Second}

	assert.True(t, w.AcceptsAt(cutoff, false), "exactly at cutoff must be accepted")
	assert.True(t, w.AcceptsAt(cutoff.Add(4*time.Second), true), "within grace and flagged pre-cutoff must be accepted")
	assert.False(t, w.AcceptsAt(cutoff.Add(4*time.Second), false), "within grace but not flagged pre-cutoff must be rejected")
	assert.False(t, w.AcceptsAt(cutoff.Add(5*time.Second+time.Nanosecond), true), "past cutoff+grace must be rejected regardless of flag")
}
