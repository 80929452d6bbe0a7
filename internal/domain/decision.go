package domain

import "time"

// Vote is a compliance or risk service's judgment on a payment.
type Vote string

const (
	VoteApprove Vote = "Approve"
	VoteReview  Vote = "Review"
	VoteReject  Vote = "Reject"
)

// DecisionEntry is one recorded compliance or risk vote in a payment's
// decision timeline.
type DecisionEntry struct {
	Service    string    `json:"service"` // "compliance" or "risk"
	Vote       Vote      `json:"vote"`
	Reason     string    `json:"reason,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Outcome is the aggregated result of applying the priority rule to a
// decision record's votes and balance check.
type Outcome string

const (
	OutcomeApproved           Outcome = "Approved"
	OutcomePendingReview      Outcome = "PendingReview"
	OutcomeRejectedCompliance Outcome = "RejectedCompliance"
	OutcomeRejectedRisk       Outcome = "RejectedRisk"
	OutcomeRejectedFunds      Outcome = "RejectedFunds"
)

// DecisionRecord aggregates the compliance and risk votes and the
// balance-sufficiency check for one payment, re-evaluated on every
// vote arrival under a fixed priority rule: a compliance reject beats
// a risk reject, which beats insufficient balance, which beats any
// outstanding review, which beats full approval.
type DecisionRecord struct {
	PaymentID      string          `json:"payment_id"`
	Entries        []DecisionEntry `json:"entries"`
	ComplianceVote *Vote           `json:"compliance_vote,omitempty"`
	RiskVote       *Vote           `json:"risk_vote,omitempty"`
	BalanceOK      *bool           `json:"balance_ok,omitempty"`
	Outcome        Outcome         `json:"final"`
	Reason         string          `json:"reason,omitempty"`
}

// NewDecisionRecord starts an empty, pending decision record for a payment.
func NewDecisionRecord(paymentID string) DecisionRecord {
	return DecisionRecord{PaymentID: paymentID, Outcome: OutcomePendingReview}
}

// RecordComplianceVote appends a compliance vote and re-evaluates the outcome.
func (d *DecisionRecord) RecordComplianceVote(v Vote, reason string) {
	d.ComplianceVote = &v
	d.Entries = append(d.Entries, DecisionEntry{Service: "compliance", Vote: v, Reason: reason, RecordedAt: time.Now()})
	d.evaluate()
}

// RecordRiskVote appends a risk vote and re-evaluates the outcome.
func (d *DecisionRecord) RecordRiskVote(v Vote, reason string) {
	d.RiskVote = &v
	d.Entries = append(d.Entries, DecisionEntry{Service: "risk", Vote: v, Reason: reason, RecordedAt: time.Now()})
	d.evaluate()
}

// RecordBalanceCheck sets the balance-sufficiency boolean and
// re-evaluates the outcome.
func (d *DecisionRecord) RecordBalanceCheck(sufficient bool) {
	d.BalanceOK = &sufficient
	d.evaluate()
}

func (d *DecisionRecord) evaluate() {
	d.Outcome, d.Reason = evaluate(d.ComplianceVote, d.RiskVote, d.BalanceOK)
}

// evaluate applies the §4.5 priority rule.
func evaluate(compliance, risk *Vote, balanceOK *bool) (Outcome, string) {
	if compliance != nil && *compliance == VoteReject {
		return OutcomeRejectedCompliance, "compliance rejected"
	}
	if risk != nil && *risk == VoteReject {
		return OutcomeRejectedRisk, "risk rejected"
	}
	if balanceOK != nil && !*balanceOK {
		return OutcomeRejectedFunds, "insufficient balance"
	}
	if compliance == nil || risk == nil || balanceOK == nil ||
		*compliance == VoteReview || *risk == VoteReview {
		return OutcomePendingReview, ""
	}
	return OutcomeApproved, ""
}
