// Package apo implements the Atomic Payment Orchestrator: the
// per-payment pipeline across compliance, risk, liquidity hold,
// obligation creation, clearing, and settlement, with idempotency-key
// handling, checkpointing, and LIFO compensation on failure.
package apo

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/corerr"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/ports"
	"github.com/paynet/nexus-clearing/internal/resilience"
	"github.com/paynet/nexus-clearing/internal/telemetry/log"
	"github.com/paynet/nexus-clearing/internal/telemetry/metrics"
)

// Store is the persistence surface APO needs: idempotency lookup,
// payment/checkpoint durability, and the balance hold it coordinates
// with reconciliation over.
type Store interface {
	FindIdempotent(ctx context.Context, key string) (domain.IdempotencyRecord, bool, error)
	SaveIdempotent(ctx context.Context, rec domain.IdempotencyRecord) error
	SavePayment(ctx context.Context, p domain.Payment) error
	LoadPayment(ctx context.Context, id string) (domain.Payment, error)
	SaveCheckpoint(ctx context.Context, c domain.Checkpoint) error
	Checkpoints(ctx context.Context, paymentID string) ([]domain.Checkpoint, error)
	ReserveBalance(ctx context.Context, bank domain.BankID, currency domain.Currency, amount decimal.Decimal) error
	ReleaseBalance(ctx context.Context, bank domain.BankID, currency domain.Currency, amount decimal.Decimal) error
	SaveObligation(ctx context.Context, o domain.Obligation) error
	CancelObligation(ctx context.Context, id string) error
	IsCircuitOpen(ctx context.Context, accountID string) (bool, error)
	SaveDecision(ctx context.Context, d domain.DecisionRecord) error
	LoadDecision(ctx context.Context, paymentID string) (domain.DecisionRecord, error)
}

// Status is the payment.status admin operation's view: the payment's
// current state plus its full append-only decision timeline.
type Status struct {
	Payment  domain.Payment
	Decision domain.DecisionRecord
}

// PaymentStatus loads a payment and its decision record for the admin
// surface's payment.status operation.
func (o *Orchestrator) PaymentStatus(ctx context.Context, paymentID string) (Status, error) {
	p, err := o.store.LoadPayment(ctx, paymentID)
	if err != nil {
		return Status{}, corerr.Wrap(corerr.KindTransientInfra, "load payment", err)
	}
	d, err := o.store.LoadDecision(ctx, paymentID)
	if err != nil {
		return Status{}, corerr.Wrap(corerr.KindTransientInfra, "load decision record", err)
	}
	return Status{Payment: p, Decision: d}, nil
}

// CurrentWindowFn returns the id of the currently open window a bank's
// region obligations should be submitted to.
type CurrentWindowFn func(ctx context.Context, bank domain.BankID) (string, error)

// Orchestrator drives one payment through its full lifecycle.
type Orchestrator struct {
	store         Store
	compliance    ports.ComplianceClient
	risk          ports.RiskClient
	currentWindow CurrentWindowFn
	idempTTL      time.Duration

	mu      sync.Mutex
	waiters map[string][]chan result // idempotency-key -> parked callers
}

type result struct {
	payment domain.Payment
	err     error
}

// New constructs an Orchestrator.
func New(store Store, compliance ports.ComplianceClient, risk ports.RiskClient, currentWindow CurrentWindowFn, idempTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		store:         store,
		compliance:    compliance,
		risk:          risk,
		currentWindow: currentWindow,
		idempTTL:      idempTTL,
		waiters:       make(map[string][]chan result),
	}
}

// Initiate drives idempotencyKey/payer/payee/amount/currency through
// the full payment pipeline, replaying a prior completed response if
// the key was already seen, or parking on the in-flight attempt if one
// is already running.
func (o *Orchestrator) Initiate(ctx context.Context, idempotencyKey string, currency domain.Currency, payer, payee domain.BankID, amount decimal.Decimal) (domain.Payment, error) {
	if rec, ok, err := o.store.FindIdempotent(ctx, idempotencyKey); err != nil {
		return domain.Payment{}, corerr.Wrap(corerr.KindTransientInfra, "idempotency lookup", err)
	} else if ok {
		p, err := o.store.LoadPayment(ctx, rec.PaymentID)
		if err != nil {
			return domain.Payment{}, corerr.Wrap(corerr.KindTransientInfra, "load replayed payment", err)
		}
		return p, corerr.New(corerr.KindIdempotencyReplay, "replayed")
	}

	o.mu.Lock()
	if waiters, inFlight := o.waiters[idempotencyKey]; inFlight {
		ch := make(chan result, 1)
		o.waiters[idempotencyKey] = append(waiters, ch)
		o.mu.Unlock()
		select {
		case r := <-ch:
			return r.payment, r.err
		case <-ctx.Done():
			return domain.Payment{}, corerr.Wrap(corerr.KindTimeout, "parked request cancelled", ctx.Err())
		}
	}
	o.waiters[idempotencyKey] = nil
	o.mu.Unlock()

	p, err := o.run(ctx, idempotencyKey, currency, payer, payee, amount)

	o.mu.Lock()
	waiters := o.waiters[idempotencyKey]
	delete(o.waiters, idempotencyKey)
	o.mu.Unlock()
	for _, ch := range waiters {
		ch <- result{payment: p, err: err}
	}

	return p, err
}

func (o *Orchestrator) run(ctx context.Context, idempotencyKey string, currency domain.Currency, payer, payee domain.BankID, amount decimal.Decimal) (domain.Payment, error) {
	logger := log.For("payment.apo").Sugar()
	p, err := domain.NewPayment(idempotencyKey, currency, payer, payee, amount)
	if err != nil {
		return domain.Payment{}, err
	}

	var completedStages []domain.Stage
	compensate := func(upTo []domain.Stage) {
		for i := len(upTo) - 1; i >= 0; i-- {
			o.compensateStage(ctx, p, upTo[i])
		}
	}
	checkpoint := func(stage domain.Stage) {
		completedStages = append(completedStages, stage)
		_ = o.store.SaveCheckpoint(ctx, domain.Checkpoint{PaymentID: p.ID, Stage: stage, Done: true, RecordedAt: time.Now()})
	}

	decision := domain.NewDecisionRecord(p.ID)

	reject := func(reason string) (domain.Payment, error) {
		// PaymentObligated only transitions to Cleared or Compensated,
		// never Rejected (§9); earlier stages reject outright.
		if p.Status == domain.PaymentObligated {
			p.Status = domain.PaymentCompensated
		} else {
			p.Status = domain.PaymentRejected
		}
		p.UpdatedAt = time.Now()
		_ = o.store.SavePayment(ctx, p)
		_ = o.store.SaveDecision(ctx, decision)
		compensate(completedStages)
		metrics.PaymentsByState.WithLabelValues(string(p.Status)).Inc()
		return p, corerr.New(corerr.KindBusinessReject, reason)
	}

	// Compliance.
	p.Status = domain.PaymentCompliance
	_ = o.store.SavePayment(ctx, p)
	vote, reason, err := o.compliance.Review(ctx, p)
	if err != nil {
		return reject("compliance unavailable")
	}
	decision.RecordComplianceVote(vote, reason)
	if decision.Outcome == domain.OutcomeRejectedCompliance {
		return reject(decision.Reason)
	}
	checkpoint(domain.StageCompliance)

	// Risk.
	p.Status = domain.PaymentRisk
	_ = o.store.SavePayment(ctx, p)
	riskVote, riskReason, err := o.risk.Score(ctx, p)
	if err != nil {
		return reject("risk unavailable")
	}
	decision.RecordRiskVote(riskVote, riskReason)
	if decision.Outcome == domain.OutcomeRejectedRisk {
		return reject(decision.Reason)
	}
	checkpoint(domain.StageRisk)

	// Liquidity hold.
	p.Status = domain.PaymentLiquidity
	_ = o.store.SavePayment(ctx, p)
	cbOpen, err := o.store.IsCircuitOpen(ctx, string(payer))
	if err != nil {
		return reject("circuit breaker check failed")
	}
	if cbOpen {
		decision.RecordBalanceCheck(false)
		return reject("CircuitBreakerOpen")
	}
	reserveErr := resilience.WithBackoff(ctx, resilience.DefaultRetryConfig("apo.reserve"), func(ctx context.Context) error {
		return o.store.ReserveBalance(ctx, payer, currency, amount)
	})
	decision.RecordBalanceCheck(reserveErr == nil)
	if reserveErr != nil {
		return reject("insufficient balance")
	}
	checkpoint(domain.StageLiquidity)

	// Either vote landing on Review with no reject yet means this
	// payment needs a human decision before it can proceed; it stays
	// parked at LiquidityHeld rather than advancing to Obligated.
	if decision.Outcome == domain.OutcomePendingReview {
		_ = o.store.SaveDecision(ctx, decision)
		return p, corerr.New(corerr.KindBusinessReject, "PendingReview")
	}

	// Obligation.
	p.Status = domain.PaymentObligated
	windowID, err := o.currentWindow(ctx, payer)
	if err != nil {
		return reject("no open window")
	}
	ob, ok := domain.NewObligation(windowID, p.ID, currency, payer, payee, amount)
	if !ok {
		return reject("self-payment rejected")
	}
	if err := o.store.SaveObligation(ctx, ob); err != nil {
		return reject("obligation persistence failed")
	}
	p.WindowID = windowID
	p.ObligationID = ob.ID
	_ = o.store.SavePayment(ctx, p)
	checkpoint(domain.StageObligation)

	p.Status = domain.PaymentCleared
	p.UpdatedAt = time.Now()
	_ = o.store.SavePayment(ctx, p)
	_ = o.store.SaveDecision(ctx, decision)
	metrics.PaymentsByState.WithLabelValues(string(domain.PaymentCleared)).Inc()

	rec := domain.IdempotencyRecord{
		Key:       idempotencyKey,
		PaymentID: p.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(o.idempTTL),
	}
	if err := o.store.SaveIdempotent(ctx, rec); err != nil {
		logger.Errorw("failed to persist idempotency record", "payment_id", p.ID, "err", err)
	}

	return p, nil
}

// AdvanceSettled is called once settlement of this payment's instruction
// has been observed as executed (nothing in this repository calls it
// from a settlement.ack handler), transitioning it through Settled to
// Completed. Token mint happens
// strictly after this point, never before.
func (o *Orchestrator) AdvanceSettled(ctx context.Context, paymentID string, mint func(ctx context.Context) error) (domain.Payment, error) {
	p, err := o.store.LoadPayment(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, corerr.Wrap(corerr.KindTransientInfra, "load payment", err)
	}
	if !domain.CanTransitionPayment(p.Status, domain.PaymentSettled) {
		return domain.Payment{}, corerr.New(corerr.KindInvariantViolation, "illegal transition to Settled")
	}
	p.Status = domain.PaymentSettled
	p.UpdatedAt = time.Now()
	if err := o.store.SavePayment(ctx, p); err != nil {
		return domain.Payment{}, corerr.Wrap(corerr.KindTransientInfra, "save settled payment", err)
	}

	if err := resilience.WithBackoff(ctx, resilience.DefaultRetryConfig("apo.mint"), mint); err != nil {
		o.compensateStage(ctx, p, domain.StageSettlement)
		p.Status = domain.PaymentCompensated
		_ = o.store.SavePayment(ctx, p)
		return p, corerr.Wrap(corerr.KindBusinessReject, "mint failed after settlement", err)
	}

	p.Status = domain.PaymentCompleted
	p.UpdatedAt = time.Now()
	if err := o.store.SavePayment(ctx, p); err != nil {
		return domain.Payment{}, corerr.Wrap(corerr.KindTransientInfra, "save completed payment", err)
	}
	metrics.PaymentsByState.WithLabelValues(string(domain.PaymentCompleted)).Inc()
	return p, nil
}

// compensateStage runs the inverse action for stage, retried with
// exponential backoff; each inverse is itself idempotent.
func (o *Orchestrator) compensateStage(ctx context.Context, p domain.Payment, stage domain.Stage) {
	logger := log.For("payment.apo").Sugar()
	metrics.CompensationsRun.WithLabelValues(string(stage)).Inc()

	inverse := func(ctx context.Context) error {
		switch stage {
		case domain.StageLiquidity:
			return o.store.ReleaseBalance(ctx, p.Payer, p.Currency, p.Amount)
		case domain.StageObligation:
			if p.ObligationID == "" {
				return nil
			}
			return o.store.CancelObligation(ctx, p.ObligationID)
		case domain.StageCompliance, domain.StageRisk:
			return nil // stateless votes; nothing to release
		case domain.StageSettlement:
			return o.store.ReleaseBalance(ctx, p.Payer, p.Currency, p.Amount)
		default:
			return nil
		}
	}

	if err := resilience.WithBackoff(ctx, resilience.DefaultRetryConfig("apo.compensate."+string(stage)), inverse); err != nil {
		logger.Errorw("compensation failed after retries", "payment_id", p.ID, "stage", stage, "err", err)
	}
}
