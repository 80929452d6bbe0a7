// Package reconciliation implements the Token Reconciliation Engine:
// three independent cadences (real-time event, intraday poll, end-of-day
// statement) that keep an EMI account's internal ledger in agreement
// with the bank-reported balance, and the business-rule circuit
// breaker that halts issuance and payouts when they drift apart.
package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/corerr"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/ports"
	"github.com/paynet/nexus-clearing/internal/resilience"
	"github.com/paynet/nexus-clearing/internal/telemetry/log"
	"github.com/paynet/nexus-clearing/internal/telemetry/metrics"
)

// Store is the persistence surface reconciliation needs. CASAccount
// writes the account only if its Version still matches the stored one
// and returns the new version; Store is responsible for that
// compare-and-swap.
type Store interface {
	LoadAccount(ctx context.Context, accountID string) (domain.EMIAccount, error)
	CASAccount(ctx context.Context, account domain.EMIAccount) (newVersion int64, err error)
	ActiveAccounts(ctx context.Context) ([]domain.EMIAccount, error)
	SaveSnapshot(ctx context.Context, snap domain.AccountSnapshot) error
	Snapshots(ctx context.Context) ([]domain.AccountSnapshot, error)
	SaveDiscrepancy(ctx context.Context, d domain.Discrepancy) error
	CorrelatedObligation(ctx context.Context, correlationID string) (domain.Obligation, bool, error)
}

// Broadcaster publishes reconciliation.alert and
// reconciliation.circuit_breaker events.
type Broadcaster interface {
	Alert(accountID string, severity domain.DiscrepancySeverity, diff float64)
	CircuitBreaker(accountID string, opened bool, actor, reason string)
}

// Engine runs all three reconciliation tiers against a shared store.
type Engine struct {
	store       Store
	bankAdapter ports.BankBalanceProvider
	broadcast   Broadcaster
	thresholds  domain.Thresholds
}

// New constructs an Engine.
func New(store Store, bankAdapter ports.BankBalanceProvider, broadcast Broadcaster, thresholds domain.Thresholds) *Engine {
	return &Engine{store: store, bankAdapter: bankAdapter, broadcast: broadcast, thresholds: thresholds}
}

// Tier1Notify applies a credit/debit notification delta (a CAMT.054-shaped
// event) to the account's bank-reported balance and re-evaluates drift.
// Retried with exponential backoff against CAS contention from a
// concurrent Tier-2 pass on the same account.
func (e *Engine) Tier1Notify(ctx context.Context, accountID string, delta decimal.Decimal, correlationID string) error {
	return e.withAccount(ctx, accountID, 1, func(a domain.EMIAccount) domain.EMIAccount {
		a.BankReportedBalance = a.BankReportedBalance.Add(delta)
		return a
	})
}

// Tier2Poll polls the bank adapter for every active account's current
// balance and re-evaluates drift. A successful Ok pass clears a
// pending-readmission flag left by an operator's breaker reset.
func (e *Engine) Tier2Poll(ctx context.Context) error {
	accounts, err := e.store.ActiveAccounts(ctx)
	if err != nil {
		return corerr.Wrap(corerr.KindTransientInfra, "list active accounts", err)
	}
	for _, a := range accounts {
		balance, err := e.bankAdapter.CurrentBalance(ctx, a.ID)
		if err != nil {
			log.For("reconciliation").Sugar().Warnw("tier-2 poll failed for account", "account_id", a.ID, "err", err)
			continue
		}
		if err := e.withAccount(ctx, a.ID, 2, func(acc domain.EMIAccount) domain.EMIAccount {
			acc.BankReportedBalance = balance
			return acc
		}); err != nil {
			log.For("reconciliation").Sugar().Errorw("tier-2 reconcile failed", "account_id", a.ID, "err", err)
		}
	}
	return nil
}

// StatementEntry is one line of a CAMT.053-shaped end-of-day statement.
type StatementEntry struct {
	CorrelationID string
	Amount        decimal.Decimal
}

// Tier3Ingest processes one account's end-of-day statement: creates the
// day's AccountSnapshot and matches each entry against an internal
// obligation by correlation id, emitting Discrepancies for anything
// unmatched or mismatched in amount.
func (e *Engine) Tier3Ingest(ctx context.Context, accountID string, date time.Time, entries []StatementEntry) (domain.AccountSnapshot, []domain.Discrepancy, error) {
	account, err := e.store.LoadAccount(ctx, accountID)
	if err != nil {
		return domain.AccountSnapshot{}, nil, corerr.Wrap(corerr.KindTransientInfra, "load account", err)
	}

	var statementTotal decimal.Decimal
	var discrepancies []domain.Discrepancy
	for _, entry := range entries {
		statementTotal = statementTotal.Add(entry.Amount)

		ob, found, err := e.store.CorrelatedObligation(ctx, entry.CorrelationID)
		if err != nil {
			return domain.AccountSnapshot{}, nil, corerr.Wrap(corerr.KindTransientInfra, "match correlation id", err)
		}
		if !found {
			discrepancies = append(discrepancies, e.recordDiscrepancy(ctx, accountID, domain.DiscrepancyMissingTxn, account.LedgerBalance, account.BankReportedBalance))
			continue
		}
		if !ob.Amount.Equal(entry.Amount) {
			discrepancies = append(discrepancies, e.recordDiscrepancy(ctx, accountID, domain.DiscrepancyAmountMismatch, account.LedgerBalance, account.BankReportedBalance))
		}
	}

	severity := e.thresholds.Classify(account.LedgerBalance, account.BankReportedBalance)
	snap := domain.AccountSnapshot{
		ID:         domain.NewID(),
		AccountID:  accountID,
		Tier:       3,
		LedgerBal:  account.LedgerBalance,
		BankBal:    account.BankReportedBalance,
		Severity:   severity,
		ObservedAt: date,
	}
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		return domain.AccountSnapshot{}, nil, corerr.Wrap(corerr.KindTransientInfra, "save snapshot", err)
	}

	if err := e.act(ctx, account, severity, 3); err != nil {
		return snap, discrepancies, err
	}
	return snap, discrepancies, nil
}

// withAccount loads accountID, applies mutate, reclassifies, persists
// via CAS with retry, and runs the resulting severity's action.
func (e *Engine) withAccount(ctx context.Context, accountID string, tier int, mutate func(domain.EMIAccount) domain.EMIAccount) error {
	var severity domain.DiscrepancySeverity
	var mutated domain.EMIAccount

	err := resilience.WithBackoff(ctx, resilience.DefaultRetryConfig("reconciliation.cas."+accountID), func(ctx context.Context) error {
		current, err := e.store.LoadAccount(ctx, accountID)
		if err != nil {
			return err
		}
		mutated = mutate(current)
		severity = e.thresholds.Classify(mutated.LedgerBalance, mutated.BankReportedBalance)
		newVersion, err := e.store.CASAccount(ctx, mutated)
		if err != nil {
			return err
		}
		mutated.Version = newVersion
		return nil
	})
	if err != nil {
		return corerr.Wrap(corerr.KindTransientInfra, "reconcile account", err)
	}

	snap := domain.AccountSnapshot{
		ID:         domain.NewID(),
		AccountID:  accountID,
		Tier:       tier,
		LedgerBal:  mutated.LedgerBalance,
		BankBal:    mutated.BankReportedBalance,
		Severity:   severity,
		ObservedAt: time.Now(),
	}
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		log.For("reconciliation").Sugar().Errorw("failed to persist snapshot", "account_id", accountID, "err", err)
	}

	return e.act(ctx, mutated, severity, tier)
}

// Summary is the counts-by-severity-and-tier view returned by the
// reconciliation.summary admin operation.
type Summary struct {
	BySeverity map[domain.DiscrepancySeverity]int
	ByTier     map[int]map[domain.DiscrepancySeverity]int
	Total      int
}

// Summarize tallies every recorded snapshot (across all three tiers)
// by severity and by tier, for operator visibility into which cadence
// is surfacing drift.
func (e *Engine) Summarize(ctx context.Context) (Summary, error) {
	snaps, err := e.store.Snapshots(ctx)
	if err != nil {
		return Summary{}, corerr.Wrap(corerr.KindTransientInfra, "list snapshots", err)
	}
	sum := Summary{
		BySeverity: map[domain.DiscrepancySeverity]int{},
		ByTier:     map[int]map[domain.DiscrepancySeverity]int{},
	}
	for _, s := range snaps {
		sum.BySeverity[s.Severity]++
		if sum.ByTier[s.Tier] == nil {
			sum.ByTier[s.Tier] = map[domain.DiscrepancySeverity]int{}
		}
		sum.ByTier[s.Tier][s.Severity]++
		sum.Total++
	}
	return sum, nil
}

// act applies the threshold table's action for severity (§4.8): Ok and
// Minor simply record; Significant opens a discrepancy; Critical
// trips the circuit breaker.
func (e *Engine) act(ctx context.Context, account domain.EMIAccount, severity domain.DiscrepancySeverity, tier int) error {
	tierLabel := map[int]string{1: "tier1", 2: "tier2", 3: "tier3"}[tier]
	diff, _ := account.LedgerBalance.Sub(account.BankReportedBalance).Abs().Float64()
	denom, _ := decimal.Max(account.BankReportedBalance.Abs(), decimal.NewFromInt(1)).Float64()
	metrics.ReconDrift.WithLabelValues(tierLabel).Observe(diff / denom)

	switch severity {
	case domain.SeverityOk:
		if tier == 2 && account.PendingReadmission {
			return e.clearReadmission(ctx, account)
		}
		return nil
	case domain.SeverityMinor:
		return nil
	case domain.SeverityChallenge:
		d := e.recordDiscrepancy(ctx, account.ID, domain.DiscrepancyBalanceMismatch, account.LedgerBalance, account.BankReportedBalance)
		e.broadcast.Alert(account.ID, severity, diff)
		_ = d
		return nil
	case domain.SeverityCritical:
		return e.openBreaker(ctx, account, diff)
	default:
		return nil
	}
}

func (e *Engine) recordDiscrepancy(ctx context.Context, accountID string, typ domain.DiscrepancyType, ledger, bank decimal.Decimal) domain.Discrepancy {
	severity := e.thresholds.Classify(ledger, bank)
	d := domain.Discrepancy{
		ID:         domain.NewID(),
		AccountID:  accountID,
		Type:       typ,
		Severity:   severity,
		LedgerBal:  ledger,
		BankBal:    bank,
		DetectedAt: time.Now(),
	}
	if err := e.store.SaveDiscrepancy(ctx, d); err != nil {
		log.For("reconciliation").Sugar().Errorw("failed to persist discrepancy", "account_id", accountID, "err", err)
	}
	metrics.DiscrepanciesOpened.WithLabelValues(string(severity), string(typ)).Inc()
	return d
}

// openBreaker trips the circuit breaker for account, halting mint and
// payout. Idempotent: re-tripping an already-open breaker is a no-op.
func (e *Engine) openBreaker(ctx context.Context, account domain.EMIAccount, diff float64) error {
	if account.Breaker == domain.BreakerOpen {
		return nil
	}
	now := time.Now()
	account.Breaker = domain.BreakerOpen
	account.BreakerReason = "drift threshold breached"
	account.BreakerOpenedAt = &now
	account.PendingReadmission = false
	if _, err := e.store.CASAccount(ctx, account); err != nil {
		return corerr.Wrap(corerr.KindTransientInfra, "open circuit breaker", err)
	}
	metrics.CircuitBreakerState.WithLabelValues(account.ID).Set(1)
	e.broadcast.CircuitBreaker(account.ID, true, "", "")
	e.recordDiscrepancy(ctx, account.ID, domain.DiscrepancyBalanceMismatch, account.LedgerBalance, account.BankReportedBalance)
	log.For("reconciliation").Sugar().Errorw("circuit breaker opened", "account_id", account.ID, "diff", diff)
	return nil
}

// ResetBreaker performs the manual operator reset: requires an actor
// and reason, closes the breaker, but leaves PendingReadmission set so
// no mint/payout is admitted until the next Tier-2 pass observes Ok.
func (e *Engine) ResetBreaker(ctx context.Context, accountID, actor, reason string) error {
	if actor == "" || reason == "" {
		return corerr.New(corerr.KindValidation, "breaker reset requires actor and reason")
	}
	account, err := e.store.LoadAccount(ctx, accountID)
	if err != nil {
		return corerr.Wrap(corerr.KindTransientInfra, "load account", err)
	}
	if account.Breaker != domain.BreakerOpen {
		return corerr.New(corerr.KindBusinessReject, "breaker is not open")
	}
	account.Breaker = domain.BreakerClosed
	account.BreakerActor = actor
	account.BreakerReason = reason
	account.BreakerOpenedAt = nil
	account.PendingReadmission = true
	if _, err := e.store.CASAccount(ctx, account); err != nil {
		return corerr.Wrap(corerr.KindTransientInfra, "reset circuit breaker", err)
	}
	metrics.CircuitBreakerState.WithLabelValues(accountID).Set(0)
	e.broadcast.CircuitBreaker(accountID, false, actor, reason)
	return nil
}

func (e *Engine) clearReadmission(ctx context.Context, account domain.EMIAccount) error {
	account.PendingReadmission = false
	if _, err := e.store.CASAccount(ctx, account); err != nil {
		return corerr.Wrap(corerr.KindTransientInfra, "clear pending readmission", err)
	}
	log.For("reconciliation").Sugar().Infow("account re-admitted after fresh Ok pass", "account_id", account.ID)
	return nil
}
