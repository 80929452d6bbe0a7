// Package store provides the State Store Adapter: the persistence
// surface consumed by the clearing window manager, clearing
// orchestrator, atomic payment orchestrator, and reconciliation
// engine. Memory is a fully interface-compatible in-memory
// implementation for local runs and tests; a jackc/pgx/v5-backed
// implementation is the intended production adapter (see DESIGN.md).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/corerr"
	"github.com/paynet/nexus-clearing/internal/domain"
)

// Memory satisfies window.Store, orchestrator.Store, apo.Store, and
// reconciliation.Store behind a single mutex, mirroring the teacher's
// single-lock in-process state pattern before any real database is
// wired in.
type Memory struct {
	mu sync.Mutex

	windows         map[string]domain.ClearingWindow
	currentByRegion map[string]string

	obligations  map[string]domain.Obligation
	positions    map[string][]domain.NetPosition
	instructions map[string][]domain.SettlementInstruction

	payments    map[string]domain.Payment
	idempotent  map[string]domain.IdempotencyRecord
	checkpoints map[string][]domain.Checkpoint
	decisions   map[string]domain.DecisionRecord

	reserved map[string]decimal.Decimal // bank|currency
	caps     map[domain.BankID]decimal.Decimal

	accounts      map[string]domain.EMIAccount
	snapshots     []domain.AccountSnapshot
	discrepancies []domain.Discrepancy
}

// New constructs an empty in-memory store.
func New() *Memory {
	return &Memory{
		windows:         map[string]domain.ClearingWindow{},
		currentByRegion: map[string]string{},
		obligations:     map[string]domain.Obligation{},
		positions:       map[string][]domain.NetPosition{},
		instructions:    map[string][]domain.SettlementInstruction{},
		payments:        map[string]domain.Payment{},
		idempotent:      map[string]domain.IdempotencyRecord{},
		checkpoints:     map[string][]domain.Checkpoint{},
		decisions:       map[string]domain.DecisionRecord{},
		reserved:        map[string]decimal.Decimal{},
		caps:            map[domain.BankID]decimal.Decimal{},
		accounts:        map[string]domain.EMIAccount{},
	}
}

func balanceKey(bank domain.BankID, currency domain.Currency) string {
	return string(bank) + "|" + string(currency)
}

// --- window.Store ---

func (m *Memory) SaveWindow(_ context.Context, w domain.ClearingWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows[w.ID] = w
	return nil
}

func (m *Memory) LoadWindow(_ context.Context, id string) (domain.ClearingWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok {
		return domain.ClearingWindow{}, corerr.New(corerr.KindValidation, "window not found")
	}
	return w, nil
}

func (m *Memory) CASWindowStatus(_ context.Context, id string, expectedVersion int64, newStatus domain.WindowStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok {
		return 0, corerr.New(corerr.KindValidation, "window not found")
	}
	if w.Version != expectedVersion {
		return 0, corerr.New(corerr.KindInvariantViolation, "window version mismatch, concurrent writer")
	}
	w.Status = newStatus
	w.Version++
	m.windows[id] = w
	return w.Version, nil
}

func (m *Memory) CurrentWindow(_ context.Context, region string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.currentByRegion[region]
	if !ok {
		return "", false, nil
	}
	w := m.windows[id]
	switch w.Status {
	case domain.WindowCompleted, domain.WindowFailed, domain.WindowRolledBack:
		return "", false, nil
	default:
		return id, true, nil
	}
}

func (m *Memory) SetCurrentWindow(_ context.Context, region, windowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentByRegion[region] = windowID
	return nil
}

// --- orchestrator.Store ---

func (m *Memory) PendingObligations(_ context.Context, windowID string) ([]domain.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Obligation
	for _, o := range m.obligations {
		if o.WindowID == windowID && o.Status == domain.ObligationPending {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveObligation(_ context.Context, o domain.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations[o.ID] = o
	return nil
}

func (m *Memory) SavePositions(_ context.Context, positions []domain.NetPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(positions) == 0 {
		return nil
	}
	m.positions[positions[0].WindowID] = append(m.positions[positions[0].WindowID], positions...)
	return nil
}

func (m *Memory) SaveInstructions(_ context.Context, instructions []domain.SettlementInstruction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(instructions) == 0 {
		return nil
	}
	m.instructions[instructions[0].WindowID] = append(m.instructions[instructions[0].WindowID], instructions...)
	return nil
}

func (m *Memory) ReservedBalance(_ context.Context, bank domain.BankID, currency domain.Currency) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserved[balanceKey(bank, currency)], nil
}

func (m *Memory) BilateralCap(_ context.Context, bank domain.BankID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caps[bank], nil
}

// SetBilateralCap configures bank's bilateral exposure cap; zero or
// negative means uncapped.
func (m *Memory) SetBilateralCap(bank domain.BankID, cap decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps[bank] = cap
}

// SetReservedBalance seeds bank's reserved balance for validation checks.
func (m *Memory) SetReservedBalance(bank domain.BankID, currency domain.Currency, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved[balanceKey(bank, currency)] = amount
}

// --- apo.Store ---

func (m *Memory) FindIdempotent(_ context.Context, key string) (domain.IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.idempotent[key]
	return rec, ok, nil
}

func (m *Memory) SaveIdempotent(_ context.Context, rec domain.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotent[rec.Key] = rec
	return nil
}

func (m *Memory) SavePayment(_ context.Context, p domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) LoadPayment(_ context.Context, id string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.Payment{}, corerr.New(corerr.KindValidation, "payment not found")
	}
	return p, nil
}

func (m *Memory) SaveCheckpoint(_ context.Context, c domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[c.PaymentID] = append(m.checkpoints[c.PaymentID], c)
	return nil
}

func (m *Memory) Checkpoints(_ context.Context, paymentID string) ([]domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpoints[paymentID], nil
}

func (m *Memory) ReserveBalance(_ context.Context, bank domain.BankID, currency domain.Currency, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accountForBank(bank, currency)
	if ok && account.Available().LessThan(amount) {
		return corerr.New(corerr.KindBusinessReject, "insufficient available balance")
	}
	if ok && account.Blocked() {
		return corerr.New(corerr.KindBusinessReject, "CircuitBreakerOpen")
	}
	k := balanceKey(bank, currency)
	m.reserved[k] = m.reserved[k].Add(amount)
	if ok {
		account.Reserved = account.Reserved.Add(amount)
		m.accounts[account.ID] = account
	}
	return nil
}

func (m *Memory) ReleaseBalance(_ context.Context, bank domain.BankID, currency domain.Currency, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := balanceKey(bank, currency)
	m.reserved[k] = m.reserved[k].Sub(amount)
	if account, ok := m.accountForBank(bank, currency); ok {
		account.Reserved = account.Reserved.Sub(amount)
		m.accounts[account.ID] = account
	}
	return nil
}

func (m *Memory) CancelObligation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.obligations[id]
	if !ok {
		return nil
	}
	o.Status = domain.ObligationCancelled
	m.obligations[id] = o
	return nil
}

func (m *Memory) IsCircuitOpen(_ context.Context, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if string(a.BankID) == accountID || a.ID == accountID {
			return a.Blocked(), nil
		}
	}
	return false, nil
}

func (m *Memory) SaveDecision(_ context.Context, d domain.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[d.PaymentID] = d
	return nil
}

func (m *Memory) LoadDecision(_ context.Context, paymentID string) (domain.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[paymentID]
	if !ok {
		return domain.DecisionRecord{}, corerr.New(corerr.KindValidation, "no decision record for payment")
	}
	return d, nil
}

func (m *Memory) accountForBank(bank domain.BankID, currency domain.Currency) (domain.EMIAccount, bool) {
	for _, a := range m.accounts {
		if a.BankID == bank && a.Currency == currency {
			return a, true
		}
	}
	return domain.EMIAccount{}, false
}

// --- reconciliation.Store ---

func (m *Memory) LoadAccount(_ context.Context, accountID string) (domain.EMIAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return domain.EMIAccount{}, corerr.New(corerr.KindValidation, "account not found")
	}
	return a, nil
}

func (m *Memory) CASAccount(_ context.Context, account domain.EMIAccount) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.accounts[account.ID]
	if account.Version != current.Version {
		return 0, corerr.New(corerr.KindInvariantViolation, "account version mismatch, concurrent writer")
	}
	account.Version++
	m.accounts[account.ID] = account
	return account.Version, nil
}

func (m *Memory) ActiveAccounts(_ context.Context) ([]domain.EMIAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EMIAccount, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, snap domain.AccountSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snap)
	return nil
}

func (m *Memory) Snapshots(_ context.Context) ([]domain.AccountSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AccountSnapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out, nil
}

func (m *Memory) SaveDiscrepancy(_ context.Context, d domain.Discrepancy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discrepancies = append(m.discrepancies, d)
	return nil
}

func (m *Memory) CorrelatedObligation(_ context.Context, correlationID string) (domain.Obligation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.obligations[correlationID]
	return o, ok, nil
}

// SeedAccount installs an EMI account directly, for startup bootstrap
// and tests.
func (m *Memory) SeedAccount(a domain.EMIAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
}
