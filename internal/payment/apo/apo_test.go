package apo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/ports"
)

type memStore struct {
	mu          sync.Mutex
	idempotent  map[string]domain.IdempotencyRecord
	payments    map[string]domain.Payment
	checkpoints map[string][]domain.Checkpoint
	decisions   map[string]domain.DecisionRecord
	balances    map[string]decimal.Decimal // bank|currency -> reserved
	obligations map[string]domain.Obligation
	breakerOpen map[string]bool

	reserveCalls int
	releaseCalls int
}

func newMemStore() *memStore {
	return &memStore{
		idempotent:  map[string]domain.IdempotencyRecord{},
		payments:    map[string]domain.Payment{},
		checkpoints: map[string][]domain.Checkpoint{},
		decisions:   map[string]domain.DecisionRecord{},
		balances:    map[string]decimal.Decimal{},
		obligations: map[string]domain.Obligation{},
		breakerOpen: map[string]bool{},
	}
}

func key(bank domain.BankID, currency domain.Currency) string { return string(bank) + "|" + string(currency) }

func (s *memStore) FindIdempotent(_ context.Context, k string) (domain.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.idempotent[k]
	return rec, ok, nil
}

func (s *memStore) SaveIdempotent(_ context.Context, rec domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotent[rec.Key] = rec
	return nil
}

func (s *memStore) SavePayment(_ context.Context, p domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
	return nil
}

func (s *memStore) LoadPayment(_ context.Context, id string) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id], nil
}

func (s *memStore) SaveCheckpoint(_ context.Context, c domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[c.PaymentID] = append(s.checkpoints[c.PaymentID], c)
	return nil
}

func (s *memStore) Checkpoints(_ context.Context, paymentID string) ([]domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[paymentID], nil
}

func (s *memStore) ReserveBalance(_ context.Context, bank domain.BankID, currency domain.Currency, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserveCalls++
	s.balances[key(bank, currency)] = s.balances[key(bank, currency)].Add(amount)
	return nil
}

func (s *memStore) ReleaseBalance(_ context.Context, bank domain.BankID, currency domain.Currency, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseCalls++
	s.balances[key(bank, currency)] = s.balances[key(bank, currency)].Sub(amount)
	return nil
}

func (s *memStore) SaveObligation(_ context.Context, o domain.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obligations[o.ID] = o
	return nil
}

func (s *memStore) CancelObligation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[id]
	if !ok {
		return nil
	}
	o.Status = domain.ObligationCancelled
	s.obligations[id] = o
	return nil
}

func (s *memStore) IsCircuitOpen(_ context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakerOpen[accountID], nil
}

func (s *memStore) SaveDecision(_ context.Context, d domain.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[d.PaymentID] = d
	return nil
}

func (s *memStore) LoadDecision(_ context.Context, paymentID string) (domain.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decisions[paymentID], nil
}

func currentWindow(id string) CurrentWindowFn {
	return func(_ context.Context, _ domain.BankID) (string, error) { return id, nil }
}

func TestHappyPathClearsPayment(t *testing.T) {
	store := newMemStore()
	o := New(store, ports.NewFakeComplianceClient(), ports.FakeRiskClient{}, currentWindow("w1"), time.Hour)

	p, err := o.Initiate(context.Background(), "idem-1", "USD", "BANK_A", "BANK_B", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCleared, p.Status)
	assert.NotEmpty(t, p.ObligationID)
	assert.Equal(t, 1, len(store.obligations))
}

func TestIdempotentReplayReturnsSamePayment(t *testing.T) {
	store := newMemStore()
	o := New(store, ports.NewFakeComplianceClient(), ports.FakeRiskClient{}, currentWindow("w1"), time.Hour)
	ctx := context.Background()

	first, err := o.Initiate(ctx, "idem-replay", "USD", "BANK_A", "BANK_B", decimal.NewFromInt(50))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		replayed, err := o.Initiate(ctx, "idem-replay", "USD", "BANK_A", "BANK_B", decimal.NewFromInt(50))
		require.Error(t, err, "replay must be reported as a replay, not a fresh success")
		assert.Equal(t, first.ID, replayed.ID)
	}
	assert.Equal(t, 1, len(store.obligations), "resubmitting the same idempotency key must not create a second obligation")
}

func TestComplianceRejectCompensatesNothingYet(t *testing.T) {
	store := newMemStore()
	compliance := ports.NewFakeComplianceClient()
	compliance.Flag("BANK_B")
	o := New(store, compliance, ports.FakeRiskClient{}, currentWindow("w1"), time.Hour)

	p, err := o.Initiate(context.Background(), "idem-2", "USD", "BANK_A", "BANK_B", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Equal(t, domain.PaymentRejected, p.Status)
	assert.Equal(t, 0, store.reserveCalls, "compliance reject must happen before any balance is reserved")
}

func TestObligationFailureCompensatesLiquidityHold(t *testing.T) {
	store := newMemStore()
	o := New(store, ports.NewFakeComplianceClient(), ports.FakeRiskClient{}, currentWindow("w1"), time.Hour)

	// self-payment is rejected by domain.NewObligation after the
	// liquidity hold already reserved funds; compensation must release it.
	p, err := o.Initiate(context.Background(), "idem-3", "USD", "BANK_A", "BANK_A", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Equal(t, domain.PaymentCompensated, p.Status)
	assert.Equal(t, store.reserveCalls, store.releaseCalls, "every reserve must be matched by a release on compensation")
	assert.True(t, store.balances[key("BANK_A", "USD")].IsZero())
}

func TestCircuitBreakerOpenRejectsAtLiquidityStage(t *testing.T) {
	store := newMemStore()
	store.breakerOpen["BANK_A"] = true
	o := New(store, ports.NewFakeComplianceClient(), ports.FakeRiskClient{}, currentWindow("w1"), time.Hour)

	p, err := o.Initiate(context.Background(), "idem-4", "USD", "BANK_A", "BANK_B", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Equal(t, domain.PaymentRejected, p.Status)
	assert.Equal(t, 0, store.reserveCalls)
}
