package ports

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/domain"
)

// FakeRiskReviewer approves everything unless the payer is on its
// reject list. For local runs and tests only.
type FakeRiskReviewer struct {
	mu      sync.RWMutex
	rejects map[domain.BankID]bool
}

func NewFakeRiskReviewer() *FakeRiskReviewer {
	return &FakeRiskReviewer{rejects: map[domain.BankID]bool{}}
}

func (f *FakeRiskReviewer) Reject(bank domain.BankID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects[bank] = true
}

func (f *FakeRiskReviewer) ReviewInstruction(_ context.Context, instr domain.SettlementInstruction) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.rejects[instr.Payer], nil
}

// FakeSettlementPublisher records instructions instead of publishing
// them anywhere, for local runs and tests.
type FakeSettlementPublisher struct {
	mu       sync.Mutex
	Requests []domain.SettlementInstruction
}

func NewFakeSettlementPublisher() *FakeSettlementPublisher {
	return &FakeSettlementPublisher{}
}

func (f *FakeSettlementPublisher) RequestSettlement(_ context.Context, instr domain.SettlementInstruction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, instr)
	return nil
}

// FakeComplianceClient always approves unless the payment's payee bank
// is flagged.
type FakeComplianceClient struct {
	mu      sync.RWMutex
	flagged map[domain.BankID]bool
}

func NewFakeComplianceClient() *FakeComplianceClient {
	return &FakeComplianceClient{flagged: map[domain.BankID]bool{}}
}

func (f *FakeComplianceClient) Flag(bank domain.BankID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged[bank] = true
}

func (f *FakeComplianceClient) Review(_ context.Context, p domain.Payment) (domain.Vote, string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.flagged[p.Payee] {
		return domain.VoteReject, "payee bank flagged", nil
	}
	return domain.VoteApprove, "", nil
}

// FakeRiskClient always approves.
type FakeRiskClient struct{}

func (FakeRiskClient) Score(_ context.Context, _ domain.Payment) (domain.Vote, string, error) {
	return domain.VoteApprove, "", nil
}

// FakeBankBalanceProvider returns a fixed or programmed balance per account.
type FakeBankBalanceProvider struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

func NewFakeBankBalanceProvider() *FakeBankBalanceProvider {
	return &FakeBankBalanceProvider{balances: map[string]decimal.Decimal{}}
}

func (f *FakeBankBalanceProvider) Set(accountID string, balance decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[accountID] = balance
}

func (f *FakeBankBalanceProvider) CurrentBalance(_ context.Context, accountID string) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.balances[accountID], nil
}

// FakeFXProvider reports no rate available, matching §4.4's
// "otherwise skipped" cross-currency optimization default.
type FakeFXProvider struct{}

func (FakeFXProvider) Rate(_ context.Context, _, _ domain.Currency) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}
