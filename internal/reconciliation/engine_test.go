package reconciliation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paynet/nexus-clearing/internal/domain"
)

type memStore struct {
	mu            sync.Mutex
	accounts      map[string]domain.EMIAccount
	snapshots     []domain.AccountSnapshot
	discrepancies []domain.Discrepancy
	obligations   map[string]domain.Obligation
}

func newMemStore(a domain.EMIAccount) *memStore {
	return &memStore{
		accounts:    map[string]domain.EMIAccount{a.ID: a},
		obligations: map[string]domain.Obligation{},
	}
}

func (s *memStore) LoadAccount(_ context.Context, accountID string) (domain.EMIAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID], nil
}

func (s *memStore) CASAccount(_ context.Context, account domain.EMIAccount) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.accounts[account.ID]
	if account.Version != 0 && account.Version != current.Version {
		return 0, assertErr{"version mismatch"}
	}
	account.Version = current.Version + 1
	s.accounts[account.ID] = account
	return account.Version, nil
}

func (s *memStore) ActiveAccounts(_ context.Context) ([]domain.EMIAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EMIAccount
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (s *memStore) SaveSnapshot(_ context.Context, snap domain.AccountSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *memStore) Snapshots(_ context.Context) ([]domain.AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AccountSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out, nil
}

func (s *memStore) SaveDiscrepancy(_ context.Context, d domain.Discrepancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discrepancies = append(s.discrepancies, d)
	return nil
}

func (s *memStore) CorrelatedObligation(_ context.Context, correlationID string) (domain.Obligation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob, ok := s.obligations[correlationID]
	return ob, ok, nil
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

type fakeBankAdapter struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func (f *fakeBankAdapter) CurrentBalance(_ context.Context, accountID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[accountID], nil
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	alerts  int
	breaker []bool
}

func (r *recordingBroadcaster) Alert(string, domain.DiscrepancySeverity, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts++
}

func (r *recordingBroadcaster) CircuitBreaker(_ string, opened bool, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breaker = append(r.breaker, opened)
}

func defaultThresholds() domain.Thresholds {
	return domain.Thresholds{Minor: 1e-4, Significant: 5e-4, Critical: 5e-3}
}

// TestCircuitBreakerTriggerAndReset is literal scenario 4: an account
// with ledger=1,000,000, bank_reported updated to 990,000 via Tier-1.
// diff = 0.01 >= 5e-3, so the breaker opens; a mint request must then
// see it blocked; reset with (actor=op1, reason=...) closes it but a
// fresh Tier-2 Ok pass is still required before mint succeeds.
func TestCircuitBreakerTriggerAndReset(t *testing.T) {
	account := domain.EMIAccount{
		ID:                  "acct-1",
		LedgerBalance:       decimal.NewFromInt(1_000_000),
		BankReportedBalance: decimal.NewFromInt(1_000_000),
		Breaker:             domain.BreakerClosed,
	}
	store := newMemStore(account)
	bank := &fakeBankAdapter{balances: map[string]decimal.Decimal{"acct-1": decimal.NewFromInt(990_000)}}
	broadcaster := &recordingBroadcaster{}
	engine := New(store, bank, broadcaster, defaultThresholds())
	ctx := context.Background()

	require.NoError(t, engine.Tier1Notify(ctx, "acct-1", decimal.NewFromInt(-10_000), "corr-1"))

	updated, err := store.LoadAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BreakerOpen, updated.Breaker)
	assert.True(t, updated.Blocked())

	// Reset requires actor and reason.
	err = engine.ResetBreaker(ctx, "acct-1", "", "")
	assert.Error(t, err)

	require.NoError(t, engine.ResetBreaker(ctx, "acct-1", "op1", "top-up reconciled"))
	afterReset, err := store.LoadAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BreakerClosed, afterReset.Breaker)
	assert.True(t, afterReset.Blocked(), "still blocked pending a fresh Tier-2 Ok pass")

	// Bank balance now matches ledger: next Tier-2 pass clears it.
	bank.balances["acct-1"] = decimal.NewFromInt(1_000_000)
	require.NoError(t, engine.Tier2Poll(ctx))

	final, err := store.LoadAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, final.Blocked(), "fresh Ok Tier-2 pass must re-admit the account")
}

func TestClassifyBandsMatchThresholdTable(t *testing.T) {
	th := defaultThresholds()
	assert.Equal(t, domain.SeverityOk, th.Classify(decimal.NewFromInt(999_999), decimal.NewFromInt(1_000_000)))
	assert.Equal(t, domain.SeverityMinor, th.Classify(decimal.NewFromFloat(999_900), decimal.NewFromInt(1_000_000)))
	assert.Equal(t, domain.SeverityChallenge, th.Classify(decimal.NewFromFloat(999_000), decimal.NewFromInt(1_000_000)))
	assert.Equal(t, domain.SeverityCritical, th.Classify(decimal.NewFromFloat(990_000), decimal.NewFromInt(1_000_000)))
	assert.Equal(t, domain.SeverityCritical, th.Classify(decimal.NewFromInt(1_000_001), decimal.NewFromInt(1_000_000)), "ledger exceeding bank is always Critical")
}

func TestTier3MissingTxnDiscrepancy(t *testing.T) {
	account := domain.EMIAccount{ID: "acct-2", LedgerBalance: decimal.NewFromInt(500), BankReportedBalance: decimal.NewFromInt(500)}
	store := newMemStore(account)
	bank := &fakeBankAdapter{balances: map[string]decimal.Decimal{}}
	broadcaster := &recordingBroadcaster{}
	engine := New(store, bank, broadcaster, defaultThresholds())

	snap, discrepancies, err := engine.Tier3Ingest(context.Background(), "acct-2", time.Now(), []StatementEntry{
		{CorrelationID: "unknown-corr", Amount: decimal.NewFromInt(100)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityOk, snap.Severity)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, domain.DiscrepancyMissingTxn, discrepancies[0].Type)
}

func TestSummarizeCountsBySeverityAndTier(t *testing.T) {
	account := domain.EMIAccount{
		ID:                  "acct-3",
		LedgerBalance:       decimal.NewFromInt(1_000_000),
		BankReportedBalance: decimal.NewFromInt(1_000_000),
	}
	store := newMemStore(account)
	bank := &fakeBankAdapter{balances: map[string]decimal.Decimal{"acct-3": decimal.NewFromInt(1_000_000)}}
	engine := New(store, bank, &recordingBroadcaster{}, defaultThresholds())
	ctx := context.Background()

	require.NoError(t, engine.Tier1Notify(ctx, "acct-3", decimal.Zero, "corr-ok"))
	require.NoError(t, engine.Tier2Poll(ctx))

	summary, err := engine.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.BySeverity[domain.SeverityOk])
	assert.Equal(t, 1, summary.ByTier[1][domain.SeverityOk])
	assert.Equal(t, 1, summary.ByTier[2][domain.SeverityOk])
}
