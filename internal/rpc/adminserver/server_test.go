package adminserver

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paynet/nexus-clearing/internal/adminws"
	"github.com/paynet/nexus-clearing/internal/clearing/window"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/payment/apo"
	"github.com/paynet/nexus-clearing/internal/ports"
	"github.com/paynet/nexus-clearing/internal/reconciliation"
	"github.com/paynet/nexus-clearing/internal/rpc/adminpb"
	"github.com/paynet/nexus-clearing/internal/store"
)

func newTestServer() (*Server, *store.Memory) {
	s := store.New()
	hub := adminws.NewHub()
	windows := window.New(s, hub)
	thresholds := domain.Thresholds{Minor: 1e-4, Significant: 5e-4, Critical: 5e-3}
	engine := reconciliation.New(s, ports.NewFakeBankBalanceProvider(), hub, thresholds)
	orch := apo.New(s, ports.NewFakeComplianceClient(), ports.FakeRiskClient{}, func(context.Context, domain.BankID) (string, error) {
		return "", nil
	}, time.Hour)
	return New(windows, engine, orch, s), s
}

func TestCurrentWindowReturnsOpenWindow(t *testing.T) {
	srv, s := newTestServer()
	ctx := context.Background()
	w, err := srv.windows.OpenWindow(ctx, "ASEAN", time.Hour, 0, 30*time.Second)
	require.NoError(t, err)

	resp, err := srv.CurrentWindow(ctx, &adminpb.WindowCurrentRequest{Region: "ASEAN"})
	require.NoError(t, err)
	assert.Equal(t, w.ID, resp.Id)
	assert.Equal(t, "Open", resp.Status)
	_ = s
}

func TestCurrentWindowRejectsMissingRegion(t *testing.T) {
	srv, _ := newTestServer()
	_, err := srv.CurrentWindow(context.Background(), &adminpb.WindowCurrentRequest{})
	assert.Error(t, err)
}

func TestReconciliationSummaryCountsAfterTrigger(t *testing.T) {
	srv, s := newTestServer()
	ctx := context.Background()
	s.SeedAccount(domain.EMIAccount{ID: "acct-1", BankID: "BANK_A", Currency: "USD", LedgerBalance: decimal.NewFromInt(100), BankReportedBalance: decimal.NewFromInt(100)})

	_, err := srv.TriggerReconciliation(ctx, &adminpb.ReconciliationTriggerRequest{AccountId: "acct-1", Tier: 1})
	require.NoError(t, err)

	summary, err := srv.ReconciliationSummary(ctx, &adminpb.ReconciliationSummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), summary.Total)
}

func TestTriggerReconciliationRejectsBadTier(t *testing.T) {
	srv, _ := newTestServer()
	_, err := srv.TriggerReconciliation(context.Background(), &adminpb.ReconciliationTriggerRequest{AccountId: "acct-1", Tier: 9})
	assert.Error(t, err)
}
