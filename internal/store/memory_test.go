package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paynet/nexus-clearing/internal/domain"
)

func TestCASWindowStatusRejectsStaleVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := domain.ClearingWindow{ID: "w1", Status: domain.WindowOpen, Version: 0}
	require.NoError(t, s.SaveWindow(ctx, w))

	newVersion, err := s.CASWindowStatus(ctx, "w1", 0, domain.WindowClosing)
	require.NoError(t, err)
	assert.Equal(t, int64(1), newVersion)

	_, err = s.CASWindowStatus(ctx, "w1", 0, domain.WindowClosing)
	assert.Error(t, err, "stale expected version must be rejected")
}

func TestReserveBalanceRespectsCircuitBreaker(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.SeedAccount(domain.EMIAccount{
		ID:            "acct-1",
		BankID:        "BANK_A",
		Currency:      "USD",
		LedgerBalance: decimal.NewFromInt(1000),
		Breaker:       domain.BreakerOpen,
	})

	err := s.ReserveBalance(ctx, "BANK_A", "USD", decimal.NewFromInt(100))
	assert.Error(t, err)

	open, err := s.IsCircuitOpen(ctx, "BANK_A")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestReserveThenReleaseBalanceNetsToZero(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.SeedAccount(domain.EMIAccount{ID: "acct-2", BankID: "BANK_B", Currency: "USD", LedgerBalance: decimal.NewFromInt(500)})

	require.NoError(t, s.ReserveBalance(ctx, "BANK_B", "USD", decimal.NewFromInt(200)))
	reserved, err := s.ReservedBalance(ctx, "BANK_B", "USD")
	require.NoError(t, err)
	assert.True(t, reserved.Equal(decimal.NewFromInt(200)))

	require.NoError(t, s.ReleaseBalance(ctx, "BANK_B", "USD", decimal.NewFromInt(200)))
	reserved, err = s.ReservedBalance(ctx, "BANK_B", "USD")
	require.NoError(t, err)
	assert.True(t, reserved.IsZero())
}

func TestPendingObligationsFiltersByWindowAndStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	ob1, _ := domain.NewObligation("w1", "p1", "USD", "BANK_A", "BANK_B", decimal.NewFromInt(10))
	ob2, _ := domain.NewObligation("w1", "p2", "USD", "BANK_A", "BANK_B", decimal.NewFromInt(20))
	ob2.Status = domain.ObligationNetted
	ob3, _ := domain.NewObligation("w2", "p3", "USD", "BANK_A", "BANK_B", decimal.NewFromInt(30))
	require.NoError(t, s.SaveObligation(ctx, ob1))
	require.NoError(t, s.SaveObligation(ctx, ob2))
	require.NoError(t, s.SaveObligation(ctx, ob3))

	pending, err := s.PendingObligations(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ob1.ID, pending[0].ID)
}
