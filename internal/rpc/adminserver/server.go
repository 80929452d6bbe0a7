package adminserver

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/clearing/window"
	"github.com/paynet/nexus-clearing/internal/corerr"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/payment/apo"
	"github.com/paynet/nexus-clearing/internal/reconciliation"
	"github.com/paynet/nexus-clearing/internal/rpc/adminpb"
	"github.com/paynet/nexus-clearing/internal/validate"
)

// ObligationStore is the subset of the SSA needed to requeue a rolled
// back window's obligations onto the next window of the same region.
type ObligationStore interface {
	PendingObligations(ctx context.Context, windowID string) ([]domain.Obligation, error)
	SaveObligation(ctx context.Context, o domain.Obligation) error
}

// Server implements AdminServer over the window manager, reconciliation
// engine, and payment orchestrator it is constructed with.
type Server struct {
	windows     *window.Manager
	reconciler  *reconciliation.Engine
	payments    *apo.Orchestrator
	obligations ObligationStore
	validator   *validate.Validator
}

// New constructs a Server wiring the three core services behind one
// admin RPC surface.
func New(windows *window.Manager, reconciler *reconciliation.Engine, payments *apo.Orchestrator, obligations ObligationStore) *Server {
	return &Server{
		windows:     windows,
		reconciler:  reconciler,
		payments:    payments,
		obligations: obligations,
		validator:   validate.New(),
	}
}

func toWindowMessage(w domain.ClearingWindow) *adminpb.WindowMessage {
	msg := &adminpb.WindowMessage{
		Id:           w.ID,
		Region:       w.Region,
		Status:       string(w.Status),
		CutoffUnix:   w.Cutoff.Unix(),
		GraceSeconds: int64(w.Grace.Seconds()),
		OpenedAtUnix: w.OpenedAt.Unix(),
	}
	if !w.ClosedAt.IsZero() {
		msg.ClosedAtUnix = w.ClosedAt.Unix()
	}
	return msg
}

type currentWindowRequest struct {
	Region string `validate:"required"`
}

// CurrentWindow implements AdminServer.
func (s *Server) CurrentWindow(ctx context.Context, req *adminpb.WindowCurrentRequest) (*adminpb.WindowMessage, error) {
	if err := s.validator.Struct(currentWindowRequest{Region: req.Region}); err != nil {
		return nil, err
	}
	w, err := s.windows.CurrentWindow(ctx, req.Region)
	if err != nil {
		return nil, err
	}
	return toWindowMessage(w), nil
}

type windowIDRequest struct {
	WindowID string `validate:"required"`
}

// ForceCloseWindow implements AdminServer: an operator-triggered close,
// using the same lifecycle CloseWindow drives for scheduler-triggered
// closes.
func (s *Server) ForceCloseWindow(ctx context.Context, req *adminpb.WindowForceCloseRequest) (*adminpb.WindowMessage, error) {
	if err := s.validator.Struct(windowIDRequest{WindowID: req.WindowId}); err != nil {
		return nil, err
	}
	w, err := s.windows.CloseWindow(ctx, req.WindowId)
	if err != nil {
		return nil, err
	}
	return toWindowMessage(w), nil
}

// RollbackWindow implements AdminServer: moves a Failed window's
// pending obligations onto the next open window of the same region.
func (s *Server) RollbackWindow(ctx context.Context, req *adminpb.WindowRollbackRequest) (*adminpb.WindowMessage, error) {
	if err := s.validator.Struct(windowIDRequest{WindowID: req.WindowId}); err != nil {
		return nil, err
	}
	requeue := func(nextWindowID string) error {
		pending, err := s.obligations.PendingObligations(ctx, req.WindowId)
		if err != nil {
			return err
		}
		for _, ob := range pending {
			ob.WindowID = nextWindowID
			if err := s.obligations.SaveObligation(ctx, ob); err != nil {
				return err
			}
		}
		return nil
	}
	w, err := s.windows.Rollback(ctx, req.WindowId, requeue)
	if err != nil {
		return nil, err
	}
	return toWindowMessage(w), nil
}

type triggerRequest struct {
	AccountID string `validate:"required"`
	Tier      int32  `validate:"oneof=1 2"`
}

// TriggerReconciliation implements AdminServer: runs an ad hoc Tier-1
// (zero-delta re-check) pass for one account, or a Tier-2 (bank-adapter
// poll) pass over every active account.
func (s *Server) TriggerReconciliation(ctx context.Context, req *adminpb.ReconciliationTriggerRequest) (*adminpb.ReconciliationTriggerResponse, error) {
	if err := s.validator.Struct(triggerRequest{AccountID: req.AccountId, Tier: req.Tier}); err != nil {
		return nil, err
	}
	switch req.Tier {
	case 1:
		if err := s.reconciler.Tier1Notify(ctx, req.AccountId, decimal.Zero, "admin-trigger"); err != nil {
			return nil, err
		}
	case 2:
		if err := s.reconciler.Tier2Poll(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, corerr.New(corerr.KindValidation, "tier must be 1 or 2")
	}
	return &adminpb.ReconciliationTriggerResponse{Severity: "triggered"}, nil
}

// ReconciliationSummary implements AdminServer.
func (s *Server) ReconciliationSummary(ctx context.Context, _ *adminpb.ReconciliationSummaryRequest) (*adminpb.ReconciliationSummaryResponse, error) {
	summary, err := s.reconciler.Summarize(ctx)
	if err != nil {
		return nil, err
	}
	resp := &adminpb.ReconciliationSummaryResponse{Total: int32(summary.Total)}
	for tier, bySeverity := range summary.ByTier {
		for severity, count := range bySeverity {
			resp.Counts = append(resp.Counts, &adminpb.SeverityTierCount{
				Tier:     int32(tier),
				Severity: string(severity),
				Count:    int32(count),
			})
		}
	}
	return resp, nil
}

type paymentIDRequest struct {
	PaymentID string `validate:"required"`
}

// PaymentStatus implements AdminServer: the payment's current state
// plus its full append-only decision timeline.
func (s *Server) PaymentStatus(ctx context.Context, req *adminpb.PaymentStatusRequest) (*adminpb.PaymentStatusResponse, error) {
	if err := s.validator.Struct(paymentIDRequest{PaymentID: req.PaymentId}); err != nil {
		return nil, err
	}
	status, err := s.payments.PaymentStatus(ctx, req.PaymentId)
	if err != nil {
		return nil, err
	}
	resp := &adminpb.PaymentStatusResponse{
		PaymentId: status.Payment.ID,
		Status:    string(status.Payment.Status),
		Currency:  string(status.Payment.Currency),
		Payer:     string(status.Payment.Payer),
		Payee:     string(status.Payment.Payee),
		Amount:    status.Payment.Amount.String(),
		Outcome:   string(status.Decision.Outcome),
	}
	for _, e := range status.Decision.Entries {
		resp.Entries = append(resp.Entries, &adminpb.DecisionEntryMessage{
			Service:        e.Service,
			Vote:           string(e.Vote),
			Reason:         e.Reason,
			RecordedAtUnix: e.RecordedAt.Unix(),
		})
	}
	return resp, nil
}
