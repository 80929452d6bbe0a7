// Package orchestrator implements the Clearing Orchestrator: the
// per-window pipeline that runs after a window closes — collect,
// validate, net, optimize, generate instructions, risk review, hand
// off to settlement, and finalize.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/clearing/graph"
	"github.com/paynet/nexus-clearing/internal/clearing/netting"
	"github.com/paynet/nexus-clearing/internal/clearing/window"
	"github.com/paynet/nexus-clearing/internal/corerr"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/ports"
	"github.com/paynet/nexus-clearing/internal/telemetry/log"
)

// Store is the persistence surface the orchestrator needs beyond the
// window manager: obligation loading/mutation and result persistence.
type Store interface {
	PendingObligations(ctx context.Context, windowID string) ([]domain.Obligation, error)
	SaveObligation(ctx context.Context, o domain.Obligation) error
	SavePositions(ctx context.Context, positions []domain.NetPosition) error
	SaveInstructions(ctx context.Context, instructions []domain.SettlementInstruction) error
	ReservedBalance(ctx context.Context, bank domain.BankID, currency domain.Currency) (decimal.Decimal, error)
	BilateralCap(ctx context.Context, bank domain.BankID) (decimal.Decimal, error)
}

// Config tunes per-window processing behavior.
type Config struct {
	Netting            netting.Config
	InstructionHorizon time.Duration
	PriorityThreshold  decimal.Decimal
}

// WindowResult summarizes one window's orchestration outcome.
type WindowResult struct {
	WindowID     string
	Degraded     bool
	Quarantined  []domain.Obligation
	Instructions []domain.SettlementInstruction
	Positions    []domain.NetPosition
}

// Orchestrator drives the Collect->...->Finalize pipeline for one
// closed window.
type Orchestrator struct {
	store   Store
	windows *window.Manager
	risk    ports.RiskReviewer
	settle  ports.SettlementPublisher
	cfg     Config
}

// New constructs an Orchestrator.
func New(store Store, windows *window.Manager, risk ports.RiskReviewer, settle ports.SettlementPublisher, cfg Config) *Orchestrator {
	return &Orchestrator{store: store, windows: windows, risk: risk, settle: settle, cfg: cfg}
}

// Run executes the full pipeline for a Closed window, transitioning it
// through Processing and Settling to Completed (or Failed, triggering
// rollback).
func (o *Orchestrator) Run(ctx context.Context, windowID string) (WindowResult, error) {
	logger := log.For("clearing.orchestrator").Sugar()

	if _, err := o.windows.MarkProcessing(ctx, windowID); err != nil {
		return WindowResult{}, err
	}

	// 1. Collect.
	obligations, err := o.store.PendingObligations(ctx, windowID)
	if err != nil {
		o.fail(ctx, windowID)
		return WindowResult{}, corerr.Wrap(corerr.KindTransientInfra, "collect obligations", err)
	}

	// 2. Validate.
	accepted, quarantined := o.validate(ctx, obligations)

	// 3. Net, per currency, in parallel.
	byCurrency := groupByCurrency(accepted)
	type currencyResult struct {
		currency domain.Currency
		result   netting.Result
		degraded bool
	}

	results := make(chan currencyResult, len(byCurrency))
	for currency, obs := range byCurrency {
		go func(currency domain.Currency, obs []domain.Obligation) {
			g := graph.New(currency)
			for _, ob := range obs {
				g.Add(ob.ID, ob.Payer, ob.Payee, ob.Amount)
			}
			res := safeOptimize(g, o.cfg.Netting)
			results <- currencyResult{currency: currency, result: res, degraded: res.Degraded}
		}(currency, obs)
	}

	var allPositions []domain.NetPosition
	var allInstructions []domain.SettlementInstruction
	degraded := false
	for range byCurrency {
		cr := <-results
		allPositions = append(allPositions, cr.result.Positions...)
		allInstructions = append(allInstructions, toSettlementInstructions(cr.result.Instructions, o.cfg)...)
		degraded = degraded || cr.degraded
	}
	sort.Slice(allInstructions, func(i, j int) bool { return allInstructions[i].ID < allInstructions[j].ID })

	if err := o.store.SavePositions(ctx, allPositions); err != nil {
		o.fail(ctx, windowID)
		return WindowResult{}, corerr.Wrap(corerr.KindTransientInfra, "save positions", err)
	}

	// 6. Risk review.
	final := allInstructions[:0]
	for _, instr := range allInstructions {
		approved, err := o.risk.ReviewInstruction(ctx, instr)
		if err != nil {
			logger.Warnw("risk review error, dropping instruction", "instruction_id", instr.ID, "err", err)
			continue
		}
		if !approved {
			continue
		}
		final = append(final, instr)
	}

	if err := o.store.SaveInstructions(ctx, final); err != nil {
		o.fail(ctx, windowID)
		return WindowResult{}, corerr.Wrap(corerr.KindTransientInfra, "save instructions", err)
	}

	// 7. Hand off.
	if _, err := o.windows.MarkSettling(ctx, windowID); err != nil {
		return WindowResult{}, err
	}
	for _, instr := range final {
		if err := o.settle.RequestSettlement(ctx, instr); err != nil {
			logger.Errorw("settlement hand-off failed", "instruction_id", instr.ID, "err", err)
			o.fail(ctx, windowID)
			return WindowResult{}, corerr.Wrap(corerr.KindTransientInfra, "request settlement", err)
		}
	}

	// 8. Finalize.
	if _, err := o.windows.MarkCompleted(ctx, windowID); err != nil {
		return WindowResult{}, err
	}

	return WindowResult{
		WindowID:     windowID,
		Degraded:     degraded,
		Quarantined:  quarantined,
		Instructions: final,
		Positions:    allPositions,
	}, nil
}

func (o *Orchestrator) fail(ctx context.Context, windowID string) {
	if _, err := o.windows.MarkFailed(ctx, windowID); err != nil {
		log.For("clearing.orchestrator").Sugar().Errorw("failed to mark window failed", "window_id", windowID, "err", err)
		return
	}
	_, err := o.windows.Rollback(ctx, windowID, func(nextWindowID string) error {
		pending, err := o.store.PendingObligations(ctx, windowID)
		for i := 0; err == nil && i < len(pending); i++ {
			pending[i].WindowID = nextWindowID
			err = o.store.SaveObligation(ctx, pending[i])
		}
		return err
	})
	if err != nil {
		log.For("clearing.orchestrator").Sugar().Errorw("failed to roll back window", "window_id", windowID, "err", err)
	}
}

// validate rejects obligations whose payer's reserved balance no
// longer covers the amount, or whose bank exceeds its bilateral cap.
// Rejected obligations are returned separately for manual review.
func (o *Orchestrator) validate(ctx context.Context, obligations []domain.Obligation) (accepted, quarantined []domain.Obligation) {
	for _, ob := range obligations {
		reserved, err := o.store.ReservedBalance(ctx, ob.Payer, ob.Currency)
		if err != nil || reserved.LessThan(ob.Amount) {
			quarantined = append(quarantined, ob)
			continue
		}
		cap, err := o.store.BilateralCap(ctx, ob.Payer)
		if err != nil || (cap.IsPositive() && ob.Amount.GreaterThan(cap)) {
			quarantined = append(quarantined, ob)
			continue
		}
		accepted = append(accepted, ob)
	}
	return accepted, quarantined
}

func groupByCurrency(obligations []domain.Obligation) map[domain.Currency][]domain.Obligation {
	out := make(map[domain.Currency][]domain.Obligation)
	for _, ob := range obligations {
		out[ob.Currency] = append(out[ob.Currency], ob)
	}
	return out
}

// safeOptimize runs the netting optimizer, falling back to gross
// settlement (one instruction per surviving edge, Degraded=true) if
// Optimize panics on an internal invariant violation — mirroring the
// fallback §4.4 specifies for NO failure.
func safeOptimize(g *graph.Graph, cfg netting.Config) (res netting.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.For("clearing.orchestrator").Sugar().Errorw("netting optimizer panicked, falling back to gross settlement", "panic", fmt.Sprintf("%v", r))
			res = netting.Result{
				Positions:    nil,
				Instructions: grossInstructions(g),
				Degraded:     true,
			}
		}
	}()
	return netting.Optimize("", g, cfg)
}

func grossInstructions(g *graph.Graph) []domain.SettlementInstruction {
	edges := g.Edges()
	out := make([]domain.SettlementInstruction, 0, len(edges))
	for _, e := range edges {
		out = append(out, domain.SettlementInstruction{
			ID:       domain.NewID(),
			Currency: g.Currency,
			Payer:    e.Payer,
			Payee:    e.Payee,
			Amount:   e.Amount,
		})
	}
	return out
}

func toSettlementInstructions(instrs []domain.SettlementInstruction, cfg Config) []domain.SettlementInstruction {
	out := make([]domain.SettlementInstruction, len(instrs))
	deadline := time.Now().Add(cfg.InstructionHorizon)
	for i, instr := range instrs {
		instr.Deadline = deadline
		if cfg.PriorityThreshold.IsPositive() {
			ratio, _ := instr.Amount.Div(cfg.PriorityThreshold).Float64()
			instr.Priority = int(math.Round(ratio))
		}
		out[i] = instr
	}
	return out
}
