// Command paymentgen is a load generator for the clearing core,
// adapted from Nexus-Lite's ISO 20022 transaction producer
// (producer/main.go): instead of publishing pacs.008 XML to Kafka, it
// drives real domain.Payment submissions through the Atomic Payment
// Orchestrator at a target rate, so the clearing pipeline has traffic
// to clear, reconcile, and surface on the admin RPCs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/clearing/window"
	"github.com/paynet/nexus-clearing/internal/config"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/payment/apo"
	"github.com/paynet/nexus-clearing/internal/ports"
	"github.com/paynet/nexus-clearing/internal/store"
	"github.com/paynet/nexus-clearing/internal/telemetry/log"
)

// bank is one participating institution a generated payment can name
// as payer or payee, mirroring the teacher's network.json Bank shape
// without the ISO 20022 BIC/XML fields this rail doesn't use.
type bank struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
}

var defaultBanks = []bank{
	{ID: "BANK_SG_DBS", Currency: "SGD"},
	{ID: "BANK_TH_BBL", Currency: "THB"},
	{ID: "BANK_PH_BDO", Currency: "PHP"},
	{ID: "BANK_MY_MBB", Currency: "MYR"},
	{ID: "BANK_ID_BCA", Currency: "IDR"},
}

func loadBanks(path string) ([]bank, error) {
	if path == "" {
		return defaultBanks, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var banks []bank
	if err := json.NewDecoder(f).Decode(&banks); err != nil {
		return nil, err
	}
	if len(banks) < 2 {
		return nil, fmt.Errorf("paymentgen: config must list at least two banks")
	}
	return banks, nil
}

// metrics tracks load-generator throughput for the health endpoint,
// the same liveness/readiness split producer/health.go exposes.
type metrics struct {
	submitted int64
	rejected  int64
	startedAt time.Time
}

var runMetrics = metrics{startedAt: time.Now()}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"service":   "paymentgen",
		"uptime":    time.Since(runMetrics.startedAt).String(),
		"submitted": atomic.LoadInt64(&runMetrics.submitted),
		"rejected":  atomic.LoadInt64(&runMetrics.rejected),
	})
}

func startHealthServer(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.For("cmd.paymentgen").Sugar().Errorw("health server stopped", "err", err)
		}
	}()
}

func randomAmount(currency string) decimal.Decimal {
	base := rand.Float64()*9999 + 1
	if currency == "IDR" || currency == "VND" {
		base *= 1000
	}
	return decimal.NewFromFloat(base).Round(2)
}

func genLoop(ctx context.Context, orch *apo.Orchestrator, banks []bank, tps int) {
	ticker := time.NewTicker(time.Second / time.Duration(tps))
	defer ticker.Stop()

	batchTicker := time.NewTicker(10 * time.Second)
	defer batchTicker.Stop()

	sugar := log.For("cmd.paymentgen").Sugar()

	for {
		select {
		case <-ctx.Done():
			sugar.Infow("paymentgen shutting down", "submitted", atomic.LoadInt64(&runMetrics.submitted))
			return
		case <-batchTicker.C:
			sugar.Infow("paymentgen throughput",
				"submitted", atomic.LoadInt64(&runMetrics.submitted),
				"rejected", atomic.LoadInt64(&runMetrics.rejected))
		case <-ticker.C:
			srcIdx := rand.Intn(len(banks))
			dstIdx := rand.Intn(len(banks))
			for dstIdx == srcIdx {
				dstIdx = rand.Intn(len(banks))
			}
			src, dst := banks[srcIdx], banks[dstIdx]
			amount := randomAmount(src.Currency)
			idemKey := domain.NewID()

			_, err := orch.Initiate(ctx, idemKey, domain.Currency(src.Currency), domain.BankID(src.ID), domain.BankID(dst.ID), amount)
			if err != nil {
				atomic.AddInt64(&runMetrics.rejected, 1)
				sugar.Debugw("payment rejected", "payer", src.ID, "payee", dst.ID, "err", err)
				continue
			}
			atomic.AddInt64(&runMetrics.submitted, 1)
		}
	}
}

func main() {
	healthAddr := flag.String("health", ":8091", "paymentgen health check server address")
	configPath := flag.String("config", "", "path to a bank list JSON file (defaults to a built-in ASEAN sample)")
	region := flag.String("region", "ASEAN", "clearing region new windows open against")
	tps := flag.Int("tps", 20, "target payments per second")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.For("cmd.paymentgen").Sugar().Fatalw("load config", "err", err)
	}

	banks, err := loadBanks(*configPath)
	if err != nil {
		log.For("cmd.paymentgen").Sugar().Fatalw("load banks", "err", err)
	}

	s := store.New()
	for _, b := range banks {
		s.SetReservedBalance(domain.BankID(b.ID), domain.Currency(b.Currency), decimal.Zero)
		s.SetBilateralCap(domain.BankID(b.ID), decimal.NewFromInt(10_000_000))
	}

	windows := window.New(s, noopBroadcaster{})
	if _, err := windows.OpenWindow(context.Background(), *region, cfg.Window.Duration, 0, cfg.Window.Grace); err != nil {
		log.For("cmd.paymentgen").Sugar().Fatalw("open initial window", "err", err)
	}

	currentWindow := func(ctx context.Context, _ domain.BankID) (string, error) {
		w, err := windows.CurrentWindow(ctx, *region)
		if err != nil {
			return "", err
		}
		return w.ID, nil
	}

	orch := apo.New(s, ports.NewFakeComplianceClient(), ports.FakeRiskClient{}, currentWindow, cfg.Idempotency.TTL)

	startHealthServer(*healthAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	log.For("cmd.paymentgen").Sugar().Infow("paymentgen starting", "region", *region, "tps", *tps, "banks", len(banks))
	genLoop(ctx, orch, banks, *tps)
	log.Sync()
}

// noopBroadcaster is used when paymentgen runs standalone against an
// in-process store, without an admin dashboard listening.
type noopBroadcaster struct{}

func (noopBroadcaster) WindowClosing(domain.ClearingWindow) {}
func (noopBroadcaster) WindowClosed(domain.ClearingWindow)  {}
