// Command nexusctl is the clearing core's operator CLI, built with
// spf13/cobra the way the rest of the pack's operator tooling is
// shaped. It has two faces: `nexusctl serve` boots the admin gRPC
// service and WebSocket dashboard feed in-process against an
// in-memory store, and the remaining subcommands (window/reconcile/
// payment) are a thin AdminClient wrapper for driving that surface
// from a terminal.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/paynet/nexus-clearing/internal/adminws"
	"github.com/paynet/nexus-clearing/internal/clearing/window"
	"github.com/paynet/nexus-clearing/internal/config"
	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/payment/apo"
	"github.com/paynet/nexus-clearing/internal/ports"
	"github.com/paynet/nexus-clearing/internal/reconciliation"
	"github.com/paynet/nexus-clearing/internal/rpc/adminpb"
	"github.com/paynet/nexus-clearing/internal/rpc/adminserver"
	"github.com/paynet/nexus-clearing/internal/store"
	"github.com/paynet/nexus-clearing/internal/telemetry/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dialAddr string

	root := &cobra.Command{
		Use:   "nexusctl",
		Short: "Operate the cross-border clearing core's admin surface",
	}
	root.PersistentFlags().StringVar(&dialAddr, "addr", "localhost:9090", "admin gRPC service address")

	root.AddCommand(newServeCmd())
	root.AddCommand(newWindowCmd(&dialAddr))
	root.AddCommand(newReconcileCmd(&dialAddr))
	root.AddCommand(newPaymentCmd(&dialAddr))
	return root
}

func dial(addr string) (adminserver.AdminClient, *grpc.ClientConn, error) {
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("nexusctl: dial %s: %w", addr, err)
	}
	return adminserver.NewAdminClient(conn), conn, nil
}

// newServeCmd boots the admin gRPC server and WebSocket dashboard feed
// against a fresh in-memory store, the same all-in-process topology
// cmd/paymentgen uses for load generation.
func newServeCmd() *cobra.Command {
	var grpcAddr, wsAddr, region string
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin gRPC service and dashboard WebSocket feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dev {
				if err := log.SetDevelopment(); err != nil {
					return err
				}
			}
			sugar := log.For("cmd.nexusctl").Sugar()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if grpcAddr == "" {
				grpcAddr = cfg.Admin.GRPCAddr
			}
			if wsAddr == "" {
				wsAddr = cfg.Admin.WSAddr
			}

			s := store.New()
			hub := adminws.NewHub()
			go hub.Run()

			windows := window.New(s, hub)
			thresholds := domain.Thresholds{
				Minor:       cfg.Recon.Thresholds.Minor,
				Significant: cfg.Recon.Thresholds.Significant,
				Critical:    cfg.Recon.Thresholds.Critical,
			}
			engine := reconciliation.New(s, ports.NewFakeBankBalanceProvider(), hub, thresholds)

			currentWindow := func(ctx context.Context, _ domain.BankID) (string, error) {
				w, err := windows.CurrentWindow(ctx, region)
				if err != nil {
					return "", err
				}
				return w.ID, nil
			}
			orch := apo.New(s, ports.NewFakeComplianceClient(), ports.FakeRiskClient{}, currentWindow, cfg.Idempotency.TTL)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := windows.OpenWindow(ctx, region, cfg.Window.Duration, 0, cfg.Window.Grace); err != nil {
				sugar.Warnw("no initial window opened", "region", region, "err", err)
			}

			srv := adminserver.New(windows, engine, orch, s)

			lis, err := net.Listen("tcp", grpcAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", grpcAddr, err)
			}
			grpcServer := grpc.NewServer()
			adminserver.RegisterAdminServer(grpcServer, srv)

			go func() {
				sugar.Infow("admin gRPC service listening", "addr", grpcAddr)
				if err := grpcServer.Serve(lis); err != nil {
					sugar.Errorw("grpc server stopped", "err", err)
				}
			}()

			go func() {
				sugar.Infow("admin dashboard feed listening", "addr", wsAddr)
				if err := http.ListenAndServe(wsAddr, hub); err != nil {
					sugar.Errorw("websocket server stopped", "err", err)
				}
			}()

			<-ctx.Done()
			grpcServer.GracefulStop()
			log.Sync()
			return nil
		},
	}
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "override the configured admin gRPC address")
	cmd.Flags().StringVar(&wsAddr, "ws-addr", "", "override the configured dashboard WebSocket address")
	cmd.Flags().StringVar(&region, "region", "ASEAN", "clearing region to open the initial window for")
	cmd.Flags().BoolVar(&dev, "dev", false, "use a human-readable development logger")
	return cmd
}

func newWindowCmd(dialAddr *string) *cobra.Command {
	cmd := &cobra.Command{Use: "window", Short: "Inspect and operate clearing windows"}

	current := &cobra.Command{
		Use:   "current <region>",
		Short: "Show the currently open window for a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, conn, err := dial(*dialAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := client.CurrentWindow(cmd.Context(), &adminpb.WindowCurrentRequest{Region: args[0]})
			if err != nil {
				return err
			}
			printWindow(resp)
			return nil
		},
	}

	forceClose := &cobra.Command{
		Use:   "force-close <window-id>",
		Short: "Force-close a window ahead of its scheduled cutoff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, conn, err := dial(*dialAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := client.ForceCloseWindow(cmd.Context(), &adminpb.WindowForceCloseRequest{WindowId: args[0]})
			if err != nil {
				return err
			}
			printWindow(resp)
			return nil
		},
	}

	rollback := &cobra.Command{
		Use:   "rollback <window-id>",
		Short: "Roll a failed window's pending obligations onto the next window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, conn, err := dial(*dialAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := client.RollbackWindow(cmd.Context(), &adminpb.WindowRollbackRequest{WindowId: args[0]})
			if err != nil {
				return err
			}
			printWindow(resp)
			return nil
		},
	}

	cmd.AddCommand(current, forceClose, rollback)
	return cmd
}

func newReconcileCmd(dialAddr *string) *cobra.Command {
	cmd := &cobra.Command{Use: "reconcile", Short: "Trigger and inspect token reconciliation"}

	var tier int32
	trigger := &cobra.Command{
		Use:   "trigger <account-id>",
		Short: "Run an ad hoc Tier-1 pass for one account, or a Tier-2 poll of all active accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, conn, err := dial(*dialAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := client.TriggerReconciliation(cmd.Context(), &adminpb.ReconciliationTriggerRequest{AccountId: args[0], Tier: tier})
			if err != nil {
				return err
			}
			fmt.Println(resp.Severity)
			return nil
		},
	}
	trigger.Flags().Int32Var(&tier, "tier", 1, "reconciliation tier to run (1 or 2)")

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Show reconciliation pass counts by severity and tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, conn, err := dial(*dialAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := client.ReconciliationSummary(cmd.Context(), &adminpb.ReconciliationSummaryRequest{})
			if err != nil {
				return err
			}
			fmt.Printf("total: %d\n", resp.Total)
			for _, c := range resp.Counts {
				fmt.Printf("  tier=%d severity=%-12s count=%d\n", c.Tier, c.Severity, c.Count)
			}
			return nil
		},
	}

	cmd.AddCommand(trigger, summary)
	return cmd
}

func newPaymentCmd(dialAddr *string) *cobra.Command {
	cmd := &cobra.Command{Use: "payment", Short: "Inspect in-flight and settled payments"}

	status := &cobra.Command{
		Use:   "status <payment-id>",
		Short: "Show a payment's current state and decision timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, conn, err := dial(*dialAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := client.PaymentStatus(cmd.Context(), &adminpb.PaymentStatusRequest{PaymentId: args[0]})
			if err != nil {
				return err
			}
			fmt.Printf("payment %s: %s %s %s -> %s (outcome: %s)\n",
				resp.PaymentId, resp.Status, resp.Amount, resp.Payer, resp.Payee, resp.Outcome)
			for _, e := range resp.Entries {
				fmt.Printf("  [%s] %s: %s (%s)\n",
					time.Unix(e.RecordedAtUnix, 0).Format(time.RFC3339), e.Service, e.Vote, e.Reason)
			}
			return nil
		},
	}

	cmd.AddCommand(status)
	return cmd
}

func printWindow(w *adminpb.WindowMessage) {
	fmt.Printf("window %s region=%s status=%s cutoff=%s grace=%ds\n",
		w.Id, w.Region, w.Status, time.Unix(w.CutoffUnix, 0).Format(time.RFC3339), w.GraceSeconds)
}
