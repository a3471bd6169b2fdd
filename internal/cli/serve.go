package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/smdnano/internal/agent"
	"github.com/ppiankov/smdnano/internal/audit"
	"github.com/ppiankov/smdnano/internal/broker"
	"github.com/ppiankov/smdnano/internal/metrics"
	"github.com/ppiankov/smdnano/internal/ratelimit"
	"github.com/ppiankov/smdnano/internal/seeds"
	"github.com/ppiankov/smdnano/internal/server"
	"github.com/ppiankov/smdnano/internal/session"
)

var (
	serveAddr        string
	serveAuditLog    string
	serveMetricsAddr string
	serveWatch       bool
	serveTTL         time.Duration
	serveGenLimit    int
	serveGenWindow   time.Duration
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr, "gRPC listen address (loopback recommended)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log JSONL file (disabled when empty)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Hot-reload the policy document when it changes")
	serveCmd.Flags().DurationVar(&serveTTL, "ttl", session.DefaultTTL, "Lifetime of a pending secret awaiting fill")
	serveCmd.Flags().IntVar(&serveGenLimit, "generate-limit", 30, "Max generate requests per domain per window (0 = unlimited)")
	serveCmd.Flags().DurationVar(&serveGenWindow, "generate-window", time.Minute, "Window for --generate-limit")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session broker",
	Long: `Runs the broker that owns pending secrets, the policy engine and the page
agent. UIs and browser bridges connect over gRPC. Seeds are created on first
run.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	s, created, err := seeds.Ensure(seedsPath)
	if err != nil {
		return fmt.Errorf("failed to load seeds: %w", err)
	}
	if created {
		fmt.Fprintf(os.Stderr, "Created install seeds: %s\n", seedsPath)
	}

	engine := loadEngine()
	browser := agent.NewBrowser(logger)
	cache := session.New(browser, engine, browser)

	var auditLog *audit.Log
	var recorder audit.Recorder
	if serveAuditLog != "" {
		auditLog, err = audit.Open(serveAuditLog)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer auditLog.Close()
		recorder = auditLog
	}

	collector := metrics.NewCollector(prometheus.NewRegistry())

	b := broker.New(broker.Config{
		Policy:     engine,
		Cache:      cache,
		Seeds:      s,
		Audit:      recorder,
		Metrics:    collector,
		Logger:     logger,
		TTL:        serveTTL,
		PolicyHash: engine.Hash,

		GenerateLimit: ratelimit.Limit{MaxRequests: serveGenLimit, Window: serveGenWindow},
	})

	srv := server.New(server.Config{Addr: serveAddr, Audit: recorder, Logger: logger}, b, browser, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("broker stopped", "error", err)
		}
	}()

	if serveWatch {
		reloader, err := server.NewReloader(srv.ReloadPolicy, logger, []string{policyPath})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
		} else {
			go reloader.Run(ctx)
		}
	}

	var metricsSrv *http.Server
	if serveMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: serveMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", serveMetricsAddr, "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down broker...")
		cancel()
		if metricsSrv != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			metricsSrv.Shutdown(shutdownCtx)
			done()
		}
		srv.GracefulStop()
	}()

	fmt.Fprintf(os.Stderr, "smdnano broker listening on %s\n", serveAddr)
	fmt.Fprintf(os.Stderr, "Policy: %s", policyPath)
	if serveWatch {
		fmt.Fprint(os.Stderr, " (hot-reload enabled)")
	}
	fmt.Fprintln(os.Stderr)
	if serveAuditLog != "" {
		fmt.Fprintf(os.Stderr, "Audit log: %s\n", serveAuditLog)
	}
	if serveMetricsAddr != "" {
		fmt.Fprintf(os.Stderr, "Metrics: http://%s/metrics\n", serveMetricsAddr)
	}
	fmt.Fprintln(os.Stderr)

	return srv.Serve()
}
