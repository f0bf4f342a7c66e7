package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/app"
	"github.com/joseph-ayodele/invoice-tracker/internal/async"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/export"
	"github.com/joseph-ayodele/invoice-tracker/internal/ingest"
	"github.com/joseph-ayodele/invoice-tracker/internal/server"
)

// maxRecvMsgSize leaves room for a base64-encoded document at the upload limit.
const maxRecvMsgSize = 20 << 20

func main() {
	configPath := flag.String("config", os.Getenv("INVOICE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("invoicesd.exit", "error", err)
		os.Exit(1)
	}
}

func run(cfg *common.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.Timeout),
	)
	a.Processor.AttachQueue(queue)
	requeuePending(ctx, a, queue, logger)

	svc := server.NewExtractionService(a.Processor, a.Orchestrator, a.Files, a.Invoices, logger,
		server.WithIngestor(ingest.NewFSIngestor(a.Processor, "", logger)),
		server.WithExporter(export.NewService(a.Invoices, logger)),
	)
	grpcServer, hs := server.NewGRPCServer(svc, logger, grpc.MaxRecvMsgSize(maxRecvMsgSize))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	checks := make(map[string]server.ReadinessCheck)
	for name, check := range a.ReadinessChecks() {
		checks[name] = check
	}
	ops := &http.Server{
		Addr:              cfg.Server.OpsAddr,
		Handler:           server.NewOpsRouter(checks, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("invoicesd.grpc.listen", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("invoicesd.ops.listen", "addr", ops.Addr)
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("invoicesd.shutdown.start")
	case err = <-errCh:
		logger.Error("invoicesd.serve.failed", "error", err)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	if serr := ops.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("invoicesd.ops.shutdown_failed", "error", serr)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("invoicesd.shutdown.ok")
	return err
}

// requeuePending hands files left in status uploaded by a previous run back to the queue.
func requeuePending(ctx context.Context, a *app.App, q async.Queue, logger *slog.Logger) {
	pending, err := a.Files.List(ctx, constants.FileStatusUploaded)
	if err != nil {
		logger.Warn("invoicesd.requeue.failed", "error", err)
		return
	}
	for _, f := range pending {
		if err := q.Enqueue(ctx, async.Job{FileID: f.ID, SubmittedAt: time.Now()}); err != nil {
			logger.Warn("invoicesd.requeue.failed", "file_id", f.ID, "error", err)
			return
		}
	}
	if len(pending) > 0 {
		logger.Info("invoicesd.requeue.ok", "files", len(pending))
	}
}
