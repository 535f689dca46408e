// ====================================
// File: cmd/broadcaster/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/broadcast"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/config"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/events"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/export"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/fees"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/gateway"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/runner"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage/models"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage/postgres"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/task"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/utils/logger"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/utils/metrics"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	opsPath := flag.String("operations", "configs/operations.yaml", "path to the operations file")
	exportDir := flag.String("export-dir", "", "write journal records of this run to the directory")
	exportFormat := flag.String("export-format", "csv", "export format: csv or json")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *opsPath, *exportDir, *exportFormat); err != nil {
		log.LogError("Broadcaster exited with error", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, opsPath, exportDir, exportFormat string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	ops, err := task.NewManager(cfg.Chain, log.Logger).LoadOperationsYAML(opsPath)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return errors.New("no valid operations to broadcast")
	}

	client := gateway.NewHTTPClient(cfg.GatewayURL, cfg.RequestTimeout(), log.WithComponent("gateway"))
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("gateway at %s is not reachable: %w", cfg.GatewayURL, err)
	}

	journal, err := openJournal(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, log.Logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	estimates := fees.NewEstimateCache(client, cfg.FeeEstimateTTL(), cfg.BasePriorityFeePerCU, log.Logger)
	estimates.SetFetchTimeout(cfg.RequestTimeout())
	units := fees.NewComputeUnitCache(cfg.Chain, cfg.Network, cfg.DefaultComputeUnits, log.Logger)
	poller := broadcast.NewPoller(client, cfg.PollInterval(), cfg.PollTimeout(), log.Logger)
	coordinator := broadcast.NewCoordinator(broadcast.Options{
		Chain:         cfg.Chain,
		Network:       cfg.Network,
		Bounds:        fees.Bounds{Min: cfg.MinFeePerCU, Max: cfg.MaxFeePerCU},
		Multiplier:    cfg.PriorityFeeMultiplier,
		MaxRetries:    cfg.MaxRetries,
		RetryInterval: cfg.RetryInterval(),
	}, estimates, units, poller, log.Logger)

	styles := runner.NewReportStyles(runner.DefaultPalette())
	bus := events.NewBus(log.Logger, 256)
	unsubscribe := runner.SubscribeProgress(bus, os.Stdout, styles)
	defer unsubscribe()

	r := runner.NewRunner(runner.Settings{
		Chain:     cfg.Chain,
		Network:   cfg.Network,
		Connector: cfg.Connector,
		Workers:   cfg.Workers,
	}, client, coordinator, journal, bus, log.Logger)

	done := log.TrackPerformance("broadcast_run")
	report, runErr := r.Run(ctx, ops)
	done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = bus.Shutdown(shutdownCtx)
	cancel()

	fmt.Println(report.Render(styles))

	stats := units.Stats()
	log.Info("Compute unit cache",
		zap.Uint64("entries", stats.Entries),
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("reads", stats.Reads),
		zap.Uint64("writes", stats.Writes))

	if exportDir != "" {
		if err := exportRun(log.Logger, report, exportDir, format); err != nil {
			log.LogError("Export failed", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if report.Failed() {
		return fmt.Errorf("%d of %d operations did not confirm",
			len(report.Results)-report.Count(models.StatusConfirmed), len(report.Results))
	}
	return nil
}

func openJournal(cfg *config.Config, log *zap.Logger) (storage.Journal, error) {
	if cfg.PostgresURL == "" {
		log.Info("No postgres_url configured, journaling in memory")
		return storage.NewMemoryJournal(), nil
	}
	j, err := postgres.NewJournal(cfg.PostgresURL, log)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func exportRun(log *zap.Logger, report *runner.Report, dir string, format export.ExportFormat) error {
	records := make([]*models.TransactionRecord, 0, len(report.Results))
	for _, res := range report.Results {
		if res.Record != nil {
			records = append(records, res.Record)
		}
	}
	path, err := export.NewRecordExporter(log).ExportRecords(records, export.ExportOptions{
		Format:    format,
		OutputDir: dir,
	})
	if err != nil {
		return err
	}
	fmt.Println("Exported journal records to", path)
	return nil
}
