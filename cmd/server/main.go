package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	"github.com/yuzvak/flashsale-engine/internal/application/use_cases"
	"github.com/yuzvak/flashsale-engine/internal/config"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/analytics"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/catalog"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/handlers"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/server"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/observability"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/persistence/memory"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/persistence/postgres"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/persistence/redis"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/scheduler"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type storage struct {
	sales    ports.SaleRepository
	stock    ports.StockLedger
	quota    ports.QuotaTracker
	receipts ports.ReceiptStore
	locker   ports.Locker
	metrics  ports.MetricsAggregator

	db      *sql.DB
	redis   *goredis.Client
	flusher *scheduler.ViewFlusher
	closers []io.Closer
}

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	flag.Parse()

	cfg, configErr := config.LoadConfig(*configPath)
	if configErr != nil {
		logger.NewLogger().Fatal("Failed to load configuration", "error", configErr)
	}

	log := logger.NewLoggerWithLevel(cfg.Log.Level)
	defer log.Sync()
	log.Info("Starting Flash Sale Engine", "storage", cfg.Storage.Driver, "redis", cfg.Redis.Enabled)

	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	shutdownTracing, err := observability.SetupTracing(serverCtx, cfg.Telemetry)
	if err != nil {
		log.Fatal("Failed to set up tracing", "error", err)
	}

	clk := clock.NewRealClock()

	store, err := buildStorage(serverCtx, cfg, clk, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}

	sink := buildAnalyticsSink(cfg, log)

	var productCatalog ports.Catalog = catalog.NewStaticCatalog()
	if cfg.Catalog.BaseURL != "" {
		productCatalog = catalog.NewHTTPClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout.Duration)
	}

	purchaseUseCase := use_cases.NewPurchaseUseCase(use_cases.PurchaseDependencies{
		Sales:     store.sales,
		Stock:     store.stock,
		Quota:     store.quota,
		Receipts:  store.receipts,
		Locker:    store.locker,
		Metrics:   store.metrics,
		Analytics: sink,
		Clock:     clk,
		Tracer:    observability.Tracer(),
		Logger:    log,
	}, cfg.Engine.LockTTL.Duration, cfg.Engine.MetricsRetries)
	saleAdminUseCase := use_cases.NewSaleAdminUseCase(store.sales, store.metrics, productCatalog, clk, log)
	analyticsUseCase := use_cases.NewAnalyticsUseCase(store.sales, store.metrics, sink, clk, log)

	httpServer := server.NewServer(cfg.Server, server.Handlers{
		Health:    handlers.NewHealthHandler(store.db, store.redis, log),
		Sale:      handlers.NewSaleHandler(saleAdminUseCase, log),
		Purchase:  handlers.NewPurchaseHandler(purchaseUseCase, log),
		Analytics: handlers.NewAnalyticsHandler(analyticsUseCase, log),
	}, log)

	if store.flusher != nil {
		go store.flusher.Start(serverCtx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigChan

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Info("Shutting down server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", "error", err)
		}
		if store.flusher != nil {
			store.flusher.Stop()
		}
		if err := sink.Close(); err != nil {
			log.Error("Analytics sink close error", "error", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("Tracer shutdown error", "error", err)
		}
		serverStopCtx()
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server failed", "error", err)
	}

	<-done
	for _, c := range store.closers {
		if err := c.Close(); err != nil {
			log.Warn("Failed to close resource", "error", err)
		}
	}
	log.Info("Server stopped")
}

func buildStorage(ctx context.Context, cfg *config.Config, clk clock.Clock, log *logger.Logger) (*storage, error) {
	st := &storage{}

	var (
		viewStore  scheduler.ViewStore
		reconciler scheduler.SalesReconciler
	)

	switch cfg.Storage.Driver {
	case "memory":
		mem := memory.NewStore(cfg.Engine.MaxCASRetries)
		st.sales, st.stock, st.quota, st.metrics = mem, mem, mem, mem
		st.receipts = memory.NewReceiptStore(cfg.Engine.ExpectedReceipts)
		st.locker = memory.NewLocker(clk)
	default:
		conn, err := postgres.NewConnection(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, conn)

		if err := postgres.RunMigrations(ctx, conn, cfg.Database.MigrationsPath, log); err != nil {
			return nil, err
		}

		st.db = conn.GetDB()
		monitoring.NewDBMetricsCollector(st.db).StartCollecting(ctx, 30*time.Second)

		metricsRepo := postgres.NewMetricsRepository(conn)
		st.sales = postgres.NewSaleRepository(conn)
		st.stock = postgres.NewStockLedger(conn, cfg.Engine.MaxCASRetries)
		st.quota = postgres.NewQuotaRepository(conn, cfg.Engine.MaxCASRetries)
		st.receipts = postgres.NewReceiptRepository(conn)
		st.metrics = metricsRepo
		st.locker = memory.NewLocker(clk)
		viewStore, reconciler = metricsRepo, metricsRepo
	}

	var buffer scheduler.ViewBuffer
	if cfg.Redis.Enabled {
		redisConn, err := redis.NewConnection(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, redisConn)
		st.redis = redisConn.GetClient()

		st.locker = redis.NewLocker(redisConn)
		st.receipts = redis.NewReceiptCache(redisConn, st.receipts, cfg.Engine.ReceiptCacheTTL.Duration, cfg.Engine.ExpectedReceipts, log)

		if viewStore != nil {
			buffered := redis.NewBufferedMetrics(redisConn, st.metrics)
			st.metrics = buffered
			buffer = buffered
		}
	}

	if reconciler != nil {
		var store scheduler.ViewStore
		if buffer != nil {
			store = viewStore
		}
		st.flusher = scheduler.NewViewFlusher(buffer, store, reconciler, clk, log, cfg.Scheduler.ViewFlushInterval.Duration)
	}

	return st, nil
}

func buildAnalyticsSink(cfg *config.Config, log *logger.Logger) interface {
	ports.AnalyticsSink
	io.Closer
} {
	if len(cfg.Kafka.Brokers) == 0 {
		return analytics.NewLogSink(log)
	}
	log.Info("Publishing analytics events to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return analytics.NewKafkaSink(cfg.Kafka, log)
}
