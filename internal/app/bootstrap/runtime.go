package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/adapters/http"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/adapters/queue"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/adapters/security"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/application"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/scoring"
	"google.golang.org/grpc"
	"gorm.io/gorm"
)

type Runtime struct {
	cfg       Config
	logger    *slog.Logger
	db        *gorm.DB
	service   *application.Service
	queue     *queue.RedisQueue
	metrics   *metrics.Prometheus
	repos     postgres.Repositories
	publisher ports.EventPublisher
	verifier  ports.TokenVerifier
	ready     func(ctx context.Context) error
	cleanupFn func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, syncLogger, err := NewLogger(cfg.LogLevel, cfg.ServiceID)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	cacheClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	queueClient := cacheClient
	if cfg.QueueRedisURL != cfg.RedisURL {
		queueClient, err = cache.Connect(ctx, cfg.QueueRedisURL)
		if err != nil {
			_ = cacheClient.Close()
			_ = sqlDB.Close()
			return nil, err
		}
	}
	redisClients := []*redis.Client{cacheClient}
	if queueClient != cacheClient {
		redisClients = append(redisClients, queueClient)
	}

	promMetrics := metrics.NewPrometheus()
	jobQueue := queue.NewRedisQueue(queueClient, queue.Options{
		Name:            cfg.QueueName,
		Visibility:      cfg.QueueVisibility,
		MaxRedeliveries: cfg.QueueMaxRedeliveries,
		Metrics:         promMetrics,
	})

	repos := postgres.NewRepositories(db)
	engine := scoring.LoadEngine(ctx, cfg.ModelPath, logger)
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:    cfg.ServiceID,
			ResultCacheTTL: cfg.ResultCacheTTL,
		},
		Logger:       logger,
		Transactions: repos.Transactions,
		Evaluations:  repos.Evaluations,
		Alerts:       repos.Alerts,
		Cache:        cache.NewRedisResultCache(cacheClient),
		Jobs:         jobQueue,
		Scorer:       engine,
		Metrics:      promMetrics,
	})

	var verifier ports.TokenVerifier
	if cfg.JWTSecret != "" {
		jwtVerifier, verr := security.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if verr != nil {
			for _, client := range redisClients {
				_ = client.Close()
			}
			_ = sqlDB.Close()
			return nil, verr
		}
		verifier = jwtVerifier
	}

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	var closers []io.Closer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, eventadapter.DefaultTopics(
			cfg.KafkaTopicTransactionEvaluated,
			cfg.KafkaTopicRiskAlertRaised,
		))
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}
	}

	ready := func(ctx context.Context) error {
		if err := postgres.Ping(ctx, db); err != nil {
			return err
		}
		for _, client := range redisClients {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
		}
		return nil
	}

	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		service:   service,
		queue:     jobQueue,
		metrics:   promMetrics,
		repos:     repos,
		publisher: publisher,
		verifier:  verifier,
		ready:     ready,
		cleanupFn: func(ctx context.Context) {
			for _, closer := range closers {
				_ = closer.Close()
			}
			for _, client := range redisClients {
				_ = client.Close()
			}
			_ = sqlDB.Close()
			syncLogger()
		},
	}, nil
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

// RunAPI serves the transaction HTTP API and the grpc health service.
func (r *Runtime) RunAPI(ctx context.Context) error {
	if r.verifier == nil {
		r.cleanupFn(context.Background())
		return errors.New("missing JWT_SECRET")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := httpadapter.NewRouter(httpadapter.RouterConfig{
		Logger:         r.logger,
		Service:        r.service,
		Verifier:       r.verifier,
		Ready:          r.ready,
		MetricsHandler: r.metrics.Handler(),
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := grpcadapter.NewHealthServer(r.logger, r.ready)
	grpcadapter.Register(grpcServer, healthSrv)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(context.Background())
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go healthSrv.Monitor(ctx, r.cfg.HealthCheckInterval)

	r.logger.InfoContext(ctx, "api started",
		"module", "bootstrap.runtime",
		"layer", "app",
		"operation", "run_api",
		"outcome", "success",
		"http_port", r.cfg.HTTPPort,
		"grpc_port", r.cfg.GRPCPort,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	healthSrv.Shutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

// RunWorker consumes evaluation jobs, relays the outbox and serves ops endpoints.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	evaluator := eventadapter.NewEvaluationWorker(r.logger, r.queue, r.service, r.metrics, eventadapter.EvaluationWorkerConfig{
		Concurrency:    r.cfg.WorkerConcurrency,
		ReserveWait:    r.cfg.WorkerReserveWait,
		RetryBaseDelay: r.cfg.WorkerRetryBaseDelay,
	})
	outbox := eventadapter.NewOutboxWorker(r.logger, r.repos.Outbox, r.publisher, eventadapter.OutboxWorkerConfig{
		Interval:   r.cfg.OutboxPollInterval,
		BatchSize:  r.cfg.OutboxBatchSize,
		ClaimTTL:   r.cfg.OutboxClaimTTL,
		MaxRetries: r.cfg.OutboxMaxRetries,
	})
	opsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.WorkerHTTPPort),
		Handler:           httpadapter.NewOpsRouter(r.logger, r.ready, r.metrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	depth, err := r.queue.Depth(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "queue depth unavailable", "operation", "run_worker", "error", err)
	}
	r.logger.InfoContext(ctx, "worker started",
		"module", "bootstrap.runtime",
		"layer", "app",
		"operation", "run_worker",
		"outcome", "success",
		"queue", r.queue.Name(),
		"concurrency", r.cfg.WorkerConcurrency,
		"ready_jobs", depth.Ready,
		"delayed_jobs", depth.Delayed,
		"dead_jobs", depth.Dead,
	)

	errCh := make(chan error, 3)
	done := make(chan struct{}, 2)
	go func() {
		if err := evaluator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		done <- struct{}{}
	}()
	go func() {
		if err := outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		done <- struct{}{}
	}()
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
		stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	_ = opsServer.Shutdown(shutdownCtx)
wait:
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			r.logger.WarnContext(shutdownCtx, "worker shutdown timed out", "operation", "run_worker")
			break wait
		}
	}
	r.cleanupFn(shutdownCtx)
	return runErr
}
