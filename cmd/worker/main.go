package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/config"
	amqpdelivery "github.com/blastxplorer/blastxplorer/internal/delivery/amqp"
	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/galaxy"
	"github.com/blastxplorer/blastxplorer/internal/ncbi"
	"github.com/blastxplorer/blastxplorer/internal/notify"
	"github.com/blastxplorer/blastxplorer/internal/pool"
	"github.com/blastxplorer/blastxplorer/internal/publisher"
	"github.com/blastxplorer/blastxplorer/internal/repository/postgres"
	redisrepo "github.com/blastxplorer/blastxplorer/internal/repository/redis"
	"github.com/blastxplorer/blastxplorer/internal/scheduler"
	"github.com/blastxplorer/blastxplorer/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting BlastXplorer coordinator worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	if err := postgres.EnsureSchema(ctx, dbPool); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Initialize repositories
	runRepo := postgres.NewRunRepository(dbPool)
	pollLock := redisrepo.NewLeaseLock(redisClient)

	// Initialize remote service clients
	ncbiClient := ncbi.NewClient(cfg.Blast.NCBIBaseURL, logger)
	if cfg.Blast.PollInterval > 0 {
		ncbiClient.PollInterval = cfg.Blast.PollInterval
	}
	galaxyClient := galaxy.NewClient(cfg.Galaxy.URL, cfg.Galaxy.APIKey, logger)
	mailer := notify.NewMailer(notify.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		SiteBaseURL: cfg.Site.BaseURL,
		AppName:     cfg.Site.AppName,
	}, logger)

	// Initialize publisher (declares the broker topology)
	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()

	// Initialize use cases
	backends := map[domain.Backend]usecase.SearchBackend{
		domain.BackendDirect:    usecase.NewDirectBackend(runRepo, ncbiClient, cfg.Blast.NormalizeDirectTitles, logger),
		domain.BackendDelegated: usecase.NewDelegatedBackend(runRepo, galaxyClient, cfg.Galaxy.HistoryName, logger),
	}
	searchUC := usecase.NewRunSearchUsecase(runRepo, backends, mailer, cfg.Worker.SubmitCooldown, logger)
	rebuildUC := usecase.NewRebuildTreeUsecase(runRepo, mailer, logger)
	purgeUC := usecase.NewPurgeHistoryUsecase(runRepo, galaxyClient, logger)
	pollUC := usecase.NewPollRunsUsecase(runRepo, pollLock, galaxyClient, mailer, logger)
	expireUC := usecase.NewExpireRunsUsecase(runRepo, pub, cfg.Worker.RetentionDays, logger)
	dispatcher := usecase.NewDispatcher(searchUC, rebuildUC, purgeUC, logger)

	// Create buffered task channels. The direct lane is unbuffered on
	// purpose: its single worker plus prefetch=1 keeps exactly one blocking
	// search in flight.
	directChan := make(chan *domain.TaskMessage)
	tasksChan := make(chan *domain.TaskMessage, cfg.Worker.PoolSize*2)

	// Initialize AMQP consumers, one per queue
	directConsumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, publisher.QueueDirect, directChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize direct-queue consumer", zap.Error(err))
	}
	defer directConsumer.Close()

	tasksConsumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, publisher.QueueTasks, tasksChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize task-queue consumer", zap.Error(err))
	}
	defer tasksConsumer.Close()
	logger.Info("Connected to RabbitMQ")

	// Start worker pools: a single-concurrency lane for blocking direct
	// searches, a normal pool for everything else.
	directPool := pool.NewWorkerPool("direct", 1, directChan, dispatcher, logger)
	directPool.Start(ctx)
	taskPool := pool.NewWorkerPool("tasks", cfg.Worker.PoolSize, tasksChan, dispatcher, logger)
	taskPool.Start(ctx)

	// Start AMQP consumers in goroutines
	for _, c := range []*amqpdelivery.Consumer{directConsumer, tasksConsumer} {
		c := c
		go func() {
			if err := c.Start(ctx); err != nil {
				logger.Error("AMQP consumer error", zap.Error(err))
				cancel()
			}
		}()
	}

	// Start periodic jobs: remote polling and the retention sweep
	sched := scheduler.New(ctx, logger)
	err = sched.Add(cfg.Worker.PollSchedule, "poll_delegated_runs", func(ctx context.Context) error {
		_, err := pollUC.Poll(ctx)
		return err
	})
	if err != nil {
		logger.Fatal("Failed to schedule poll job", zap.Error(err))
	}
	if err := sched.Add(cfg.Worker.ExpireSchedule, "expire_runs", expireUC.Sweep); err != nil {
		logger.Fatal("Failed to schedule expiry job", zap.Error(err))
	}
	sched.Start()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	// Stop periodic jobs, then wait for in-flight tasks
	sched.Stop()
	directPool.Stop()
	taskPool.Stop()

	logger.Info("Worker stopped")
}
