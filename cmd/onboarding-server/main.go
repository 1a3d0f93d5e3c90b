// cmd/onboarding-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vendor-onboarding/internal/api"
	awsclient "vendor-onboarding/internal/common/aws"
	"vendor-onboarding/internal/common/camunda"
	"vendor-onboarding/internal/common/config"
	"vendor-onboarding/internal/common/database"
	commonhttp "vendor-onboarding/internal/common/http"
	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/common/observability"
	"vendor-onboarding/internal/common/validation"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/environment"
	"vendor-onboarding/internal/onboarding/notify"
	"vendor-onboarding/internal/onboarding/service"
	"vendor-onboarding/internal/onboarding/trigger"
	"vendor-onboarding/internal/storage"
	"vendor-onboarding/internal/storage/envstore"
	"vendor-onboarding/internal/storage/esstore"
	"vendor-onboarding/internal/storage/memory"
	"vendor-onboarding/internal/storage/sqlstore"
	"vendor-onboarding/pkg/collection"

	rd "vendor-onboarding/internal/workers/onboarding/record-decision"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting onboarding server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("approvers", cfg.ApproverCount()),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retries := cfg.Camunda.MaxRetries
	if retries <= 0 {
		retries = 10
	}
	retryDelay := config.GetDuration(cfg.Camunda.RetryDelay)
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}

	// --- Storage ---
	store, healthChecks, err := openStorage(ctx, cfg, log, zapLog, retries, retryDelay)
	if err != nil {
		zapLog.Fatal("storage failed after retries", zap.Error(err))
	}
	defer store.Close()
	zapLog.Info("Storage ready", zap.String("backend", cfg.Storage.Backend))

	// --- Environment documents ---
	var envs service.EnvironmentStore
	if cfg.UsesRedis() {
		redisClient := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return database.PingRedis(ctx, redisClient)
		}, retries, retryDelay, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		redisEnvs := envstore.New(redisClient, cfg.Database.Redis.KeyPrefix, config.GetDuration(cfg.Database.Redis.TTL))
		healthChecks = append(healthChecks, service.WithHealthCheck("redis", redisEnvs.Health))
		envs = redisEnvs
		zapLog.Info("Redis connected successfully")
	} else {
		envs = envstore.NewMemory()
		zapLog.Warn("No Redis configured; environment documents are kept in process")
	}

	// --- Zeebe ---
	var zeebeClient *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebeClient, err = camunda.NewClientFromConfig(cfg.Camunda)
			return err
		}, retries, retryDelay, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebeClient.Close()
		healthChecks = append(healthChecks, service.WithHealthCheck("zeebe", zeebeClient.HealthCheck))
		zapLog.Info("Zeebe client connected successfully")
	}

	// --- Trigger collection, environment template, schema ---
	col, err := collection.Load(cfg.Trigger.CollectionPath)
	if err != nil {
		zapLog.Fatal("collection load failed", zap.Error(err))
	}
	if problems := col.Validate(); len(problems) > 0 {
		for _, p := range problems {
			zapLog.Error("collection problem", zap.Error(p))
		}
		zapLog.Fatal("collection is invalid", zap.String("path", cfg.Trigger.CollectionPath))
	}

	template, err := environment.LoadTemplate(cfg.Trigger.EnvironmentPath)
	if err != nil {
		zapLog.Fatal("environment template load failed", zap.Error(err))
	}

	validator, err := validation.LoadValidator(cfg.Validation.SchemaPath)
	if err != nil {
		zapLog.Fatal("submission schema load failed", zap.Error(err))
	}

	invokerOpts := []trigger.Option{
		trigger.WithTimeout(cfg.TriggerTimeout()),
		trigger.WithHTTPClient(commonhttp.NewClient(cfg.TriggerTimeout())),
	}
	if zeebeClient != nil {
		invokerOpts = append(invokerOpts, trigger.WithZeebe(zeebeClient))
	}
	invoker := trigger.NewInvoker(col, log, invokerOpts...)

	approvers := make([]models.ApproverIdentity, 0, len(cfg.Approvers))
	for _, a := range cfg.Approvers {
		approvers = append(approvers, models.ApproverIdentity{Ordinal: a.Ordinal, Email: a.Email, Name: a.Name})
	}
	synth := environment.NewSynthesizer(template, approvers)

	// --- Notifications ---
	notifier := buildNotifier(ctx, cfg, log, zapLog)

	opts := append([]service.Option{service.WithValidator(validator)}, healthChecks...)
	if notifier.Enabled() {
		opts = append(opts, service.WithNotifier(notifier))
	}
	svc := service.New(service.Config{
		StartSequence:       cfg.Trigger.StartSequence,
		ApproverSequence:    cfg.Trigger.ApproverSequence,
		CorrelationVariable: cfg.Trigger.CorrelationVariable,
		BaseURL:             cfg.Server.BaseURL,
	}, store, envs, synth, invoker, log, opts...)

	// --- Decision worker ---
	var decisionWorker *camunda.CamundaWorker
	if zeebeClient != nil && config.IsWorkerEnabled(cfg, rd.TaskType) {
		wcfg := config.GetWorkerConfig(cfg, rd.TaskType)
		handler := rd.NewHandler(rd.LoadConfig(wcfg), svc, log)
		decisionWorker = camunda.NewWorker(zeebeClient.GetClient(), rd.TaskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, log)
		decisionWorker.Start()
	}

	// --- HTTP ---
	server := api.NewServer(api.ServerConfig{
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		BaseURL:         cfg.Server.BaseURL,
		ReadTimeout:     config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.GetDuration(cfg.Server.WriteTimeout),
		ShutdownTimeout: config.GetDuration(cfg.Server.ShutdownTimeout),
	}, svc, obs, log)

	// --- Graceful Shutdown ---
	if err := server.Start(ctx); err != nil {
		zapLog.Error("HTTP server failed", zap.Error(err))
	}

	zapLog.Info("Shutdown signal received, stopping...")
	if decisionWorker != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		decisionWorker.Stop(shutdownCtx)
		cancel()
	}
	zapLog.Info("Onboarding server stopped gracefully")
}

// openStorage connects the configured backend and prepares its schema.
func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger, retries int, delay time.Duration) (storage.Store, []service.Option, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		var client *database.SQLClient
		err := retryWithBackoff(func() error {
			var err error
			client, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return client.Ping(ctx)
		}, retries, delay, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.New(client.DB, client.Driver)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "sqlite":
		client, err := database.NewSQLite(cfg.Database.SQLite)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.New(client.DB, client.Driver)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "elasticsearch":
		client, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		err = retryWithBackoff(func() error {
			return database.PingElasticsearch(ctx, client)
		}, retries, delay, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, nil, err
		}
		store := esstore.New(client, cfg.Database.Elasticsearch.IndexPrefix)
		if err := store.EnsureIndices(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "memory":
		log.Warn("Using in-memory storage; data is lost on restart", nil)
		return memory.New(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) *notify.Notifier {
	var (
		email  awsclient.SESService
		events awsclient.SNSService
	)
	n := cfg.Notifications
	if n.Email.Enabled {
		client, err := awsclient.NewSESClient(ctx, n.AWS.Region)
		if err != nil {
			zapLog.Error("SES client init failed, e-mail notifications disabled", zap.Error(err))
			n.Email.Enabled = false
		} else {
			email = client
		}
	}
	if n.Events.Enabled {
		client, err := awsclient.NewSNSClient(ctx, n.AWS.Region)
		if err != nil {
			zapLog.Error("SNS client init failed, decision events disabled", zap.Error(err))
			n.Events.Enabled = false
		} else {
			events = client
		}
	}
	return notify.New(n, email, events, log)
}
