package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ai_chat/internal/config"
	"ai_chat/internal/credentials"
	"ai_chat/internal/dispatch"
	"ai_chat/internal/fallback"
	"ai_chat/internal/logging"
	"ai_chat/internal/models"
	"ai_chat/internal/providers"
	"ai_chat/internal/queue"
	"ai_chat/internal/ratelimit"
	"ai_chat/internal/storage"
)

// ChatService produces replies and reports provider availability
type ChatService interface {
	GenerateResponse(ctx context.Context, message string, history []models.ChatTurn) string
	ProviderStatus(ctx context.Context) []dispatch.Status
}

// KeyService manages a user's saved provider keys
type KeyService interface {
	GetAll(ctx context.Context, userID uuid.UUID) ([]credentials.Key, error)
	Save(ctx context.Context, userID uuid.UUID, provider, apiKey string) (*credentials.Key, error)
	Delete(ctx context.Context, userID uuid.UUID, provider string) error
	Deactivate(ctx context.Context, userID uuid.UUID, provider string) error
}

// KeyTester checks a key against its provider
type KeyTester interface {
	Test(ctx context.Context, provider, apiKey string) providers.ValidationResult
}

// HealthChecker is implemented by storage.DB and storage.RedisClient
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Chat      ChatService
	Keys      KeyService // nil when no database is configured
	KeyTester KeyTester
	RateLimit ratelimit.Limiter
	Health    map[string]HealthChecker

	db     *storage.DB
	enc    *storage.Encryption
	redis  *storage.RedisClient
	worker *storage.DispatchQueueWorker
	queue  queue.Queue
	dlq    queue.DeadLetterQueue
}

var logger = logging.NewLogger("httpapi")

// NewDependencies connects the backing stores selected by cfg and wires the
// dispatcher. ctx bounds the background dispatch worker.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{Health: make(map[string]HealthChecker)}

	registry := providers.NewRegistry(ProviderOptions(cfg))
	deps.KeyTester = credentials.NewTester(registry)

	if cfg.Database.URL != "" {
		if err := deps.openDatabase(ctx, cfg, registry); err != nil {
			deps.Close()
			return nil, err
		}
	}

	source, err := credentialSource(cfg, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}

	if cfg.Redis.Address != "" {
		redisClient, err := storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		deps.redis = redisClient
		deps.Health["redis"] = redisClient
	}

	switch {
	case cfg.RateLimit.PerMinute <= 0:
		deps.RateLimit = ratelimit.NewNoopLimiter()
	case deps.redis != nil:
		deps.RateLimit = ratelimit.NewRateLimiter(deps.redis.Client())
	default:
		deps.RateLimit = ratelimit.NewMemoryLimiter()
	}

	generator := fallback.NewGenerator(fallback.Config{
		MinDelay: cfg.Fallback.MinDelay,
		MaxDelay: cfg.Fallback.MaxDelay,
		Rand:     fallback.NewSeededRand(cfg.Fallback.Seed),
	})
	dispatcher := dispatch.New(dispatch.TargetsFromRegistry(registry), source, generator)

	if err := deps.startDispatchLog(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}
	if deps.worker != nil {
		dispatcher.WithRecorder(deps.worker)
	}
	deps.Chat = dispatcher

	return deps, nil
}

// ProviderOptions maps the provider settings of cfg onto registry options.
// The server and keytool build their registries from it.
func ProviderOptions(cfg *config.Config) providers.Options {
	opts := providers.Options{
		Overrides:             make(map[models.ProviderID]providers.Override),
		Timeout:               cfg.Provider.RequestTimeout,
		OpenRouterReferer:     cfg.Provider.OpenRouterReferer,
		OpenRouterTitle:       cfg.Provider.OpenRouterTitle,
		DisableSafetySettings: cfg.Provider.DisableSafetySettings,
	}
	for id, ov := range cfg.Provider.Overrides {
		opts.Overrides[id] = providers.Override{Endpoint: ov.Endpoint, Model: ov.Model}
	}
	return opts
}

func (d *Dependencies) openDatabase(ctx context.Context, cfg *config.Config, registry *providers.Registry) error {
	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	d.db = db
	d.Health["database"] = db

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	enc, err := storage.NewEncryptionFromBase64(cfg.Credentials.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}

	d.enc = enc

	service := credentials.NewService(db.NewUserAPIKeyRepository(), enc, registry)
	d.Keys = service
	d.KeyTester = service
	return nil
}

// credentialSource picks the dispatch key source for the configured mode
func credentialSource(cfg *config.Config, d *Dependencies) (dispatch.CredentialSource, error) {
	env := credentials.NewEnvSource(cfg.Credentials.EnvKeys)

	var store credentials.Source
	if d.db != nil && cfg.UserStoreEnabled() {
		store = credentials.NewStoreSource(d.db.NewUserAPIKeyRepository(), d.enc)
	}

	switch cfg.Credentials.Mode {
	case config.CredentialModeEnv:
		return env, nil
	case config.CredentialModeUser:
		if store == nil {
			return nil, errors.New("user credential mode requires a database")
		}
		return store, nil
	default:
		if store == nil {
			logger.Warn("no database configured, using environment keys only")
			return env, nil
		}
		return credentials.NewChain(store, env), nil
	}
}

func (d *Dependencies) startDispatchLog(ctx context.Context, cfg *config.Config) error {
	if !cfg.DispatchLog.Enabled {
		return nil
	}
	if d.db == nil && cfg.DispatchLog.S3Bucket == "" {
		logger.Info("dispatch records disabled, no database or archive bucket configured")
		return nil
	}

	qcfg := queue.DefaultConfig(storage.DispatchQueueName)
	qcfg.UseRedis = d.redis != nil
	qcfg.Capacity = cfg.DispatchLog.QueueSize
	qcfg.BatchSize = cfg.DispatchLog.BatchSize
	qcfg.BatchTimeout = cfg.DispatchLog.BatchTimeout
	qcfg.MaxRetries = cfg.DispatchLog.MaxRetries

	q, dlq, err := queue.Open(qcfg, d.redisClient())
	if err != nil {
		return fmt.Errorf("failed to create dispatch queue: %w", err)
	}
	d.queue, d.dlq = q, dlq

	var store storage.DispatchRecordStore
	if d.db != nil {
		store = d.db.NewDispatchRecordRepository()
	}

	worker := storage.NewDispatchQueueWorker(q, dlq, store, qcfg)
	if cfg.DispatchLog.S3Bucket != "" {
		writer, err := logging.NewS3Writer(ctx, cfg.DispatchLog.S3Bucket, cfg.DispatchLog.S3Region, cfg.DispatchLog.S3Prefix, cfg.DispatchLog.PodName)
		if err != nil {
			return fmt.Errorf("failed to create dispatch archive writer: %w", err)
		}
		worker.WithArchiver(writer)
	}

	worker.Start(ctx)
	d.worker = worker
	return nil
}

func (d *Dependencies) redisClient() *redis.Client {
	if d.redis == nil {
		return nil
	}
	return d.redis.Client()
}

// Close drains the dispatch worker and releases every connection
func (d *Dependencies) Close() error {
	var errs []error
	if d.worker != nil {
		errs = append(errs, d.worker.Stop())
	}
	if d.queue != nil {
		errs = append(errs, d.queue.Close())
	}
	if d.dlq != nil {
		errs = append(errs, d.dlq.Close())
	}
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}
