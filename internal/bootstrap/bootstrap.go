package bootstrap

import (
	"context"
	"fmt"
	"slices"

	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/core/usecase"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/cache/memory"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/extractor/document"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/langdetect"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/fixture"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/storage/s3"
)

// Options carries the process-specific observers into the shared wiring.
type Options struct {
	Observer             ports.AnalysisObserver
	OnBreakerStateChange func(operation, from, to string)
}

type App struct {
	Config config.Config

	Generator ports.TextGenerator
	Storage   ports.ObjectStorage
	Cache     ports.AnalysisCacheStore
	Executor  *resilience.Executor

	AnalyzeUC   *usecase.AnalyzeStreamingUseCase
	IngestUC    *usecase.IngestContractUseCase
	CacheUC     *usecase.AnalysisCacheService
	Coordinator *usecase.RunCoordinator

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.BreakerEnabled = cfg.BreakerEnabled
	resilienceCfg.OnStateChange = opts.OnBreakerStateChange
	app.Executor = resilience.NewExecutor(resilienceCfg)

	generator, translator, err := app.newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Generator = generator

	cache, err := app.newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Cache = cache

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Storage = storage

	detector := langdetect.New()
	gate := usecase.NewTranslationGate(translator, cfg.ProviderTimeout)

	app.AnalyzeUC = usecase.NewAnalyzeStreamingUseCase(generator, gate, detector, cache, opts.Observer, usecase.AnalyzeStreamingConfig{
		Retry: usecase.RetryPolicy{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialDelay:      cfg.RetryInitialDelay,
			BackoffMultiplier: cfg.RetryMultiplier,
			MaxDelay:          cfg.RetryMaxDelay,
		},
		ProviderTimeout: cfg.ProviderTimeout,
		BridgeLanguage:  cfg.BridgeLanguage,
	})
	if err := app.AnalyzeUC.Bridge().Validate(); err != nil {
		return nil, fmt.Errorf("validate language bridge: %w", err)
	}
	app.IngestUC = usecase.NewIngestContractUseCase(storage, document.NewExtractor(), detector, cfg.UploadMaxBytes)
	app.CacheUC = usecase.NewAnalysisCacheService(cache, gate, app.AnalyzeUC.Bridge(), opts.Observer)
	app.Coordinator = usecase.NewRunCoordinator(app.AnalyzeUC)

	return app, nil
}

// NewQueue connects the request queue and section event publisher.
func NewQueue(cfg config.Config, executor *resilience.Executor) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		RequestSubject:     cfg.NATSRequestSubject,
		EventSubjectPrefix: cfg.NATSEventSubjectPrefix,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

func (a *App) Close() {
	for _, closeFn := range slices.Backward(a.closers) {
		closeFn()
	}
	a.closers = nil
}

func (a *App) newProvider(ctx context.Context, cfg config.Config) (ports.TextGenerator, ports.Translator, error) {
	switch cfg.Provider {
	case "gemini":
		provider, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.SupportedLanguages, a.Executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini provider: %w", err)
		}
		a.closers = append(a.closers, func() { _ = provider.Close() })
		return provider, provider, nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, a.Executor)
		return ollama.NewGenerator(client, cfg.OllamaGenModel, cfg.SupportedLanguages),
			ollama.NewTranslator(client, cfg.OllamaTranslateModel), nil
	case "fixture":
		return fixture.New(cfg.SupportedLanguages), &fixture.Translator{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func (a *App) newCache(ctx context.Context, cfg config.Config) (ports.AnalysisCacheStore, error) {
	switch cfg.CacheBackend {
	case "memory":
		store, err := memory.New(cfg.CacheMaxContracts, cfg.CacheRetention)
		if err != nil {
			return nil, fmt.Errorf("init memory cache: %w", err)
		}
		return store, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewAnalysisCacheRepository(db, cfg.CacheMaxContracts, cfg.CacheRetention)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func newStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "localfs":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	case "s3":
		storage, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
