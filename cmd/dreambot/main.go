package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dreambot/internal/adapter/repo"
	"dreambot/internal/catalog"
	"dreambot/internal/comfy"
	"dreambot/internal/generator"
	"dreambot/internal/http/handlers"
	"dreambot/internal/http/httpapi"
	"dreambot/internal/infra"
	"dreambot/internal/infra/credentials"
	"dreambot/internal/infra/geoip"
	"dreambot/internal/providers/prompt"
	"dreambot/internal/runner"
	"dreambot/internal/scheduler"
	"dreambot/internal/storage"
)

// drainTimeout bounds how long shutdown waits for queued jobs.
const drainTimeout = 5 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connection failed")
	}
	defer pool.Close()
	sqlRunner := infra.NewSQLRunner(pool, logger)
	batches := repo.NewBatchRepository(sqlRunner)
	users := repo.NewUserRepository(sqlRunner)

	models, err := catalog.Open(cfg.CatalogPath, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load model catalog")
	}

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	files, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}
	archive := storage.NewArchive(files, batches, cfg.StorageBaseURL, &logger)

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
		geo = nil
	}
	defer geo.Close()

	dialect, err := comfy.DialectByName(cfg.BackendDialect)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid backend dialect")
	}
	backend, err := comfy.NewClient(comfy.Options{
		BaseURL:  cfg.BackendURL,
		Dialect:  dialect,
		ClientID: cfg.BackendClientID,
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure backend client")
	}

	batchRunner, err := runner.New(runner.Options{
		Backend:     backend,
		Catalog:     models,
		Logger:      &logger,
		IdleTimeout: cfg.TrackIdleTimeout,
		MaxRounds:   cfg.TrackMaxRounds,
		MaxRetries:  cfg.RetryMaxAttempts,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure runner")
	}

	sched := scheduler.New(batchRunner, &logger)
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(schedCtx)
	}()

	gen := generator.New(generator.Options{
		Catalog:  models,
		Queue:    sched,
		Enhancer: newEnhancer(ctx, cfg, credentials.NewStore(sqlRunner), &logger),
		Recorder: generator.NewUsageRecorder(users, cfg.PrivateDailyLimit, &logger),
		Archive:  archive,
		Jobs:     archive,
		Logger:   &logger,
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-hup:
				if err := models.Reload(); err != nil {
					logger.Error().Err(err).Msg("catalog reload failed; keeping previous catalog")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if cfg.Warmup {
		go func() {
			if err := gen.Warmup(ctx); err != nil {
				logger.Error().Err(err).Msg("warmup failed")
			}
		}()
	}

	var geoResolver geoip.CountryResolver
	if geo != nil {
		geoResolver = geo
	}
	app := handlers.NewApp(gen, users, files, archive, geoResolver, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{Logger: &logger, RateLimitPerMin: cfg.RateLimitPerMin})
	server := infra.NewHTTPServer(cfg, router)

	logger.Info().
		Str("addr", server.Addr()).
		Str("backend", cfg.BackendURL).
		Str("dialect", dialect.Name).
		Strs("models", models.Snapshot().Names()).
		Msg("dreambot listening")
	if err := server.Serve(ctx); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("http server failed")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := sched.WaitUntilIdle(drainCtx); err != nil {
		logger.Warn().Err(err).Int("load", sched.Load()).Msg("shutting down with jobs pending")
	}
	stopScheduler()
	wg.Wait()
	logger.Info().Msg("dreambot stopped")
}

func newEnhancer(ctx context.Context, cfg *infra.Config, keys *credentials.Store, logger *infra.Logger) generator.Enhancer {
	static := prompt.NewStaticEnhancer(nil)
	if cfg.PromptProvider != credentials.ProviderOpenAI {
		return static
	}
	log := infra.Component(logger, "prompt")
	apiKey, err := credentials.ResolveOpenAIKey(ctx, cfg.OpenAIAPIKey, keys)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load openai api key from store")
	}
	enhancer, err := prompt.NewOpenAIEnhancer(prompt.OpenAIOptions{
		APIKey:     apiKey,
		Model:      cfg.OpenAIModel,
		BaseURL:    cfg.OpenAIBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Fallback:   static,
		OnFallback: func(reason string, err error) {
			log.Warn().Err(err).Str("reason", reason).Msg("openai enhancer fell back to static styles")
		},
		OnWarning: func(reason, detail string) {
			log.Warn().Str("reason", reason).Str("detail", detail).Msg("openai enhancer warning")
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("openai enhancer unavailable, using static styles")
		return static
	}
	return enhancer
}
