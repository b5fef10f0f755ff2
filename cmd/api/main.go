package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/cache"
	"github.com/gbhide1993/mina-merchant-webhook/internal/config"
	httpserver "github.com/gbhide1993/mina-merchant-webhook/internal/http"
	"github.com/gbhide1993/mina-merchant-webhook/internal/http/handlers"
	"github.com/gbhide1993/mina-merchant-webhook/internal/media"
	"github.com/gbhide1993/mina-merchant-webhook/internal/notify"
	"github.com/gbhide1993/mina-merchant-webhook/internal/queue"
	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
	"github.com/gbhide1993/mina-merchant-webhook/internal/service"
	"github.com/gbhide1993/mina-merchant-webhook/internal/transcribe"
	"github.com/gbhide1993/mina-merchant-webhook/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[mina] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, storesCloser := setupStores(ctx, cfg, logger)
	defer storesCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	relay, relayCloser := setupRelay(ctx, cfg, logger)
	defer relayCloser()

	notifier := setupNotifier(cfg, logger)
	transcriber := setupTranscriber(cfg, logger)

	merchantCache := cache.NewMerchantCache(cache.Config{
		TTL:        time.Duration(cfg.MerchantCacheTTLSeconds) * time.Second,
		MaxEntries: cfg.MerchantCacheMaxEntries,
	})

	intake := service.NewIntakeService(service.IntakeDependencies{
		Directory: stores.directory,
		Merchants: merchantCache,
		Jobs:      stores.jobs,
		Relay:     relay,
		Producer:  producer,
		Notifier:  notifier,
		Logger:    logger,
	})

	api := handlers.NewAPI(intake, stores.jobs, stores.directory, stores.ledger, logger)

	signatureToken := cfg.TwilioAuthToken
	if !cfg.TwilioValidateSignature {
		signatureToken = ""
	}
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:             api,
		Logger:          logger,
		TwilioAuthToken: signatureToken,
		PublicBaseURL:   cfg.PublicBaseURL,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		pool := worker.NewPool(stores.jobs, relay, transcriber, stores.ledger, consumer, logger, worker.PoolConfig{
			Workers:         cfg.WorkerCount,
			PollInterval:    time.Duration(cfg.WorkerPollMS) * time.Millisecond,
			ReclaimEnabled:  cfg.JobReclaimEnabled,
			ReclaimInterval: time.Duration(cfg.JobReclaimIntervalMS) * time.Millisecond,
			StaleAfter:      time.Duration(cfg.JobStaleAfterSeconds) * time.Second,
		})
		go pool.Start(ctx)
		logger.Printf("worker pool enabled workers=%d", cfg.WorkerCount)
	} else {
		logger.Printf("worker pool disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("webhook api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

type stores struct {
	directory repository.MerchantDirectory
	jobs      repository.JobStore
	ledger    repository.MemoryLedger
}

func setupStores(ctx context.Context, cfg config.Config, logger *log.Logger) (stores, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory stores")
		return stores{
			directory: repository.NewMemoryMerchantDirectory(),
			jobs:      repository.NewMemoryJobStore(),
			ledger:    repository.NewMemoryLedgerStore(),
		}, func() {}
	}

	pool, err := repository.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres, fallback to in-memory stores: %v", err)
		return stores{
			directory: repository.NewMemoryMerchantDirectory(),
			jobs:      repository.NewMemoryJobStore(),
			ledger:    repository.NewMemoryLedgerStore(),
		}, func() {}
	}

	logger.Printf("postgres stores initialized")
	return stores{
		directory: repository.NewPostgresMerchantDirectory(pool),
		jobs:      repository.NewPostgresJobStore(pool),
		ledger:    repository.NewPostgresMemoryLedger(pool),
	}, pool.Close
}

func setupQueue(ctx context.Context, cfg config.Config, logger *log.Logger) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local wake-up queue")
		local := queue.NewLocalQueue(512, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Stream:   cfg.RedisStream,
		Group:    cfg.RedisGroup,
		Consumer: cfg.RedisConsumer,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		local := queue.NewLocalQueue(512, logger)
		return local, local, func() {}
	}

	logger.Printf("redis streams wake-up queue initialized")
	return streams, streams, func() { _ = streams.Close() }
}

func setupRelay(ctx context.Context, cfg config.Config, logger *log.Logger) (media.Relay, func()) {
	if cfg.GCSBucket == "" {
		logger.Printf("GCS_BUCKET not configured, using in-memory media relay")
		return media.NewMemoryRelay(), func() {}
	}

	relay, err := media.NewGCSRelay(ctx, media.GCSRelayConfig{
		Bucket:        cfg.GCSBucket,
		FetchUsername: cfg.TwilioAccountSID,
		FetchPassword: cfg.TwilioAuthToken,
		FetchTimeout:  time.Duration(cfg.MediaFetchTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Printf("failed to initialize gcs relay, fallback to in-memory: %v", err)
		return media.NewMemoryRelay(), func() {}
	}

	logger.Printf("gcs media relay initialized bucket=%s", cfg.GCSBucket)
	return relay, func() { _ = relay.Close() }
}

func setupNotifier(cfg config.Config, logger *log.Logger) notify.Notifier {
	client, err := notify.NewTwilioClient(notify.TwilioClientConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		BaseURL:    cfg.TwilioBaseURL,
	})
	if err != nil {
		logger.Printf("twilio not configured, using log notifier: %v", err)
		return notify.NewLogNotifier(logger)
	}
	return client
}

func setupTranscriber(cfg config.Config, logger *log.Logger) transcribe.Transcriber {
	client := transcribe.NewWhisperClient(transcribe.WhisperClientConfig{
		APIKey:        cfg.SpeechAPIKey,
		BaseURL:       cfg.SpeechBaseURL,
		PrimaryModel:  cfg.SpeechModelPrimary,
		FallbackModel: cfg.SpeechModelFallback,
		Timeout:       time.Duration(cfg.SpeechTimeoutMS) * time.Millisecond,
		MaxRetries:    cfg.SpeechMaxRetries,
	})
	if client.Available() {
		return client
	}
	logger.Printf("SPEECH_API_KEY not configured, using static transcriber")
	return transcribe.StaticTranscriber{}
}
