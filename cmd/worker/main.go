package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/config"
	"github.com/gbhide1993/mina-merchant-webhook/internal/media"
	"github.com/gbhide1993/mina-merchant-webhook/internal/queue"
	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
	"github.com/gbhide1993/mina-merchant-webhook/internal/transcribe"
	"github.com/gbhide1993/mina-merchant-webhook/internal/worker"
)

// Standalone worker pool process. Any number of these can run against the
// same database; the job store's claim protocol is the only coordination.
func main() {
	logger := log.New(os.Stdout, "[mina-worker] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Fatalf("DATABASE_URL is required: a standalone worker has no in-memory fallback to share with the api")
	}
	pool, err := repository.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to initialize postgres: %v", err)
	}
	defer pool.Close()

	jobs := repository.NewPostgresJobStore(pool)
	ledger := repository.NewPostgresMemoryLedger(pool)

	var consumer queue.Consumer
	if cfg.RedisAddr != "" {
		streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			Group:    cfg.RedisGroup,
			Consumer: cfg.RedisConsumer,
		})
		if err != nil {
			logger.Printf("redis streams unavailable, relying on polling only: %v", err)
		} else {
			defer streams.Close()
			consumer = streams
		}
	} else {
		logger.Printf("REDIS_ADDR not configured, relying on polling only")
	}

	var relay media.Relay
	if cfg.GCSBucket == "" {
		logger.Fatalf("GCS_BUCKET is required: a standalone worker cannot read the api's in-memory relay")
	}
	gcsRelay, err := media.NewGCSRelay(ctx, media.GCSRelayConfig{
		Bucket:        cfg.GCSBucket,
		FetchUsername: cfg.TwilioAccountSID,
		FetchPassword: cfg.TwilioAuthToken,
		FetchTimeout:  time.Duration(cfg.MediaFetchTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatalf("failed to initialize gcs relay: %v", err)
	}
	defer gcsRelay.Close()
	relay = gcsRelay

	var transcriber transcribe.Transcriber
	whisper := transcribe.NewWhisperClient(transcribe.WhisperClientConfig{
		APIKey:        cfg.SpeechAPIKey,
		BaseURL:       cfg.SpeechBaseURL,
		PrimaryModel:  cfg.SpeechModelPrimary,
		FallbackModel: cfg.SpeechModelFallback,
		Timeout:       time.Duration(cfg.SpeechTimeoutMS) * time.Millisecond,
		MaxRetries:    cfg.SpeechMaxRetries,
	})
	if whisper.Available() {
		transcriber = whisper
	} else {
		logger.Printf("SPEECH_API_KEY not configured, using static transcriber")
		transcriber = transcribe.StaticTranscriber{}
	}

	workerPool := worker.NewPool(jobs, relay, transcriber, ledger, consumer, logger, worker.PoolConfig{
		Workers:         cfg.WorkerCount,
		PollInterval:    time.Duration(cfg.WorkerPollMS) * time.Millisecond,
		ReclaimEnabled:  cfg.JobReclaimEnabled,
		ReclaimInterval: time.Duration(cfg.JobReclaimIntervalMS) * time.Millisecond,
		StaleAfter:      time.Duration(cfg.JobStaleAfterSeconds) * time.Second,
	})

	logger.Printf("worker pool starting workers=%d poll_ms=%d", cfg.WorkerCount, cfg.WorkerPollMS)
	workerPool.Start(ctx)
	logger.Printf("worker pool stopped")
}
