package config

import (
	"os"
	"strconv"
)

// Config centralizes runtime settings for the webhook API and workers.
type Config struct {
	Port string

	DatabaseURL string

	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioFromNumber        string
	TwilioBaseURL           string
	TwilioValidateSignature bool

	// PublicBaseURL is the externally visible URL Twilio signs requests
	// against; required when signature validation runs behind a proxy.
	PublicBaseURL string

	GCSBucket           string
	MediaFetchTimeoutMS int

	SpeechAPIKey        string
	SpeechBaseURL       string
	SpeechModelPrimary  string
	SpeechModelFallback string
	SpeechTimeoutMS     int
	SpeechMaxRetries    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisGroup    string
	RedisConsumer string

	RateLimitRPS   float64
	RateLimitBurst int

	MerchantCacheTTLSeconds int
	MerchantCacheMaxEntries int

	WorkerEnabled        bool
	WorkerCount          int
	WorkerPollMS         int
	JobReclaimEnabled    bool
	JobReclaimIntervalMS int
	JobStaleAfterSeconds int
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:        getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioBaseURL:           getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		TwilioValidateSignature: getEnvBool("TWILIO_VALIDATE_SIGNATURE", true),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		GCSBucket:           getEnv("GCS_BUCKET", ""),
		MediaFetchTimeoutMS: getEnvInt("MEDIA_FETCH_TIMEOUT_MS", 30000),

		SpeechAPIKey:        getEnv("SPEECH_API_KEY", ""),
		SpeechBaseURL:       getEnv("SPEECH_BASE_URL", "https://api.openai.com/v1"),
		SpeechModelPrimary:  getEnv("SPEECH_MODEL_PRIMARY", "whisper-1"),
		SpeechModelFallback: getEnv("SPEECH_MODEL_FALLBACK", ""),
		SpeechTimeoutMS:     getEnvInt("SPEECH_TIMEOUT_MS", 60000),
		SpeechMaxRetries:    getEnvInt("SPEECH_MAX_RETRIES", 2),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "mina_job_wakeups"),
		RedisGroup:    getEnv("REDIS_GROUP", "mina_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "worker-1"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		MerchantCacheTTLSeconds: getEnvInt("MERCHANT_CACHE_TTL_SECONDS", 900),
		MerchantCacheMaxEntries: getEnvInt("MERCHANT_CACHE_MAX_ENTRIES", 2000),

		WorkerEnabled:        getEnvBool("WORKER_ENABLED", true),
		WorkerCount:          getEnvInt("WORKER_COUNT", 2),
		WorkerPollMS:         getEnvInt("WORKER_POLL_MS", 2000),
		JobReclaimEnabled:    getEnvBool("JOB_RECLAIM_ENABLED", false),
		JobReclaimIntervalMS: getEnvInt("JOB_RECLAIM_INTERVAL_MS", 60000),
		JobStaleAfterSeconds: getEnvInt("JOB_STALE_AFTER_SECONDS", 600),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
