package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"server/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	JobQueueKey       string
	WorkerConcurrency int
	DequeueTimeout    time.Duration
	MaxRetries        int
	StaleThreshold    time.Duration
	StaleSweepEvery   time.Duration
	RecoverEvery      time.Duration

	NanoBananaAPIKey string
	NanoBananaAPIURL string
	GenerateTimeout  time.Duration

	StoragePath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	CORSOrigins      []string

	PlanLimits map[domain.Plan]domain.PlanLimits
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JobQueueKey:       getEnv("JOB_QUEUE_KEY", "job_queue"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 1),
		DequeueTimeout:    time.Second * time.Duration(getEnvInt("DEQUEUE_TIMEOUT_SECONDS", 5)),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		StaleThreshold:    time.Minute * time.Duration(getEnvInt("STALE_THRESHOLD_MINUTES", 15)),
		StaleSweepEvery:   time.Second * time.Duration(getEnvInt("STALE_SWEEP_SECONDS", 60)),
		RecoverEvery:      time.Minute * time.Duration(getEnvInt("RECOVERY_SWEEP_MINUTES", 5)),

		NanoBananaAPIKey: os.Getenv("NANO_BANANA_API_KEY"),
		NanoBananaAPIURL: getEnv("NANO_BANANA_API_URL", "https://api.nanobanana.com"),
		GenerateTimeout:  time.Second * time.Duration(getEnvInt("GENERATE_TIMEOUT_SECONDS", 300)),

		StoragePath: getEnv("STORAGE_PATH", "./storage"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		PlanLimits: loadPlanLimits(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

func loadPlanLimits() map[domain.Plan]domain.PlanLimits {
	limits := domain.DefaultPlanLimits()

	free := limits[domain.PlanFree]
	free.MaxJobs = getEnvInt("FREE_JOBS_PER_DAY", free.MaxJobs)
	free.ConcurrentJobs = getEnvInt("FREE_CONCURRENT_JOBS", free.ConcurrentJobs)
	limits[domain.PlanFree] = free

	personal := limits[domain.PlanPersonal]
	personal.MaxJobs = getEnvInt("PERSONAL_JOBS_PER_MONTH", personal.MaxJobs)
	personal.ConcurrentJobs = getEnvInt("PERSONAL_CONCURRENT_JOBS", personal.ConcurrentJobs)
	limits[domain.PlanPersonal] = personal

	pro := limits[domain.PlanPro]
	pro.MaxJobs = getEnvInt("PRO_JOBS_PER_MONTH", pro.MaxJobs)
	pro.ConcurrentJobs = getEnvInt("PRO_CONCURRENT_JOBS", pro.ConcurrentJobs)
	limits[domain.PlanPro] = pro

	return limits
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
