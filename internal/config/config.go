package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is not set")

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env         string
	Port        int
	ServiceName string

	DBURL       string
	StoreDriver string

	JWTSecret string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTELEndpoint string

	AuthRateLimit  int
	AuthRateWindow time.Duration

	SummaryCacheTTL time.Duration
}

// Load reads the process configuration once at startup. A missing signing
// secret is fatal: callers must not start serving without it.
func Load() (Config, error) {
	// a .env file is optional; real environment variables win
	_ = godotenv.Load()

	cfg := Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnvInt("PORT", 8080),
		ServiceName: getEnv("SERVICE_NAME", "expensehub-api"),

		DBURL:       getEnv("DATABASE_URL", buildDBURL()),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),

		JWTSecret: os.Getenv("JWT_SECRET"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTELEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindow: time.Duration(getEnvInt("AUTH_RATE_WINDOW_SECONDS", 60)) * time.Second,

		SummaryCacheTTL: time.Duration(getEnvInt("SUMMARY_CACHE_TTL_SECONDS", 300)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.StoreDriver == StoreDriverPostgres && c.DBURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	return nil
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "expensehub")
	pass := getEnv("DB_PASSWORD", "expensehub")
	name := getEnv("DB_NAME", "expensehub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
