package app

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/politicas-backend/internal/data/db"
	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/envutil"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/platform/mercadopago"
	"github.com/yungbote/politicas-backend/internal/platform/sendgrid"
)

const defaultJWTSecret = "defaultsecret"

type Config struct {
	Env         string
	Production  bool
	Port        string
	ServiceName string
	Version     string

	AppBaseURL string
	APIBaseURL string

	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	DB db.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SendGrid    sendgrid.Config
	MercadoPago mercadopago.Config

	ExportArchiveBucket string
	AllowedOrigins      []string
	MetricsAddr         string

	Otel observability.OtelConfig
}

// LoadDotEnv reads .env when present. Variables already set win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// NewLogger builds the process logger from LOG_MODE and LOG_FILE.
func NewLogger() (*logger.Logger, error) {
	mode := envutil.String("LOG_MODE", "development")
	var opts []logger.Option
	if path := envutil.String("LOG_FILE", ""); path != "" {
		opts = append(opts, logger.WithFile(path, envutil.Seconds("LOG_FILE_MAX_AGE_SECONDS", 0)))
	}
	return logger.New(mode, opts...)
}

func LoadConfig(log *logger.Logger) Config {
	env := strings.ToLower(envutil.String("APP_ENV", "development"))
	cfg := Config{
		Env:         env,
		Production:  env == "production" || env == "prod",
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "politicas-backend"),
		Version:     envutil.String("APP_VERSION", "dev"),

		AppBaseURL: strings.TrimRight(envutil.String("APP_BASE_URL", "http://localhost:5173"), "/"),
		APIBaseURL: strings.TrimRight(envutil.String("API_BASE_URL", "http://localhost:8080"), "/"),

		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", defaultJWTSecret),
		AccessTokenTTL:  envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: envutil.Seconds("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		DB: db.ConfigFromEnv(),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),

		SendGrid:    sendgrid.ConfigFromEnv(),
		MercadoPago: mercadopago.ConfigFromEnv(),

		ExportArchiveBucket: envutil.String("EXPORT_ARCHIVE_BUCKET", ""),
		AllowedOrigins:      envutil.List("CORS_ALLOWED_ORIGINS", nil),
		MetricsAddr:         envutil.String("METRICS_ADDR", ":9090"),
	}
	cfg.Otel = observability.OtelConfigFromEnv()
	cfg.Otel.ServiceName = cfg.ServiceName
	cfg.Otel.Environment = cfg.Env
	cfg.Otel.Version = cfg.Version
	if cfg.JWTSecretKey == defaultJWTSecret {
		log.Warn("JWT_SECRET_KEY not set, using the development default")
	}
	return cfg
}

// SimulationEnabled reports whether checkout completes through /payments/simulate.
func (c Config) SimulationEnabled() bool {
	return !c.Production && !c.MercadoPago.Configured()
}

// Validate rejects configurations that must never reach production.
func (c Config) Validate() error {
	if !c.Production {
		return nil
	}
	var errs []error
	if c.JWTSecretKey == "" || c.JWTSecretKey == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET_KEY must be set in production"))
	}
	if !c.MercadoPago.Configured() {
		errs = append(errs, errors.New("MERCADOPAGO_ACCESS_TOKEN must be set in production; payment simulation is disabled there"))
	}
	if len(c.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must be set in production"))
	}
	return errors.Join(errs...)
}
