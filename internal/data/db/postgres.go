package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/politicas-backend/internal/platform/envutil"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type Config struct {
	Driver      string
	DSN         string
	SQLitePath  string
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	SlowQuery   time.Duration
}

// ConfigFromEnv prefers DATABASE_URL and otherwise assembles a DSN from POSTGRES_*.
func ConfigFromEnv() Config {
	dsn := envutil.String("DATABASE_URL", "")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			envutil.String("POSTGRES_USER", "postgres"),
			envutil.String("POSTGRES_PASSWORD", ""),
			envutil.String("POSTGRES_HOST", "localhost"),
			envutil.String("POSTGRES_PORT", "5432"),
			envutil.String("POSTGRES_NAME", "politicas"),
			envutil.String("POSTGRES_SSLMODE", "disable"),
		)
	}
	return Config{
		Driver:      strings.ToLower(envutil.String("DB_DRIVER", "postgres")),
		DSN:         dsn,
		SQLitePath:  envutil.String("SQLITE_PATH", "politicas.db"),
		MaxOpen:     envutil.Int("DB_MAX_OPEN_CONNS", 20),
		MaxIdle:     envutil.Int("DB_MAX_IDLE_CONNS", 5),
		MaxLifetime: envutil.Seconds("DB_CONN_MAX_LIFETIME_SECONDS", 30*time.Minute),
		SlowQuery:   envutil.Seconds("DB_SLOW_QUERY_SECONDS", time.Second),
	}
}

type PostgresService struct {
	db     *gorm.DB
	log    *logger.Logger
	driver string
}

func NewPostgresService(logg *logger.Logger, cfg Config) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             cfg.SlowQuery,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.SQLitePath, err)
		}
	case "", "postgres":
		cfg.Driver = "postgres"
		db, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if cfg.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	serviceLog.Info("Database connected", "driver", cfg.Driver)
	return &PostgresService{db: db, log: serviceLog, driver: cfg.Driver}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Driver() string { return s.driver }

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
