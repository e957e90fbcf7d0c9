package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/politicas-backend/internal/platform/gcp"
	"github.com/yungbote/politicas-backend/internal/platform/locks"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/platform/mercadopago"
	"github.com/yungbote/politicas-backend/internal/platform/sendgrid"
)

// Clients holds the external connections. Every field except Locker may be nil.
type Clients struct {
	Redis       *goredis.Client
	Locker      locks.Locker
	Archive     gcp.ArchiveStore
	SendGrid    sendgrid.Client
	MercadoPago mercadopago.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.RedisAddr != "" {
		rdb, err := locks.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.Locker = locks.NewRedis(log, rdb, "politicas:lock:")
	} else {
		log.Info("REDIS_ADDR not set, using in-process policy locks")
		out.Locker = locks.NewLocal()
	}

	// Gcs
	if cfg.ExportArchiveBucket != "" {
		store, err := gcp.NewArchiveStore(ctx, log, cfg.ExportArchiveBucket)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init export archive: %w", err)
		}
		out.Archive = store
	}

	// SendGrid
	sg, err := sendgrid.New(log, cfg.SendGrid)
	switch {
	case err == nil:
		out.SendGrid = sg
	case errors.Is(err, sendgrid.ErrNotConfigured):
		log.Warn("SENDGRID_API_KEY not set, emails are logged instead of sent")
	default:
		out.Close()
		return Clients{}, fmt.Errorf("init sendgrid: %w", err)
	}

	// MercadoPago
	if cfg.MercadoPago.Configured() {
		mp, err := mercadopago.New(log, cfg.MercadoPago)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init mercadopago: %w", err)
		}
		out.MercadoPago = mp
	} else {
		log.Warn("MERCADOPAGO_ACCESS_TOKEN not set, checkout runs in simulation mode")
	}

	return out, nil
}

func (c Clients) Close() {
	if c.Archive != nil {
		_ = c.Archive.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
