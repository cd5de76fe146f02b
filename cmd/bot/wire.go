package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"friend_reminder_bot/internal/domain/account"
	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/notification"
	"friend_reminder_bot/internal/domain/storage"
	"friend_reminder_bot/internal/infra/cache"
	"friend_reminder_bot/internal/infra/config"
	idb "friend_reminder_bot/internal/infra/database"
	"friend_reminder_bot/internal/infra/delivery"
	"friend_reminder_bot/internal/infra/kvstore"
	"friend_reminder_bot/internal/infra/logger"
)

// backends are the storage dependencies selected by STORE_BACKEND.
type backends struct {
	db        *sql.DB
	accounts  account.Repository
	scheduled notification.ScheduledRepository
	stores    *kvstore.Factory
	closers   []func() error
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openBackends connects the storage selected in cfg. Accounts and the
// reminder outbox live in Postgres unless everything is kept in memory.
func openBackends(ctx context.Context, cfg *config.AppConfig, clock calendar.Clock) (*backends, error) {
	log := logger.Component("storage").WithField("backend", cfg.StoreBackend)
	b := &backends{}

	if cfg.StoreBackend == config.BackendMemory {
		kv := kvstore.NewMemoryKV()
		b.stores = kvstore.NewFactory(kv, clock)
		b.accounts = b.stores.Accounts()
		b.scheduled = delivery.NewMemoryRepository()
		log.Warn("Using in-memory storage. Everything is lost on restart.")
		return b, nil
	}

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	b.db = db
	b.closers = append(b.closers, db.Close)
	b.accounts = idb.NewPostgresAccountRepository(db)
	b.scheduled = idb.NewPostgresScheduledRepository(db)
	log.Info("Database connection established successfully.")

	var kv storage.KV
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		kv = cache.NewRedisKVStore(client)
		log.WithField("addr", cfg.RedisAddr).Info("Redis connection established successfully.")
	default:
		kv = idb.NewPostgresKVStore(db)
	}
	b.stores = kvstore.NewFactory(kv, clock)
	return b, nil
}
