package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soaringjerry/qforms/internal/config"
	"github.com/soaringjerry/qforms/internal/db"
	"github.com/soaringjerry/qforms/internal/services"
)

type store interface {
	services.QuestionnaireStore
	services.UserStore
	Close() error
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return db.NewMemoryStore(), nil
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return db.OpenSQLite(ctx, cfg.Store.SQLitePath, cfg.Store.MigrationsDir)
	case config.DriverMongo:
		return db.NewMongoStore(cfg.Store.Mongo)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
