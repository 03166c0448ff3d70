package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/manufacturing_backend/config"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
)

// OpenSnapshotRepository connects the backend named by STATE_STORE and returns it with its close func.
func OpenSnapshotRepository(ctx context.Context, store string) (models.SnapshotRepository, func(), error) {
	noop := func() {}
	switch store {
	case config.StateStoreMemory, "":
		return models.NewMemorySnapshotRepository(), noop, nil

	case config.StateStoreMysql, config.StateStorePostgres:
		if err := config.ConnectDatabaseWithRetry(store); err != nil {
			return nil, noop, err
		}
		db := config.GetDB()
		// AutoMigrate can lock tables; SKIP_MIGRATIONS=true leaves it to a separate job.
		if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
			models.MigrateTable()
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return models.NewGormSnapshotRepository(db), closeFn, nil

	case config.StateStoreSqlite:
		conn, err := config.ConnectSqlite()
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite: %w", err)
		}
		repo, err := models.NewSqliteSnapshotRepository(conn)
		if err != nil {
			conn.Close()
			return nil, noop, err
		}
		return repo, func() { _ = conn.Close() }, nil

	case config.StateStoreRedis:
		if config.GetRedisDB() == nil {
			config.ConnectRedisWithRetry(ctx)
		}
		client := config.GetRedisDB()
		if client == nil {
			return nil, noop, errors.New("redis is not reachable")
		}
		return models.NewRedisSnapshotRepository(client), func() { _ = client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unsupported STATE_STORE %q", store)
	}
}
