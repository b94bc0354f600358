// Command meridian provisions the RBAC core: it connects to PostgreSQL and
// idempotently seeds the system roles from the permission catalog. The HTTP
// surface embedding the library lives elsewhere; this binary only prepares
// the store.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian/internal/app"
	"github.com/meridian-crm/meridian/internal/platform/cache"
	"github.com/meridian-crm/meridian/internal/platform/db"
	"github.com/meridian-crm/meridian/internal/rbac"
)

func main() {
	if err := run(); err != nil {
		slog.Error("meridian", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info("permission cache reachable",
			slog.String("addr", cfg.RedisAddr),
			slog.Duration("ttl", cfg.PermissionCacheTTL))
	}

	roles := rbac.NewRoleService(rbac.NewRoleRepository(pool), rbac.NewAssignmentRepository(pool))
	created, err := roles.InitializeSystemRoles(ctx)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		logger.Info("system roles already present")
		return nil
	}
	for _, role := range created {
		logger.Info("seeded system role",
			slog.String("name", role.Name),
			slog.Int("permissions", len(role.Permissions)))
	}
	if redisClient != nil {
		// Freshly seeded roles must not hide behind stale cached sets.
		if err := rbac.FlushPermissions(ctx, redisClient); err != nil {
			logger.Warn("permission cache flush failed", slog.Any("error", err))
		}
	}
	return nil
}
