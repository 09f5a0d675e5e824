package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/gotrs-io/eventclone/internal/cache"
	"github.com/gotrs-io/eventclone/internal/clone"
	"github.com/gotrs-io/eventclone/internal/clonequeue"
	"github.com/gotrs-io/eventclone/internal/config"
	"github.com/gotrs-io/eventclone/internal/database"
	"github.com/gotrs-io/eventclone/internal/repository"
	"github.com/gotrs-io/eventclone/internal/runner"
	"github.com/gotrs-io/eventclone/internal/runner/tasks"
	"github.com/gotrs-io/eventclone/internal/service"
	"github.com/gotrs-io/eventclone/internal/services/cloneworker"
	"github.com/gotrs-io/eventclone/internal/storage"
)

// localStatusCacheSize bounds the in-process status cache used without redis.
const localStatusCacheSize = 1000

// app holds the shared components every command builds on.
type app struct {
	cfg         *config.Config
	db          *sqlx.DB
	queue       *clonequeue.SQLQueue
	redis       *redis.Client
	statusCache cache.StatusCache
	notifier    cache.Notifier
	clones      *service.CloneService
}

func loadConfig() (*config.Config, error) {
	if configFileFlag != "" {
		return config.LoadFromFile(configFileFlag)
	}
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	if err := config.Load(configPath); err != nil {
		return nil, err
	}
	return config.Get(), nil
}

// newApp loads configuration and connects to the database and, when enabled, redis.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.DatabaseOptions())
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, queue: clonequeue.NewSQLQueue(db)}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.RedisOptions())
		if err != nil {
			db.Close()
			return nil, err
		}
		a.redis = client
		a.statusCache = cache.NewRedisStatusCache(client, cfg.RedisOptions())
		a.notifier = cache.NewRedisNotifier(client, cfg.Redis.Channel)
	} else {
		a.statusCache = cache.NewLocalStatusCache(cfg.Redis.StatusTTL, localStatusCacheSize)
		a.notifier = cache.NewLocalNotifier()
	}

	a.clones = service.NewCloneService(a.queue, repository.NewSQLContextRepository(db),
		service.WithNotifier(a.notifier),
		service.WithStatusCache(a.statusCache),
	)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("failed to close redis client: %v", err)
		}
	}
	if err := a.db.Close(); err != nil {
		log.Printf("failed to close database: %v", err)
	}
}

func (a *app) migrateIfEnabled(ctx context.Context) error {
	if !a.cfg.Database.AutoMigrate {
		return nil
	}
	_, err := database.Migrate(ctx, a.db)
	return err
}

// newOrchestrator wires the cloners, the identity map and the association
// resolver onto the SQL stores and the configured asset backend.
func (a *app) newOrchestrator(ctx context.Context) (*clone.Orchestrator, error) {
	assets, err := storage.New(ctx, a.cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create asset storage: %w", err)
	}

	ids := clone.NewIdentityMap(repository.NewSQLIdentityRepository(a.db))
	cloners := clone.NewCloners(repository.NewSQLOwnedTables(a.db), ids, assets)
	resolver := clone.NewAssociationResolver(repository.NewSQLAssociationRepository(a.db))

	return clone.NewOrchestrator(cloners, resolver, a.queue,
		clone.WithRetryPolicy(a.cfg.RetryPolicy()),
		clone.WithStepConcurrency(a.cfg.Clone.StepConcurrency),
		clone.WithDebug(a.cfg.App.Debug),
	), nil
}

func (a *app) newWorker(ctx context.Context) (*cloneworker.Service, error) {
	orchestrator, err := a.newOrchestrator(ctx)
	if err != nil {
		return nil, err
	}
	return cloneworker.NewService(a.queue, orchestrator,
		cloneworker.WithWorkers(a.cfg.Worker.Count),
		cloneworker.WithPollInterval(a.cfg.Worker.PollInterval),
		cloneworker.WithLeaseTTL(a.cfg.Worker.LeaseTTL),
		cloneworker.WithMaxAttempts(a.cfg.Worker.MaxAttempts),
		cloneworker.WithNotifier(a.notifier),
		cloneworker.WithStatusCache(a.statusCache),
	), nil
}

// newMaintenanceRunner registers the lease reaper and identity retention tasks.
func (a *app) newMaintenanceRunner() (*runner.Runner, error) {
	registry := runner.NewTaskRegistry()
	reaper := tasks.NewLeaseReaperTask(a.queue, a.cfg.Worker.MaxAttempts, a.cfg.Maintenance.LeaseReaperSchedule)
	if err := registry.Register(reaper); err != nil {
		return nil, err
	}
	if a.cfg.Maintenance.IdentityRetention > 0 {
		retention := tasks.NewIdentityRetentionTask(a.queue, repository.NewSQLIdentityRepository(a.db),
			a.cfg.Maintenance.IdentityRetention, a.cfg.Maintenance.IdentityRetentionSchedule)
		if err := registry.Register(retention); err != nil {
			return nil, err
		}
	}
	return runner.NewRunner(registry), nil
}
