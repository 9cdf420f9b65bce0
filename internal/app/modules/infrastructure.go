package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"procureflow.io/procureflow/internal/blob"
	"procureflow.io/procureflow/internal/config"
	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/infrastructure"
	"procureflow.io/procureflow/internal/pkg/worker"
	"procureflow.io/procureflow/internal/repository"
	"procureflow.io/procureflow/internal/repository/postgres"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients
	Pools       *worker.Pools
	Store       repository.Store
	Blobs       blob.Backend
	Pool        *pgxpool.Pool
	RiverClient *river.Client[pgx.Tx]
	IDs         domain.IDGenerator
	Clock       domain.Clock
}

// NewInfrastructure initializes DB/pools, the repository store, and the
// attachment blob backend.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Dev-mode: auto-apply schema + River queue tables.
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		NotifyPoolSize:  cfg.Worker.NotifyPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	blobs, err := newBlobBackend(cfg.Storage)
	if err != nil {
		pools.Shutdown()
		db.Close()
		return nil, fmt.Errorf("init blob backend: %w", err)
	}

	return &Infrastructure{
		Config:      cfg,
		DB:          db,
		Pools:       pools,
		Store:       postgres.NewStore(db.Pool),
		Blobs:       blobs,
		Pool:        db.Pool,
		RiverClient: db.RiverClient,
		IDs:         domain.UUIDGenerator{},
		Clock:       domain.UTCClock{},
	}, nil
}

func newBlobBackend(cfg config.StorageConfig) (blob.Backend, error) {
	switch cfg.Backend {
	case "", "filesystem":
		return blob.NewFilesystem(cfg.FilesystemRoot)
	case "memory":
		// In-process backend for tests and throwaway environments.
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// InitRiver initializes the River client on top of a prepared worker registry.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
