// Package app is the composition root. Bootstrap stays orchestration-only;
// construction logic lives in the modules package.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"procureflow.io/procureflow/internal/api/handlers"
	"procureflow.io/procureflow/internal/app/modules"
	"procureflow.io/procureflow/internal/config"
	"procureflow.io/procureflow/internal/infrastructure"
	"procureflow.io/procureflow/internal/jobs"
	"procureflow.io/procureflow/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	governanceModule := modules.NewGovernanceModule(infra)
	notificationModule := modules.NewNotificationModule(infra, governanceModule.Engine())
	allModules := []modules.Module{governanceModule, notificationModule}

	workers := river.NewWorkers()
	for _, mod := range allModules {
		mod.RegisterWorkers(workers)
	}
	if err := infra.InitRiver(workers); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	// Notification retention cleanup: run on an interval and once on startup
	// to avoid long-lived inbox bloat.
	if infra.RiverClient != nil {
		interval := cfg.Notification.CleanupInterval
		if interval <= 0 {
			interval = time.Hour
		}
		infra.RiverClient.PeriodicJobs().Add(
			river.NewPeriodicJob(
				river.PeriodicInterval(interval),
				func() (river.JobArgs, *river.InsertOpts) {
					return jobs.NotificationCleanupArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		)
	}

	serverDeps := modules.NewServerDeps(cfg, infra, allModules)
	server := handlers.NewServer(serverDeps)

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, serverDeps.JWTCfg),
		DB:      infra.DB,
		Pools:   infra.Pools,
		Modules: allModules,
	}, nil
}
