package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/event_bus"
	"github.com/gatherly/gatherly/internal/jobs"
	"github.com/gatherly/gatherly/internal/utils"
	"github.com/gatherly/gatherly/pkg/connection"
	"github.com/gatherly/gatherly/pkg/event"
	"github.com/gatherly/gatherly/pkg/images"
	"github.com/gatherly/gatherly/pkg/luma"
	"github.com/gatherly/gatherly/pkg/sync"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Bus    *event_bus.EventBus
	Runner *jobs.InProcessRunner
	Clock  utils.Clock

	LumaClientFactory luma.ClientFactory
	ImageImporter     images.Importer

	ConnectionRepo    connection.Repository
	ConnectionService connection.Service
	ConnectionHandler *connection.Handler

	EventRepo event.Repository

	SyncRepo            sync.Repository
	SyncService         *sync.Service
	VerificationService *sync.VerificationService
	Orchestrator        *sync.Orchestrator
	WebhookHandler      *sync.WebhookHandler
	ActivityLog         *sync.ActivityLog
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Bus = event_bus.NewEventBus()
	deps.Runner = jobs.NewInProcessRunner()
	deps.Clock = &utils.SystemClock{}
	deps.ActivityLog = sync.NewActivityLog(deps.Bus)

	deps.LumaClientFactory = luma.NewClientFactory(cfg.Luma.BaseUrl)
	deps.ImageImporter = images.NewHttpImporter(cfg.Media.Dir)

	deps.ConnectionRepo = connection.NewRepository(db)
	deps.EventRepo = event.NewRepository(db)
	deps.SyncRepo = sync.NewRepository(db)

	deps.SyncService = sync.NewService(deps.ConnectionRepo, deps.SyncRepo, deps.EventRepo,
		deps.LumaClientFactory, deps.ImageImporter, deps.Bus, deps.Clock)
	deps.VerificationService = sync.NewVerificationService(deps.ConnectionRepo, deps.LumaClientFactory,
		deps.Runner, deps.Bus, deps.Clock, cfg.Host+"/webhooks/luma")
	deps.Orchestrator = sync.NewOrchestrator(deps.ConnectionRepo, deps.SyncService, deps.VerificationService)
	sync.RegisterJobs(deps.Runner, deps.SyncService, deps.VerificationService, deps.Orchestrator)

	deps.ConnectionService = connection.NewService(deps.ConnectionRepo,
		func(ctx context.Context, connectionId int64) error {
			return deps.Runner.Trigger(ctx, sync.JobCalendarVerification, sync.VerificationPayload{ConnectionId: connectionId})
		},
		func(ctx context.Context, connectionId int64, forceFullSync bool) error {
			return deps.Runner.Trigger(ctx, sync.JobCalendarSync, sync.SyncPayload{ConnectionId: connectionId, ForceFullSync: forceFullSync})
		})
	deps.ConnectionHandler = connection.NewHandler(deps.ConnectionService)

	deps.WebhookHandler = sync.NewWebhookHandler(deps.ConnectionRepo, deps.SyncService)

	return deps
}
