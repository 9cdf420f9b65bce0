package modules

import (
	"context"

	"github.com/riverqueue/river"

	"procureflow.io/procureflow/internal/api/handlers"
	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/governance/lifecycle"
	"procureflow.io/procureflow/internal/jobs"
	"procureflow.io/procureflow/internal/notification"
)

// NotificationModule wires the inbox notification pipeline: lifecycle events
// fan out to notification triggers after commit, and a River worker prunes
// aged inbox rows on a schedule.
type NotificationModule struct {
	infra      *Infrastructure
	dispatcher *domain.EventDispatcher
	triggers   *notification.Triggers
}

// NewNotificationModule creates the notification module and attaches its
// event dispatcher to the lifecycle engine.
func NewNotificationModule(infra *Infrastructure, engine *lifecycle.Engine) *NotificationModule {
	sender := notification.NewInboxSender(infra.Store, infra.IDs, infra.Clock)
	triggers := notification.NewTriggers(sender, infra.Store, infra.Pools)

	dispatcher := domain.NewEventDispatcher()
	triggers.Register(dispatcher)
	if engine != nil {
		engine.SetDispatcher(dispatcher)
	}

	return &NotificationModule{
		infra:      infra,
		dispatcher: dispatcher,
		triggers:   triggers,
	}
}

func (m *NotificationModule) Name() string { return "notification" }

func (m *NotificationModule) ContributeServerDeps(_ *handlers.ServerDeps) {}

func (m *NotificationModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m == nil || m.infra == nil {
		return
	}
	river.AddWorker(workers, jobs.NewNotificationCleanupWorker(
		m.infra.Store,
		m.infra.Clock,
		m.infra.Config.Notification.RetentionPeriod,
	))
}

func (m *NotificationModule) Shutdown(context.Context) error { return nil }
