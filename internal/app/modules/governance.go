package modules

import (
	"context"

	"github.com/riverqueue/river"

	"procureflow.io/procureflow/internal/api/handlers"
	"procureflow.io/procureflow/internal/governance/audit"
	"procureflow.io/procureflow/internal/governance/inbox"
	"procureflow.io/procureflow/internal/governance/lifecycle"
	"procureflow.io/procureflow/internal/service"
)

// GovernanceModule wires the purchase request lifecycle engine together with
// the template, config, and directory services that feed it.
type GovernanceModule struct {
	infra       *Infrastructure
	engine      *lifecycle.Engine
	inbox       *inbox.Router
	ledger      *audit.Ledger
	lookups     *service.LookupRegistry
	directory   *service.AccessDirectory
	forms       *service.FormTemplateService
	workflows   *service.WorkflowTemplateService
	configs     *service.TeamConfigService
	attachments *service.AttachmentService
}

// NewGovernanceModule creates the governance module with explicit constructor wiring.
func NewGovernanceModule(infra *Infrastructure) *GovernanceModule {
	cfg := infra.Config.Workflow

	ledger := audit.NewLedger(infra.Store, infra.IDs, infra.Clock)
	attachments := service.NewAttachmentService(
		infra.Store,
		infra.Blobs,
		cfg.MaxAttachmentBytes,
		cfg.AllowedAttachmentExtensions,
	)
	engine := lifecycle.NewEngine(
		infra.Store,
		ledger,
		attachments,
		infra.IDs,
		infra.Clock,
		lifecycle.Policy{
			RejectionMinCommentChars: cfg.RejectionMinCommentChars,
			RetryAttempts:            cfg.ConcurrentRetryAttempts,
			RetryBackoff:             cfg.ConcurrentRetryBackoff,
		},
	)

	return &GovernanceModule{
		infra:       infra,
		engine:      engine,
		inbox:       inbox.NewRouter(infra.Store),
		ledger:      ledger,
		lookups:     service.NewLookupRegistry(infra.Store, infra.IDs, infra.Clock),
		directory:   service.NewAccessDirectory(infra.Store, infra.IDs, infra.Clock),
		forms:       service.NewFormTemplateService(infra.Store, infra.IDs, infra.Clock),
		workflows:   service.NewWorkflowTemplateService(infra.Store, infra.IDs, infra.Clock, cfg.RequireFinanceReviewLast),
		configs:     service.NewTeamConfigService(infra.Store, infra.IDs, infra.Clock),
		attachments: attachments,
	}
}

func (m *GovernanceModule) Name() string { return "governance" }

// Engine exposes the lifecycle engine so sibling modules can attach
// post-commit observers.
func (m *GovernanceModule) Engine() *lifecycle.Engine { return m.engine }

func (m *GovernanceModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Engine = m.engine
	deps.Inbox = m.inbox
	deps.Ledger = m.ledger
	deps.Lookups = m.lookups
	deps.Directory = m.directory
	deps.Forms = m.forms
	deps.Workflows = m.workflows
	deps.Configs = m.configs
	deps.Attachments = m.attachments
}

func (m *GovernanceModule) RegisterWorkers(_ *river.Workers) {}

func (m *GovernanceModule) Shutdown(context.Context) error { return nil }
