// Package handlers implements the HTTP handlers for the ProcureFlow API.
//
// Handlers bind transport DTOs, delegate to the lifecycle engine and the
// governance services, and hand structured errors to the ErrorHandler
// middleware via c.Error. Identity comes from the request context populated
// by the JWT middleware; handlers never parse tokens themselves.
//
// Import Path: procureflow.io/procureflow/internal/api/handlers
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"procureflow.io/procureflow/internal/api/middleware"
	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/governance/audit"
	"procureflow.io/procureflow/internal/governance/inbox"
	"procureflow.io/procureflow/internal/governance/lifecycle"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/repository"
	"procureflow.io/procureflow/internal/service"
)

// Server implements all API handlers.
type Server struct {
	store       repository.Store
	jwtCfg      middleware.JWTConfig
	engine      *lifecycle.Engine
	inbox       *inbox.Router
	ledger      *audit.Ledger
	lookups     *service.LookupRegistry
	directory   *service.AccessDirectory
	forms       *service.FormTemplateService
	workflows   *service.WorkflowTemplateService
	configs     *service.TeamConfigService
	attachments *service.AttachmentService
	ids         domain.IDGenerator
	clock       domain.Clock
	readyCheck  func(ctx context.Context) error
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI, no Wire/Dig.
type ServerDeps struct {
	Store       repository.Store
	JWTCfg      middleware.JWTConfig
	Engine      *lifecycle.Engine
	Inbox       *inbox.Router
	Ledger      *audit.Ledger
	Lookups     *service.LookupRegistry
	Directory   *service.AccessDirectory
	Forms       *service.FormTemplateService
	Workflows   *service.WorkflowTemplateService
	Configs     *service.TeamConfigService
	Attachments *service.AttachmentService
	IDs         domain.IDGenerator
	Clock       domain.Clock

	// ReadyCheck is the optional readiness probe dependency, typically the
	// database ping.
	ReadyCheck func(ctx context.Context) error
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	ids := deps.IDs
	if ids == nil {
		ids = domain.UUIDGenerator{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = domain.UTCClock{}
	}
	return &Server{
		store:       deps.Store,
		jwtCfg:      deps.JWTCfg,
		engine:      deps.Engine,
		inbox:       deps.Inbox,
		ledger:      deps.Ledger,
		lookups:     deps.Lookups,
		directory:   deps.Directory,
		forms:       deps.Forms,
		workflows:   deps.Workflows,
		configs:     deps.Configs,
		attachments: deps.Attachments,
		ids:         ids,
		clock:       clock,
		readyCheck:  deps.ReadyCheck,
	}
}

// RegisterRoutes mounts every API operation on the group. The caller owns
// the middleware stack; handlers only read identity from the request
// context.
func (s *Server) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/auth/login", s.Login)
	g.GET("/auth/me", s.GetCurrentUser)

	g.GET("/lookups", s.ListLookups)

	g.GET("/teams", s.ListTeams)
	g.POST("/teams", s.CreateTeam)
	g.GET("/teams/:team_id/members", s.ListTeamMembers)
	g.POST("/teams/:team_id/members", s.UpsertTeamMember)
	g.GET("/teams/:team_id/categories", s.ListAttachmentCategories)
	g.POST("/teams/:team_id/categories", s.CreateAttachmentCategory)
	g.PUT("/teams/:team_id/configs/:purchase_type", s.AssignTeamConfig)
	g.GET("/teams/:team_id/configs/:purchase_type/effective", s.GetEffectiveTemplates)

	g.POST("/users", s.CreateUser)

	g.POST("/form-templates", s.CreateFormTemplate)
	g.GET("/form-templates/:template_id", s.GetFormTemplate)
	g.POST("/workflow-templates", s.CreateWorkflowTemplate)
	g.GET("/workflow-templates/:template_id", s.GetWorkflowTemplate)

	g.GET("/requests", s.ListMyRequests)
	g.POST("/requests", s.CreateDraft)
	g.GET("/requests/:request_id", s.GetRequest)
	g.PATCH("/requests/:request_id", s.UpdateRequestHeader)
	g.PUT("/requests/:request_id/fields/:field_id", s.SetRequestField)
	g.POST("/requests/:request_id/attachments", s.UploadAttachment)
	g.DELETE("/requests/:request_id/attachments/:attachment_id", s.RemoveAttachment)
	g.POST("/requests/:request_id/submit", s.SubmitRequest)
	g.POST("/requests/:request_id/approve", s.ApproveRequest)
	g.POST("/requests/:request_id/reject", s.RejectRequest)
	g.POST("/requests/:request_id/resubmit", s.ResubmitRequest)
	g.POST("/requests/:request_id/withdraw", s.WithdrawRequest)
	g.GET("/requests/:request_id/audit", s.GetRequestAudit)

	g.GET("/inbox/approver", s.GetApproverInbox)
	g.GET("/inbox/finance", s.GetFinanceInbox)
	g.GET("/inbox/requestor", s.GetRequestorInbox)
	g.GET("/inbox/counts", s.GetInboxCounts)

	g.GET("/notifications", s.ListNotifications)
	g.POST("/notifications/:notification_id/read", s.MarkNotificationRead)
}

// fail hands the error to the ErrorHandler middleware for rendering.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

// actorID extracts the authenticated user id, answering 401 when the
// request carries none.
func actorID(c *gin.Context) (string, bool) {
	uid := middleware.GetUserID(c.Request.Context())
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "authentication required"})
		return "", false
	}
	return uid, true
}

// bindJSON binds the request body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apperrors.CodeInvalidRequestBody,
			"message": err.Error(),
		})
		return false
	}
	return true
}
