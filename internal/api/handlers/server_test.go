package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"procureflow.io/procureflow/internal/api/middleware"
	"procureflow.io/procureflow/internal/blob"
	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/governance/audit"
	"procureflow.io/procureflow/internal/governance/inbox"
	"procureflow.io/procureflow/internal/governance/lifecycle"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/service"
	"procureflow.io/procureflow/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

// harness wires a Server over the fixture store and mounts it on a router
// with the production error middleware, so handler tests observe the same
// JSON envelopes clients do.
type harness struct {
	*testutil.Fixture
	srv    *Server
	router *gin.Engine
	engine *lifecycle.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := testutil.NewFixture(t)

	ledger := audit.NewLedger(f.Store, f.IDs, f.Clock)
	attachments := service.NewAttachmentService(f.Store, blob.NewMemory(), 1<<20, []string{"pdf", "png"})
	eng := lifecycle.NewEngine(f.Store, ledger, attachments, f.IDs, f.Clock, lifecycle.DefaultPolicy())

	srv := NewServer(ServerDeps{
		Store: f.Store,
		JWTCfg: middleware.JWTConfig{
			SigningKey: []byte("handler-test-signing-key"),
			Issuer:     "procureflow",
			ExpiresIn:  time.Hour,
		},
		Engine:      eng,
		Inbox:       inbox.NewRouter(f.Store),
		Ledger:      ledger,
		Lookups:     service.NewLookupRegistry(f.Store, f.IDs, f.Clock),
		Directory:   service.NewAccessDirectory(f.Store, f.IDs, f.Clock),
		Forms:       service.NewFormTemplateService(f.Store, f.IDs, f.Clock),
		Workflows:   service.NewWorkflowTemplateService(f.Store, f.IDs, f.Clock, true),
		Configs:     service.NewTeamConfigService(f.Store, f.IDs, f.Clock),
		Attachments: attachments,
		IDs:         f.IDs,
		Clock:       f.Clock,
	})

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	srv.RegisterRoutes(router.Group("/api/v1"))

	return &harness{Fixture: f, srv: srv, router: router, engine: eng}
}

// do performs one request as the given user. An empty userID leaves the
// request unauthenticated.
func (h *harness) do(t *testing.T, userID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req = req.WithContext(middleware.SetUserContext(req.Context(), userID, userID, nil))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// bindServicePipeline publishes a two-step SERVICE pipeline on the fixture
// team: Manager approval then finance review. Returns the form template.
func (h *harness) bindServicePipeline(t *testing.T) *domain.FormTemplate {
	t.Helper()
	form := h.MustFormTemplate(t, "svc-form", 1,
		h.Field("amount", "Amount", domain.FieldTypeNumber, true, 1),
		h.Field("notes", "Notes", domain.FieldTypeText, false, 2),
	)
	flow := h.MustWorkflow(t, "svc-flow", 1,
		h.Step(1, "Manager", false, h.RoleManager),
		h.Step(2, "Finance", true, h.RoleFinance),
	)
	h.MustBind(t, domain.PurchaseTypeService, form.ID, flow.ID)
	return form
}

// mustDraft creates a draft over HTTP as the fixture requestor.
func (h *harness) mustDraft(t *testing.T) *domain.PurchaseRequest {
	t.Helper()
	w := h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/requests", CreateDraftRequest{
		TeamID:       h.Team.ID,
		PurchaseType: domain.PurchaseTypeService,
		VendorName:   "Acme GmbH",
		Subject:      "Trade fair booth",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create draft: status = %d, body %s", w.Code, w.Body.String())
	}
	var req domain.PurchaseRequest
	decode(t, w, &req)
	return &req
}

// mustSubmitted drafts, fills the required field, and submits, using the
// engine directly for the fill to keep tests focused on one operation.
func (h *harness) mustSubmitted(t *testing.T) *domain.PurchaseRequest {
	t.Helper()
	draft := h.mustDraft(t)
	ctx := context.Background()
	if _, err := h.engine.SetField(ctx, draft.ID, h.Requestor.ID, "amount", domain.NumberValue(decimal.NewFromInt(1200))); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	submitted, err := h.engine.Submit(ctx, draft.ID, h.Requestor.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return submitted
}
