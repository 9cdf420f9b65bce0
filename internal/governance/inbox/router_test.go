package inbox

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"procureflow.io/procureflow/internal/blob"
	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/governance/audit"
	"procureflow.io/procureflow/internal/governance/lifecycle"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/service"
	"procureflow.io/procureflow/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json")
}

type harness struct {
	*testutil.Fixture
	engine *lifecycle.Engine
	router *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := testutil.NewFixture(t)
	ledger := audit.NewLedger(f.Store, f.IDs, f.Clock)
	attachments := service.NewAttachmentService(f.Store, blob.NewMemory(), 1<<20, []string{"pdf"})
	eng := lifecycle.NewEngine(f.Store, ledger, attachments, f.IDs, f.Clock, lifecycle.DefaultPolicy())
	return &harness{Fixture: f, engine: eng, router: NewRouter(f.Store)}
}

// leadsPipeline binds a Leads step needing MANAGER and DIRECTOR, then a
// finance step.
func (h *harness) leadsPipeline(t *testing.T) {
	t.Helper()
	form := h.MustFormTemplate(t, "routed-form", 1,
		h.Field("amount", "Amount", domain.FieldTypeNumber, true, 1),
	)
	wf := h.MustWorkflow(t, "routed-flow", 1,
		h.Step(1, "Leads", false, h.RoleManager, h.RoleDirector),
		h.Step(2, "Finance", true, h.RoleFinance),
	)
	h.MustBind(t, domain.PurchaseTypeService, form.ID, wf.ID)
}

func (h *harness) mustDraft(t *testing.T) *domain.PurchaseRequest {
	t.Helper()
	r, err := h.engine.DraftCreate(context.Background(), lifecycle.DraftInput{
		RequestorID:  h.Requestor.ID,
		TeamID:       h.Team.ID,
		PurchaseType: domain.PurchaseTypeService,
		VendorName:   "Acme",
		Subject:      "Booth rental",
	})
	if err != nil {
		t.Fatalf("DraftCreate() error = %v", err)
	}
	if _, err := h.engine.SetField(context.Background(), r.ID, h.Requestor.ID,
		"amount", domain.NumberValue(decimal.NewFromInt(640))); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	return r
}

// queues reports which of the user's queues contain the request, as a
// compact marker string for stage assertions.
func (h *harness) queues(t *testing.T, userID, requestID string) string {
	t.Helper()
	ctx := context.Background()
	approver, err := h.router.Approver(ctx, userID)
	if err != nil {
		t.Fatalf("Approver() error = %v", err)
	}
	finance, err := h.router.Finance(ctx, userID)
	if err != nil {
		t.Fatalf("Finance() error = %v", err)
	}
	requestor, err := h.router.Requestor(ctx, userID)
	if err != nil {
		t.Fatalf("Requestor() error = %v", err)
	}

	var marks []string
	if containsRequest(approver, requestID) {
		marks = append(marks, "approver")
	}
	if containsRequest(finance, requestID) {
		marks = append(marks, "finance")
	}
	if containsRequest(requestor, requestID) {
		marks = append(marks, "requestor")
	}
	return strings.Join(marks, "+")
}

func containsRequest(reqs []*domain.PurchaseRequest, id string) bool {
	for _, r := range reqs {
		if r.ID == id {
			return true
		}
	}
	return false
}

func TestInboxExclusivityAcrossLifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.leadsPipeline(t)
	ctx := context.Background()

	r := h.mustDraft(t)

	assertQueues := func(stage string, want map[string]string) {
		t.Helper()
		users := map[string]string{
			"requestor": h.Requestor.ID,
			"manager":   h.Manager.ID,
			"director":  h.Director.ID,
			"finance":   h.Finance.ID,
		}
		for user, expect := range want {
			if got := h.queues(t, users[user], r.ID); got != expect {
				t.Fatalf("%s: queues of %s = %q, want %q", stage, user, got, expect)
			}
		}
	}

	assertQueues("draft", map[string]string{
		"requestor": "requestor",
		"manager":   "",
		"director":  "",
		"finance":   "",
	})

	if _, err := h.engine.Submit(ctx, r.ID, h.Requestor.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	assertQueues("pending approval", map[string]string{
		"requestor": "",
		"manager":   "approver",
		"director":  "approver",
		"finance":   "",
	})

	if _, err := h.engine.Approve(ctx, r.ID, h.Manager.ID, h.RoleManager.Code, ""); err != nil {
		t.Fatalf("Approve(manager) error = %v", err)
	}
	assertQueues("in review", map[string]string{
		"requestor": "",
		"manager":   "",
		"director":  "approver",
		"finance":   "",
	})

	if _, err := h.engine.Approve(ctx, r.ID, h.Director.ID, h.RoleDirector.Code, ""); err != nil {
		t.Fatalf("Approve(director) error = %v", err)
	}
	assertQueues("finance review", map[string]string{
		"requestor": "",
		"manager":   "",
		"director":  "",
		"finance":   "finance",
	})

	if _, err := h.engine.Reject(ctx, r.ID, h.Finance.ID, h.RoleFinance.Code, "budget code is wrong"); err != nil {
		t.Fatalf("Reject(finance) error = %v", err)
	}
	assertQueues("rejected", map[string]string{
		"requestor": "requestor",
		"manager":   "",
		"director":  "",
		"finance":   "",
	})

	if _, err := h.engine.Resubmit(ctx, r.ID, h.Requestor.ID); err != nil {
		t.Fatalf("Resubmit() error = %v", err)
	}
	if _, err := h.engine.Approve(ctx, r.ID, h.Finance.ID, h.RoleFinance.Code, ""); err != nil {
		t.Fatalf("Approve(finance) error = %v", err)
	}
	assertQueues("completed", map[string]string{
		"requestor": "",
		"manager":   "",
		"director":  "",
		"finance":   "",
	})
}

func TestInboxDeDupAcrossRoles(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.leadsPipeline(t)
	ctx := context.Background()

	// One user holding both qualifying roles on the step.
	h.MustGrant(t, h.Manager.ID, h.RoleDirector)

	r := h.mustDraft(t)
	if _, err := h.engine.Submit(ctx, r.ID, h.Requestor.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	reqs, err := h.router.Approver(ctx, h.Manager.ID)
	if err != nil {
		t.Fatalf("Approver() error = %v", err)
	}
	seen := 0
	for _, got := range reqs {
		if got.ID == r.ID {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("request appears %d times in the approver inbox, want 1", seen)
	}
}

func TestInboxCounts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.leadsPipeline(t)
	ctx := context.Background()

	h.mustDraft(t) // stays DRAFT, counts for the requestor
	submitted := h.mustDraft(t)
	if _, err := h.engine.Submit(ctx, submitted.ID, h.Requestor.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	counts, err := h.router.CountAll(ctx, h.Requestor.ID)
	if err != nil {
		t.Fatalf("CountAll() error = %v", err)
	}
	if counts.Requestor != 1 || counts.Approver != 0 || counts.Finance != 0 {
		t.Fatalf("requestor counts = %+v, want one requestor entry", counts)
	}

	counts, err = h.router.CountAll(ctx, h.Manager.ID)
	if err != nil {
		t.Fatalf("CountAll() error = %v", err)
	}
	if counts.Approver != 1 || counts.Finance != 0 || counts.Requestor != 0 {
		t.Fatalf("manager counts = %+v, want one approver entry", counts)
	}
}
