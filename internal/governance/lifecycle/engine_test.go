package lifecycle

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"procureflow.io/procureflow/internal/blob"
	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/governance/audit"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
	"procureflow.io/procureflow/internal/service"
	"procureflow.io/procureflow/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json")
}

// harness wires an engine over the in-memory store with the shared
// fixture graph: team Marketing, purchase type SERVICE, and the four
// role-holding users.
type harness struct {
	*testutil.Fixture
	engine *Engine
	ledger *audit.Ledger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := testutil.NewFixture(t)
	ledger := audit.NewLedger(f.Store, f.IDs, f.Clock)
	attachments := service.NewAttachmentService(f.Store, blob.NewMemory(), 1<<20, []string{"pdf", "png"})
	eng := NewEngine(f.Store, ledger, attachments, f.IDs, f.Clock, DefaultPolicy())
	return &harness{Fixture: f, engine: eng, ledger: ledger}
}

// standardPipeline binds a two-step Manager then Finance workflow and a
// form with a required amount to (Marketing, SERVICE).
func (h *harness) standardPipeline(t *testing.T) (*domain.FormTemplate, *domain.WorkflowTemplate) {
	t.Helper()
	form := h.MustFormTemplate(t, "service-form", 1,
		h.Field("amount", "Amount", domain.FieldTypeNumber, true, 1),
		h.Field("notes", "Notes", domain.FieldTypeText, false, 2),
	)
	wf := h.MustWorkflow(t, "service-flow", 1,
		h.Step(1, "Manager", false, h.RoleManager),
		h.Step(2, "Finance", true, h.RoleFinance),
	)
	h.MustBind(t, domain.PurchaseTypeService, form.ID, wf.ID)
	return form, wf
}

func (h *harness) mustDraft(t *testing.T) *domain.PurchaseRequest {
	t.Helper()
	r, err := h.engine.DraftCreate(context.Background(), DraftInput{
		RequestorID:  h.Requestor.ID,
		TeamID:       h.Team.ID,
		PurchaseType: domain.PurchaseTypeService,
		VendorName:   "Acme",
		Subject:      "Office chairs",
		Description:  "Ergonomic",
	})
	if err != nil {
		t.Fatalf("DraftCreate() error = %v", err)
	}
	return r
}

func (h *harness) mustSetAmount(t *testing.T, requestID string, amount int64) {
	t.Helper()
	_, err := h.engine.SetField(context.Background(), requestID, h.Requestor.ID,
		"amount", domain.NumberValue(decimal.NewFromInt(amount)))
	if err != nil {
		t.Fatalf("SetField(amount) error = %v", err)
	}
}

func (h *harness) mustUpload(t *testing.T, requestID, actorID, filename, category string) *domain.Attachment {
	t.Helper()
	a, err := h.engine.UploadAttachment(context.Background(), UploadInput{
		RequestID: requestID,
		ActorID:   actorID,
		Filename:  filename,
		MimeType:  "application/pdf",
		Category:  category,
		Content:   strings.NewReader("file body of " + filename),
	})
	if err != nil {
		t.Fatalf("UploadAttachment(%s) error = %v", filename, err)
	}
	return a
}

func auditTypes(t *testing.T, h *harness, requestID string) []domain.EventType {
	t.Helper()
	events, err := h.ledger.ForRequest(context.Background(), requestID)
	if err != nil {
		t.Fatalf("ForRequest() error = %v", err)
	}
	out := make([]domain.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func wantAppError(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != code {
		t.Fatalf("error = %v, want code %s", err, code)
	}
	return appErr
}

func TestHappyPathSingleApproverSteps(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.standardPipeline(t)
	h.MustCategory(t, "Invoice", true)
	ctx := context.Background()

	r := h.mustDraft(t)
	if r.Status != domain.StatusDraft {
		t.Fatalf("initial status = %s, want DRAFT", r.Status)
	}
	if r.CurrentStepID != nil {
		t.Fatal("draft has a current step before submission")
	}

	h.mustSetAmount(t, r.ID, 1200)
	h.mustUpload(t, r.ID, h.Requestor.ID, "invoice.pdf", "Invoice")

	r, err := h.engine.Submit(ctx, r.ID, h.Requestor.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if r.Status != domain.StatusPendingApproval {
		t.Fatalf("status after submit = %s, want PENDING_APPROVAL", r.Status)
	}
	if r.SubmittedAt == nil || r.CurrentSubmissionID == nil {
		t.Fatal("submit did not stamp submitted_at and submission id")
	}
	step, err := h.engine.GetCurrentStep(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetCurrentStep() error = %v", err)
	}
	if step.StepName != "Manager" {
		t.Fatalf("current step = %s, want Manager", step.StepName)
	}

	r, err = h.engine.Approve(ctx, r.ID, h.Manager.ID, h.RoleManager.Code, "")
	if err != nil {
		t.Fatalf("Approve(manager) error = %v", err)
	}
	if r.Status != domain.StatusFinanceReview {
		t.Fatalf("status after manager approval = %s, want FINANCE_REVIEW", r.Status)
	}
	step, _ = h.engine.GetCurrentStep(ctx, r.ID)
	if step.StepName != "Finance" {
		t.Fatalf("current step = %s, want Finance", step.StepName)
	}

	r, err = h.engine.Approve(ctx, r.ID, h.Finance.ID, h.RoleFinance.Code, "paid from Q2 budget")
	if err != nil {
		t.Fatalf("Approve(finance) error = %v", err)
	}
	if r.Status != domain.StatusCompleted {
		t.Fatalf("final status = %s, want COMPLETED", r.Status)
	}
	if r.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}

	want := []domain.EventType{
		domain.EventRequestCreated,
		domain.EventFieldUpdate,
		domain.EventAttachmentUpload,
		domain.EventRequestSubmitted,
		domain.EventWorkflowStepChange,
		domain.EventApproval,
		domain.EventWorkflowStepChange,
		domain.EventApproval,
		domain.EventRequestCompleted,
	}
	got := auditTypes(t, h, r.ID)
	if len(got) != len(want) {
		t.Fatalf("audit trail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("audit trail[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestDraftCreatePinsActiveTemplates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	form, wf := h.standardPipeline(t)

	r := h.mustDraft(t)
	if r.FormTemplateID != form.ID || r.WorkflowTemplateID != wf.ID {
		t.Fatalf("pinned templates = (%s, %s), want (%s, %s)",
			r.FormTemplateID, r.WorkflowTemplateID, form.ID, wf.ID)
	}
}

func TestDraftCreateErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.standardPipeline(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		in       DraftInput
		wantCode string
	}{
		{
			name: "unknown purchase type code",
			in: DraftInput{
				RequestorID: h.Requestor.ID, TeamID: h.Team.ID,
				PurchaseType: "LEASE", VendorName: "Acme", Subject: "x",
			},
			wantCode: apperrors.CodeLookupNotFound,
		},
		{
			name: "no binding for purchase type",
			in: DraftInput{
				RequestorID: h.Requestor.ID, TeamID: h.Team.ID,
				PurchaseType: domain.PurchaseTypeGood, VendorName: "Acme", Subject: "x",
			},
			wantCode: apperrors.CodeConfigurationMissing,
		},
		{
			name: "unknown team",
			in: DraftInput{
				RequestorID: h.Requestor.ID, TeamID: "no-such-team",
				PurchaseType: domain.PurchaseTypeService, VendorName: "Acme", Subject: "x",
			},
			wantCode: apperrors.CodeTeamNotFound,
		},
		{
			name: "unknown requestor",
			in: DraftInput{
				RequestorID: "no-such-user", TeamID: h.Team.ID,
				PurchaseType: domain.PurchaseTypeService, VendorName: "Acme", Subject: "x",
			},
			wantCode: apperrors.CodeUserNotFound,
		},
		{
			name: "blank header fields",
			in: DraftInput{
				RequestorID: h.Requestor.ID, TeamID: h.Team.ID,
				PurchaseType: domain.PurchaseTypeService, VendorName: "  ", Subject: "",
			},
			wantCode: apperrors.CodeInvalidRequestBody,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.DraftCreate(ctx, tc.in)
			wantAppError(t, err, tc.wantCode)
		})
	}
}

func TestConcurrentUpdateRetryBudget(t *testing.T) {
	t.Parallel()

	t.Run("transient contention retries through", func(t *testing.T) {
		h := newHarness(t)
		h.standardPipeline(t)
		r := h.mustDraft(t)

		flaky := &flakyStore{Store: h.Store, failures: 2}
		eng := NewEngine(flaky, h.ledger, nil, h.IDs, h.Clock,
			Policy{RejectionMinCommentChars: 10, RetryAttempts: 3, RetryBackoff: 0})

		got, err := eng.Withdraw(context.Background(), r.ID, h.Requestor.ID)
		if err != nil {
			t.Fatalf("Withdraw() error = %v", err)
		}
		if got.Status != domain.StatusArchived {
			t.Fatalf("status = %s, want ARCHIVED", got.Status)
		}
	})

	t.Run("persistent contention escalates", func(t *testing.T) {
		h := newHarness(t)
		h.standardPipeline(t)
		r := h.mustDraft(t)

		flaky := &flakyStore{Store: h.Store, failures: 10}
		eng := NewEngine(flaky, h.ledger, nil, h.IDs, h.Clock,
			Policy{RejectionMinCommentChars: 10, RetryAttempts: 3, RetryBackoff: 0})

		_, err := eng.Withdraw(context.Background(), r.ID, h.Requestor.ID)
		wantAppError(t, err, apperrors.CodeConcurrentUpdate)
	})
}

// flakyStore fails InTx with a serialization conflict a fixed number of
// times before delegating to the real store.
type flakyStore struct {
	repository.Store
	failures int
}

func (s *flakyStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if s.failures > 0 {
		s.failures--
		return repository.ErrSerialization
	}
	return s.Store.InTx(ctx, fn)
}

func TestLifecycleEventsDispatchedAfterCommit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.standardPipeline(t)

	var seen []domain.EventType
	dispatcher := domain.NewEventDispatcher()
	for _, et := range []domain.EventType{
		domain.EventRequestCreated,
		domain.EventRequestSubmitted,
		domain.EventWorkflowStepChange,
		domain.EventApproval,
		domain.EventRequestCompleted,
	} {
		et := et
		dispatcher.Register(et, func(ctx context.Context, ev *domain.LifecycleEvent) error {
			seen = append(seen, ev.EventType)
			return nil
		})
	}
	h.engine.SetDispatcher(dispatcher)

	ctx := context.Background()
	r := h.mustDraft(t)
	h.mustSetAmount(t, r.ID, 80)
	if _, err := h.engine.Submit(ctx, r.ID, h.Requestor.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := h.engine.Approve(ctx, r.ID, h.Manager.ID, h.RoleManager.Code, ""); err != nil {
		t.Fatalf("Approve(manager) error = %v", err)
	}
	if _, err := h.engine.Approve(ctx, r.ID, h.Finance.ID, h.RoleFinance.Code, ""); err != nil {
		t.Fatalf("Approve(finance) error = %v", err)
	}

	want := []domain.EventType{
		domain.EventRequestCreated,
		domain.EventRequestSubmitted,
		domain.EventWorkflowStepChange,
		domain.EventApproval,
		domain.EventWorkflowStepChange,
		domain.EventApproval,
		domain.EventRequestCompleted,
	}
	if len(seen) != len(want) {
		t.Fatalf("dispatched = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("dispatched[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestGetRequestHydratesView(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.standardPipeline(t)
	h.MustCategory(t, "Invoice", false)
	ctx := context.Background()

	r := h.mustDraft(t)
	h.mustSetAmount(t, r.ID, 300)
	h.mustUpload(t, r.ID, h.Requestor.ID, "invoice.pdf", "Invoice")
	if _, err := h.engine.Submit(ctx, r.ID, h.Requestor.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := h.engine.Approve(ctx, r.ID, h.Manager.ID, h.RoleManager.Code, "fine by me"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	view, err := h.engine.GetRequest(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if len(view.FieldValues) != 1 {
		t.Fatalf("field values = %d, want 1", len(view.FieldValues))
	}
	if len(view.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(view.Attachments))
	}
	if len(view.History) != 1 || view.History[0].Comment != "fine by me" {
		t.Fatalf("history = %+v, want one approval with comment", view.History)
	}
	if view.CurrentStep == nil || view.CurrentStep.StepName != "Finance" {
		t.Fatalf("current step = %+v, want Finance", view.CurrentStep)
	}

	_, err = h.engine.GetRequest(ctx, "no-such-request")
	wantAppError(t, err, apperrors.CodeRequestNotFound)
}
