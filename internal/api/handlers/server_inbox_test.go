package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/governance/inbox"
)

type inboxPage struct {
	Items []*domain.PurchaseRequest `json:"items"`
}

func (h *harness) inboxOf(t *testing.T, userID, queue string) []*domain.PurchaseRequest {
	t.Helper()
	w := h.do(t, userID, http.MethodGet, "/api/v1/inbox/"+queue, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("inbox %s status = %d, body %s", queue, w.Code, w.Body.String())
	}
	var page inboxPage
	decode(t, w, &page)
	return page.Items
}

func TestApproverInboxRoutesPendingStep(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.bindServicePipeline(t)
	submitted := h.mustSubmitted(t)

	got := h.inboxOf(t, h.Manager.ID, "approver")
	if len(got) != 1 || got[0].ID != submitted.ID {
		t.Fatalf("manager approver queue = %+v", got)
	}
	if n := len(h.inboxOf(t, h.Finance.ID, "approver")); n != 0 {
		t.Fatalf("finance approver queue = %d, want 0", n)
	}
	if n := len(h.inboxOf(t, h.Finance.ID, "finance")); n != 0 {
		t.Fatalf("finance queue before advance = %d, want 0", n)
	}
}

func TestFinanceInboxAfterStepAdvance(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.bindServicePipeline(t)
	submitted := h.mustSubmitted(t)

	ctx := context.Background()
	advanced, err := h.engine.Approve(ctx, submitted.ID, h.Manager.ID, "MANAGER", "fine by me")
	if err != nil {
		t.Fatalf("manager approve: %v", err)
	}
	if advanced.Status != domain.StatusFinanceReview {
		t.Fatalf("status after manager approval = %s", advanced.Status)
	}

	got := h.inboxOf(t, h.Finance.ID, "finance")
	if len(got) != 1 || got[0].ID != submitted.ID {
		t.Fatalf("finance queue = %+v", got)
	}
	if n := len(h.inboxOf(t, h.Manager.ID, "approver")); n != 0 {
		t.Fatalf("manager approver queue after advance = %d, want 0", n)
	}
}

func TestRequestorInboxTracksReworkStates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.bindServicePipeline(t)
	draft := h.mustDraft(t)

	got := h.inboxOf(t, h.Requestor.ID, "requestor")
	if len(got) != 1 || got[0].ID != draft.ID {
		t.Fatalf("requestor queue with draft = %+v", got)
	}

	ctx := context.Background()
	if _, err := h.engine.SetField(ctx, draft.ID, h.Requestor.ID, "amount", domain.NumberValue(decimal.NewFromInt(900))); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	if _, err := h.engine.Submit(ctx, draft.ID, h.Requestor.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if n := len(h.inboxOf(t, h.Requestor.ID, "requestor")); n != 0 {
		t.Fatalf("requestor queue after submit = %d, want 0", n)
	}

	if _, err := h.engine.Reject(ctx, draft.ID, h.Manager.ID, "MANAGER", "supplier is blacklisted"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	got = h.inboxOf(t, h.Requestor.ID, "requestor")
	if len(got) != 1 || got[0].Status != domain.StatusRejected {
		t.Fatalf("requestor queue after reject = %+v", got)
	}
}

func TestInboxCounts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.bindServicePipeline(t)
	h.mustSubmitted(t)
	h.mustDraft(t)

	w := h.do(t, h.Manager.ID, http.MethodGet, "/api/v1/inbox/counts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("counts status = %d, body %s", w.Code, w.Body.String())
	}
	var counts inbox.Counts
	decode(t, w, &counts)
	if counts.Approver != 1 || counts.Finance != 0 || counts.Requestor != 0 {
		t.Fatalf("manager counts = %+v", counts)
	}

	w = h.do(t, h.Requestor.ID, http.MethodGet, "/api/v1/inbox/counts", nil)
	decode(t, w, &counts)
	if counts.Requestor != 1 || counts.Approver != 0 {
		t.Fatalf("requestor counts = %+v", counts)
	}
}

func TestInboxRequiresAuth(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, queue := range []string{"approver", "finance", "requestor", "counts"} {
		w := h.do(t, "", http.MethodGet, "/api/v1/inbox/"+queue, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("inbox %s without auth: status = %d", queue, w.Code)
		}
	}
}
