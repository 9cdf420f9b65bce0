package memory

import (
	"context"
	"slices"
	"strings"

	"procureflow.io/procureflow/internal/domain"
)

// ── purchase requests ─────────────────────────────────────────────────────────

type requestRepo struct {
	src source
}

func (r *requestRepo) Create(ctx context.Context, pr *domain.PurchaseRequest) error {
	d, release := r.src.acquire()
	defer release()

	if _, exists := d.requests[pr.ID]; exists {
		return duplicate("request " + pr.ID)
	}
	d.requests[pr.ID] = copyRequest(*pr)
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*domain.PurchaseRequest, error) {
	d, release := r.src.acquire()
	defer release()

	pr, ok := d.requests[id]
	if !ok {
		return nil, notFound("request", id)
	}
	pr = copyRequest(pr)
	return &pr, nil
}

func (r *requestRepo) GetForUpdate(ctx context.Context, id string) (*domain.PurchaseRequest, error) {
	// The store mutex already serializes transactions, so a plain read is
	// an exclusive one.
	return r.GetByID(ctx, id)
}

func (r *requestRepo) Update(ctx context.Context, pr *domain.PurchaseRequest) error {
	d, release := r.src.acquire()
	defer release()

	if _, ok := d.requests[pr.ID]; !ok {
		return notFound("request", pr.ID)
	}
	d.requests[pr.ID] = copyRequest(*pr)
	return nil
}

func (r *requestRepo) ListByRequestor(ctx context.Context, userID string, statuses []domain.Status) ([]*domain.PurchaseRequest, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.PurchaseRequest
	for _, pr := range d.requests {
		if pr.RequestorID != userID || !pr.Active || !statusMatch(pr.Status, statuses) {
			continue
		}
		pr := copyRequest(pr)
		out = append(out, &pr)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *requestRepo) ListByTeam(ctx context.Context, teamID string, statuses []domain.Status) ([]*domain.PurchaseRequest, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.PurchaseRequest
	for _, pr := range d.requests {
		if pr.TeamID != teamID || !pr.Active || !statusMatch(pr.Status, statuses) {
			continue
		}
		pr := copyRequest(pr)
		out = append(out, &pr)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *requestRepo) ApproverInbox(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error) {
	d, release := r.src.acquire()
	defer release()

	return inbox(d, userID, []domain.Status{domain.StatusPendingApproval, domain.StatusInReview}), nil
}

func (r *requestRepo) FinanceInbox(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error) {
	d, release := r.src.acquire()
	defer release()

	return inbox(d, userID, []domain.Status{domain.StatusFinanceReview}), nil
}

// inbox selects active requests in the given statuses whose current step
// names a role the user actively holds on the request's team, minus
// requests the user already acted on in the current submission cycle.
func inbox(d *data, userID string, statuses []domain.Status) []*domain.PurchaseRequest {
	var out []*domain.PurchaseRequest
	for _, pr := range d.requests {
		if !pr.Active || !statusMatch(pr.Status, statuses) || pr.CurrentStepID == nil {
			continue
		}
		step, ok := stepByID(d, *pr.CurrentStepID)
		if !ok || !holdsStepRole(d, userID, pr.TeamID, step) {
			continue
		}
		if pr.CurrentSubmissionID != nil && hasActed(d, pr.ID, step.ID, *pr.CurrentSubmissionID, userID) {
			continue
		}
		pr := copyRequest(pr)
		out = append(out, &pr)
	}
	sortNewestFirst(out)
	return out
}

func holdsStepRole(d *data, userID, teamID string, step domain.WorkflowTemplateStep) bool {
	for _, s := range d.scopes {
		if s.UserID == userID && s.TeamID == teamID && s.Active && step.HasRole(s.RoleID) {
			return true
		}
	}
	return false
}

func hasActed(d *data, requestID, stepID, submissionID, userID string) bool {
	for _, h := range d.approvals {
		if h.RequestID == requestID && h.StepID == stepID && h.SubmissionID == submissionID && h.ApproverID == userID {
			return true
		}
	}
	return false
}

func stepByID(d *data, stepID string) (domain.WorkflowTemplateStep, bool) {
	for _, t := range d.workflows {
		for _, s := range t.Steps {
			if s.ID == stepID {
				return s, true
			}
		}
	}
	return domain.WorkflowTemplateStep{}, false
}

func statusMatch(s domain.Status, statuses []domain.Status) bool {
	return len(statuses) == 0 || slices.Contains(statuses, s)
}

func sortNewestFirst(out []*domain.PurchaseRequest) {
	slices.SortFunc(out, func(a, b *domain.PurchaseRequest) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// ── request field values ──────────────────────────────────────────────────────

type fieldValueRepo struct {
	src source
}

func (r *fieldValueRepo) Upsert(ctx context.Context, v *domain.RequestFieldValue) error {
	d, release := r.src.acquire()
	defer release()

	for id, existing := range d.fieldValues {
		if existing.RequestID == v.RequestID && existing.FormFieldID == v.FormFieldID {
			updated := copyFieldValue(*v)
			updated.ID = existing.ID
			updated.CreatedAt = existing.CreatedAt
			d.fieldValues[id] = updated
			return nil
		}
	}
	d.fieldValues[v.ID] = copyFieldValue(*v)
	return nil
}

func (r *fieldValueRepo) Get(ctx context.Context, requestID, formFieldID string) (*domain.RequestFieldValue, error) {
	d, release := r.src.acquire()
	defer release()

	for _, v := range d.fieldValues {
		if v.RequestID == requestID && v.FormFieldID == formFieldID {
			v = copyFieldValue(v)
			return &v, nil
		}
	}
	return nil, notFound("field value", formFieldID)
}

func (r *fieldValueRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.RequestFieldValue, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.RequestFieldValue
	for _, v := range d.fieldValues {
		if v.RequestID != requestID {
			continue
		}
		v := copyFieldValue(v)
		out = append(out, &v)
	}
	slices.SortFunc(out, func(a, b *domain.RequestFieldValue) int {
		return fieldOrder(d, a.FormFieldID) - fieldOrder(d, b.FormFieldID)
	})
	return out, nil
}

func fieldOrder(d *data, formFieldID string) int {
	for _, t := range d.formTemplates {
		for _, f := range t.Fields {
			if f.ID == formFieldID {
				return f.Order
			}
		}
	}
	return 0
}
