package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"procureflow.io/procureflow/internal/domain"
)

// ── attachments ───────────────────────────────────────────────────────────────

type attachmentRepo struct {
	src source
}

func (r *attachmentRepo) Create(ctx context.Context, a *domain.Attachment) error {
	d, release := r.src.acquire()
	defer release()

	if _, exists := d.attachments[a.ID]; exists {
		return duplicate("attachment " + a.ID)
	}
	d.attachments[a.ID] = copyAttachment(*a)
	return nil
}

func (r *attachmentRepo) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	d, release := r.src.acquire()
	defer release()

	a, ok := d.attachments[id]
	if !ok {
		return nil, notFound("attachment", id)
	}
	a = copyAttachment(a)
	return &a, nil
}

func (r *attachmentRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.Attachment, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.Attachment
	for _, a := range d.attachments {
		if a.RequestID != requestID || !a.Active {
			continue
		}
		a := copyAttachment(a)
		out = append(out, &a)
	}
	slices.SortFunc(out, func(a, b *domain.Attachment) int {
		if n := a.UploadedAt.Compare(b.UploadedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *attachmentRepo) CountInCategory(ctx context.Context, requestID, categoryID string) (int, error) {
	d, release := r.src.acquire()
	defer release()

	n := 0
	for _, a := range d.attachments {
		if a.RequestID == requestID && a.Active && a.CategoryID != nil && *a.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r *attachmentRepo) SoftDelete(ctx context.Context, id string) error {
	d, release := r.src.acquire()
	defer release()

	a, ok := d.attachments[id]
	if !ok || !a.Active {
		return notFound("attachment", id)
	}
	a.Active = false
	d.attachments[id] = a
	return nil
}

// ── approval history ──────────────────────────────────────────────────────────

type approvalRepo struct {
	src source
}

func (r *approvalRepo) Create(ctx context.Context, h *domain.ApprovalHistory) error {
	d, release := r.src.acquire()
	defer release()

	if _, exists := d.approvals[h.ID]; exists {
		return duplicate("approval record " + h.ID)
	}
	d.approvals[h.ID] = *h
	return nil
}

func (r *approvalRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.ApprovalHistory, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.ApprovalHistory
	for _, h := range d.approvals {
		if h.RequestID != requestID {
			continue
		}
		if role, ok := d.lookups[h.RoleID]; ok {
			h.RoleCode = role.Code
		}
		out = append(out, &h)
	}
	slices.SortFunc(out, func(a, b *domain.ApprovalHistory) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *approvalRepo) ApprovedRoleIDs(ctx context.Context, requestID, stepID, submissionID string) ([]string, error) {
	d, release := r.src.acquire()
	defer release()

	seen := make(map[string]struct{})
	var out []string
	for _, h := range d.approvals {
		if h.RequestID != requestID || h.StepID != stepID || h.SubmissionID != submissionID {
			continue
		}
		if h.Action != domain.ActionApprove {
			continue
		}
		if _, dup := seen[h.RoleID]; dup {
			continue
		}
		seen[h.RoleID] = struct{}{}
		out = append(out, h.RoleID)
	}
	return out, nil
}

func (r *approvalRepo) HasActed(ctx context.Context, requestID, stepID, submissionID, userID string) (bool, error) {
	d, release := r.src.acquire()
	defer release()

	return hasActed(d, requestID, stepID, submissionID, userID), nil
}

func (r *approvalRepo) LatestByApprover(ctx context.Context, requestID, userID string) (*domain.ApprovalHistory, error) {
	d, release := r.src.acquire()
	defer release()

	var latest *domain.ApprovalHistory
	for _, h := range d.approvals {
		if h.RequestID != requestID || h.ApproverID != userID {
			continue
		}
		if latest == nil || h.CreatedAt.After(latest.CreatedAt) ||
			(h.CreatedAt.Equal(latest.CreatedAt) && h.ID > latest.ID) {
			h := h
			latest = &h
		}
	}
	if latest == nil {
		return nil, notFound("approval record", requestID)
	}
	if role, ok := d.lookups[latest.RoleID]; ok {
		latest.RoleCode = role.Code
	}
	return latest, nil
}

// ── audit events ──────────────────────────────────────────────────────────────

type auditRepo struct {
	src source
}

func (r *auditRepo) Append(ctx context.Context, e *domain.AuditEvent) error {
	d, release := r.src.acquire()
	defer release()

	if _, exists := d.auditEvents[e.ID]; exists {
		return duplicate("audit event " + e.ID)
	}
	for i := range e.FieldChanges {
		e.FieldChanges[i].AuditEventID = e.ID
	}
	d.auditEvents[e.ID] = copyAuditEvent(*e)
	return nil
}

func (r *auditRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.AuditEvent, error) {
	d, release := r.src.acquire()
	defer release()

	return collectAudit(d, func(e domain.AuditEvent) bool {
		return e.RequestID != nil && *e.RequestID == requestID
	}, false, 0), nil
}

func (r *auditRepo) ListBySubmission(ctx context.Context, submissionID string) ([]*domain.AuditEvent, error) {
	d, release := r.src.acquire()
	defer release()

	return collectAudit(d, func(e domain.AuditEvent) bool {
		return e.SubmissionID != nil && *e.SubmissionID == submissionID
	}, false, 0), nil
}

func (r *auditRepo) ListByType(ctx context.Context, eventType domain.EventType, limit int) ([]*domain.AuditEvent, error) {
	d, release := r.src.acquire()
	defer release()

	if limit <= 0 {
		limit = 100
	}
	return collectAudit(d, func(e domain.AuditEvent) bool {
		return e.EventType == eventType
	}, true, limit), nil
}

func collectAudit(d *data, match func(domain.AuditEvent) bool, newestFirst bool, limit int) []*domain.AuditEvent {
	var out []*domain.AuditEvent
	for _, e := range d.auditEvents {
		if !match(e) {
			continue
		}
		e := copyAuditEvent(e)
		out = append(out, &e)
	}
	slices.SortFunc(out, func(a, b *domain.AuditEvent) int {
		x, y := a, b
		if newestFirst {
			x, y = b, a
		}
		if n := x.CreatedAt.Compare(y.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(x.ID, y.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ── notifications ─────────────────────────────────────────────────────────────

type notificationRepo struct {
	src source
}

func (r *notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	d, release := r.src.acquire()
	defer release()

	if _, exists := d.notifications[n.ID]; exists {
		return duplicate("notification " + n.ID)
	}
	d.notifications[n.ID] = copyNotification(*n)
	return nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	d, release := r.src.acquire()
	defer release()

	if limit <= 0 {
		limit = 50
	}
	var out []*domain.Notification
	for _, n := range d.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		n := copyNotification(n)
		out = append(out, &n)
	}
	slices.SortFunc(out, func(a, b *domain.Notification) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(b.ID, a.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	d, release := r.src.acquire()
	defer release()

	n, ok := d.notifications[id]
	if !ok || n.UserID != userID {
		return notFound("notification", id)
	}
	n.Read = true
	d.notifications[id] = n
	return nil
}

func (r *notificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	d, release := r.src.acquire()
	defer release()

	var deleted int64
	for id, n := range d.notifications {
		if n.CreatedAt.Before(cutoff) {
			delete(d.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}
