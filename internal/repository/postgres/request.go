package postgres

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/repository"
)

type requestRepo struct {
	q querier
}

const requestColumns = `id, requestor_id, team_id, purchase_type, status,
	form_template_id, workflow_template_id, current_step_id,
	vendor_name, vendor_account, subject, description,
	submitted_at, completed_at, rejection_comment, current_submission_id,
	active, created_at, updated_at`

// requestColumnsR is the same list qualified for joins.
const requestColumnsR = `r.id, r.requestor_id, r.team_id, r.purchase_type, r.status,
	r.form_template_id, r.workflow_template_id, r.current_step_id,
	r.vendor_name, r.vendor_account, r.subject, r.description,
	r.submitted_at, r.completed_at, r.rejection_comment, r.current_submission_id,
	r.active, r.created_at, r.updated_at`

func (r *requestRepo) Create(ctx context.Context, pr *domain.PurchaseRequest) error {
	query := `
		INSERT INTO purchase_requests
		    (id, requestor_id, team_id, purchase_type, status,
		     form_template_id, workflow_template_id, current_step_id,
		     vendor_name, vendor_account, subject, description,
		     submitted_at, completed_at, rejection_comment, current_submission_id,
		     active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.q.Exec(ctx, query,
		pr.ID, pr.RequestorID, pr.TeamID, pr.PurchaseType, pr.Status,
		pr.FormTemplateID, pr.WorkflowTemplateID, pr.CurrentStepID,
		pr.VendorName, pr.VendorAccount, pr.Subject, pr.Description,
		pr.SubmittedAt, pr.CompletedAt, pr.RejectionComment, pr.CurrentSubmissionID,
		pr.Active, pr.CreatedAt, pr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create request %s: %w", pr.ID, mapPgError(err))
	}
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*domain.PurchaseRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM purchase_requests WHERE id = $1`

	pr, err := scanRequest(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, noRows(err, "request", id)
	}
	return pr, nil
}

func (r *requestRepo) GetForUpdate(ctx context.Context, id string) (*domain.PurchaseRequest, error) {
	// NOWAIT turns lock contention into 55P03, which the store maps to
	// ErrSerialization for the engine's bounded retry.
	query := `SELECT ` + requestColumns + ` FROM purchase_requests WHERE id = $1 FOR UPDATE NOWAIT`

	pr, err := scanRequest(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, noRows(mapPgError(err), "request", id)
	}
	return pr, nil
}

func (r *requestRepo) Update(ctx context.Context, pr *domain.PurchaseRequest) error {
	query := `
		UPDATE purchase_requests
		SET status                = $2,
		    current_step_id       = $3,
		    vendor_name           = $4,
		    vendor_account        = $5,
		    subject               = $6,
		    description           = $7,
		    submitted_at          = $8,
		    completed_at          = $9,
		    rejection_comment     = $10,
		    current_submission_id = $11,
		    active                = $12,
		    updated_at            = $13
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query,
		pr.ID, pr.Status, pr.CurrentStepID,
		pr.VendorName, pr.VendorAccount, pr.Subject, pr.Description,
		pr.SubmittedAt, pr.CompletedAt, pr.RejectionComment, pr.CurrentSubmissionID,
		pr.Active, pr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update request %s: %w", pr.ID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("request %s: %w", pr.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *requestRepo) ListByRequestor(ctx context.Context, userID string, statuses []domain.Status) ([]*domain.PurchaseRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM purchase_requests
		WHERE requestor_id = $1
		  AND active
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at DESC
	`

	rows, err := r.q.Query(ctx, query, userID, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("list requests of user %s: %w", userID, err)
	}
	return collectRequests(rows)
}

func (r *requestRepo) ListByTeam(ctx context.Context, teamID string, statuses []domain.Status) ([]*domain.PurchaseRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM purchase_requests
		WHERE team_id = $1
		  AND active
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at DESC
	`

	rows, err := r.q.Query(ctx, query, teamID, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("list requests of team %s: %w", teamID, err)
	}
	return collectRequests(rows)
}

func (r *requestRepo) ApproverInbox(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error) {
	// A request qualifies when one of the user's active roles on the
	// request's team sits in the current step's approver set and the user
	// has not yet acted at that step in the current submission cycle.
	// DISTINCT collapses multi-role matches to one row per request.
	query := `
		SELECT DISTINCT ` + requestColumnsR + `
		FROM purchase_requests r
		JOIN workflow_step_approvers a ON a.step_id = r.current_step_id
		JOIN access_scopes s ON s.team_id = r.team_id AND s.role_id = a.role_id
		WHERE s.user_id = $1
		  AND s.active
		  AND r.active
		  AND r.status IN ('PENDING_APPROVAL', 'IN_REVIEW')
		  AND NOT EXISTS (
		      SELECT 1
		      FROM approval_history h
		      WHERE h.request_id = r.id
		        AND h.step_id = r.current_step_id
		        AND h.submission_id = r.current_submission_id
		        AND h.approver_id = $1
		  )
		ORDER BY r.created_at DESC
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("approver inbox of user %s: %w", userID, err)
	}
	return collectRequests(rows)
}

func (r *requestRepo) FinanceInbox(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error) {
	query := `
		SELECT DISTINCT ` + requestColumnsR + `
		FROM purchase_requests r
		JOIN workflow_step_approvers a ON a.step_id = r.current_step_id
		JOIN access_scopes s ON s.team_id = r.team_id AND s.role_id = a.role_id
		WHERE s.user_id = $1
		  AND s.active
		  AND r.active
		  AND r.status = 'FINANCE_REVIEW'
		  AND NOT EXISTS (
		      SELECT 1
		      FROM approval_history h
		      WHERE h.request_id = r.id
		        AND h.step_id = r.current_step_id
		        AND h.submission_id = r.current_submission_id
		        AND h.approver_id = $1
		  )
		ORDER BY r.created_at DESC
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("finance inbox of user %s: %w", userID, err)
	}
	return collectRequests(rows)
}

func collectRequests(rows interface {
	rowScanner
	Next() bool
	Close()
	Err() error
}) ([]*domain.PurchaseRequest, error) {
	defer rows.Close()

	var out []*domain.PurchaseRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (*domain.PurchaseRequest, error) {
	pr := &domain.PurchaseRequest{}
	err := row.Scan(
		&pr.ID,
		&pr.RequestorID,
		&pr.TeamID,
		&pr.PurchaseType,
		&pr.Status,
		&pr.FormTemplateID,
		&pr.WorkflowTemplateID,
		&pr.CurrentStepID,
		&pr.VendorName,
		&pr.VendorAccount,
		&pr.Subject,
		&pr.Description,
		&pr.SubmittedAt,
		&pr.CompletedAt,
		&pr.RejectionComment,
		&pr.CurrentSubmissionID,
		&pr.Active,
		&pr.CreatedAt,
		&pr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pr, nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
