package postgres

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
)

type approvalRepo struct {
	q querier
}

const approvalColumns = `h.id, h.request_id, h.step_id, h.submission_id,
	h.approver_id, h.role_id, l.code, h.action, h.comment, h.created_at`

func (r *approvalRepo) Create(ctx context.Context, h *domain.ApprovalHistory) error {
	query := `
		INSERT INTO approval_history
		    (id, request_id, step_id, submission_id, approver_id, role_id, action, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.Exec(ctx, query,
		h.ID, h.RequestID, h.StepID, h.SubmissionID, h.ApproverID, h.RoleID, h.Action, h.Comment, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create approval record request=%s: %w", h.RequestID, mapPgError(err))
	}
	return nil
}

func (r *approvalRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.ApprovalHistory, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_history h
		JOIN lookups l ON l.id = h.role_id
		WHERE h.request_id = $1
		ORDER BY h.created_at
	`

	rows, err := r.q.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list approvals of request %s: %w", requestID, err)
	}
	defer rows.Close()

	var out []*domain.ApprovalHistory
	for rows.Next() {
		h, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *approvalRepo) ApprovedRoleIDs(ctx context.Context, requestID, stepID, submissionID string) ([]string, error) {
	query := `
		SELECT DISTINCT role_id
		FROM approval_history
		WHERE request_id = $1
		  AND step_id = $2
		  AND submission_id = $3
		  AND action = 'APPROVE'
	`

	rows, err := r.q.Query(ctx, query, requestID, stepID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("approved roles at step %s of request %s: %w", stepID, requestID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *approvalRepo) HasActed(ctx context.Context, requestID, stepID, submissionID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
		    SELECT 1
		    FROM approval_history
		    WHERE request_id = $1
		      AND step_id = $2
		      AND submission_id = $3
		      AND approver_id = $4
		)
	`

	var acted bool
	err := r.q.QueryRow(ctx, query, requestID, stepID, submissionID, userID).Scan(&acted)
	if err != nil {
		return false, fmt.Errorf("check prior action of user %s on request %s: %w", userID, requestID, err)
	}
	return acted, nil
}

func (r *approvalRepo) LatestByApprover(ctx context.Context, requestID, userID string) (*domain.ApprovalHistory, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_history h
		JOIN lookups l ON l.id = h.role_id
		WHERE h.request_id = $1 AND h.approver_id = $2
		ORDER BY h.created_at DESC
		LIMIT 1
	`

	h, err := scanApproval(r.q.QueryRow(ctx, query, requestID, userID))
	if err != nil {
		return nil, noRows(err, "approval record", requestID)
	}
	return h, nil
}

func scanApproval(row rowScanner) (*domain.ApprovalHistory, error) {
	h := &domain.ApprovalHistory{}
	err := row.Scan(
		&h.ID,
		&h.RequestID,
		&h.StepID,
		&h.SubmissionID,
		&h.ApproverID,
		&h.RoleID,
		&h.RoleCode,
		&h.Action,
		&h.Comment,
		&h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}
