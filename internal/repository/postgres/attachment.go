package postgres

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/repository"
)

type attachmentRepo struct {
	q querier
}

const attachmentColumns = `id, request_id, category_id, filename, storage_ref,
	file_size, mime_type, uploaded_by, uploaded_at, approval_history_id, active`

func (r *attachmentRepo) Create(ctx context.Context, a *domain.Attachment) error {
	query := `
		INSERT INTO attachments
		    (id, request_id, category_id, filename, storage_ref, file_size,
		     mime_type, uploaded_by, uploaded_at, approval_history_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.Exec(ctx, query,
		a.ID, a.RequestID, a.CategoryID, a.Filename, a.StorageRef, a.FileSize,
		a.MimeType, a.UploadedBy, a.UploadedAt, a.ApprovalHistoryID, a.Active,
	)
	if err != nil {
		return fmt.Errorf("create attachment %s: %w", a.Filename, mapPgError(err))
	}
	return nil
}

func (r *attachmentRepo) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1`

	a, err := scanAttachment(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, noRows(err, "attachment", id)
	}
	return a, nil
}

func (r *attachmentRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.Attachment, error) {
	query := `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE request_id = $1 AND active
		ORDER BY uploaded_at
	`

	rows, err := r.q.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list attachments of request %s: %w", requestID, err)
	}
	defer rows.Close()

	var out []*domain.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *attachmentRepo) CountInCategory(ctx context.Context, requestID, categoryID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM attachments
		WHERE request_id = $1 AND category_id = $2 AND active
	`

	var n int
	if err := r.q.QueryRow(ctx, query, requestID, categoryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attachments in category %s of request %s: %w", categoryID, requestID, err)
	}
	return n, nil
}

func (r *attachmentRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE attachments SET active = FALSE WHERE id = $1 AND active`

	tag, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete attachment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attachment %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func scanAttachment(row rowScanner) (*domain.Attachment, error) {
	a := &domain.Attachment{}
	err := row.Scan(
		&a.ID,
		&a.RequestID,
		&a.CategoryID,
		&a.Filename,
		&a.StorageRef,
		&a.FileSize,
		&a.MimeType,
		&a.UploadedBy,
		&a.UploadedAt,
		&a.ApprovalHistoryID,
		&a.Active,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
