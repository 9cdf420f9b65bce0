package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
)

type auditRepo struct {
	q querier
}

const auditColumns = `id, event_type, actor_id, request_id, submission_id, metadata::text, created_at`

func (r *auditRepo) Append(ctx context.Context, e *domain.AuditEvent) error {
	var meta *string
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		s := string(b)
		meta = &s
	}

	eventQuery := `
		INSERT INTO audit_events (id, event_type, actor_id, request_id, submission_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	`
	_, err := r.q.Exec(ctx, eventQuery,
		e.ID, e.EventType, e.ActorID, e.RequestID, e.SubmissionID, meta, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event %s: %w", e.EventType, mapPgError(err))
	}

	changeQuery := `
		INSERT INTO audit_field_changes (id, audit_event_id, field_ref_id, field_name, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range e.FieldChanges {
		c := &e.FieldChanges[i]
		c.AuditEventID = e.ID

		_, err := r.q.Exec(ctx, changeQuery,
			c.ID, c.AuditEventID, c.FieldRefID, c.FieldName, c.OldValue, c.NewValue,
		)
		if err != nil {
			return fmt.Errorf("append field change %s: %w", c.FieldName, mapPgError(err))
		}
	}
	return nil
}

func (r *auditRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.AuditEvent, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_events
		WHERE request_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list audit events of request %s: %w", requestID, err)
	}
	return r.collect(ctx, rows)
}

func (r *auditRepo) ListBySubmission(ctx context.Context, submissionID string) ([]*domain.AuditEvent, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_events
		WHERE submission_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list audit events of submission %s: %w", submissionID, err)
	}
	return r.collect(ctx, rows)
}

func (r *auditRepo) ListByType(ctx context.Context, eventType domain.EventType, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + auditColumns + `
		FROM audit_events
		WHERE event_type = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events of type %s: %w", eventType, err)
	}
	return r.collect(ctx, rows)
}

func (r *auditRepo) collect(ctx context.Context, rows interface {
	rowScanner
	Next() bool
	Close()
	Err() error
}) ([]*domain.AuditEvent, error) {
	defer rows.Close()

	var (
		out []*domain.AuditEvent
		ids []string
	)
	indexByEvent := make(map[string]int)
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		indexByEvent[e.ID] = len(out)
		ids = append(ids, e.ID)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	changeQuery := `
		SELECT id, audit_event_id, field_ref_id, field_name, old_value, new_value
		FROM audit_field_changes
		WHERE audit_event_id = ANY($1::uuid[])
		ORDER BY id
	`

	changeRows, err := r.q.Query(ctx, changeQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("list audit field changes: %w", err)
	}
	defer changeRows.Close()

	for changeRows.Next() {
		var c domain.FieldChange
		err := changeRows.Scan(&c.ID, &c.AuditEventID, &c.FieldRefID, &c.FieldName, &c.OldValue, &c.NewValue)
		if err != nil {
			return nil, err
		}
		if i, ok := indexByEvent[c.AuditEventID]; ok {
			out[i].FieldChanges = append(out[i].FieldChanges, c)
		}
	}
	return out, changeRows.Err()
}

func scanAuditEvent(row rowScanner) (*domain.AuditEvent, error) {
	var (
		e    = &domain.AuditEvent{}
		meta *string
	)
	err := row.Scan(
		&e.ID,
		&e.EventType,
		&e.ActorID,
		&e.RequestID,
		&e.SubmissionID,
		&meta,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		if err := json.Unmarshal([]byte(*meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode audit metadata of event %s: %w", e.ID, err)
		}
	}
	return e, nil
}
