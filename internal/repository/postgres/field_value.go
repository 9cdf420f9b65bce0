package postgres

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
)

type fieldValueRepo struct {
	q querier
}

// fieldValueColumns joins form_fields for the value's type tag and display
// order; the type lives on the pinned template, not in the value row.
const fieldValueColumns = `v.id, v.request_id, v.form_field_id, f.field_type,
	v.value_text, v.value_number, v.value_bool, v.value_date, v.value_dropdown,
	v.created_at, v.updated_at`

func (r *fieldValueRepo) Upsert(ctx context.Context, v *domain.RequestFieldValue) error {
	query := `
		INSERT INTO request_field_values
		    (id, request_id, form_field_id, value_text, value_number, value_bool,
		     value_date, value_dropdown, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (request_id, form_field_id) DO UPDATE SET
		    value_text     = EXCLUDED.value_text,
		    value_number   = EXCLUDED.value_number,
		    value_bool     = EXCLUDED.value_bool,
		    value_date     = EXCLUDED.value_date,
		    value_dropdown = EXCLUDED.value_dropdown,
		    updated_at     = EXCLUDED.updated_at
	`
	_, err := r.q.Exec(ctx, query,
		v.ID, v.RequestID, v.FormFieldID,
		v.Value.Text, v.Value.Number, v.Value.Bool, v.Value.Date, v.Value.Dropdown,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert field value request=%s field=%s: %w", v.RequestID, v.FormFieldID, mapPgError(err))
	}
	return nil
}

func (r *fieldValueRepo) Get(ctx context.Context, requestID, formFieldID string) (*domain.RequestFieldValue, error) {
	query := `
		SELECT ` + fieldValueColumns + `
		FROM request_field_values v
		JOIN form_fields f ON f.id = v.form_field_id
		WHERE v.request_id = $1 AND v.form_field_id = $2
	`

	v, err := scanFieldValue(r.q.QueryRow(ctx, query, requestID, formFieldID))
	if err != nil {
		return nil, noRows(err, "field value", formFieldID)
	}
	return v, nil
}

func (r *fieldValueRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.RequestFieldValue, error) {
	query := `
		SELECT ` + fieldValueColumns + `
		FROM request_field_values v
		JOIN form_fields f ON f.id = v.form_field_id
		WHERE v.request_id = $1
		ORDER BY f.display_order
	`

	rows, err := r.q.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list field values of request %s: %w", requestID, err)
	}
	defer rows.Close()

	var out []*domain.RequestFieldValue
	for rows.Next() {
		v, err := scanFieldValue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanFieldValue(row rowScanner) (*domain.RequestFieldValue, error) {
	v := &domain.RequestFieldValue{}
	err := row.Scan(
		&v.ID,
		&v.RequestID,
		&v.FormFieldID,
		&v.Value.Type,
		&v.Value.Text,
		&v.Value.Number,
		&v.Value.Bool,
		&v.Value.Date,
		&v.Value.Dropdown,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}
