package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
)

type formTemplateRepo struct {
	q querier
}

const formTemplateColumns = `id, name, version_number, active, created_by, created_at, updated_at`

func (r *formTemplateRepo) Create(ctx context.Context, t *domain.FormTemplate) error {
	tplQuery := `
		INSERT INTO form_templates (id, name, version_number, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, tplQuery,
		t.ID, t.Name, t.VersionNumber, t.Active, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create form template %s v%d: %w", t.Name, t.VersionNumber, mapPgError(err))
	}

	fieldQuery := `
		INSERT INTO form_fields
		    (id, template_id, field_id, label, field_type, required, display_order,
		     default_value, help_text, dropdown_options, validation_rules, attachment_category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12)
	`
	for i := range t.Fields {
		f := &t.Fields[i]
		f.TemplateID = t.ID

		opts, err := jsonText(f.DropdownOptions)
		if err != nil {
			return fmt.Errorf("encode dropdown options for field %s: %w", f.FieldID, err)
		}
		rules, err := jsonText(f.ValidationRules)
		if err != nil {
			return fmt.Errorf("encode validation rules for field %s: %w", f.FieldID, err)
		}

		_, err = r.q.Exec(ctx, fieldQuery,
			f.ID, f.TemplateID, f.FieldID, f.Label, f.Type, f.Required, f.Order,
			f.DefaultValue, f.HelpText, opts, rules, f.AttachmentCategory,
		)
		if err != nil {
			return fmt.Errorf("create form field %s: %w", f.FieldID, mapPgError(err))
		}
	}
	return nil
}

func (r *formTemplateRepo) GetByID(ctx context.Context, id string) (*domain.FormTemplate, error) {
	query := `SELECT ` + formTemplateColumns + ` FROM form_templates WHERE id = $1`

	t, err := scanFormTemplate(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, noRows(err, "form template", id)
	}
	return t, nil
}

func (r *formTemplateRepo) GetWithFields(ctx context.Context, id string) (*domain.FormTemplate, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fieldQuery := `
		SELECT id, template_id, field_id, label, field_type, required, display_order,
		       default_value, help_text, dropdown_options::text, validation_rules::text, attachment_category
		FROM form_fields
		WHERE template_id = $1
		ORDER BY display_order
	`

	rows, err := r.q.Query(ctx, fieldQuery, id)
	if err != nil {
		return nil, fmt.Errorf("list fields of template %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f     domain.FormField
			opts  *string
			rules *string
		)
		err := rows.Scan(
			&f.ID, &f.TemplateID, &f.FieldID, &f.Label, &f.Type, &f.Required, &f.Order,
			&f.DefaultValue, &f.HelpText, &opts, &rules, &f.AttachmentCategory,
		)
		if err != nil {
			return nil, err
		}
		if opts != nil {
			if err := json.Unmarshal([]byte(*opts), &f.DropdownOptions); err != nil {
				return nil, fmt.Errorf("decode dropdown options for field %s: %w", f.FieldID, err)
			}
		}
		if rules != nil {
			if err := json.Unmarshal([]byte(*rules), &f.ValidationRules); err != nil {
				return nil, fmt.Errorf("decode validation rules for field %s: %w", f.FieldID, err)
			}
		}
		t.Fields = append(t.Fields, f)
	}
	return t, rows.Err()
}

func (r *formTemplateRepo) MaxVersionForUpdate(ctx context.Context, name string) (int, error) {
	// FOR UPDATE in the subquery serializes concurrent version bumps of the
	// same name. First-version races fall back to the unique constraint.
	query := `
		SELECT COALESCE(MAX(v), 0)
		FROM (SELECT version_number AS v FROM form_templates WHERE name = $1 FOR UPDATE) locked
	`

	var max int
	if err := r.q.QueryRow(ctx, query, name).Scan(&max); err != nil {
		return 0, fmt.Errorf("max version of form template %s: %w", name, err)
	}
	return max, nil
}

func (r *formTemplateRepo) ListVersions(ctx context.Context, name string) ([]*domain.FormTemplate, error) {
	query := `
		SELECT ` + formTemplateColumns + `
		FROM form_templates
		WHERE name = $1
		ORDER BY version_number DESC
	`

	rows, err := r.q.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("list versions of form template %s: %w", name, err)
	}
	defer rows.Close()

	var out []*domain.FormTemplate
	for rows.Next() {
		t, err := scanFormTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *formTemplateRepo) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE form_templates SET active = $2, updated_at = now() WHERE id = $1`

	_, err := r.q.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set form template %s active: %w", id, err)
	}
	return nil
}

func scanFormTemplate(row rowScanner) (*domain.FormTemplate, error) {
	t := &domain.FormTemplate{}
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.VersionNumber,
		&t.Active,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// jsonText encodes v as a JSON string pointer, nil for empty values.
func jsonText(v any) (*string, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
