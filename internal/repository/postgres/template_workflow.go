package postgres

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
)

type workflowTemplateRepo struct {
	q querier
}

const workflowTemplateColumns = `id, name, version_number, description, active, created_at, updated_at`

const workflowStepColumns = `id, template_id, step_order, step_name, is_finance_review, created_at, updated_at`

func (r *workflowTemplateRepo) Create(ctx context.Context, t *domain.WorkflowTemplate) error {
	tplQuery := `
		INSERT INTO workflow_templates (id, name, version_number, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, tplQuery,
		t.ID, t.Name, t.VersionNumber, t.Description, t.Active, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create workflow template %s v%d: %w", t.Name, t.VersionNumber, mapPgError(err))
	}

	stepQuery := `
		INSERT INTO workflow_template_steps
		    (id, template_id, step_order, step_name, is_finance_review, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	approverQuery := `INSERT INTO workflow_step_approvers (step_id, role_id) VALUES ($1, $2)`

	for i := range t.Steps {
		s := &t.Steps[i]
		s.TemplateID = t.ID

		_, err := r.q.Exec(ctx, stepQuery,
			s.ID, s.TemplateID, s.StepOrder, s.StepName, s.IsFinanceReview, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create workflow step %d of %s: %w", s.StepOrder, t.Name, mapPgError(err))
		}
		for _, role := range s.ApproverRoles {
			if _, err := r.q.Exec(ctx, approverQuery, s.ID, role.ID); err != nil {
				return fmt.Errorf("bind role %s to step %d of %s: %w", role.Code, s.StepOrder, t.Name, mapPgError(err))
			}
		}
	}
	return nil
}

func (r *workflowTemplateRepo) GetByID(ctx context.Context, id string) (*domain.WorkflowTemplate, error) {
	query := `SELECT ` + workflowTemplateColumns + ` FROM workflow_templates WHERE id = $1`

	t, err := scanWorkflowTemplate(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, noRows(err, "workflow template", id)
	}
	return t, nil
}

func (r *workflowTemplateRepo) GetWithSteps(ctx context.Context, id string) (*domain.WorkflowTemplate, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stepQuery := `
		SELECT ` + workflowStepColumns + `
		FROM workflow_template_steps
		WHERE template_id = $1
		ORDER BY step_order
	`

	rows, err := r.q.Query(ctx, stepQuery, id)
	if err != nil {
		return nil, fmt.Errorf("list steps of template %s: %w", id, err)
	}
	defer rows.Close()

	indexByStep := make(map[string]int)
	for rows.Next() {
		var s domain.WorkflowTemplateStep
		err := rows.Scan(
			&s.ID, &s.TemplateID, &s.StepOrder, &s.StepName, &s.IsFinanceReview, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		indexByStep[s.ID] = len(t.Steps)
		t.Steps = append(t.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roleQuery := `
		SELECT a.step_id, l.id, l.code
		FROM workflow_step_approvers a
		JOIN workflow_template_steps s ON s.id = a.step_id
		JOIN lookups l ON l.id = a.role_id
		WHERE s.template_id = $1
		ORDER BY l.code
	`

	roleRows, err := r.q.Query(ctx, roleQuery, id)
	if err != nil {
		return nil, fmt.Errorf("list step approvers of template %s: %w", id, err)
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var (
			stepID string
			role   domain.Role
		)
		if err := roleRows.Scan(&stepID, &role.ID, &role.Code); err != nil {
			return nil, err
		}
		if i, ok := indexByStep[stepID]; ok {
			t.Steps[i].ApproverRoles = append(t.Steps[i].ApproverRoles, role)
		}
	}
	return t, roleRows.Err()
}

func (r *workflowTemplateRepo) GetStep(ctx context.Context, stepID string) (*domain.WorkflowTemplateStep, error) {
	query := `SELECT ` + workflowStepColumns + ` FROM workflow_template_steps WHERE id = $1`

	s := &domain.WorkflowTemplateStep{}
	err := r.q.QueryRow(ctx, query, stepID).Scan(
		&s.ID, &s.TemplateID, &s.StepOrder, &s.StepName, &s.IsFinanceReview, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, noRows(err, "workflow step", stepID)
	}

	roleQuery := `
		SELECT l.id, l.code
		FROM workflow_step_approvers a
		JOIN lookups l ON l.id = a.role_id
		WHERE a.step_id = $1
		ORDER BY l.code
	`

	rows, err := r.q.Query(ctx, roleQuery, stepID)
	if err != nil {
		return nil, fmt.Errorf("list approvers of step %s: %w", stepID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Code); err != nil {
			return nil, err
		}
		s.ApproverRoles = append(s.ApproverRoles, role)
	}
	return s, rows.Err()
}

func (r *workflowTemplateRepo) MaxVersionForUpdate(ctx context.Context, name string) (int, error) {
	// FOR UPDATE in the subquery serializes concurrent version bumps of the
	// same name. First-version races fall back to the unique constraint.
	query := `
		SELECT COALESCE(MAX(v), 0)
		FROM (SELECT version_number AS v FROM workflow_templates WHERE name = $1 FOR UPDATE) locked
	`

	var max int
	if err := r.q.QueryRow(ctx, query, name).Scan(&max); err != nil {
		return 0, fmt.Errorf("max version of workflow template %s: %w", name, err)
	}
	return max, nil
}

func (r *workflowTemplateRepo) ListVersions(ctx context.Context, name string) ([]*domain.WorkflowTemplate, error) {
	query := `
		SELECT ` + workflowTemplateColumns + `
		FROM workflow_templates
		WHERE name = $1
		ORDER BY version_number DESC
	`

	rows, err := r.q.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("list versions of workflow template %s: %w", name, err)
	}
	defer rows.Close()

	var out []*domain.WorkflowTemplate
	for rows.Next() {
		t, err := scanWorkflowTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *workflowTemplateRepo) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE workflow_templates SET active = $2, updated_at = now() WHERE id = $1`

	_, err := r.q.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set workflow template %s active: %w", id, err)
	}
	return nil
}

func scanWorkflowTemplate(row rowScanner) (*domain.WorkflowTemplate, error) {
	t := &domain.WorkflowTemplate{}
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.VersionNumber,
		&t.Description,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
