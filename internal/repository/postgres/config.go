package postgres

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
)

// ── team purchase configs ─────────────────────────────────────────────────────

type configRepo struct {
	q querier
}

const configColumns = `id, team_id, purchase_type, form_template_id, workflow_template_id, active, created_at, updated_at`

func (r *configRepo) Create(ctx context.Context, c *domain.TeamPurchaseConfig) error {
	query := `
		INSERT INTO team_purchase_configs
		    (id, team_id, purchase_type, form_template_id, workflow_template_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.TeamID, c.PurchaseType, c.FormTemplateID, c.WorkflowTemplateID, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create config team=%s type=%s: %w", c.TeamID, c.PurchaseType, mapPgError(err))
	}
	return nil
}

func (r *configRepo) ResolveActive(ctx context.Context, teamID string, pt domain.PurchaseType) (*domain.TeamPurchaseConfig, error) {
	query := `
		SELECT ` + configColumns + `
		FROM team_purchase_configs
		WHERE team_id = $1 AND purchase_type = $2 AND active
	`

	c, err := scanConfig(r.q.QueryRow(ctx, query, teamID, pt))
	if err != nil {
		return nil, noRows(err, "config", teamID+"/"+string(pt))
	}
	return c, nil
}

func (r *configRepo) DeactivateActive(ctx context.Context, teamID string, pt domain.PurchaseType) error {
	query := `
		UPDATE team_purchase_configs
		SET active = FALSE, updated_at = now()
		WHERE team_id = $1 AND purchase_type = $2 AND active
	`

	_, err := r.q.Exec(ctx, query, teamID, pt)
	if err != nil {
		return fmt.Errorf("deactivate config team=%s type=%s: %w", teamID, pt, err)
	}
	return nil
}

func (r *configRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.TeamPurchaseConfig, error) {
	query := `
		SELECT ` + configColumns + `
		FROM team_purchase_configs
		WHERE team_id = $1
		ORDER BY purchase_type, created_at DESC
	`

	rows, err := r.q.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list configs of team %s: %w", teamID, err)
	}
	defer rows.Close()

	var out []*domain.TeamPurchaseConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConfig(row rowScanner) (*domain.TeamPurchaseConfig, error) {
	c := &domain.TeamPurchaseConfig{}
	err := row.Scan(
		&c.ID,
		&c.TeamID,
		&c.PurchaseType,
		&c.FormTemplateID,
		&c.WorkflowTemplateID,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ── attachment categories ─────────────────────────────────────────────────────

type categoryRepo struct {
	q querier
}

const categoryColumns = `id, team_id, name, required, active, created_at, updated_at`

func (r *categoryRepo) Create(ctx context.Context, c *domain.AttachmentCategory) error {
	query := `
		INSERT INTO attachment_categories (id, team_id, name, required, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.TeamID, c.Name, c.Required, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create attachment category %s: %w", c.Name, mapPgError(err))
	}
	return nil
}

func (r *categoryRepo) GetByName(ctx context.Context, teamID, name string) (*domain.AttachmentCategory, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM attachment_categories
		WHERE team_id = $1 AND name = $2 AND active
	`

	c, err := scanCategory(r.q.QueryRow(ctx, query, teamID, name))
	if err != nil {
		return nil, noRows(err, "attachment category", name)
	}
	return c, nil
}

func (r *categoryRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.AttachmentCategory, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM attachment_categories
		WHERE team_id = $1 AND active
		ORDER BY name
	`
	return r.list(ctx, query, teamID)
}

func (r *categoryRepo) Required(ctx context.Context, teamID string) ([]*domain.AttachmentCategory, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM attachment_categories
		WHERE team_id = $1 AND active AND required
		ORDER BY name
	`
	return r.list(ctx, query, teamID)
}

func (r *categoryRepo) list(ctx context.Context, query, teamID string) ([]*domain.AttachmentCategory, error) {
	rows, err := r.q.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list attachment categories of team %s: %w", teamID, err)
	}
	defer rows.Close()

	var out []*domain.AttachmentCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCategory(row rowScanner) (*domain.AttachmentCategory, error) {
	c := &domain.AttachmentCategory{}
	err := row.Scan(
		&c.ID,
		&c.TeamID,
		&c.Name,
		&c.Required,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
