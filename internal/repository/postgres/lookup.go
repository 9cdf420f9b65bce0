package postgres

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/repository"
)

type lookupRepo struct {
	q querier
}

const lookupColumns = `id, type_code, code, title, active, created_at, updated_at`

func (r *lookupRepo) Create(ctx context.Context, l *domain.Lookup) error {
	query := `
		INSERT INTO lookups (id, type_code, code, title, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, query,
		l.ID, l.TypeCode, l.Code, l.Title, l.Active, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create lookup %s/%s: %w", l.TypeCode, l.Code, mapPgError(err))
	}
	return nil
}

func (r *lookupRepo) GetByID(ctx context.Context, id string) (*domain.Lookup, error) {
	query := `SELECT ` + lookupColumns + ` FROM lookups WHERE id = $1`

	l, err := scanLookup(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, noRows(err, "lookup", id)
	}
	return l, nil
}

func (r *lookupRepo) Resolve(ctx context.Context, typeCode, code string) (*domain.Lookup, error) {
	query := `
		SELECT ` + lookupColumns + `
		FROM lookups
		WHERE type_code = $1 AND code = $2 AND active
	`

	l, err := scanLookup(r.q.QueryRow(ctx, query, typeCode, code))
	if err != nil {
		return nil, noRows(err, "lookup", typeCode+"/"+code)
	}
	return l, nil
}

func (r *lookupRepo) ListByType(ctx context.Context, typeCode string) ([]*domain.Lookup, error) {
	query := `
		SELECT ` + lookupColumns + `
		FROM lookups
		WHERE type_code = $1 AND active
		ORDER BY code
	`

	rows, err := r.q.Query(ctx, query, typeCode)
	if err != nil {
		return nil, fmt.Errorf("list lookups %s: %w", typeCode, err)
	}
	defer rows.Close()

	var out []*domain.Lookup
	for rows.Next() {
		l, err := scanLookup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *lookupRepo) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE lookups SET active = $2, updated_at = now() WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set lookup %s active: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lookup %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLookup(row rowScanner) (*domain.Lookup, error) {
	l := &domain.Lookup{}
	err := row.Scan(
		&l.ID,
		&l.TypeCode,
		&l.Code,
		&l.Title,
		&l.Active,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
