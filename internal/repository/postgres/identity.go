package postgres

import (
	"context"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
)

// ── teams ─────────────────────────────────────────────────────────────────────

type teamRepo struct {
	q querier
}

const teamColumns = `id, name, active, created_at, updated_at`

func (r *teamRepo) Create(ctx context.Context, t *domain.Team) error {
	query := `
		INSERT INTO teams (id, name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.Exec(ctx, query, t.ID, t.Name, t.Active, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create team %s: %w", t.Name, mapPgError(err))
	}
	return nil
}

func (r *teamRepo) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`

	t, err := scanTeam(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, noRows(err, "team", id)
	}
	return t, nil
}

func (r *teamRepo) GetByName(ctx context.Context, name string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE name = $1`

	t, err := scanTeam(r.q.QueryRow(ctx, query, name))
	if err != nil {
		return nil, noRows(err, "team", name)
	}
	return t, nil
}

func (r *teamRepo) List(ctx context.Context) ([]*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE active ORDER BY name`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []*domain.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTeam(row rowScanner) (*domain.Team, error) {
	t := &domain.Team{}
	err := row.Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ── users ─────────────────────────────────────────────────────────────────────

type userRepo struct {
	q querier
}

const userColumns = `id, username, email, full_name, password_hash, active, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, full_name, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.Exec(ctx, query,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, mapPgError(err))
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, noRows(err, "user", id)
	}
	return u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(r.q.QueryRow(ctx, query, username))
	if err != nil {
		return nil, noRows(err, "user", username)
	}
	return u, nil
}

func (r *userRepo) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active ORDER BY username`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ── access scopes ─────────────────────────────────────────────────────────────

type scopeRepo struct {
	q querier
}

func (r *scopeRepo) Create(ctx context.Context, s *domain.AccessScope) error {
	query := `
		INSERT INTO access_scopes (id, user_id, team_id, role_id, position_title, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.UserID, s.TeamID, s.RoleID, s.PositionTitle, s.Active, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create access scope user=%s team=%s: %w", s.UserID, s.TeamID, mapPgError(err))
	}
	return nil
}

func (r *scopeRepo) RolesOf(ctx context.Context, userID, teamID string) ([]domain.Role, error) {
	query := `
		SELECT DISTINCT l.id, l.code
		FROM access_scopes s
		JOIN lookups l ON l.id = s.role_id
		JOIN users u   ON u.id = s.user_id
		WHERE s.user_id = $1
		  AND s.team_id = $2
		  AND s.active
		  AND u.active
		  AND l.active
		ORDER BY l.code
	`

	rows, err := r.q.Query(ctx, query, userID, teamID)
	if err != nil {
		return nil, fmt.Errorf("roles of user %s on team %s: %w", userID, teamID, err)
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Code); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *scopeRepo) UserIDsWithRole(ctx context.Context, teamID, roleID string) ([]string, error) {
	query := `
		SELECT DISTINCT s.user_id
		FROM access_scopes s
		JOIN users u ON u.id = s.user_id
		WHERE s.team_id = $1
		  AND s.role_id = $2
		  AND s.active
		  AND u.active
	`

	rows, err := r.q.Query(ctx, query, teamID, roleID)
	if err != nil {
		return nil, fmt.Errorf("users with role %s on team %s: %w", roleID, teamID, err)
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

func (r *scopeRepo) ListByUser(ctx context.Context, userID string) ([]*domain.AccessScope, error) {
	query := `
		SELECT s.id, s.user_id, s.team_id, s.role_id, l.code, s.position_title,
		       s.active, s.created_at, s.updated_at
		FROM access_scopes s
		JOIN lookups l ON l.id = s.role_id
		WHERE s.user_id = $1 AND s.active
		ORDER BY s.created_at
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list scopes for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*domain.AccessScope
	for rows.Next() {
		s := &domain.AccessScope{}
		err := rows.Scan(
			&s.ID, &s.UserID, &s.TeamID, &s.RoleID, &s.RoleCode, &s.PositionTitle,
			&s.Active, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
