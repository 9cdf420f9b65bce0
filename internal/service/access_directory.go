package service

import (
	"context"
	"errors"
	"fmt"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/repository"
)

// AccessDirectory answers the two authorization questions the engine and
// router ask: which roles does a user hold on a team, and which users
// hold a role on a team. Both answers cover active scopes of active
// users only; duplicate assignments collapse.
type AccessDirectory struct {
	store repository.Store
	ids   domain.IDGenerator
	clock domain.Clock
}

// NewAccessDirectory creates an AccessDirectory over the store.
func NewAccessDirectory(store repository.Store, ids domain.IDGenerator, clock domain.Clock) *AccessDirectory {
	return &AccessDirectory{store: store, ids: ids, clock: clock}
}

// RolesOf returns the roles the user holds on the team.
func (d *AccessDirectory) RolesOf(ctx context.Context, userID, teamID string) ([]domain.Role, error) {
	roles, err := d.store.Scopes().RolesOf(ctx, userID, teamID)
	if err != nil {
		return nil, fmt.Errorf("roles of user %s on team %s: %w", userID, teamID, err)
	}
	return roles, nil
}

// HasRole reports whether the user holds the role on the team.
func (d *AccessDirectory) HasRole(ctx context.Context, userID, teamID, roleID string) (bool, error) {
	roles, err := d.RolesOf(ctx, userID, teamID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.ID == roleID {
			return true, nil
		}
	}
	return false, nil
}

// UsersWithRole returns the ids of active users holding the role on the team.
func (d *AccessDirectory) UsersWithRole(ctx context.Context, teamID, roleID string) ([]string, error) {
	users, err := d.store.Scopes().UserIDsWithRole(ctx, teamID, roleID)
	if err != nil {
		return nil, fmt.Errorf("users with role %s on team %s: %w", roleID, teamID, err)
	}
	return users, nil
}

// Grant records that the user holds the role on the team. Granting an
// already-held role fails with a duplicate error from the store.
func (d *AccessDirectory) Grant(ctx context.Context, userID, teamID, roleID string, positionTitle *string) (*domain.AccessScope, error) {
	if _, err := d.store.Users().GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found")
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if _, err := d.store.Teams().GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeTeamNotFound, "team not found")
		}
		return nil, fmt.Errorf("load team %s: %w", teamID, err)
	}
	role, err := d.store.Lookups().GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrLookupNotFound(domain.LookupTypeCompanyRole, roleID)
		}
		return nil, fmt.Errorf("load role %s: %w", roleID, err)
	}
	if role.TypeCode != domain.LookupTypeCompanyRole {
		return nil, apperrors.ErrLookupNotFound(domain.LookupTypeCompanyRole, role.Code)
	}

	now := d.clock.Now()
	scope := &domain.AccessScope{
		ID:            d.ids.NewID(),
		UserID:        userID,
		TeamID:        teamID,
		RoleID:        roleID,
		RoleCode:      role.Code,
		PositionTitle: positionTitle,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := d.store.Scopes().Create(ctx, scope); err != nil {
		return nil, fmt.Errorf("grant role %s to user %s on team %s: %w", role.Code, userID, teamID, err)
	}
	return scope, nil
}

// ListByUser returns the user's active scopes across all teams.
func (d *AccessDirectory) ListByUser(ctx context.Context, userID string) ([]*domain.AccessScope, error) {
	scopes, err := d.store.Scopes().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("scopes of user %s: %w", userID, err)
	}
	return scopes, nil
}
