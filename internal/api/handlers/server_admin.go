package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// CreateTeamRequest is the payload for POST /teams.
type CreateTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateUserRequest is the payload for POST /users.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpsertMemberRequest grants team roles to a user. Roles the user already
// holds on the team are left untouched.
type UpsertMemberRequest struct {
	UserID        string   `json:"user_id" binding:"required"`
	RoleCodes     []string `json:"role_codes" binding:"required"`
	PositionTitle *string  `json:"position_title,omitempty"`
}

// TeamMember pairs an account with the roles it holds on one team.
type TeamMember struct {
	User  *domain.User  `json:"user"`
	Roles []domain.Role `json:"roles"`
}

// ListLookups handles GET /lookups. Without a type_code filter it returns
// the rows of every registered lookup type.
func (s *Server) ListLookups(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	ctx := c.Request.Context()

	typeCodes := []string{
		domain.LookupTypeRequestStatus,
		domain.LookupTypePurchaseType,
		domain.LookupTypeCompanyRole,
	}
	if tc := strings.TrimSpace(c.Query("type_code")); tc != "" {
		typeCodes = []string{tc}
	}

	items := make([]*domain.Lookup, 0)
	for _, tc := range typeCodes {
		rows, err := s.lookups.ListByType(ctx, tc)
		if err != nil {
			s.fail(c, err)
			return
		}
		items = append(items, rows...)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListTeams handles GET /teams.
func (s *Server) ListTeams(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	teams, err := s.store.Teams().List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": teams})
}

// CreateTeam handles POST /teams.
func (s *Server) CreateTeam(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	var req CreateTeamRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": apperrors.CodeInvalidRequestBody, "message": "team name cannot be blank"})
		return
	}

	now := s.clock.Now()
	team := &domain.Team{
		ID:        s.ids.NewID(),
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Teams().Create(ctx, team); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.fail(c, apperrors.Conflict("TEAM_EXISTS", "a team with this name already exists"))
			return
		}
		s.fail(c, err)
		return
	}

	logger.Info("Team created", zap.String("team_id", team.ID), zap.String("name", team.Name))
	c.JSON(http.StatusCreated, team)
}

// ListTeamMembers handles GET /teams/{team_id}/members.
func (s *Server) ListTeamMembers(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	ctx := c.Request.Context()
	teamID := c.Param("team_id")

	if _, err := s.store.Teams().GetByID(ctx, teamID); err != nil {
		s.fail(c, apperrors.NotFound(apperrors.CodeTeamNotFound, "team not found"))
		return
	}

	users, err := s.store.Users().List(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	members := make([]TeamMember, 0)
	for _, u := range users {
		roles, err := s.directory.RolesOf(ctx, u.ID, teamID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if len(roles) == 0 {
			continue
		}
		members = append(members, TeamMember{User: u, Roles: roles})
	}
	c.JSON(http.StatusOK, gin.H{"items": members})
}

// UpsertTeamMember handles POST /teams/{team_id}/members.
func (s *Server) UpsertTeamMember(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	var req UpsertMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.RoleCodes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": apperrors.CodeInvalidRequestBody, "message": "role_codes cannot be empty"})
		return
	}

	ctx := c.Request.Context()
	teamID := c.Param("team_id")

	held, err := s.directory.RolesOf(ctx, req.UserID, teamID)
	if err != nil {
		s.fail(c, err)
		return
	}
	heldIDs := make(map[string]struct{}, len(held))
	for _, r := range held {
		heldIDs[r.ID] = struct{}{}
	}

	for _, code := range req.RoleCodes {
		role, err := s.lookups.ResolveRole(ctx, code)
		if err != nil {
			s.fail(c, err)
			return
		}
		if _, ok := heldIDs[role.ID]; ok {
			continue
		}
		if _, err := s.directory.Grant(ctx, req.UserID, teamID, role.ID, req.PositionTitle); err != nil {
			s.fail(c, err)
			return
		}
	}

	user, err := s.store.Users().GetByID(ctx, req.UserID)
	if err != nil {
		s.fail(c, apperrors.NotFound(apperrors.CodeUserNotFound, "user not found"))
		return
	}
	roles, err := s.directory.RolesOf(ctx, req.UserID, teamID)
	if err != nil {
		s.fail(c, err)
		return
	}

	logger.Info("Team member updated",
		zap.String("team_id", teamID),
		zap.String("user_id", req.UserID),
		zap.Strings("role_codes", req.RoleCodes),
	)
	c.JSON(http.StatusOK, TeamMember{User: user, Roles: roles})
}

// CreateUser handles POST /users.
func (s *Server) CreateUser(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.Users().GetByUsername(ctx, req.Username); err == nil {
		s.fail(c, apperrors.Conflict("USER_EXISTS", "a user with this username already exists"))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           s.ids.NewID(),
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.fail(c, apperrors.Conflict("USER_EXISTS", "a user with this username already exists"))
			return
		}
		s.fail(c, err)
		return
	}

	logger.Info("User created", zap.String("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusCreated, user)
}
