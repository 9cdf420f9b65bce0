package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"procureflow.io/procureflow/internal/api/middleware"
	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/pkg/logger"
)

const passwordHashCost = 12

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the minted token and the authenticated profile.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// UserProfile is the /auth/me response: the account plus every team role
// the user holds.
type UserProfile struct {
	User   *domain.User          `json:"user"`
	Scopes []*domain.AccessScope `json:"scopes"`
}

// Login handles POST /auth/login.
func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.Users().GetByUsername(ctx, req.Username)
	if err != nil || !user.Active {
		logger.Warn("login failed: invalid credentials", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"code": "INVALID_CREDENTIALS", "message": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn("login failed: invalid credentials", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"code": "INVALID_CREDENTIALS", "message": "invalid credentials"})
		return
	}

	roles, err := s.roleCodesOf(ctx, user.ID)
	if err != nil {
		logger.Error("failed to load roles", zap.Error(err), zap.String("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "internal error"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(s.jwtCfg, user.ID, user.Username, roles)
	if err != nil {
		logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "internal error"})
		return
	}

	logger.Info("User logged in", zap.String("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// GetCurrentUser handles GET /auth/me.
func (s *Server) GetCurrentUser(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "USER_NOT_FOUND", "message": "user not found"})
		return
	}

	scopes, err := s.directory.ListByUser(ctx, userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, UserProfile{User: user, Scopes: scopes})
}

// roleCodesOf returns the distinct role codes the user holds across all
// teams, sorted for stable token claims.
func (s *Server) roleCodesOf(ctx context.Context, userID string) ([]string, error) {
	scopes, err := s.directory.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(scopes))
	codes := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		if _, ok := seen[sc.RoleCode]; ok {
			continue
		}
		seen[sc.RoleCode] = struct{}{}
		codes = append(codes, sc.RoleCode)
	}
	sort.Strings(codes)
	return codes, nil
}

// HashPassword hashes a password using bcrypt (used by the seed command).
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
