package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrJWTSigningKeyMissing is returned when token validation runs without
	// any configured key material.
	ErrJWTSigningKeyMissing = errors.New("jwt signing key is not configured")

	// ErrTokenRevoked is returned when a token's jti is on the revocation list.
	ErrTokenRevoked = errors.New("token has been revoked")
)

// RevocationChecker reports whether a token id (jti) has been revoked.
// Optional; validation skips the check when unset.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTClaims carries the authenticated identity inside access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT signing and validation configuration.
type JWTConfig struct {
	SigningKey []byte
	// VerificationKeys are retired signing keys still accepted during
	// rotation. New tokens always sign with SigningKey.
	VerificationKeys  [][]byte
	Issuer            string
	ExpiresIn         time.Duration
	RevocationChecker RevocationChecker
}

// GenerateToken creates a signed HS256 token for the given user.
func GenerateToken(cfg JWTConfig, userID, username string, roles []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.ExpiresIn)

	claims := JWTClaims{
		UserID:   userID,
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken parses and verifies a token string, trying the active signing
// key first and any rotation keys after it. Claims validation failures stop
// the key walk since another key cannot change the claims.
func (cfg JWTConfig) ValidateToken(ctx context.Context, tokenString string) (*JWTClaims, error) {
	keys := make([][]byte, 0, 1+len(cfg.VerificationKeys))
	if len(cfg.SigningKey) > 0 {
		keys = append(keys, cfg.SigningKey)
	}
	keys = append(keys, cfg.VerificationKeys...)

	if len(keys) == 0 {
		// One parse attempt so the error carries jwt.ErrTokenUnverifiable.
		_, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(*jwt.Token) (interface{}, error) {
			return nil, ErrJWTSigningKeyMissing
		}, cfg.parserOptions()...)
		return nil, err
	}

	var lastErr error
	for _, key := range keys {
		key := key
		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, cfg.parserOptions()...)
		if err != nil {
			lastErr = err
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
				continue
			}
			return nil, err
		}
		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid {
			return nil, jwt.ErrTokenInvalidClaims
		}
		if err := cfg.checkRevocation(ctx, claims); err != nil {
			return nil, err
		}
		return claims, nil
	}
	return nil, lastErr
}

func (cfg JWTConfig) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return opts
}

func (cfg JWTConfig) checkRevocation(ctx context.Context, claims *JWTClaims) error {
	if cfg.RevocationChecker == nil || claims.ID == "" {
		return nil
	}
	revoked, err := cfg.RevocationChecker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

// JWTAuth returns a Gin middleware that validates Bearer tokens and populates
// the request context with the authenticated identity.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "invalid authorization header format",
			})
			return
		}

		claims, err := cfg.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			msg := "invalid token"
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				msg = "token expired"
			case errors.Is(err, ErrTokenRevoked):
				msg = "token revoked"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": msg,
			})
			return
		}

		// Populate context for downstream handlers.
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("roles", claims.Roles)
		c.Request = c.Request.WithContext(
			SetUserContext(c.Request.Context(), claims.UserID, claims.Username, claims.Roles),
		)

		c.Next()
	}
}
