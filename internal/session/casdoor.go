package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/classforge/attempt-service/internal/attempt"
	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type contextKey string

const (
	userIDKey   contextKey = "session_user_id"
	userRoleKey contextKey = "session_user_role"
)

// CasdoorSession implements attempt.Session backed by Casdoor-issued JWTs.
// The middleware parses the bearer token once per request and stashes the
// identity in the request context.
type CasdoorSession struct {
	client *casdoorsdk.Client
	logger utils.Logger
}

type Config struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
}

func NewCasdoorSession(cfg Config, logger utils.Logger) *CasdoorSession {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorSession{client: client, logger: logger}
}

// CurrentUserID returns the identity attached to ctx by Middleware, or
// attempt.ErrNoIdentity when the request carried no valid token.
func (s *CasdoorSession) CurrentUserID(ctx context.Context) (string, error) {
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		return id, nil
	}
	return "", attempt.ErrNoIdentity
}

// RoleFromContext returns the role claimed by the token, defaulting to
// student.
func RoleFromContext(ctx context.Context) models.UserRole {
	if role, ok := ctx.Value(userRoleKey).(models.UserRole); ok {
		return role
	}
	return models.RoleStudent
}

// Middleware authenticates the request. Requests without a valid bearer
// token are rejected; attempt loading is impossible without an identity.
func (s *CasdoorSession) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
			return
		}

		claims, err := s.client.ParseJwtToken(token)
		if err != nil {
			s.logger.Warn("Token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), userIDKey, claims.User.Id)
		ctx = context.WithValue(ctx, userRoleKey, roleFromClaims(claims))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func roleFromClaims(claims *casdoorsdk.Claims) models.UserRole {
	if claims.User.IsAdmin {
		return models.RoleAdmin
	}
	switch models.UserRole(claims.User.Tag) {
	case models.RoleTeacher:
		return models.RoleTeacher
	default:
		return models.RoleStudent
	}
}
