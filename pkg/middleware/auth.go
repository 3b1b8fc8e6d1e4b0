package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"websites-content-system/pkg/config"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/utils"
)

// ContextKey is the type of request context keys set by this package
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

// devUser is the identity of every request when SSO is disabled.
var devUser = models.User{Name: "Development", Email: "dev@localhost"}

// AuthMiddleware requires a valid bearer access token and stores its user in
// the request context. With DisableSSO every request runs as a development user.
func AuthMiddleware(cfg *config.Config, logger *zap.Logger) func(http.Handler) http.Handler {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.DisableSSO {
				user := devUser
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &user)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				logger.Debug("Rejected token", zap.String("path", r.URL.Path), zap.Error(err))
				utils.WriteUnauthorizedResponse(w, "Invalid token: "+err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), utils.UserFromClaims(claims))))
		})
	}
}

// WithUser returns ctx carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext returns the authenticated user, if any
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// RequireUser returns the authenticated user or an error
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not authenticated")
	}
	return user, nil
}
