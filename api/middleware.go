package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/raushankrgupta/gait-speed-service/models"
	"github.com/raushankrgupta/gait-speed-service/utils"
)

type contextKey string

const claimsContextKey contextKey = "claims"

var (
	RoleAnyAdmin       = []string{models.RoleAdmin, models.RoleSuperAdmin}
	RoleSuperAdminOnly = []string{models.RoleSuperAdmin}
)

// RequireAuth validates the bearer token and stores its claims in the request context
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			utils.RespondError(w, nil, "Access token is missing", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ValidateToken(s.jwtSecret, strings.TrimSpace(tokenString))
		if err != nil {
			utils.RespondError(w, nil, "Invalid access token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is RequireAuth plus a check that the token carries one of roles
func (s *Server) RequireRole(next http.Handler, roles ...string) http.Handler {
	return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := GetClaimsFromContext(r.Context())
		if err != nil {
			utils.RespondError(w, nil, "Invalid access token", http.StatusUnauthorized)
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		utils.RespondError(w, nil, "You do not have permission to perform this action", http.StatusForbidden)
	}))
}

// GetClaimsFromContext returns the session claims set by RequireAuth
func GetClaimsFromContext(ctx context.Context) (*utils.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*utils.Claims)
	if !ok || claims == nil {
		return nil, errors.New("no session in context")
	}
	return claims, nil
}

// GetUserIDFromContext returns the account id of the authenticated caller
func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, err := GetClaimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}

// tokensEqual compares secrets in constant time.
func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
