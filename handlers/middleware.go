package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/repository"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserContextKey is the key used to store the user object in the request context.
	UserContextKey ContextKey = "user"
)

// currentUser returns the authenticated user, nil outside AuthMiddleware
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}

// AuthMiddleware verifies the bearer token and puts its user into the request context.
func AuthMiddleware(userRepo repository.UserRepository, secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authorization header format must be Bearer {token}")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid token signature")
				return
			}
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid token: "+err.Error())
			return
		}
		if !token.Valid {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || userID == 0 {
			log.Printf("auth: malformed token subject '%s': %v", claims.Subject, err)
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid user ID in token")
			return
		}

		user, err := userRepo.GetByID(r.Context(), uint(userID))
		if err != nil {
			// the user may have been deleted after the token was issued
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireGlobalPermission checks a global permission of the authenticated
// user. it must run after AuthMiddleware.
func RequireGlobalPermission(requiredPermission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "User not found in context")
			return
		}
		if !user.HasGlobalPermission(requiredPermission) {
			WriteAPIError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("Requires global permission '%s'", requiredPermission))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAnyGlobalPermission passes when the user holds at least one of permissions.
func RequireAnyGlobalPermission(permissions []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "User not found in context")
			return
		}
		for _, p := range permissions {
			if user.HasGlobalPermission(p) {
				next.ServeHTTP(w, r)
				return
			}
		}
		WriteAPIError(w, http.StatusForbidden, "forbidden",
			fmt.Sprintf("Requires at least one of the following global permissions: %s", strings.Join(permissions, ", ")))
	})
}

// chi-style helpers so routes can use r.With(...)
func requirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireGlobalPermission(perm, next)
	}
}

func requireAnyPermission(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAnyGlobalPermission(perms, next)
	}
}
