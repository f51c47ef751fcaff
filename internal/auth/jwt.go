package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/project"
)

type Claims struct {
	Sub       string   `json:"sub"`
	ProjectID string   `json:"project_id"`
	Scopes    []string `json:"scopes"`
	jwt.RegisteredClaims
}

type JWTMiddleware struct {
	secret         []byte
	projectService *project.Service
}

func NewJWTMiddleware(secret string, ps *project.Service) *JWTMiddleware {
	return &JWTMiddleware{
		secret:         []byte(secret),
		projectService: ps,
	}
}

// Authenticate accepts a bearer token carrying a project claim. Requests
// already scoped by the API-key middleware pass through.
func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if project.FromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}

		projectID, err := uuid.Parse(claims.ProjectID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid project ID in token")
			return
		}

		p, err := m.projectService.GetByID(r.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "project not found")
			return
		}

		ctx := project.WithProject(r.Context(), p)
		ctx = context.WithValue(ctx, claimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
