package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/project"
)

type APIKeyMiddleware struct {
	db             *pgxpool.Pool
	headerName     string
	projectService *project.Service
}

func NewAPIKeyMiddleware(db *pgxpool.Pool, headerName string, ps *project.Service) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		db:             db,
		headerName:     headerName,
		projectService: ps,
	}
}

// Authenticate resolves an API key to its project and puts both on the
// request context. Requests without the header pass through untouched so the
// JWT middleware can have a go.
func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		hash := HashAPIKey(key)

		var ak models.APIKey
		var scopesJSON json.RawMessage
		err := m.db.QueryRow(r.Context(),
			`SELECT id, project_id, key_hash, name, scopes, expires_at, created_at
			 FROM api_keys WHERE key_hash = $1`, hash,
		).Scan(&ak.ID, &ak.ProjectID, &ak.KeyHash, &ak.Name, &scopesJSON, &ak.ExpiresAt, &ak.CreatedAt)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		if err := json.Unmarshal(scopesJSON, &ak.Scopes); err != nil {
			writeError(w, http.StatusInternalServerError, "invalid scopes")
			return
		}

		if ak.ExpiresAt != nil && ak.ExpiresAt.Before(time.Now()) {
			writeError(w, http.StatusUnauthorized, "API key expired")
			return
		}

		p, err := m.projectService.GetByID(r.Context(), ak.ProjectID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "project not found")
			return
		}

		// Detached from the request context so the update survives the
		// response being written.
		go func() {
			m.db.Exec(context.Background(), "UPDATE api_keys SET last_used_at = $1 WHERE id = $2", time.Now(), ak.ID)
		}()

		ctx := project.WithProject(r.Context(), p)
		ctx = project.WithAPIKey(ctx, &ak)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
