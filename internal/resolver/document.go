package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentKey addresses a resolved document in the cache. It is always the
// immutable (project, name, version) triple, never a label: labels move, and
// keying by them would demand invalidation on every move.
type DocumentKey struct {
	ProjectID uuid.UUID
	Name      string
	Version   int
}

func (k DocumentKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.ProjectID, k.Name, k.Version)
}

// ResolvedDocument is the flattened output of a resolution: every reference
// substituted, labels and IsActive taken from the root version only. It is
// immutable and safe to share across callers; ResolvedAt is the time of the
// original computation, reused across cache hits.
type ResolvedDocument struct {
	ProjectID  uuid.UUID `json:"project_id"`
	Name       string    `json:"name"`
	Version    int       `json:"version"`
	Body       string    `json:"body"`
	Labels     []string  `json:"labels"`
	IsActive   bool      `json:"is_active"`
	Partial    bool      `json:"partial,omitempty"`
	Missing    []string  `json:"missing,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Cache stores fully resolved documents. Get returns (nil, nil) on a miss.
// Entries are immutable once written, so concurrent writes to the same key
// are idempotent and any eviction policy preserves correctness.
type Cache interface {
	Get(ctx context.Context, key DocumentKey) (*ResolvedDocument, error)
	Put(ctx context.Context, key DocumentKey, doc *ResolvedDocument, ttl time.Duration) error
}
