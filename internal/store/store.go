package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/promptvault/promptvault/internal/models"
)

// ErrNotFound is returned when no prompt row matches the query. To the
// resolver this is usually a recoverable condition, not a failure.
var ErrNotFound = errors.New("prompt not found")

// UnavailableError wraps a transport-level store failure. The engine never
// retries these; any retry policy belongs to the store implementation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Store is the read-only accessor the resolution engine depends on. All
// reads are point-in-time snapshots; there is no transactional guarantee
// across calls, so a label observed a moment ago may already have moved.
type Store interface {
	// FetchVersions returns all versions of a prompt, newest first
	// (version DESC, created_at DESC). Returns ErrNotFound when the name
	// has no versions at all.
	FetchVersions(ctx context.Context, projectID uuid.UUID, name string) ([]models.PromptVersion, error)

	// FetchByVersion returns the single version identified by number.
	FetchByVersion(ctx context.Context, projectID uuid.UUID, name string, version int) (*models.PromptVersion, error)

	// FetchByLabel returns the version currently holding label. If the
	// store transiently reports more than one holder, implementations
	// resolve the ambiguity toward the highest version and log it.
	FetchByLabel(ctx context.Context, projectID uuid.UUID, name string, label string) (*models.PromptVersion, error)
}
