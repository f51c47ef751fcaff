package resolver

import (
	"context"

	"github.com/google/uuid"
	"github.com/promptvault/promptvault/internal/store"
)

// LabelIndex resolves (project, name, label) to a version number. It holds
// no cache of its own: labels can move at any moment, so every lookup must
// hit current store state.
type LabelIndex struct {
	store store.Store
}

func NewLabelIndex(st store.Store) *LabelIndex {
	return &LabelIndex{store: st}
}

// Resolve returns the version currently holding label, or store.ErrNotFound.
func (ix *LabelIndex) Resolve(ctx context.Context, projectID uuid.UUID, name, label string) (int, error) {
	v, err := ix.store.FetchByLabel(ctx, projectID, name, label)
	if err != nil {
		return 0, err
	}
	return v.Version, nil
}
