package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/promptvault/promptvault/internal/queue"
	"github.com/promptvault/promptvault/internal/resolver"
)

// WarmCacheWorker re-resolves all versions of a prompt name after a write,
// populating the document cache so readers hit warm entries.
type WarmCacheWorker struct {
	resolver *resolver.Resolver
}

func NewWarmCacheWorker(r *resolver.Resolver) *WarmCacheWorker {
	return &WarmCacheWorker{resolver: r}
}

func (w *WarmCacheWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.CacheWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal cache warm payload: %w", err)
	}

	projectID, err := uuid.Parse(payload.ProjectID)
	if err != nil {
		return fmt.Errorf("invalid project ID %q: %w", payload.ProjectID, err)
	}

	results, err := w.resolver.ResolveAllVersions(ctx, projectID, payload.Name)
	if err != nil {
		return fmt.Errorf("warm cache for %s: %w", payload.Name, err)
	}

	warmed := 0
	for _, res := range results {
		if res.Err == nil {
			warmed++
		}
	}
	slog.Info("cache warmed", "project_id", projectID, "name", payload.Name,
		"versions", len(results), "warmed", warmed)
	return nil
}
