package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/promptvault/promptvault/internal/queue"
	"github.com/promptvault/promptvault/internal/webhook"
)

type WebhookWorker struct {
	deliverer *webhook.Deliverer
}

func NewWebhookWorker(d *webhook.Deliverer) *WebhookWorker {
	return &WebhookWorker{deliverer: d}
}

func (w *WebhookWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.WebhookDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal webhook payload: %w", err)
	}

	webhookID, err := uuid.Parse(payload.WebhookID)
	if err != nil {
		return fmt.Errorf("invalid webhook ID %q: %w", payload.WebhookID, err)
	}

	return w.deliverer.Deliver(ctx, webhookID, payload.Event, []byte(payload.Payload))
}
