package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/queue"
)

type Service struct {
	db    *pgxpool.Pool
	queue *queue.Client
}

func NewService(db *pgxpool.Pool, qc *queue.Client) *Service {
	return &Service{db: db, queue: qc}
}

type CreateRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

func (s *Service) Create(ctx context.Context, projectID uuid.UUID, req CreateRequest) (*models.Webhook, error) {
	var w models.Webhook
	err := s.db.QueryRow(ctx,
		`INSERT INTO webhooks (project_id, url, secret, events)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, project_id, url, secret, events, created_at`,
		projectID, req.URL, req.Secret, req.Events,
	).Scan(&w.ID, &w.ProjectID, &w.URL, &w.Secret, &w.Events, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}
	return &w, nil
}

func (s *Service) List(ctx context.Context, projectID uuid.UUID) ([]models.Webhook, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, url, secret, events, created_at
		 FROM webhooks WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []models.Webhook
	for rows.Next() {
		var w models.Webhook
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.URL, &w.Secret, &w.Events, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

func (s *Service) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM webhooks WHERE id = $1 AND project_id = $2`, id, projectID,
	)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// Emit enqueues deliveries for every webhook of the project subscribed to
// event. Best-effort: failures are logged, never surfaced to the write path.
func (s *Service) Emit(ctx context.Context, projectID uuid.UUID, event string, payload any) {
	hooks, err := s.List(ctx, projectID)
	if err != nil {
		slog.Warn("webhook lookup failed", "project_id", projectID, "event", event, "error", err)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("webhook payload marshal failed", "event", event, "error", err)
		return
	}

	for _, h := range hooks {
		if !h.Subscribed(event) {
			continue
		}
		err := s.queue.EnqueueWebhookDeliver(queue.WebhookDeliverPayload{
			WebhookID: h.ID.String(),
			Event:     event,
			Payload:   string(data),
		})
		if err != nil {
			slog.Warn("webhook enqueue failed", "webhook_id", h.ID, "event", event, "error", err)
		}
	}
}
