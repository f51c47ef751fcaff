package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deliverer performs a single signed webhook delivery and records the
// attempt. Retries are asynq's concern, not ours.
type Deliverer struct {
	db         *pgxpool.Pool
	httpClient *http.Client
}

func NewDeliverer(db *pgxpool.Pool) *Deliverer {
	return &Deliverer{
		db: db,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *Deliverer) Deliver(ctx context.Context, webhookID uuid.UUID, event string, payload []byte) error {
	var url, secret string
	err := d.db.QueryRow(ctx,
		`SELECT url, secret FROM webhooks WHERE id = $1`, webhookID,
	).Scan(&url, &secret)
	if err != nil {
		return fmt.Errorf("load webhook %s: %w", webhookID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Signature", sign(payload, secret))
	req.Header.Set("X-Webhook-ID", webhookID.String())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.recordDelivery(ctx, webhookID, event, payload, 0)
		return fmt.Errorf("deliver webhook %s: %w", webhookID, err)
	}
	defer resp.Body.Close()

	d.recordDelivery(ctx, webhookID, event, payload, resp.StatusCode)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook %s returned status %d", webhookID, resp.StatusCode)
	}
	return nil
}

func (d *Deliverer) recordDelivery(ctx context.Context, webhookID uuid.UUID, event string, payload []byte, status int) {
	var deliveredAt *time.Time
	if status > 0 && status < 400 {
		now := time.Now()
		deliveredAt = &now
	}

	_, err := d.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (webhook_id, event, payload, response_status, delivered_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		webhookID, event, payload, status, deliveredAt,
	)
	if err != nil {
		slog.Error("failed to record webhook delivery", "webhook_id", webhookID, "error", err)
	}
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
