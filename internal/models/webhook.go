package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook events emitted by the prompt write path.
const (
	EventVersionCreated = "version.created"
	EventLabelMoved     = "label.moved"
)

type Webhook struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	URL       string    `json:"url" db:"url"`
	Secret    string    `json:"-" db:"secret"`
	Events    []string  `json:"events" db:"events"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (w Webhook) Subscribed(event string) bool {
	for _, e := range w.Events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}
