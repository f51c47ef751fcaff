package queue

const (
	TypeCacheWarm      = "cache:warm"
	TypeWebhookDeliver = "webhook:deliver"
)

// CacheWarmPayload asks the worker to re-resolve every version of a prompt
// name so the document cache is hot after a write.
type CacheWarmPayload struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

type WebhookDeliverPayload struct {
	WebhookID string `json:"webhook_id"`
	Event     string `json:"event"`
	Payload   string `json:"payload"` // JSON string
}
