package project

import (
	"context"

	"github.com/google/uuid"
	"github.com/promptvault/promptvault/internal/models"
)

type contextKey string

const (
	projectKey contextKey = "project"
	apiKeyKey  contextKey = "api_key"
)

func WithProject(ctx context.Context, p *models.Project) context.Context {
	return context.WithValue(ctx, projectKey, p)
}

func FromContext(ctx context.Context) *models.Project {
	p, _ := ctx.Value(projectKey).(*models.Project)
	return p
}

func IDFromContext(ctx context.Context) uuid.UUID {
	if p := FromContext(ctx); p != nil {
		return p.ID
	}
	return uuid.Nil
}

func WithAPIKey(ctx context.Context, k *models.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyKey, k)
}

func APIKeyFromContext(ctx context.Context) *models.APIKey {
	k, _ := ctx.Value(apiKeyKey).(*models.APIKey)
	return k
}
