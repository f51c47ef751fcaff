// Package prompt is the write path for prompts: creating names, appending
// immutable versions, and moving labels. The resolution engine only ever
// reads; every mutation lives here.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/project"
	"github.com/promptvault/promptvault/internal/queue"
	"github.com/promptvault/promptvault/internal/webhook"
)

var ErrNotFound = errors.New("prompt not found")

type Service struct {
	db       *pgxpool.Pool
	queue    *queue.Client
	webhooks *webhook.Service
}

func NewService(db *pgxpool.Pool, qc *queue.Client, wh *webhook.Service) *Service {
	return &Service{db: db, queue: qc, webhooks: wh}
}

type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Body        string `json:"body"`
}

// Create registers a new prompt name with its first version.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Prompt, error) {
	projectID := project.IDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var p models.Prompt
	err = tx.QueryRow(ctx,
		`INSERT INTO prompts (project_id, name, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, project_id, name, description, created_at`,
		projectID, req.Name, req.Description,
	).Scan(&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert prompt: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO prompt_versions (prompt_id, version, body) VALUES ($1, 1, $2)`,
		p.ID, req.Body,
	)
	if err != nil {
		return nil, fmt.Errorf("insert prompt version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &p, nil
}

type NewVersionRequest struct {
	Body string `json:"body"`
}

// CreateVersion appends the next version of a prompt. Versions are immutable
// once written; only their label set changes afterwards.
func (s *Service) CreateVersion(ctx context.Context, name string, req NewVersionRequest) (*models.PromptVersion, error) {
	projectID := project.IDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var promptID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM prompts WHERE project_id = $1 AND name = $2 FOR UPDATE`,
		projectID, name,
	).Scan(&promptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock prompt: %w", err)
	}

	var v models.PromptVersion
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions (prompt_id, version, body)
		 SELECT $1, COALESCE(MAX(version), 0) + 1, $2 FROM prompt_versions WHERE prompt_id = $1
		 RETURNING id, prompt_id, version, body, labels, created_at`,
		promptID, req.Body,
	).Scan(&v.ID, &v.PromptID, &v.Version, &v.Body, &v.Labels, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}
	v.ProjectID = projectID
	v.Name = name

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.afterWrite(ctx, projectID, name, models.EventVersionCreated, map[string]any{
		"name":    name,
		"version": v.Version,
	})

	return &v, nil
}

// SetLabel moves a label to the given version, atomically removing it from
// any other version of the same name. This transaction is what guarantees
// the at-most-one-holder invariant the resolution engine relies on.
func (s *Service) SetLabel(ctx context.Context, name, label string, version int) (*models.PromptVersion, error) {
	projectID := project.IDFromContext(ctx)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var promptID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM prompts WHERE project_id = $1 AND name = $2 FOR UPDATE`,
		projectID, name,
	).Scan(&promptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock prompt: %w", err)
	}

	var targetID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM prompt_versions WHERE prompt_id = $1 AND version = $2`,
		promptID, version,
	).Scan(&targetID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find version: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE prompt_versions SET labels = array_remove(labels, $2)
		 WHERE prompt_id = $1 AND $2 = ANY(labels)`,
		promptID, label,
	)
	if err != nil {
		return nil, fmt.Errorf("remove label: %w", err)
	}

	var v models.PromptVersion
	err = tx.QueryRow(ctx,
		`UPDATE prompt_versions SET labels = array_append(labels, $2)
		 WHERE id = $1
		 RETURNING id, prompt_id, version, body, labels, created_at`,
		targetID, label,
	).Scan(&v.ID, &v.PromptID, &v.Version, &v.Body, &v.Labels, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("apply label: %w", err)
	}
	v.ProjectID = projectID
	v.Name = name

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.afterWrite(ctx, projectID, name, models.EventLabelMoved, map[string]any{
		"name":    name,
		"label":   label,
		"version": version,
	})

	return &v, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Prompt, error) {
	projectID := project.IDFromContext(ctx)
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, name, description, created_at
		 FROM prompts WHERE project_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		projectID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (s *Service) Get(ctx context.Context, name string) (*models.Prompt, error) {
	projectID := project.IDFromContext(ctx)

	var p models.Prompt
	err := s.db.QueryRow(ctx,
		`SELECT id, project_id, name, description, created_at
		 FROM prompts WHERE project_id = $1 AND name = $2`,
		projectID, name,
	).Scan(&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return &p, nil
}

// afterWrite fans out the side effects of a successful mutation: webhook
// notifications and a cache-warm task so the next resolve hits warm entries.
// Both are best-effort.
func (s *Service) afterWrite(ctx context.Context, projectID uuid.UUID, name, event string, payload map[string]any) {
	if s.webhooks != nil {
		s.webhooks.Emit(ctx, projectID, event, payload)
	}
	if s.queue != nil {
		err := s.queue.EnqueueCacheWarm(queue.CacheWarmPayload{
			ProjectID: projectID.String(),
			Name:      name,
		})
		if err != nil {
			slog.Warn("cache warm enqueue failed", "name", name, "error", err)
		}
	}
}
