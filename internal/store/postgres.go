package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/promptvault/promptvault/internal/models"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const versionColumns = `v.id, v.prompt_id, p.project_id, p.name, v.version, v.body, v.labels, v.created_at`

func (s *PostgresStore) FetchVersions(ctx context.Context, projectID uuid.UUID, name string) ([]models.PromptVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+versionColumns+`
		 FROM prompt_versions v
		 JOIN prompts p ON p.id = v.prompt_id
		 WHERE p.project_id = $1 AND p.name = $2
		 ORDER BY v.version DESC, v.created_at DESC`,
		projectID, name,
	)
	if err != nil {
		return nil, &UnavailableError{Op: "fetch versions", Err: err}
	}
	defer rows.Close()

	versions, err := scanVersions(rows)
	if err != nil {
		return nil, &UnavailableError{Op: "fetch versions", Err: err}
	}
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return versions, nil
}

func (s *PostgresStore) FetchByVersion(ctx context.Context, projectID uuid.UUID, name string, version int) (*models.PromptVersion, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+versionColumns+`
		 FROM prompt_versions v
		 JOIN prompts p ON p.id = v.prompt_id
		 WHERE p.project_id = $1 AND p.name = $2 AND v.version = $3`,
		projectID, name, version,
	)

	var v models.PromptVersion
	err := row.Scan(&v.ID, &v.PromptID, &v.ProjectID, &v.Name, &v.Version, &v.Body, &v.Labels, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &UnavailableError{Op: "fetch by version", Err: err}
	}
	return &v, nil
}

func (s *PostgresStore) FetchByLabel(ctx context.Context, projectID uuid.UUID, name string, label string) (*models.PromptVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+versionColumns+`
		 FROM prompt_versions v
		 JOIN prompts p ON p.id = v.prompt_id
		 WHERE p.project_id = $1 AND p.name = $2 AND $3 = ANY(v.labels)
		 ORDER BY v.version DESC, v.created_at DESC`,
		projectID, name, label,
	)
	if err != nil {
		return nil, &UnavailableError{Op: "fetch by label", Err: err}
	}
	defer rows.Close()

	versions, err := scanVersions(rows)
	if err != nil {
		return nil, &UnavailableError{Op: "fetch by label", Err: err}
	}
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	if len(versions) > 1 {
		// Label uniqueness is a write-path invariant; more than one holder
		// means we caught a label move mid-flight. Take the highest version.
		slog.Warn("ambiguous label, picking highest version",
			"project_id", projectID, "name", name, "label", label,
			"holders", len(versions), "picked", versions[0].Version)
	}
	return &versions[0], nil
}

func scanVersions(rows pgx.Rows) ([]models.PromptVersion, error) {
	var versions []models.PromptVersion
	for rows.Next() {
		var v models.PromptVersion
		if err := rows.Scan(&v.ID, &v.PromptID, &v.ProjectID, &v.Name, &v.Version, &v.Body, &v.Labels, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
