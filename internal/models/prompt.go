package models

import (
	"time"

	"github.com/google/uuid"
)

// LabelProduction is the reserved label marking the currently live version
// of a prompt. At most one version per prompt name holds it at any time;
// the write path enforces that invariant.
const LabelProduction = "production"

type Prompt struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProjectID   uuid.UUID `json:"project_id" db:"project_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PromptVersion is one immutable revision of a prompt's body. The body is
// opaque text that may embed references to other prompts; the label set is
// the only mutable part of a version.
type PromptVersion struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PromptID  uuid.UUID `json:"prompt_id" db:"prompt_id"`
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	Name      string    `json:"name" db:"name"`
	Version   int       `json:"version" db:"version"`
	Body      string    `json:"body" db:"body"`
	Labels    []string  `json:"labels" db:"labels"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (v PromptVersion) HasLabel(label string) bool {
	for _, l := range v.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// IsActive reports whether this version currently holds the production label.
func (v PromptVersion) IsActive() bool {
	return v.HasLabel(LabelProduction)
}
