package store

import (
	"context"
	"errors"
	"time"

	"github.com/promptfill/promptfill/internal/core/template"
)

// Sentinel errors returned (wrapped) by every TemplateStore engine.
var (
	ErrNotFound      = errors.New("template not found")
	ErrAlreadyExists = errors.New("template already exists")
	ErrConflict      = errors.New("template was modified concurrently")
	ErrInvalidInput  = errors.New("invalid template input")
)

const (
	// DefaultSearchLimit applies when Search is called with limit <= 0.
	DefaultSearchLimit = 25
	// MaxSearchLimit caps Search and Versions results.
	MaxSearchLimit = 50

	maxNameLength = 128
)

// Template is the current state of a stored template.
type Template struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Description      string              `json:"description,omitempty"`
	Body             string              `json:"template"`
	Variables        []template.Variable `json:"variables"`
	CurrentVersionID string              `json:"current_version_id"`
	Version          int                 `json:"version"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Version is an immutable snapshot of a template body and its variables.
type Version struct {
	ID          string              `json:"id"`
	TemplateID  string              `json:"template_id"`
	Number      int                 `json:"version_number"`
	Description string              `json:"description,omitempty"`
	Body        string              `json:"template"`
	Variables   []template.Variable `json:"variables"`
	CreatedAt   time.Time           `json:"created_at"`
}

// SaveInput creates a new template.
type SaveInput struct {
	Name        string
	Body        string
	Description string
	Variables   []template.Variable
}

// UpdateInput changes an existing template. Nil fields are kept; at least
// one field must be set.
type UpdateInput struct {
	Body        *string
	Description *string
	Variables   []template.Variable
}

func (in UpdateInput) empty() bool {
	return in.Body == nil && in.Description == nil && in.Variables == nil
}

// TemplateStore persists versioned templates. Every call runs as one
// transaction; errors wrap the sentinels above or
// template.ErrInvalidPlaceholder.
type TemplateStore interface {
	Save(ctx context.Context, in SaveInput) (*Template, error)
	Update(ctx context.Context, name string, in UpdateInput) (*Template, error)
	Get(ctx context.Context, name string) (*Template, error)
	List(ctx context.Context) ([]Template, error)
	Search(ctx context.Context, query string, limit int) ([]Template, error)
	Delete(ctx context.Context, name string) error
	Versions(ctx context.Context, name string, limit int) ([]Version, error)
	Version(ctx context.Context, name string, number int) (*Version, error)
	Restore(ctx context.Context, name string, number int) (*Template, error)
	Ping(ctx context.Context) error
	Driver() string
	Close() error
}
