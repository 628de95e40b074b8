package drafts

import (
	"context"

	"github.com/avelats/polycat/internal/server/models"
)

// Repository persists editor-owned drafts. Delete is final: publish consumes
// the draft it projected.
type Repository interface {
	Create(ctx context.Context, d *models.Draft) error
	FindByID(ctx context.Context, id string) (*models.Draft, error)
	FindByTranslationSetID(ctx context.Context, setID string) ([]*models.Draft, error)
	Save(ctx context.Context, d *models.Draft) error
	Delete(ctx context.Context, id string) error
}
