package variants

import (
	"context"

	"github.com/avelats/polycat/internal/server/models"
)

// Repository persists published variants. Save and Create are the only write
// paths; both are reached exclusively through publish and rollback.
type Repository interface {
	Create(ctx context.Context, v *models.Variant) error
	FindByID(ctx context.Context, id string) (*models.Variant, error)
	FindByTranslationSetID(ctx context.Context, setID string) ([]*models.Variant, error)
	Save(ctx context.Context, v *models.Variant) error
}
