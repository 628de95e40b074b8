package snapshots

import (
	"context"

	"github.com/avelats/polycat/internal/server/models"
)

// Repository persists immutable snapshots. There is no update or delete: a
// snapshot row, once written, never changes.
//
// FindByTranslationSetIDAndVersion returns only the variants that actually
// held the requested version; callers must treat an absent variant as
// "snapshot not found", never as "nothing to do".
type Repository interface {
	Save(ctx context.Context, s *models.Snapshot) error
	FindByTranslationSetIDAndVersion(ctx context.Context, setID string, version int64) ([]*models.Snapshot, error)
	FindByEntityID(ctx context.Context, entityID string) ([]*models.Snapshot, error)
}
