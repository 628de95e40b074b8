package history

import (
	"context"

	"github.com/avelats/polycat/internal/server/models"
)

// Repository is the append-only transition ledger. Save never updates; there
// is deliberately no delete. The read paths back audit views and the
// approved-but-not-translated publish guard.
type Repository interface {
	Save(ctx context.Context, rec *models.HistoryRecord) error
	FindByTranslationSetID(ctx context.Context, setID string) ([]*models.HistoryRecord, error)
	FindByPublishedID(ctx context.Context, publishedID string) ([]*models.HistoryRecord, error)
}
