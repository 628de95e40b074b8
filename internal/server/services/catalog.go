package services

import (
	"context"
	"database/sql"

	"github.com/avelats/polycat/internal/server/models"
	"github.com/avelats/polycat/internal/server/repositories/repomanager"
)

// CatalogService serves the published read model and the audit views backed
// by the ledger and snapshot store.
type CatalogService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(db *sql.DB, repos repomanager.RepositoryManager) *CatalogService {
	return &CatalogService{db: db, repos: repos}
}

// GetVariant loads one published variant.
func (s *CatalogService) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	return s.repos.Variants(s.db).FindByID(ctx, id)
}

// ListVariants returns every published variant of a translation set.
func (s *CatalogService) ListVariants(ctx context.Context, setID string) ([]*models.Variant, error) {
	return s.repos.Variants(s.db).FindByTranslationSetID(ctx, setID)
}

// SetHistory returns the transition ledger for a translation set, oldest
// record first.
func (s *CatalogService) SetHistory(ctx context.Context, setID string) ([]*models.HistoryRecord, error) {
	return s.repos.History(s.db).FindByTranslationSetID(ctx, setID)
}

// VariantHistory returns the ledger entries referencing one published
// variant.
func (s *CatalogService) VariantHistory(ctx context.Context, publishedID string) ([]*models.HistoryRecord, error) {
	return s.repos.History(s.db).FindByPublishedID(ctx, publishedID)
}

// VariantSnapshots returns every captured state of one published variant,
// oldest version first.
func (s *CatalogService) VariantSnapshots(ctx context.Context, entityID string) ([]*models.Snapshot, error) {
	return s.repos.Snapshots(s.db).FindByEntityID(ctx, entityID)
}
