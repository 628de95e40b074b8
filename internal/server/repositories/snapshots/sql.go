// Package snapshots provides SQL-backed persistence for immutable variant
// snapshots. Parameters bind ordinally so one implementation serves pgx and
// modernc/sqlite alike.
package snapshots

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avelats/polycat/internal/dbx"
	"github.com/avelats/polycat/internal/server/models"
)

// SQLRepository implements snapshot storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

const snapshotColumns = `id, entity_id, translation_set_id, language,
		name, name_normalized, summary, cover_image, release_date, founding_date,
		version, captured_at`

// Save appends one snapshot. The unique (entity_id, version) constraint makes
// accidental double capture a hard error rather than silent duplication.
func (r *SQLRepository) Save(ctx context.Context, s *models.Snapshot) error {
	query := `
		INSERT INTO snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.EntityID, s.TranslationSetID, s.Language,
		s.Content.Name, s.Content.NameNormalized,
		dbx.NullString(s.Content.Summary), dbx.NullString(s.Content.CoverImage),
		dbx.NullTime(s.Content.ReleaseDate), dbx.NullTime(s.Content.FoundingDate),
		s.Version, s.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByTranslationSetIDAndVersion bulk-loads the snapshots every variant of
// a set holds at one version. Variants absent from the result never held that
// version.
func (r *SQLRepository) FindByTranslationSetIDAndVersion(ctx context.Context, setID string, version int64) ([]*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots
		WHERE translation_set_id = $1 AND version = $2 ORDER BY entity_id`
	return r.selectSnapshots(ctx, query, setID, version)
}

// FindByEntityID returns the full snapshot history of one variant, oldest
// version first.
func (r *SQLRepository) FindByEntityID(ctx context.Context, entityID string) ([]*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots
		WHERE entity_id = $1 ORDER BY version`
	return r.selectSnapshots(ctx, query, entityID)
}

func (r *SQLRepository) selectSnapshots(ctx context.Context, query string, args ...any) ([]*models.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select snapshots: %w", err)
	}
	defer rows.Close()

	var result []*models.Snapshot
	for rows.Next() {
		var (
			s                         models.Snapshot
			summary, coverImage       sql.NullString
			releaseDate, foundingDate sql.NullTime
		)
		if err := rows.Scan(
			&s.ID, &s.EntityID, &s.TranslationSetID, &s.Language,
			&s.Content.Name, &s.Content.NameNormalized, &summary, &coverImage,
			&releaseDate, &foundingDate,
			&s.Version, &s.CapturedAt,
		); err != nil {
			return nil, err
		}
		s.Content.Summary = dbx.StringPtr(summary)
		s.Content.CoverImage = dbx.StringPtr(coverImage)
		s.Content.ReleaseDate = dbx.TimePtr(releaseDate)
		s.Content.FoundingDate = dbx.TimePtr(foundingDate)
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
