// Package variants provides SQL-backed persistence for published variants.
// The queries bind parameters ordinally (each $N appears once, in order) so
// the same implementation runs on both pgx and modernc/sqlite.
package variants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/dbx"
	"github.com/avelats/polycat/internal/server/models"
)

// SQLRepository implements variant storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

const variantColumns = `id, translation_set_id, language, kind, agency_id, group_id, talent_id,
		name, name_normalized, summary, cover_image, release_date, founding_date,
		version, published_at, updated_at`

// Create inserts a brand-new published variant (first publish, version 1).
func (r *SQLRepository) Create(ctx context.Context, v *models.Variant) error {
	query := `
		INSERT INTO variants (` + variantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.TranslationSetID, v.Language, string(v.Kind),
		dbx.NullString(v.Scope.AgencyID), dbx.NullString(v.Scope.GroupID), dbx.NullString(v.Scope.TalentID),
		v.Content.Name, v.Content.NameNormalized,
		dbx.NullString(v.Content.Summary), dbx.NullString(v.Content.CoverImage),
		dbx.NullTime(v.Content.ReleaseDate), dbx.NullTime(v.Content.FoundingDate),
		v.Version, v.PublishedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByID loads one variant; common.ErrNotFound when no row exists.
func (r *SQLRepository) FindByID(ctx context.Context, id string) (*models.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select variant: %w", err)
	}
	return v, nil
}

// FindByTranslationSetID returns every published variant of a translation
// set, ordered by id for deterministic iteration.
func (r *SQLRepository) FindByTranslationSetID(ctx context.Context, setID string) ([]*models.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE translation_set_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to select variants: %w", err)
	}
	defer rows.Close()

	var result []*models.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save overwrites an existing variant row. Zero rows affected means the
// variant vanished underneath us and maps to common.ErrNotFound.
func (r *SQLRepository) Save(ctx context.Context, v *models.Variant) error {
	query := `
		UPDATE variants SET
			name = $1, name_normalized = $2, summary = $3, cover_image = $4,
			release_date = $5, founding_date = $6, version = $7, updated_at = $8
		WHERE id = $9
	`
	res, err := r.db.ExecContext(ctx, query,
		v.Content.Name, v.Content.NameNormalized,
		dbx.NullString(v.Content.Summary), dbx.NullString(v.Content.CoverImage),
		dbx.NullTime(v.Content.ReleaseDate), dbx.NullTime(v.Content.FoundingDate),
		v.Version, v.UpdatedAt, v.ID,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariant(row rowScanner) (*models.Variant, error) {
	var (
		v                           models.Variant
		kind                        string
		agencyID, groupID, talentID sql.NullString
		summary, coverImage         sql.NullString
		releaseDate, foundingDate   sql.NullTime
	)
	if err := row.Scan(
		&v.ID, &v.TranslationSetID, &v.Language, &kind,
		&agencyID, &groupID, &talentID,
		&v.Content.Name, &v.Content.NameNormalized, &summary, &coverImage,
		&releaseDate, &foundingDate,
		&v.Version, &v.PublishedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	v.Kind = models.Kind(kind)
	v.Scope.AgencyID = dbx.StringPtr(agencyID)
	v.Scope.GroupID = dbx.StringPtr(groupID)
	v.Scope.TalentID = dbx.StringPtr(talentID)
	v.Content.Summary = dbx.StringPtr(summary)
	v.Content.CoverImage = dbx.StringPtr(coverImage)
	v.Content.ReleaseDate = dbx.TimePtr(releaseDate)
	v.Content.FoundingDate = dbx.TimePtr(foundingDate)
	return &v, nil
}
