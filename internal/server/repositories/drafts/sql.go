// Package drafts provides SQL-backed persistence for workflow drafts.
// Parameters bind ordinally so one implementation serves pgx and
// modernc/sqlite alike.
package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/dbx"
	"github.com/avelats/polycat/internal/server/models"
)

// SQLRepository implements draft storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

const draftColumns = `id, published_id, translation_set_id, language, kind,
		agency_id, group_id, talent_id,
		name, name_normalized, summary, cover_image, release_date, founding_date,
		status, submitter_id, merger_id, merged_at, created_at, updated_at`

// Create inserts a new draft. The partial unique index on
// (translation_set_id, language) for non-rejected drafts backs the
// one-active-draft-per-language invariant at the storage level too.
func (r *SQLRepository) Create(ctx context.Context, d *models.Draft) error {
	query := `
		INSERT INTO drafts (` + draftColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, dbx.NullString(d.PublishedID), d.TranslationSetID, d.Language, string(d.Kind),
		dbx.NullString(d.Scope.AgencyID), dbx.NullString(d.Scope.GroupID), dbx.NullString(d.Scope.TalentID),
		d.Content.Name, d.Content.NameNormalized,
		dbx.NullString(d.Content.Summary), dbx.NullString(d.Content.CoverImage),
		dbx.NullTime(d.Content.ReleaseDate), dbx.NullTime(d.Content.FoundingDate),
		string(d.Status), d.SubmitterID, dbx.NullString(d.MergerID), dbx.NullTime(d.MergedAt),
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByID loads one draft; common.ErrNotFound when no row exists.
func (r *SQLRepository) FindByID(ctx context.Context, id string) (*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select draft: %w", err)
	}
	return d, nil
}

// FindByTranslationSetID returns every draft in a translation set, any
// status, ordered by id.
func (r *SQLRepository) FindByTranslationSetID(ctx context.Context, setID string) ([]*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE translation_set_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to select drafts: %w", err)
	}
	defer rows.Close()

	var result []*models.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save overwrites an existing draft row.
func (r *SQLRepository) Save(ctx context.Context, d *models.Draft) error {
	query := `
		UPDATE drafts SET
			name = $1, name_normalized = $2, summary = $3, cover_image = $4,
			release_date = $5, founding_date = $6,
			status = $7, merger_id = $8, merged_at = $9, updated_at = $10
		WHERE id = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		d.Content.Name, d.Content.NameNormalized,
		dbx.NullString(d.Content.Summary), dbx.NullString(d.Content.CoverImage),
		dbx.NullTime(d.Content.ReleaseDate), dbx.NullTime(d.Content.FoundingDate),
		string(d.Status), dbx.NullString(d.MergerID), dbx.NullTime(d.MergedAt), d.UpdatedAt,
		d.ID,
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

// Delete removes a draft (publish consuming it, or explicit discard).
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*models.Draft, error) {
	var (
		d                           models.Draft
		kind, status                string
		publishedID                 sql.NullString
		agencyID, groupID, talentID sql.NullString
		summary, coverImage         sql.NullString
		mergerID                    sql.NullString
		releaseDate, foundingDate   sql.NullTime
		mergedAt                    sql.NullTime
	)
	if err := row.Scan(
		&d.ID, &publishedID, &d.TranslationSetID, &d.Language, &kind,
		&agencyID, &groupID, &talentID,
		&d.Content.Name, &d.Content.NameNormalized, &summary, &coverImage,
		&releaseDate, &foundingDate,
		&status, &d.SubmitterID, &mergerID, &mergedAt,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Kind = models.Kind(kind)
	d.Status = models.DraftStatus(status)
	d.PublishedID = dbx.StringPtr(publishedID)
	d.Scope.AgencyID = dbx.StringPtr(agencyID)
	d.Scope.GroupID = dbx.StringPtr(groupID)
	d.Scope.TalentID = dbx.StringPtr(talentID)
	d.Content.Summary = dbx.StringPtr(summary)
	d.Content.CoverImage = dbx.StringPtr(coverImage)
	d.Content.ReleaseDate = dbx.TimePtr(releaseDate)
	d.Content.FoundingDate = dbx.TimePtr(foundingDate)
	d.MergerID = dbx.StringPtr(mergerID)
	d.MergedAt = dbx.TimePtr(mergedAt)
	return &d, nil
}
