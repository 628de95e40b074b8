// Package history provides SQL-backed persistence for the append-only
// transition ledger. Parameters bind ordinally so one implementation serves
// pgx and modernc/sqlite alike.
package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avelats/polycat/internal/dbx"
	"github.com/avelats/polycat/internal/server/models"
)

// SQLRepository implements ledger storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

const historyColumns = `id, translation_set_id, action, editor_id, submitter_id,
		published_id, draft_id, from_status, to_status, from_version, to_version,
		reason, subject_name, recorded_at`

// Save appends one record. Durability errors propagate to the caller; the
// ledger never retries internally.
func (r *SQLRepository) Save(ctx context.Context, rec *models.HistoryRecord) error {
	query := `
		INSERT INTO history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.TranslationSetID, string(rec.Action), rec.EditorID,
		dbx.NullString(rec.SubmitterID), dbx.NullString(rec.PublishedID), dbx.NullString(rec.DraftID),
		nullStatus(rec.FromStatus), nullStatus(rec.ToStatus),
		dbx.NullInt64(rec.FromVersion), dbx.NullInt64(rec.ToVersion),
		dbx.NullString(rec.Reason), rec.SubjectName, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByTranslationSetID returns every record for a set, oldest first.
func (r *SQLRepository) FindByTranslationSetID(ctx context.Context, setID string) ([]*models.HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM history
		WHERE translation_set_id = $1 ORDER BY recorded_at, id`
	return r.selectRecords(ctx, query, setID)
}

// FindByPublishedID returns every record referencing one published variant,
// oldest first.
func (r *SQLRepository) FindByPublishedID(ctx context.Context, publishedID string) ([]*models.HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM history
		WHERE published_id = $1 ORDER BY recorded_at, id`
	return r.selectRecords(ctx, query, publishedID)
}

func (r *SQLRepository) selectRecords(ctx context.Context, query string, args ...any) ([]*models.HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select history: %w", err)
	}
	defer rows.Close()

	var result []*models.HistoryRecord
	for rows.Next() {
		var (
			rec                    models.HistoryRecord
			action                 string
			submitterID            sql.NullString
			publishedID, draftID   sql.NullString
			fromStatus, toStatus   sql.NullString
			fromVersion, toVersion sql.NullInt64
			reason                 sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.TranslationSetID, &action, &rec.EditorID, &submitterID,
			&publishedID, &draftID, &fromStatus, &toStatus, &fromVersion, &toVersion,
			&reason, &rec.SubjectName, &rec.RecordedAt,
		); err != nil {
			return nil, err
		}
		rec.Action = models.ActionType(action)
		rec.SubmitterID = dbx.StringPtr(submitterID)
		rec.PublishedID = dbx.StringPtr(publishedID)
		rec.DraftID = dbx.StringPtr(draftID)
		rec.FromStatus = statusPtr(fromStatus)
		rec.ToStatus = statusPtr(toStatus)
		rec.FromVersion = dbx.Int64Ptr(fromVersion)
		rec.ToVersion = dbx.Int64Ptr(toVersion)
		rec.Reason = dbx.StringPtr(reason)
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullStatus(s *models.DraftStatus) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func statusPtr(ns sql.NullString) *models.DraftStatus {
	if !ns.Valid {
		return nil
	}
	v := models.DraftStatus(ns.String)
	return &v
}
