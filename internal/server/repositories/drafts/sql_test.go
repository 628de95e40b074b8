package drafts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLRepository(db), mock, db
}

var draftRows = []string{
	"id", "published_id", "translation_set_id", "language", "kind",
	"agency_id", "group_id", "talent_id",
	"name", "name_normalized", "summary", "cover_image", "release_date", "founding_date",
	"status", "submitter_id", "merger_id", "merged_at", "created_at", "updated_at",
}

func TestDraftCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`INSERT INTO drafts`).
		WithArgs("d1", nil, "set1", "en", "work",
			nil, nil, nil,
			"Name", "name", nil, nil, nil, nil,
			"pending", "u1", nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Draft{
		ID:               "d1",
		TranslationSetID: "set1",
		Language:         "en",
		Kind:             models.KindWork,
		Content:          models.Content{Name: "Name", NameNormalized: "name"},
		Status:           models.StatusPending,
		SubmitterID:      "u1",
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDraftFindByID_ScanRoundTrip(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(draftRows).AddRow(
		"d1", "pub1", "set1", "ja", "talent",
		nil, "g1", nil,
		"Name", "name", "sum", nil, nil, now,
		"under_review", "u1", "u2", now, now, now,
	)
	mock.ExpectQuery(`FROM drafts WHERE id`).
		WithArgs("d1").
		WillReturnRows(rows)

	d, err := repo.FindByID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != models.StatusUnderReview || d.Kind != models.KindTalent {
		t.Fatalf("draft: %+v", d)
	}
	if d.PublishedID == nil || *d.PublishedID != "pub1" {
		t.Fatalf("published id: %v", d.PublishedID)
	}
	if d.Scope.GroupID == nil || *d.Scope.GroupID != "g1" || d.Scope.AgencyID != nil {
		t.Fatalf("scope: %+v", d.Scope)
	}
	if d.MergerID == nil || *d.MergerID != "u2" || d.MergedAt == nil {
		t.Fatalf("merge attribution: %+v", d)
	}
	if d.Content.FoundingDate == nil || d.Content.ReleaseDate != nil {
		t.Fatalf("dates: %+v", d.Content)
	}
}

func TestDraftFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM drafts WHERE id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDraftSave_ZeroRowsMapsToNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`UPDATE drafts SET`).
		WithArgs("Name", "name", nil, nil, nil, nil, "approved", nil, nil, now, "d1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), &models.Draft{
		ID:        "d1",
		Content:   models.Content{Name: "Name", NameNormalized: "name"},
		Status:    models.StatusApproved,
		UpdatedAt: now,
	})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDraftDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM drafts WHERE id`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(`DELETE FROM drafts WHERE id`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), "gone"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
