package variants

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

var variantRows = []string{
	"id", "translation_set_id", "language", "kind", "agency_id", "group_id", "talent_id",
	"name", "name_normalized", "summary", "cover_image", "release_date", "founding_date",
	"version", "published_at", "updated_at",
}

func TestVariantCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`INSERT INTO variants`).
		WithArgs("v1", "set1", "en", "group",
			nil, nil, nil,
			"Glass Garden", "glass garden", nil, nil, nil, nil,
			int64(1), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Variant{
		ID:               "v1",
		TranslationSetID: "set1",
		Language:         "en",
		Kind:             models.KindGroup,
		Content:          models.Content{Name: "Glass Garden", NameNormalized: "glass garden"},
		Version:          1,
		PublishedAt:      now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVariantFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM variants WHERE id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestVariantFindByID_ScansNullables(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(variantRows).AddRow(
		"v1", "set1", "ja", "talent", "a1", nil, nil,
		"硝子の庭", "硝子の庭", "summary", nil, now, nil,
		int64(3), now, now,
	)
	mock.ExpectQuery(`FROM variants WHERE id`).
		WithArgs("v1").
		WillReturnRows(rows)

	v, err := repo.FindByID(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != models.KindTalent || v.Version != 3 {
		t.Fatalf("scanned variant: %+v", v)
	}
	if v.Scope.AgencyID == nil || *v.Scope.AgencyID != "a1" || v.Scope.GroupID != nil {
		t.Fatalf("scope: %+v", v.Scope)
	}
	if v.Content.Summary == nil || *v.Content.Summary != "summary" || v.Content.CoverImage != nil {
		t.Fatalf("content: %+v", v.Content)
	}
	if v.Content.ReleaseDate == nil || v.Content.FoundingDate != nil {
		t.Fatalf("dates: %+v", v.Content)
	}
}

func TestVariantFindByTranslationSetID_Multiple(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(variantRows).
		AddRow("v1", "set1", "en", "group", nil, nil, nil, "A", "a", nil, nil, nil, nil, int64(2), now, now).
		AddRow("v2", "set1", "ja", "group", nil, nil, nil, "B", "b", nil, nil, nil, nil, int64(2), now, now)
	mock.ExpectQuery(`FROM variants WHERE translation_set_id .* ORDER BY id`).
		WithArgs("set1").
		WillReturnRows(rows)

	vs, err := repo.FindByTranslationSetID(context.Background(), "set1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vs) != 2 || vs[0].ID != "v1" || vs[1].ID != "v2" {
		t.Fatalf("variants: %+v", vs)
	}
}

func TestVariantSave_RowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	v := &models.Variant{
		ID:      "v1",
		Content: models.Content{Name: "A", NameNormalized: "a"},
		Version: 4, UpdatedAt: now,
	}

	mock.ExpectExec(`UPDATE variants SET`).
		WithArgs("A", "a", nil, nil, nil, nil, int64(4), now, "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Save(context.Background(), v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(`UPDATE variants SET`).
		WithArgs("A", "a", nil, nil, nil, nil, int64(4), now, "v1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Save(context.Background(), v); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound on zero rows, got %v", err)
	}

	mock.ExpectExec(`UPDATE variants SET`).
		WithArgs("A", "a", nil, nil, nil, nil, int64(4), now, "v1").
		WillReturnError(errors.New("boom"))
	if err := repo.Save(context.Background(), v); err == nil {
		t.Fatal("want db error")
	}
}
