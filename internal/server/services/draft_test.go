package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/logging"
	"github.com/avelats/polycat/internal/server/idgen"
	"github.com/avelats/polycat/internal/server/models"
	"github.com/avelats/polycat/internal/server/normalize"
	"github.com/avelats/polycat/internal/server/policy"
	"github.com/avelats/polycat/internal/server/repositories/repomanager"

	_ "modernc.org/sqlite"
)

// -------- test harness --------

var (
	editor   = models.Principal{ID: "user-editor", Roles: []string{policy.RoleEditor}}
	reviewer = models.Principal{ID: "user-reviewer", Roles: []string{policy.RoleReviewer}}
	admin    = models.Principal{ID: "user-admin", Roles: []string{policy.RoleAdmin}}
	nobody   = models.Principal{ID: "user-nobody"}
)

type testEnv struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	drafts   *DraftService
	rollback *RollbackService
	catalog  *CatalogService
}

// newTestEnv opens a private in-memory sqlite database, migrates it, and
// wires the services exactly as the application does.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repos := repomanager.NewSQLiteRepositoryManager()
	if err := repos.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	gate := policy.NewRoleGate()
	ids := idgen.NewUUIDGenerator()

	return &testEnv{
		db:       db,
		repos:    repos,
		drafts:   NewDraftService(db, repos, gate, normalize.NewTextNormalizer(), ids, logger),
		rollback: NewRollbackService(db, repos, gate, ids, logger),
		catalog:  NewCatalogService(db, repos),
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t *testing.T, rfc3339 string) *time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", rfc3339, err)
	}
	return &v
}

func newDraftInput(setID, lang, name string) NewDraft {
	return NewDraft{
		TranslationSetID: setID,
		Language:         lang,
		Kind:             models.KindGroup,
		Content:          models.Content{Name: name},
		SubmitterID:      editor.ID,
	}
}

// createApproved drives a fresh draft through submit and approve.
func createApproved(t *testing.T, env *testEnv, nd NewDraft) *models.Draft {
	t.Helper()
	ctx := context.Background()

	d, err := env.drafts.Create(ctx, editor, nd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.drafts.Submit(ctx, d.ID, editor); err != nil {
		t.Fatalf("submit: %v", err)
	}
	d, err = env.drafts.Approve(ctx, d.ID, reviewer)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return d
}

// publishNew creates, approves and publishes a brand-new variant.
func publishNew(t *testing.T, env *testEnv, nd NewDraft) *models.Variant {
	t.Helper()
	d := createApproved(t, env, nd)
	v, err := env.drafts.Publish(context.Background(), d.ID, reviewer)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return v
}

// publishUpdate creates a draft against an existing variant and publishes it.
func publishUpdate(t *testing.T, env *testEnv, v *models.Variant, content models.Content) *models.Variant {
	t.Helper()
	nd := NewDraft{
		TranslationSetID: v.TranslationSetID,
		PublishedID:      &v.ID,
		Language:         v.Language,
		Kind:             v.Kind,
		Content:          content,
		SubmitterID:      editor.ID,
	}
	d := createApproved(t, env, nd)
	out, err := env.drafts.Publish(context.Background(), d.ID, reviewer)
	if err != nil {
		t.Fatalf("publish update: %v", err)
	}
	return out
}

func historyActions(t *testing.T, env *testEnv, setID string) []models.ActionType {
	t.Helper()
	recs, err := env.catalog.SetHistory(context.Background(), setID)
	if err != nil {
		t.Fatalf("set history: %v", err)
	}
	out := make([]models.ActionType, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Action)
	}
	return out
}

// -------- creation --------

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		nd   NewDraft
	}{
		{"unknown kind", NewDraft{Language: "en", Kind: "album", Content: models.Content{Name: "x"}}},
		{"missing language", NewDraft{Kind: models.KindWork, Content: models.Content{Name: "x"}}},
		{"missing name", NewDraft{Language: "en", Kind: models.KindWork}},
	}
	for _, tc := range cases {
		if _, err := env.drafts.Create(ctx, editor, tc.nd); !errors.Is(err, common.ErrValidation) {
			t.Errorf("%s: want ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestCreate_AssignsSetAndNormalizedName(t *testing.T) {
	env := newTestEnv(t)

	d, err := env.drafts.Create(context.Background(), editor, newDraftInput("", "en", "  The  GLASS  Garden "))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.TranslationSetID == "" {
		t.Fatal("expected a generated translation set id")
	}
	if d.Status != models.StatusPending {
		t.Fatalf("new draft status = %s, want pending", d.Status)
	}
	if d.Content.NameNormalized != "the glass garden" {
		t.Fatalf("normalized name = %q", d.Content.NameNormalized)
	}
	if got := historyActions(t, env, d.TranslationSetID); len(got) != 1 || got[0] != models.ActionCreate {
		t.Fatalf("ledger after create = %v", got)
	}
}

func TestCreate_OneActiveDraftPerLanguage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.drafts.Create(ctx, editor, newDraftInput("", "ja", "硝子の庭"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.drafts.Create(ctx, editor, newDraftInput(d.TranslationSetID, "ja", "second")); !errors.Is(err, common.ErrDraftExists) {
		t.Fatalf("want ErrDraftExists, got %v", err)
	}

	// A different language in the same set is fine.
	if _, err := env.drafts.Create(ctx, editor, newDraftInput(d.TranslationSetID, "en", "Glass Garden")); err != nil {
		t.Fatalf("second language rejected: %v", err)
	}

	// A rejected draft no longer blocks its language.
	if _, err := env.drafts.Submit(ctx, d.ID, editor); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.drafts.Reject(ctx, d.ID, reviewer, "duplicate entry"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := env.drafts.Create(ctx, editor, newDraftInput(d.TranslationSetID, "ja", "硝子の庭")); err != nil {
		t.Fatalf("create after reject: %v", err)
	}
}

// -------- merge --------

func TestMerge_AppliesTaggedEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.drafts.Create(ctx, editor, NewDraft{
		Language: "en",
		Kind:     models.KindWork,
		Content:  models.Content{Name: "Old Name", Summary: strPtr("old summary"), CoverImage: strPtr("cover.png")},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	d, err = env.drafts.Merge(ctx, d.ID, models.ContentEdits{
		Name:    models.SetTo("New NAME"),
		Summary: models.SetTo[*string](nil),
	}, editor)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if d.Content.Name != "New NAME" {
		t.Fatalf("name = %q", d.Content.Name)
	}
	if d.Content.NameNormalized != "new name" {
		t.Fatalf("normalized = %q, want recomputed on merge", d.Content.NameNormalized)
	}
	if d.Content.Summary != nil {
		t.Fatalf("summary = %v, want cleared by explicit nil", *d.Content.Summary)
	}
	if d.Content.CoverImage == nil || *d.Content.CoverImage != "cover.png" {
		t.Fatal("untouched field changed")
	}
	if d.MergerID == nil || *d.MergerID != editor.ID || d.MergedAt == nil {
		t.Fatalf("merger not recorded: %+v", d)
	}
	if d.Status != models.StatusPending {
		t.Fatalf("merge changed status to %s", d.Status)
	}

	reloaded, err := env.drafts.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Content.Name != "New NAME" || reloaded.Content.Summary != nil {
		t.Fatalf("merge not persisted: %+v", reloaded.Content)
	}
}

func TestMerge_RequiresPrivilege(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.drafts.Create(ctx, editor, newDraftInput("", "en", "Subject"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = env.drafts.Merge(ctx, d.ID, models.ContentEdits{Name: models.SetTo("x")}, nobody)
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestMerge_RefusedOnceApprovedOrRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	approved := createApproved(t, env, newDraftInput("", "en", "Approved Subject"))
	if _, err := env.drafts.Merge(ctx, approved.ID, models.ContentEdits{Name: models.SetTo("x")}, editor); !errors.Is(err, common.ErrInvalidStatus) {
		t.Fatalf("merge on approved: want ErrInvalidStatus, got %v", err)
	}

	d, err := env.drafts.Create(ctx, editor, newDraftInput("", "ja", "Rejected Subject"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.drafts.Submit(ctx, d.ID, editor); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.drafts.Reject(ctx, d.ID, reviewer, "not notable"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := env.drafts.Merge(ctx, d.ID, models.ContentEdits{Name: models.SetTo("x")}, editor); !errors.Is(err, common.ErrInvalidStatus) {
		t.Fatalf("merge on rejected: want ErrInvalidStatus, got %v", err)
	}
}

// -------- review transitions --------

func TestTransitions_HappyPathAndOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.drafts.Create(ctx, editor, newDraftInput("", "en", "Subject"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Approve straight from pending is out of order.
	if _, err := env.drafts.Approve(ctx, d.ID, reviewer); !errors.Is(err, common.ErrInvalidStatus) {
		t.Fatalf("approve pending: want ErrInvalidStatus, got %v", err)
	}

	d, err = env.drafts.Submit(ctx, d.ID, editor)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if d.Status != models.StatusUnderReview {
		t.Fatalf("status after submit = %s", d.Status)
	}

	// Submit is not repeatable.
	if _, err := env.drafts.Submit(ctx, d.ID, editor); !errors.Is(err, common.ErrInvalidStatus) {
		t.Fatalf("double submit: want ErrInvalidStatus, got %v", err)
	}

	d, err = env.drafts.Approve(ctx, d.ID, reviewer)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if d.Status != models.StatusApproved {
		t.Fatalf("status after approve = %s", d.Status)
	}

	// Approved is not reviewable again in either direction.
	if _, err := env.drafts.Reject(ctx, d.ID, reviewer, "late"); !errors.Is(err, common.ErrInvalidStatus) {
		t.Fatalf("reject approved: want ErrInvalidStatus, got %v", err)
	}

	want := []models.ActionType{models.ActionCreate, models.ActionSubmit, models.ActionApprove}
	got := historyActions(t, env, d.TranslationSetID)
	if len(got) != len(want) {
		t.Fatalf("ledger = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ledger = %v, want %v", got, want)
		}
	}
}

func TestReviewTransitions_RequirePrivilege(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.drafts.Create(ctx, editor, newDraftInput("", "en", "Subject"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.drafts.Submit(ctx, d.ID, editor); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := env.drafts.Approve(ctx, d.ID, editor); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("editor approve: want ErrUnauthorized, got %v", err)
	}
	if _, err := env.drafts.Reject(ctx, d.ID, editor, "nope"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("editor reject: want ErrUnauthorized, got %v", err)
	}
}

func TestReject_RecordsReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.drafts.Create(ctx, editor, newDraftInput("", "en", "Subject"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.drafts.Submit(ctx, d.ID, editor); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.drafts.Reject(ctx, d.ID, reviewer, "sources missing"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	recs, err := env.catalog.SetHistory(ctx, d.TranslationSetID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	last := recs[len(recs)-1]
	if last.Action != models.ActionReject {
		t.Fatalf("last action = %s", last.Action)
	}
	if last.Reason == nil || *last.Reason != "sources missing" {
		t.Fatalf("reason = %v", last.Reason)
	}
	if last.FromStatus == nil || *last.FromStatus != models.StatusUnderReview ||
		last.ToStatus == nil || *last.ToStatus != models.StatusRejected {
		t.Fatalf("status transition not recorded: %+v", last)
	}
}

// -------- publish --------

func TestPublish_NewVariantStartsAtVersionOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	nd := newDraftInput("", "en", "Glass Garden")
	nd.Content.Summary = strPtr("a quiet debut")
	d := createApproved(t, env, nd)

	v, err := env.drafts.Publish(ctx, d.ID, reviewer)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if v.Version != 1 {
		t.Fatalf("first publish version = %d, want 1", v.Version)
	}
	if v.TranslationSetID != d.TranslationSetID || v.Language != "en" {
		t.Fatalf("variant identity wrong: %+v", v)
	}
	if v.Content.Name != "Glass Garden" || v.Content.Summary == nil || *v.Content.Summary != "a quiet debut" {
		t.Fatalf("variant content wrong: %+v", v.Content)
	}

	// The draft is consumed.
	if _, err := env.drafts.Get(ctx, d.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("draft after publish: want ErrNotFound, got %v", err)
	}

	// One snapshot at version 1.
	snaps, err := env.catalog.VariantSnapshots(ctx, v.ID)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Version != 1 || snaps[0].Content.Name != "Glass Garden" {
		t.Fatalf("snapshots after first publish: %+v", snaps)
	}

	// Ledger records the publish with its version movement.
	recs, err := env.catalog.VariantHistory(ctx, v.ID)
	if err != nil {
		t.Fatalf("variant history: %v", err)
	}
	if len(recs) != 1 || recs[0].Action != models.ActionPublish {
		t.Fatalf("variant history = %+v", recs)
	}
	if recs[0].FromVersion != nil || recs[0].ToVersion == nil || *recs[0].ToVersion != 1 {
		t.Fatalf("publish versions = %v -> %v", recs[0].FromVersion, recs[0].ToVersion)
	}
}

func TestPublish_UpdateBumpsVersionAndKeepsOldSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	nd := newDraftInput("", "en", "Glass Garden")
	nd.Content.Summary = strPtr("first summary")
	v1 := publishNew(t, env, nd)

	v2 := publishUpdate(t, env, v1, models.Content{Name: "Glass Garden II", Summary: strPtr("second summary")})

	if v2.ID != v1.ID {
		t.Fatal("update minted a new published identity")
	}
	if v2.Version != 2 {
		t.Fatalf("version after update = %d, want 2", v2.Version)
	}

	snaps, err := env.catalog.VariantSnapshots(ctx, v2.ID)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("want snapshots at versions 1 and 2, got %+v", snaps)
	}
	if snaps[0].Version != 1 || snaps[0].Content.Name != "Glass Garden" {
		t.Fatalf("old snapshot rewritten: %+v", snaps[0])
	}
	if snaps[1].Version != 2 || snaps[1].Content.Name != "Glass Garden II" {
		t.Fatalf("new snapshot wrong: %+v", snaps[1])
	}
}

func TestPublish_UnsetOptionalFieldsFollowFieldPolicy(t *testing.T) {
	env := newTestEnv(t)

	nd := newDraftInput("", "en", "Glass Garden")
	nd.Content.Summary = strPtr("kept summary")
	nd.Content.CoverImage = strPtr("cover-v1.png")
	nd.Content.FoundingDate = timePtr(t, "2019-04-01T00:00:00Z")
	v1 := publishNew(t, env, nd)

	// The update draft sets none of the optional fields.
	v2 := publishUpdate(t, env, v1, models.Content{Name: "Glass Garden"})

	if v2.Content.Summary == nil || *v2.Content.Summary != "kept summary" {
		t.Fatalf("summary = %v, want kept from version 1", v2.Content.Summary)
	}
	if v2.Content.CoverImage == nil || *v2.Content.CoverImage != "cover-v1.png" {
		t.Fatalf("cover image = %v, want kept from version 1", v2.Content.CoverImage)
	}
	if v2.Content.FoundingDate != nil {
		t.Fatalf("founding date = %v, want copied verbatim (cleared)", v2.Content.FoundingDate)
	}
}

func TestPublish_RequiresApprovedStatusAndPrivilege(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d, err := env.drafts.Create(ctx, editor, newDraftInput("", "en", "Subject"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.drafts.Publish(ctx, d.ID, reviewer); !errors.Is(err, common.ErrInvalidStatus) {
		t.Fatalf("publish pending: want ErrInvalidStatus, got %v", err)
	}
	if _, err := env.drafts.Publish(ctx, d.ID, editor); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("publish as editor: want ErrUnauthorized, got %v", err)
	}
}

// -------- approved-but-not-translated guard --------

func TestApprove_BlockedWhileSiblingApprovedUnpublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	en := createApproved(t, env, newDraftInput("", "en", "Glass Garden"))

	ja, err := env.drafts.Create(ctx, editor, newDraftInput(en.TranslationSetID, "ja", "硝子の庭"))
	if err != nil {
		t.Fatalf("create ja: %v", err)
	}
	if _, err := env.drafts.Submit(ctx, ja.ID, editor); err != nil {
		t.Fatalf("submit ja: %v", err)
	}

	// The English draft is approved but not yet published against a
	// different identity, so the Japanese approval must wait.
	if _, err := env.drafts.Approve(ctx, ja.ID, reviewer); !errors.Is(err, common.ErrExistsApprovedButNotTranslated) {
		t.Fatalf("want ErrExistsApprovedButNotTranslated, got %v", err)
	}

	// Publishing the English draft unblocks the set.
	if _, err := env.drafts.Publish(ctx, en.ID, reviewer); err != nil {
		t.Fatalf("publish en: %v", err)
	}
	if _, err := env.drafts.Approve(ctx, ja.ID, reviewer); err != nil {
		t.Fatalf("approve ja after publish: %v", err)
	}
}

func TestPublish_GuardReCheckedAtPublishTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	en := createApproved(t, env, newDraftInput("", "en", "Glass Garden"))
	if _, err := env.drafts.Publish(ctx, en.ID, reviewer); err != nil {
		t.Fatalf("publish en: %v", err)
	}
	ja := createApproved(t, env, newDraftInput(en.TranslationSetID, "ja", "硝子の庭"))

	de, err := env.drafts.Create(ctx, editor, newDraftInput(en.TranslationSetID, "de", "Der Glasgarten"))
	if err != nil {
		t.Fatalf("create de: %v", err)
	}
	if _, err := env.drafts.Submit(ctx, de.ID, editor); err != nil {
		t.Fatalf("submit de: %v", err)
	}

	// Simulate a racing approval that committed between ja's approve and
	// ja's publish. The API serializes this case, so flip it in the store.
	if _, err := env.db.ExecContext(ctx, `UPDATE drafts SET status = 'approved' WHERE id = $1`, de.ID); err != nil {
		t.Fatalf("flip de status: %v", err)
	}
	_, err = env.db.ExecContext(ctx,
		`INSERT INTO history (id, translation_set_id, action, editor_id, draft_id, subject_name, recorded_at)
		 VALUES ($1, $2, 'approve', $3, $4, $5, $6)`,
		"hist-race", en.TranslationSetID, reviewer.ID, de.ID, "Der Glasgarten", time.Now())
	if err != nil {
		t.Fatalf("insert approve record: %v", err)
	}

	if _, err := env.drafts.Publish(ctx, ja.ID, reviewer); !errors.Is(err, common.ErrExistsApprovedButNotTranslated) {
		t.Fatalf("want ErrExistsApprovedButNotTranslated, got %v", err)
	}
}
