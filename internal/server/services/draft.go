// Package services contains the catalog's business logic: the draft workflow
// state machine with its publish projection, and the translation-set
// rollback coordinator.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/dbx"
	"github.com/avelats/polycat/internal/logging"
	"github.com/avelats/polycat/internal/server/idgen"
	"github.com/avelats/polycat/internal/server/models"
	"github.com/avelats/polycat/internal/server/normalize"
	"github.com/avelats/polycat/internal/server/policy"
	"github.com/avelats/polycat/internal/server/repositories/repomanager"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// PublishFieldPolicy states, per optional content field, whether an unset
// draft value keeps the previously published value (true) or is copied
// verbatim, clearing the field (false). Publishing can therefore never clear
// a "keep" field; only rollback restores cleared states for those.
//
// The asymmetry for FoundingDate is deliberate product behavior, not an
// oversight.
type PublishFieldPolicy struct {
	KeepSummary      bool
	KeepCoverImage   bool
	KeepReleaseDate  bool
	KeepFoundingDate bool
}

// DefaultPublishFieldPolicy keeps every optional field except FoundingDate.
var DefaultPublishFieldPolicy = PublishFieldPolicy{
	KeepSummary:     true,
	KeepCoverImage:  true,
	KeepReleaseDate: true,
}

// DraftService owns the draft lifecycle
// (pending -> under_review -> approved | rejected) and the publish
// transition that projects an approved draft onto the published read model.
// Transitions are one-directional; failures are synchronous and never
// retried internally.
type DraftService struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	gate        policy.Gate
	normalizer  normalize.Normalizer
	ids         idgen.Generator
	fieldPolicy PublishFieldPolicy
	logger      logging.Logger
}

// NewDraftService constructs a DraftService.
func NewDraftService(db *sql.DB, repos repomanager.RepositoryManager, gate policy.Gate,
	normalizer normalize.Normalizer, ids idgen.Generator, logger logging.Logger) *DraftService {
	return &DraftService{
		db:          db,
		repos:       repos,
		gate:        gate,
		normalizer:  normalizer,
		ids:         ids,
		fieldPolicy: DefaultPublishFieldPolicy,
		logger:      logger.With("module", "draft_service"),
	}
}

// NewDraft carries the editor-supplied fields for draft creation. An empty
// TranslationSetID starts a brand-new translation set; a nil PublishedID
// means publish will create a new published variant.
type NewDraft struct {
	TranslationSetID string
	PublishedID      *string
	Language         string
	Kind             models.Kind
	Scope            models.Scope
	Content          models.Content
	SubmitterID      string
}

// Create registers a new pending draft. At most one non-terminal draft may
// exist per (translation set, language); a second one yields ErrDraftExists.
func (s *DraftService) Create(ctx context.Context, p models.Principal, nd NewDraft) (*models.Draft, error) {
	if !nd.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", common.ErrValidation, nd.Kind)
	}
	if nd.Language == "" {
		return nil, fmt.Errorf("%w: language is required", common.ErrValidation)
	}
	if nd.Content.Name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}

	now := timeNow()

	d := &models.Draft{
		ID:               s.ids.NewID(),
		PublishedID:      nd.PublishedID,
		TranslationSetID: nd.TranslationSetID,
		Language:         nd.Language,
		Kind:             nd.Kind,
		Scope:            nd.Scope,
		Content:          nd.Content.Clone(),
		Status:           models.StatusPending,
		SubmitterID:      nd.SubmitterID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if d.TranslationSetID == "" {
		d.TranslationSetID = s.ids.NewID()
	}
	d.Content.NameNormalized = s.normalizer.Normalize(d.Content.Name, d.Language)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		siblings, err := s.repos.Drafts(tx).FindByTranslationSetID(ctx, d.TranslationSetID)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.Language == d.Language && !sib.Status.Terminal() {
				return fmt.Errorf("%w: language %s", common.ErrDraftExists, d.Language)
			}
		}
		if err := s.repos.Drafts(tx).Create(ctx, d); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, &models.HistoryRecord{
			TranslationSetID: d.TranslationSetID,
			Action:           models.ActionCreate,
			EditorID:         p.ID,
			SubmitterID:      &d.SubmitterID,
			DraftID:          &d.ID,
			SubjectName:      d.Content.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "draft created", "draft_id", d.ID, "set_id", d.TranslationSetID, "language", d.Language)
	return d, nil
}

// Get loads one draft.
func (s *DraftService) Get(ctx context.Context, draftID string) (*models.Draft, error) {
	return s.repos.Drafts(s.db).FindByID(ctx, draftID)
}

// ListByTranslationSet returns every draft of a translation set.
func (s *DraftService) ListByTranslationSet(ctx context.Context, setID string) ([]*models.Draft, error) {
	return s.repos.Drafts(s.db).FindByTranslationSetID(ctx, setID)
}

// Discard deletes a draft that has not been published. Rejected drafts can
// be discarded too; published drafts no longer exist, so there is nothing to
// protect here.
func (s *DraftService) Discard(ctx context.Context, draftID string) error {
	return s.repos.Drafts(s.db).Delete(ctx, draftID)
}

// Merge applies tagged field edits to a draft. The policy gate decides
// whether the principal may merge on the draft's resource scope. Merging
// recomputes the normalized search key and records who merged when; it never
// changes the workflow status.
func (s *DraftService) Merge(ctx context.Context, draftID string, edits models.ContentEdits, p models.Principal) (*models.Draft, error) {
	d, err := s.repos.Drafts(s.db).FindByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, policy.ActionMerge, d.Resource()); err != nil {
		return nil, err
	}

	// Approved and rejected drafts are no longer editable.
	if d.Status.Terminal() || d.Status == models.StatusApproved {
		return nil, fmt.Errorf("%w: cannot merge draft in status %s", common.ErrInvalidStatus, d.Status)
	}

	edits.ApplyTo(&d.Content)
	d.Content.NameNormalized = s.normalizer.Normalize(d.Content.Name, d.Language)

	now := timeNow()
	d.MergerID = &p.ID
	d.MergedAt = &now
	d.UpdatedAt = now

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Drafts(tx).Save(ctx, d); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, &models.HistoryRecord{
			TranslationSetID: d.TranslationSetID,
			Action:           models.ActionMerge,
			EditorID:         p.ID,
			SubmitterID:      &d.SubmitterID,
			DraftID:          &d.ID,
			PublishedID:      d.PublishedID,
			SubjectName:      d.Content.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "draft merged", "draft_id", d.ID, "merger_id", p.ID)
	return d, nil
}

// Submit moves a pending draft into review.
func (s *DraftService) Submit(ctx context.Context, draftID string, p models.Principal) (*models.Draft, error) {
	return s.transition(ctx, draftID, p, models.StatusPending, models.StatusUnderReview, models.ActionSubmit, nil, nil)
}

// Approve moves a draft under review to approved. Before transitioning it
// runs the approved-but-not-translated guard: while another draft in the set
// is approved but not yet published against a different published identity,
// approving this one would let the set's languages diverge into two published
// identities, so the transition is refused.
func (s *DraftService) Approve(ctx context.Context, draftID string, p models.Principal) (*models.Draft, error) {
	return s.transition(ctx, draftID, p, models.StatusUnderReview, models.StatusApproved, models.ActionApprove, nil, s.guardApprovedButNotTranslated)
}

// Reject moves a draft under review to rejected, recording the reason in the
// ledger. Rejected is terminal.
func (s *DraftService) Reject(ctx context.Context, draftID string, p models.Principal, reason string) (*models.Draft, error) {
	return s.transition(ctx, draftID, p, models.StatusUnderReview, models.StatusRejected, models.ActionReject, &reason, nil)
}

type draftGuard func(ctx context.Context, q dbx.DBTX, d *models.Draft) error

func (s *DraftService) transition(ctx context.Context, draftID string, p models.Principal,
	from, to models.DraftStatus, action models.ActionType, reason *string, guard draftGuard) (*models.Draft, error) {

	d, err := s.repos.Drafts(s.db).FindByID(ctx, draftID)
	if err != nil {
		return nil, err
	}

	if gateAction, gated := transitionGateActions[action]; gated {
		if err := s.authorize(ctx, p, gateAction, d.Resource()); err != nil {
			return nil, err
		}
	}

	if d.Status != from {
		return nil, fmt.Errorf("%w: %s requires status %s, draft is %s", common.ErrInvalidStatus, action, from, d.Status)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if guard != nil {
			if err := guard(ctx, tx, d); err != nil {
				return err
			}
		}
		d.Status = to
		d.UpdatedAt = timeNow()
		if err := s.repos.Drafts(tx).Save(ctx, d); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, &models.HistoryRecord{
			TranslationSetID: d.TranslationSetID,
			Action:           action,
			EditorID:         p.ID,
			SubmitterID:      &d.SubmitterID,
			DraftID:          &d.ID,
			PublishedID:      d.PublishedID,
			FromStatus:       &from,
			ToStatus:         &to,
			Reason:           reason,
			SubjectName:      d.Content.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "draft transitioned", "draft_id", d.ID, "from", from, "to", to)
	return d, nil
}

// transitionGateActions maps workflow transitions to the policy actions they
// require. Submit is ungated: submitting one's own draft for review needs no
// privilege.
var transitionGateActions = map[models.ActionType]policy.Action{
	models.ActionApprove: policy.ActionApprove,
	models.ActionReject:  policy.ActionReject,
}

// Publish projects an approved draft onto the published read model: one
// transaction holding the variant write, the snapshot capture at the new
// version, the ledger append and the draft deletion.
func (s *DraftService) Publish(ctx context.Context, draftID string, p models.Principal) (*models.Variant, error) {
	d, err := s.repos.Drafts(s.db).FindByID(ctx, draftID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, p, policy.ActionPublish, d.Resource()); err != nil {
		return nil, err
	}

	if d.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: publish requires status %s, draft is %s", common.ErrInvalidStatus, models.StatusApproved, d.Status)
	}

	var published *models.Variant

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// Approval may have raced another publish in this set; check again
		// on the transactional snapshot.
		if err := s.guardApprovedButNotTranslated(ctx, tx, d); err != nil {
			return err
		}

		now := timeNow()
		variantRepo := s.repos.Variants(tx)

		var fromVersion *int64
		if d.PublishedID != nil {
			v, err := variantRepo.FindByID(ctx, *d.PublishedID)
			if err != nil {
				return fmt.Errorf("loading published variant %s: %w", *d.PublishedID, err)
			}
			prev := v.Version
			fromVersion = &prev
			v.Content = s.mergePublishedContent(v.Content, d.Content)
			v.Version++
			v.UpdatedAt = now
			if err := variantRepo.Save(ctx, v); err != nil {
				return err
			}
			published = v
		} else {
			v := &models.Variant{
				ID:               s.ids.NewID(),
				TranslationSetID: d.TranslationSetID,
				Language:         d.Language,
				Kind:             d.Kind,
				Scope:            d.Scope,
				Content:          d.Content.Clone(),
				Version:          1,
				PublishedAt:      now,
				UpdatedAt:        now,
			}
			if err := variantRepo.Create(ctx, v); err != nil {
				return err
			}
			published = v
		}

		snap := models.SnapshotOf(published, now)
		snap.ID = s.ids.NewID()
		if err := s.repos.Snapshots(tx).Save(ctx, snap); err != nil {
			return err
		}

		toVersion := published.Version
		if err := s.appendHistory(ctx, tx, &models.HistoryRecord{
			TranslationSetID: d.TranslationSetID,
			Action:           models.ActionPublish,
			EditorID:         p.ID,
			SubmitterID:      &d.SubmitterID,
			DraftID:          &d.ID,
			PublishedID:      &published.ID,
			FromVersion:      fromVersion,
			ToVersion:        &toVersion,
			SubjectName:      published.Content.Name,
		}); err != nil {
			return err
		}

		// The draft is consumed by publishing.
		return s.repos.Drafts(tx).Delete(ctx, d.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "draft published", "draft_id", d.ID,
		"published_id", published.ID, "version", published.Version)
	return published, nil
}

// mergePublishedContent copies draft content onto the published content.
// Required fields always come from the draft; optional fields follow the
// per-field policy, where "keep" means an unset draft value preserves the
// published value instead of clearing it.
func (s *DraftService) mergePublishedContent(prev, draft models.Content) models.Content {
	out := draft.Clone()
	if out.Summary == nil && s.fieldPolicy.KeepSummary {
		out.Summary = prev.Summary
	}
	if out.CoverImage == nil && s.fieldPolicy.KeepCoverImage {
		out.CoverImage = prev.CoverImage
	}
	if out.ReleaseDate == nil && s.fieldPolicy.KeepReleaseDate {
		out.ReleaseDate = prev.ReleaseDate
	}
	if out.FoundingDate == nil && s.fieldPolicy.KeepFoundingDate {
		out.FoundingDate = prev.FoundingDate
	}
	return out
}

// guardApprovedButNotTranslated enforces publish ordering inside a
// translation set. The ledger is the evidence: for every approve record of a
// different draft in the set, a draft that still exists in approved state has
// been approved but not yet published (publish deletes its draft). If that
// sibling targets a different published identity than d, approving or
// publishing d now would desynchronize the set.
func (s *DraftService) guardApprovedButNotTranslated(ctx context.Context, q dbx.DBTX, d *models.Draft) error {
	records, err := s.repos.History(q).FindByTranslationSetID(ctx, d.TranslationSetID)
	if err != nil {
		return err
	}

	draftRepo := s.repos.Drafts(q)
	seen := make(map[string]bool)
	for _, rec := range records {
		if rec.Action != models.ActionApprove || rec.DraftID == nil {
			continue
		}
		siblingID := *rec.DraftID
		if siblingID == d.ID || seen[siblingID] {
			continue
		}
		seen[siblingID] = true

		sibling, err := draftRepo.FindByID(ctx, siblingID)
		if errors.Is(err, common.ErrNotFound) {
			// Consumed by publish (or discarded); no longer blocks.
			continue
		}
		if err != nil {
			return err
		}
		if sibling.Status != models.StatusApproved {
			continue
		}
		if !samePublishedTarget(sibling.PublishedID, d.PublishedID) {
			return fmt.Errorf("%w: draft %s", common.ErrExistsApprovedButNotTranslated, siblingID)
		}
	}
	return nil
}

// samePublishedTarget reports whether two drafts project onto the same
// published variant. Two nil targets are distinct: each would mint a fresh
// published identity.
func samePublishedTarget(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (s *DraftService) authorize(ctx context.Context, p models.Principal, action policy.Action, res models.ResourceDescriptor) error {
	ok, err := s.gate.Evaluate(ctx, p, action, res)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s/%s", common.ErrUnauthorized, action, res.Kind, res.TranslationSetID)
	}
	return nil
}

func (s *DraftService) appendHistory(ctx context.Context, q dbx.DBTX, rec *models.HistoryRecord) error {
	rec.ID = s.ids.NewID()
	rec.RecordedAt = timeNow()
	return s.repos.History(q).Save(ctx, rec)
}
