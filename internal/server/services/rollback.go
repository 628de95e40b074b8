package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/dbx"
	"github.com/avelats/polycat/internal/logging"
	"github.com/avelats/polycat/internal/server/idgen"
	"github.com/avelats/polycat/internal/server/models"
	"github.com/avelats/polycat/internal/server/policy"
	"github.com/avelats/polycat/internal/server/repositories/repomanager"
)

// RollbackService reverts a whole translation set to the content it had at
// an earlier version. Content moves backward; the physical version counter
// always moves forward, so every variant ends one version above where the
// set started, with a fresh snapshot and ledger entry per variant.
//
// There is no cross-variant transaction. Each variant commits in its own
// transaction in deterministic order; if variant k of N fails, variants
// 1..k-1 stay committed. Re-running the same rollback then reports
// ErrVersionMismatch between the advanced and un-advanced variants, which is
// the operational signal that a prior run partially succeeded and needs
// operator resolution.
type RollbackService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	gate   policy.Gate
	ids    idgen.Generator
	logger logging.Logger

	mu       sync.Mutex
	setLocks map[string]*sync.Mutex
}

// NewRollbackService constructs a RollbackService.
func NewRollbackService(db *sql.DB, repos repomanager.RepositoryManager, gate policy.Gate,
	ids idgen.Generator, logger logging.Logger) *RollbackService {
	return &RollbackService{
		db:       db,
		repos:    repos,
		gate:     gate,
		ids:      ids,
		logger:   logger.With("module", "rollback_service"),
		setLocks: make(map[string]*sync.Mutex),
	}
}

// lockSet serializes rollbacks per translation set. Two coordinators racing
// past the consistency check would double-advance the same variants.
func (s *RollbackService) lockSet(setID string) func() {
	s.mu.Lock()
	l, ok := s.setLocks[setID]
	if !ok {
		l = &sync.Mutex{}
		s.setLocks[setID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Rollback reverts every variant of the translation set containing variantID
// to the content it had at targetVersion and returns the reverted variants.
//
// The whole set must sit at one current version (the version of the loaded
// variant); any disagreement aborts with ErrVersionMismatch before a single
// write. targetVersion selects which snapshots supply the content and must be
// strictly below the current version. A variant with no snapshot at the
// target yields ErrSnapshotNotFound; work already committed for earlier
// variants is kept, not compensated.
func (s *RollbackService) Rollback(ctx context.Context, variantID string, targetVersion int64, p models.Principal) ([]*models.Variant, error) {
	anchor, err := s.repos.Variants(s.db).FindByID(ctx, variantID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockSet(anchor.TranslationSetID)
	defer unlock()

	if err := s.authorize(ctx, p, anchor.Resource()); err != nil {
		return nil, err
	}

	// Content can only move backward: versions start at 1 and the target
	// must lie strictly below the set's current version.
	baseVersion := anchor.Version
	if targetVersion < 1 || targetVersion >= baseVersion {
		return nil, fmt.Errorf("%w: target %d, current %d", common.ErrInvalidRollbackTarget, targetVersion, baseVersion)
	}

	setID := anchor.TranslationSetID
	all, err := s.repos.Variants(s.db).FindByTranslationSetID(ctx, setID)
	if err != nil {
		return nil, err
	}

	// Consistency check: every variant must report the same current version.
	// A mismatch is rejected, never repaired silently.
	for _, v := range all {
		if v.Version != baseVersion {
			return nil, fmt.Errorf("%w: variant %s at version %d, expected %d",
				common.ErrVersionMismatch, v.ID, v.Version, baseVersion)
		}
	}

	snaps, err := s.repos.Snapshots(s.db).FindByTranslationSetIDAndVersion(ctx, setID, targetVersion)
	if err != nil {
		return nil, err
	}
	byEntity := make(map[string]*models.Snapshot, len(snaps))
	for _, snap := range snaps {
		byEntity[snap.EntityID] = snap
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	result := make([]*models.Variant, 0, len(all))
	for _, v := range all {
		snap, ok := byEntity[v.ID]
		if !ok {
			// A variant absent from the snapshot query never held the target
			// version. Variants already reverted in this loop stay reverted.
			return nil, fmt.Errorf("%w: variant %s has no snapshot at version %d",
				common.ErrSnapshotNotFound, v.ID, targetVersion)
		}

		if err := s.revertVariant(ctx, v, snap, baseVersion, targetVersion, p); err != nil {
			return nil, err
		}
		result = append(result, v)
	}

	s.logger.Info(ctx, "translation set rolled back", "set_id", setID,
		"from_version", baseVersion, "to_version", targetVersion, "variants", len(result))
	return result, nil
}

// revertVariant commits one variant's reversion: content fully replaced from
// the snapshot (including clearing fields that did not exist at the target
// version), version advanced by 1, a snapshot of the reverted state at the
// new physical version, and a ledger entry whose ToVersion is the semantic
// target, not the new counter value.
func (s *RollbackService) revertVariant(ctx context.Context, v *models.Variant, snap *models.Snapshot,
	baseVersion, targetVersion int64, p models.Principal) error {

	now := timeNow()
	v.Content = snap.Content.Clone()
	v.Version = baseVersion + 1
	v.UpdatedAt = now

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Variants(tx).Save(ctx, v); err != nil {
			return err
		}

		newSnap := models.SnapshotOf(v, now)
		newSnap.ID = s.ids.NewID()
		if err := s.repos.Snapshots(tx).Save(ctx, newSnap); err != nil {
			return err
		}

		from, to := baseVersion, targetVersion
		rec := &models.HistoryRecord{
			ID:               s.ids.NewID(),
			TranslationSetID: v.TranslationSetID,
			Action:           models.ActionRollback,
			EditorID:         p.ID,
			PublishedID:      &v.ID,
			FromVersion:      &from,
			ToVersion:        &to,
			SubjectName:      v.Content.Name,
			RecordedAt:       now,
		}
		return s.repos.History(tx).Save(ctx, rec)
	})
}

func (s *RollbackService) authorize(ctx context.Context, p models.Principal, res models.ResourceDescriptor) error {
	ok, err := s.gate.Evaluate(ctx, p, policy.ActionRollback, res)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: rollback on %s/%s", common.ErrUnauthorized, res.Kind, res.TranslationSetID)
	}
	return nil
}
