package models

import "time"

// ActionType enumerates the transitions recorded in the history ledger.
type ActionType string

const (
	ActionCreate   ActionType = "create"
	ActionMerge    ActionType = "merge"
	ActionSubmit   ActionType = "submit"
	ActionApprove  ActionType = "approve"
	ActionReject   ActionType = "reject"
	ActionPublish  ActionType = "publish"
	ActionRollback ActionType = "rollback"
)

// HistoryRecord is one append-only ledger entry. Records are never updated or
// deleted; besides audit they back the approved-but-not-translated guard.
//
// For rollback records FromVersion is the version the whole set was at and
// ToVersion is the semantic target version whose content was restored, which
// is deliberately not the variant's new physical version.
type HistoryRecord struct {
	ID               string
	TranslationSetID string
	Action           ActionType
	EditorID         string
	SubmitterID      *string
	PublishedID      *string
	DraftID          *string
	FromStatus       *DraftStatus
	ToStatus         *DraftStatus
	FromVersion      *int64
	ToVersion        *int64
	Reason           *string
	SubjectName      string
	RecordedAt       time.Time
}
