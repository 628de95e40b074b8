package repomanager

import (
	"context"
	"database/sql"

	"github.com/avelats/polycat/internal/dbx"
	"github.com/avelats/polycat/internal/server/repositories/drafts"
	"github.com/avelats/polycat/internal/server/repositories/history"
	"github.com/avelats/polycat/internal/server/repositories/snapshots"
	"github.com/avelats/polycat/internal/server/repositories/variants"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same constructors inside and outside a transaction, and exposes a
// schema migration hook.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Variants(db dbx.DBTX) variants.Repository
	Drafts(db dbx.DBTX) drafts.Repository
	Snapshots(db dbx.DBTX) snapshots.Repository
	History(db dbx.DBTX) history.Repository
}
