// Package policy defines the authorization gate the catalog core consults
// before privileged operations. Policy evaluation itself is external to the
// core; the gate is a pure yes/no oracle over a uniform resource descriptor.
package policy

import (
	"context"

	"github.com/avelats/polycat/internal/server/models"
)

// Action names a privileged catalog operation.
type Action string

const (
	ActionMerge    Action = "merge"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionPublish  Action = "publish"
	ActionRollback Action = "rollback"
)

// Gate answers whether a principal may perform an action on a resource.
// Implementations must be side-effect free; a false answer is not an error.
type Gate interface {
	Evaluate(ctx context.Context, p models.Principal, action Action, res models.ResourceDescriptor) (bool, error)
}
