package policy

import (
	"context"

	"github.com/avelats/polycat/internal/server/models"
)

// Role names understood by the bundled role gate.
const (
	RoleEditor   = "editor"
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

var roleActions = map[string]map[Action]bool{
	RoleEditor: {
		ActionMerge: true,
	},
	RoleReviewer: {
		ActionMerge:   true,
		ActionApprove: true,
		ActionReject:  true,
		ActionPublish: true,
	},
	RoleAdmin: {
		ActionMerge:    true,
		ActionApprove:  true,
		ActionReject:   true,
		ActionPublish:  true,
		ActionRollback: true,
	},
}

// RoleGate is a static role-to-action table. It stands in for the external
// policy service in local runs and tests; the resource descriptor is accepted
// for interface fidelity but does not influence the static table.
type RoleGate struct{}

func NewRoleGate() *RoleGate {
	return &RoleGate{}
}

func (g *RoleGate) Evaluate(ctx context.Context, p models.Principal, action Action, res models.ResourceDescriptor) (bool, error) {
	for _, role := range p.Roles {
		if roleActions[role][action] {
			return true, nil
		}
	}
	return false, nil
}
