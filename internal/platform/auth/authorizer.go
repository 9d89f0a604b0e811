package auth

import (
	"context"

	"github.com/ehr/ehrcore/internal/platform/apperr"
)

// SuperuserRole bypasses every capability check.
const SuperuserRole = "admin"

// Authorizer decides whether an actor holds a capability. Implementations
// return *apperr.AuthorizationError when it does not.
type Authorizer interface {
	RequireCapability(ctx context.Context, actor Actor, capability Capability) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, actor Actor, capability Capability) error

func (f AuthorizerFunc) RequireCapability(ctx context.Context, actor Actor, capability Capability) error {
	return f(ctx, actor, capability)
}

// RoleAuthorizer grants capabilities through the roles an actor carries.
type RoleAuthorizer struct {
	grants map[string]map[Capability]bool
}

// NewRoleAuthorizer builds a RoleAuthorizer from a role -> capabilities table.
func NewRoleAuthorizer(grants map[string][]Capability) *RoleAuthorizer {
	g := make(map[string]map[Capability]bool, len(grants))
	for role, caps := range grants {
		set := make(map[Capability]bool, len(caps))
		for _, c := range caps {
			set[c] = true
		}
		g[role] = set
	}
	return &RoleAuthorizer{grants: g}
}

// DefaultGrants is the role table used when no other is configured.
// Purging is reserved for the superuser role.
func DefaultGrants() map[string][]Capability {
	return map[string][]Capability{
		"physician": {CapViewCohorts, CapAddCohorts, CapEditCohorts, CapViewConcepts},
		"nurse":     {CapViewCohorts, CapAddCohorts, CapEditCohorts, CapViewConcepts},
		"registrar": {CapViewCohorts, CapViewConcepts},
		"data_manager": {
			CapViewCohorts, CapAddCohorts, CapEditCohorts, CapDeleteCohorts,
			CapViewConcepts, CapManageConcepts,
		},
	}
}

func (a *RoleAuthorizer) RequireCapability(_ context.Context, actor Actor, capability Capability) error {
	if a.Has(actor, capability) {
		return nil
	}
	return &apperr.AuthorizationError{Capability: string(capability), UserID: actor.UserID}
}

// Has reports whether actor holds capability.
func (a *RoleAuthorizer) Has(actor Actor, capability Capability) bool {
	for _, role := range actor.Roles {
		if role == SuperuserRole {
			return true
		}
		if a.grants[role][capability] {
			return true
		}
	}
	return false
}
