package auth

import (
	"context"
	"time"
)

// Actor is the caller on whose behalf a service operation runs. It is passed
// explicitly to every mutating operation; At is the clock reading used for
// audit stamping so that a whole operation sees a single timestamp.
type Actor struct {
	UserID string
	Roles  []string
	At     time.Time
}

// HasRole reports whether the actor carries role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ActorFromContext builds an Actor from the identity placed on the request
// context by JWTMiddleware or DevAuthMiddleware. It is only meant to be called
// at the transport boundary.
func ActorFromContext(ctx context.Context, now time.Time) Actor {
	return Actor{
		UserID: UserIDFromContext(ctx),
		Roles:  RolesFromContext(ctx),
		At:     now.UTC(),
	}
}
