package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequireCapability returns middleware that rejects requests whose caller
// lacks capability. Used for read routes; mutating operations are checked by
// the service layer itself.
func RequireCapability(authz Authorizer, capability Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			actor := ActorFromContext(ctx, time.Now())
			if err := authz.RequireCapability(ctx, actor, capability); err != nil {
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			return next(c)
		}
	}
}
