package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/auth"
)

const contextActorKey = "actor"

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authMiddleware verifies the access token of every request and stores the caller as an access.Actor.
func authMiddleware(svc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token, ok := bearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return errMissingToken
			}
			actor, err := svc.Verify(token)
			if err != nil {
				return err
			}
			ctx.Set(contextActorKey, actor)
			return next(ctx)
		}
	}
}

func contextActor(ctx echo.Context) (access.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(access.Actor); ok {
		return actor, nil
	}
	return access.Actor{}, core.ErrUnauthenticated
}
