package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core/access"
)

func registerDashboardAPI(g *echo.Group, deps ServerDeps) {
	svc := deps.DashboardSvc

	student := g.Group("/student")
	student.GET("/dashboard", view(svc.StudentDashboard))
	student.GET("/charts", view(svc.StudentCharts))
	student.GET("/tables", view(svc.StudentTables))

	lecturer := g.Group("/lecturer")
	lecturer.GET("/dashboard", view(svc.LecturerDashboard))
	lecturer.GET("/charts", view(svc.LecturerCharts))
	lecturer.GET("/tables", view(svc.LecturerTables))

	admin := g.Group("/admin")
	admin.GET("/dashboard", view(svc.AdminDashboard))
	admin.GET("/charts", view(svc.AdminCharts))
	admin.GET("/tables", view(svc.AdminTables))
}

// view serves a read-only dashboard view of the caller.
func view[T any](compute func(context.Context, access.Actor) (T, error)) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		data, err := compute(ctx.Request().Context(), actor)
		if err != nil {
			return errors.Wrap(err, "computing dashboard")
		}
		return ctx.JSON(http.StatusOK, data)
	}
}
