package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/report"
)

type reportApi struct {
	svc      *report.Service
	validate *validator.Validate
}

func registerReportAPI(g *echo.Group, deps ServerDeps) {
	api := reportApi{svc: deps.ReportSvc, validate: deps.Validate}

	g.POST("/addreport/:studentId", api.create)
	g.GET("/reports/student", api.list(api.svc.ListReceived))
	g.GET("/reports/lecturer", api.list(api.svc.ListAuthored))
	g.GET("/reports/admin", api.list(api.svc.ListAll))
}

func (api *reportApi) create(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data report.NewReport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReport")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rep, err := api.svc.Create(ctx.Request().Context(), actor, ctx.Param("studentId"), data)
	if err != nil {
		return errors.Wrap(err, "creating report")
	}
	return ctx.JSON(http.StatusCreated, rep)
}

func (api *reportApi) list(
	listFn func(context.Context, access.Actor, ...core.DBOrdering) ([]report.Report, error),
) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		ordering := new(Ordering)
		ordering.Bind(ctx)

		reps, err := listFn(ctx.Request().Context(), actor, ordering.Orderings...)
		if err != nil {
			return errors.Wrap(err, "listing reports")
		}
		return ctx.JSON(http.StatusOK, reps)
	}
}
