package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/dashboard"
	"github.com/njautech/schoolhub/core/submission"
)

type assignmentApi struct {
	svc         *assignment.Service
	submissions *submission.Service
	dashboards  *dashboard.Service
	validate    *validator.Validate
}

func registerAssignmentAPI(g *echo.Group, deps ServerDeps) {
	api := assignmentApi{
		svc:         deps.AssignmentSvc,
		submissions: deps.SubmissionSvc,
		dashboards:  deps.DashboardSvc,
		validate:    deps.Validate,
	}

	g.POST("/addassignment", api.create)
	g.GET("/assignments", api.query)
	g.GET("/assignments/lecturer/:lecturerId", api.queryByLecturer)
	g.GET("/assignment/:id", api.retrieve)
	g.GET("/assignments/:id/summary", api.summary)
	g.PUT("/assignments/:id", api.update)
	g.DELETE("/assignments/:id", api.destroy)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asgmt, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asgmt)
}

func (api *assignmentApi) list(ctx echo.Context, filter *assignment.QueryFilter) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	asgmts, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, asgmts)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter := new(assignment.QueryFilter)
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	return api.list(ctx, filter)
}

func (api *assignmentApi) queryByLecturer(ctx echo.Context) error {
	return api.list(ctx, &assignment.QueryFilter{LecturerID: ctx.Param("lecturerId")})
}

// retrieve returns the assignment with the submissions the caller may see.
func (api *assignmentApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	detail, err := api.submissions.AssignmentDetail(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving assignment")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *assignmentApi) summary(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	completion, err := api.dashboards.AssignmentCompletion(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing assignment completion")
	}
	return ctx.JSON(http.StatusOK, completion)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asgmt, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asgmt)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
