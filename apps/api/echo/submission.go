package echoapi

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/submission"
)

const (
	formFileField    = "file"
	formCommentField = "comment"
)

type submissionApi struct {
	svc      *submission.Service
	validate *validator.Validate
}

func registerSubmissionAPI(g *echo.Group, deps ServerDeps) {
	api := submissionApi{svc: deps.SubmissionSvc, validate: deps.Validate}

	g.POST("/submit/:assignmentId", api.submit)
	g.GET("/student/submissions", api.listOwn)
	g.GET("/lecturer/submissions", api.listForReview)
	g.GET("/admin/submissions", api.listAll)
	g.GET("/submission/student/:id", api.retrieveAsStudent)
	g.GET("/submission/lecturer/:id", api.retrieveAsReviewer)
	g.GET("/submissions/assignments/:assignmentId", api.listForAssignment)
	g.GET("/submissions/:id/file", api.download)
	g.PUT("/submissions/:id", api.grade)
}

// readUpload returns the uploaded file, or an empty File when the form carries none.
// The service decides whether a missing file is an error, after its other checks.
func readUpload(ctx echo.Context) (submission.File, func(), error) {
	fh, err := ctx.FormFile(formFileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return submission.File{}, func() {}, nil
		}
		return submission.File{}, nil, errors.Wrap(err, "reading multipart form")
	}
	f, err := fh.Open()
	if err != nil {
		return submission.File{}, nil, errors.Wrap(err, "opening uploaded file")
	}
	return submission.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     f,
	}, func() { _ = f.Close() }, nil
}

func (api *submissionApi) submit(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	file, closeFile, err := readUpload(ctx)
	if err != nil {
		return err
	}
	defer closeFile()

	sub, err := api.svc.Submit(ctx.Request().Context(), actor, submission.NewSubmission{
		AssignmentID: ctx.Param("assignmentId"),
		Comment:      ctx.FormValue(formCommentField),
		File:         file,
	})
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) listOwn(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subs, err := api.svc.ListOwn(ctx.Request().Context(), actor, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing own submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

type listFunc func(echo.Context, access.Actor, *bool, ...core.DBOrdering) ([]submission.Submission, error)

// listGraded serves the listings filterable with `?graded=true|false`.
func (api *submissionApi) listGraded(ctx echo.Context, list listFunc) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	graded, err := boolParam(ctx, "graded")
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subs, err := list(ctx, actor, graded, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) listForReview(ctx echo.Context) error {
	return api.listGraded(ctx, func(c echo.Context, actor access.Actor, graded *bool, ord ...core.DBOrdering) ([]submission.Submission, error) {
		return api.svc.ListForReview(c.Request().Context(), actor, graded, ord...)
	})
}

func (api *submissionApi) listAll(ctx echo.Context) error {
	return api.listGraded(ctx, func(c echo.Context, actor access.Actor, graded *bool, ord ...core.DBOrdering) ([]submission.Submission, error) {
		return api.svc.ListAll(c.Request().Context(), actor, graded, ord...)
	})
}

func (api *submissionApi) retrieveAsStudent(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetAsStudent(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) retrieveAsReviewer(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetAsReviewer(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) listForAssignment(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subs, err := api.svc.ListForAssignment(ctx.Request().Context(), actor, ctx.Param("assignmentId"), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing assignment submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

// download streams the stored file to its student, the lecturer owning the assignment or an admin.
func (api *submissionApi) download(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving submission")
	}

	// buffered so a storage failure still yields a proper error response
	var buf bytes.Buffer
	if err := api.svc.WriteFile(ctx.Request().Context(), sub, &buf); err != nil {
		return errors.Wrap(err, "reading submission file")
	}

	contentType := sub.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(buf.Bytes()).String()
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": sub.FileName}),
	)
	return ctx.Blob(http.StatusOK, contentType, buf.Bytes())
}

func (api *submissionApi) grade(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data submission.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return errors.Wrap(err, "validating GradeSubmission")
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
