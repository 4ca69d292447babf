package assignment

import (
	"context"
	"unicode/utf8"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/user"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("assignment not found")
	ErrHasSubmissions = core.NewConflictError("assignment has submissions and cannot be deleted")
	errTitleRequired  = core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	errTitleTooLong   = core.NewValidationError(nil, core.FieldError{Field: "title", Error: "title must be at most 150 characters"})
	errNotALecturer   = core.NewPermissionError("only lecturers may create assignments")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asgmt Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Assignment, error)
		CountAssignments(ctx context.Context, filter *QueryFilter) (int, error)
		UpdateAssignment(ctx context.Context, asgmt Assignment) (Assignment, error)
		// DeleteAssignment returns ErrHasSubmissions while submissions reference the assignment.
		DeleteAssignment(ctx context.Context, id string) error
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo   Repository
		users  UserGetter
		policy *access.Policy
		inv    core.Invalidator
		now    core.NowFunc
	}
)

func NewService(repo Repository, users UserGetter, policy *access.Policy, inv core.Invalidator) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(policy, "policy"),
	).CheckAndPanic()

	if inv == nil {
		inv = core.NopInvalidator{}
	}
	return &Service{repo: repo, users: users, policy: policy, inv: inv, now: core.UTCNow}
}

// SetNowFunc replaces the service clock.
func (svc *Service) SetNowFunc(now core.NowFunc) { svc.now = now }

func checkTitle(title string) error {
	if title == "" {
		return errTitleRequired
	}
	if utf8.RuneCountInString(title) > TitleMaxLen {
		return errTitleTooLong
	}
	return nil
}

// Create records a new assignment owned by actor, who must currently be a lecturer.
func (svc *Service) Create(ctx context.Context, actor access.Actor, na NewAssignment) (Assignment, error) {
	if err := svc.policy.Allow(actor, access.ActionCreateAssignment); err != nil {
		return Assignment{}, err
	}

	title := core.CleanString(na.Title)
	if err := checkTitle(title); err != nil {
		return Assignment{}, err
	}

	// the token role may be stale
	lecturer, err := svc.users.GetByID(ctx, actor.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return Assignment{}, errNotALecturer
		}
		return Assignment{}, errors.Wrap(err, "finding lecturer")
	}
	if lecturer.Role != access.RoleLecturer {
		return Assignment{}, errNotALecturer
	}

	now := svc.now()
	asgmt, err := svc.repo.CreateAssignment(ctx, Assignment{
		Title:       title,
		Description: core.CleanString(na.Description),
		LecturerID:  lecturer.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	svc.inv.Invalidate(ctx)
	return asgmt, nil
}

// Get returns the assignment `id` without authorization. For use by other services.
func (svc *Service) Get(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *Service) Retrieve(ctx context.Context, actor access.Actor, id string) (Assignment, error) {
	if err := svc.policy.Allow(actor, access.ActionViewAssignment); err != nil {
		return Assignment{}, err
	}
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, actor access.Actor, filter *QueryFilter, ordering ...core.DBOrdering) ([]Assignment, error) {
	if err := svc.policy.Allow(actor, access.ActionViewAssignment); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryAssignments(ctx, filter, ordering...)
}

func (svc *Service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.CountAssignments(ctx, filter)
}

// Update modifies the assignment `id`. Only its owner or an admin may do so.
func (svc *Service) Update(ctx context.Context, actor access.Actor, id string, ua UpdateAssignment) (Assignment, error) {
	if !svc.policy.RoleAllowed(actor.Role, access.ActionUpdateAssignment) {
		return Assignment{}, core.ErrForbidden
	}
	asgmt, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "finding assignment")
	}
	if err := svc.policy.Authorize(actor, access.ActionUpdateAssignment, asgmt.LecturerID); err != nil {
		return Assignment{}, err
	}

	if ua.Title != nil {
		title := core.CleanString(*ua.Title)
		if err := checkTitle(title); err != nil {
			return Assignment{}, err
		}
		asgmt.Title = title
	}
	if ua.Description != nil {
		asgmt.Description = core.CleanString(*ua.Description)
	}
	asgmt.UpdatedAt = svc.now()

	if asgmt, err = svc.repo.UpdateAssignment(ctx, asgmt); err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	svc.inv.Invalidate(ctx)
	return asgmt, nil
}

// Delete removes the assignment `id`. Only its owner or an admin may do so,
// and only while it has no submissions.
func (svc *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	if !svc.policy.RoleAllowed(actor.Role, access.ActionDeleteAssignment) {
		return core.ErrForbidden
	}
	asgmt, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding assignment")
	}
	if err := svc.policy.Authorize(actor, access.ActionDeleteAssignment, asgmt.LecturerID); err != nil {
		return err
	}
	if err := svc.repo.DeleteAssignment(ctx, asgmt.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	svc.inv.Invalidate(ctx)
	return nil
}
