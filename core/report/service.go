package report

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/user"
)

var (
	// errors
	errTextRequired = core.NewValidationError(nil, core.FieldError{Field: "report_text", Error: "this field is required"})
	errNotAStudent  = core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "reports can only be written about students"})
)

type (
	Repository interface {
		CreateReport(ctx context.Context, rep Report) (Report, error)
		QueryReports(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Report, error)
		CountReports(ctx context.Context, filter *QueryFilter) (int, error)
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

// Create records a report written by the calling lecturer about student `studentID`.
func (svc *Service) Create(ctx context.Context, actor access.Actor, studentID string, nr NewReport) (Report, error) {
	if err := svc.policy.Allow(actor, access.ActionCreateReport); err != nil {
		return Report{}, err
	}
	text := core.CleanString(nr.Text)
	if text == "" {
		return Report{}, errTextRequired
	}

	student, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		return Report{}, errors.Wrap(err, "finding student")
	}
	if student.Role != access.RoleStudent {
		return Report{}, errNotAStudent
	}

	rep, err := svc.repo.CreateReport(ctx, Report{
		StudentID:  student.ID,
		LecturerID: actor.ID,
		Text:       text,
		CreatedAt:  svc.now(),
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "creating report")
	}
	svc.inv.Invalidate(ctx)
	return rep, nil
}

// ListReceived returns the reports written about the calling student.
func (svc *Service) ListReceived(ctx context.Context, actor access.Actor, ordering ...core.DBOrdering) ([]Report, error) {
	if err := svc.policy.Allow(actor, access.ActionListReceivedReports); err != nil {
		return nil, err
	}
	return svc.repo.QueryReports(ctx, &QueryFilter{StudentID: actor.ID}, ordering...)
}

// ListAuthored returns the reports written by the calling lecturer.
func (svc *Service) ListAuthored(ctx context.Context, actor access.Actor, ordering ...core.DBOrdering) ([]Report, error) {
	if err := svc.policy.Allow(actor, access.ActionListAuthoredReports); err != nil {
		return nil, err
	}
	return svc.repo.QueryReports(ctx, &QueryFilter{LecturerID: actor.ID}, ordering...)
}

func (svc *Service) ListAll(ctx context.Context, actor access.Actor, ordering ...core.DBOrdering) ([]Report, error) {
	if err := svc.policy.Allow(actor, access.ActionListAllReports); err != nil {
		return nil, err
	}
	return svc.repo.QueryReports(ctx, new(QueryFilter), ordering...)
}

func (svc *Service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.CountReports(ctx, filter)
}
