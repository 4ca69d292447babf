package submission

import (
	"context"
	"io"
	"time"
	"unicode/utf8"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/assignment"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("submission not found")
	ErrDuplicate     = core.NewConflictError("you have already submitted this assignment")
	ErrAlreadyGraded = core.NewConflictError("submission has already been graded")
	errGradeRange    = core.NewValidationError(nil, core.FieldError{Field: "grade", Error: "grade must be between 0 and 100"})
	errFeedbackLen   = core.NewValidationError(nil, core.FieldError{Field: "comment", Error: "comment must be at most 5000 characters"})
)

type (
	Repository interface {
		// CreateSubmission returns ErrDuplicate when the (assignment, student) pair already has a submission.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		FindSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Submission, error)
		CountSubmissions(ctx context.Context, filter *QueryFilter) (int, error)
		// GradeSubmission grades an ungraded submission. Returns ErrAlreadyGraded when it was graded before.
		GradeSubmission(ctx context.Context, id string, grade int, feedback null.String, gradedAt time.Time) (Submission, error)
		ListFileKeys(ctx context.Context) ([]string, error)
	}

	AssignmentGetter interface {
		Get(ctx context.Context, id string) (assignment.Assignment, error)
	}

	Config struct {
		MaxUploadSize  int64
		StorageTimeout time.Duration
	}

	Service struct {
		repo        Repository
		assignments AssignmentGetter
		storage     core.FileStorage
		policy      *access.Policy
		inv         core.Invalidator
		logger      core.Logger
		conf        Config
		now         core.NowFunc
	}

	// AssignmentDetail is an assignment together with the submissions the caller may see.
	AssignmentDetail struct {
		assignment.Assignment
		Submissions []Submission `json:"submissions"`
	}
)

func NewService(
	repo Repository,
	assignments AssignmentGetter,
	storage core.FileStorage,
	policy *access.Policy,
	inv core.Invalidator,
	logger core.Logger,
	conf Config,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(assignments, "assignments"),
		vala.IsNotNil(storage, "storage"),
		vala.IsNotNil(policy, "policy"),
		vala.IsNotNil(logger, "logger"),
		vala.GreaterThan(int(conf.MaxUploadSize), 0, "conf.MaxUploadSize"),
	).CheckAndPanic()

	if inv == nil {
		inv = core.NopInvalidator{}
	}
	if conf.StorageTimeout <= 0 {
		conf.StorageTimeout = time.Minute
	}
	return &Service{
		repo:        repo,
		assignments: assignments,
		storage:     storage,
		policy:      policy,
		inv:         inv,
		logger:      logger,
		conf:        conf,
		now:         core.UTCNow,
	}
}

// SetNowFunc replaces the service clock.
func (svc *Service) SetNowFunc(now core.NowFunc) { svc.now = now }

// Submit stores the file of a student's first submission to an assignment.
// Checks run in order: role, assignment existence, duplicate, file type & size. Nothing is
// written to storage until all of them pass.
func (svc *Service) Submit(ctx context.Context, actor access.Actor, ns NewSubmission) (Submission, error) {
	if err := svc.policy.Allow(actor, access.ActionCreateSubmission); err != nil {
		return Submission{}, err
	}

	asgmt, err := svc.assignments.Get(ctx, ns.AssignmentID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding assignment")
	}

	if _, err := svc.repo.FindSubmission(ctx, asgmt.ID, actor.ID); err == nil {
		return Submission{}, ErrDuplicate
	} else if !core.IsNotFound(err) {
		return Submission{}, errors.Wrap(err, "finding previous submission")
	}

	file := ns.File
	if err := checkFile(&file, svc.conf.MaxUploadSize); err != nil {
		return Submission{}, err
	}
	content, err := readFile(&file, svc.conf.MaxUploadSize)
	if err != nil {
		return Submission{}, err
	}

	now := svc.now()
	key := fileKey(now, file.Name)
	url, err := svc.upload(ctx, key, content, file.ContentType)
	if err != nil {
		return Submission{}, errors.Wrap(err, "uploading file")
	}

	sub := Submission{
		AssignmentID: asgmt.ID,
		StudentID:    actor.ID,
		FileKey:      key,
		FileURL:      url,
		FileName:     file.Name,
		ContentType:  file.ContentType,
		FileSize:     file.Size,
		SubmittedAt:  now,
	}
	if comment := core.CleanString(ns.Comment); comment != "" {
		sub.Comment = null.StringFrom(comment)
	}

	created, err := svc.repo.CreateSubmission(ctx, sub)
	if err != nil {
		// the row is the authority: drop the object, the reconcile sweep catches failures
		svc.discard(key)
		if errors.Cause(err) == ErrDuplicate {
			return Submission{}, ErrDuplicate
		}
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	svc.inv.Invalidate(ctx)
	return created, nil
}

func (svc *Service) upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.conf.StorageTimeout)
	defer cancel()
	return svc.storage.Upload(ctx, key, r, contentType)
}

func (svc *Service) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), svc.conf.StorageTimeout)
	defer cancel()
	if err := svc.storage.Delete(ctx, key); err != nil {
		svc.logger.Warn("discarding orphaned upload "+key, errors.Wrap(err, "deleting object"))
	}
}

// Grade sets the grade and feedback of a submission. Only the lecturer owning the
// submission's assignment may grade it, once.
func (svc *Service) Grade(ctx context.Context, actor access.Actor, id string, gs GradeSubmission) (Submission, error) {
	if !svc.policy.RoleAllowed(actor.Role, access.ActionGradeSubmission) {
		return Submission{}, core.ErrForbidden
	}

	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submission")
	}
	if err := svc.policy.Authorize(actor, access.ActionGradeSubmission, sub.LecturerID); err != nil {
		return Submission{}, err
	}

	if gs.Grade == nil || *gs.Grade < GradeMin || *gs.Grade > GradeMax {
		return Submission{}, errGradeRange
	}
	var feedback null.String
	if fb := core.CleanString(gs.Feedback); fb != "" {
		if utf8.RuneCountInString(fb) > FeedbackMaxLen {
			return Submission{}, errFeedbackLen
		}
		feedback = null.StringFrom(fb)
	}

	graded, err := svc.repo.GradeSubmission(ctx, sub.ID, *gs.Grade, feedback, svc.now())
	if err != nil {
		if errors.Cause(err) == ErrAlreadyGraded {
			return Submission{}, ErrAlreadyGraded
		}
		return Submission{}, errors.Wrap(err, "grading submission")
	}
	svc.inv.Invalidate(ctx)
	return graded, nil
}

// Get returns the submission `id` to its student, to the lecturer owning its assignment, or to an admin.
func (svc *Service) Get(ctx context.Context, actor access.Actor, id string) (Submission, error) {
	if actor.Role == access.RoleStudent {
		return svc.GetAsStudent(ctx, actor, id)
	}
	return svc.GetAsReviewer(ctx, actor, id)
}

// GetAsStudent returns the submission `id` when actor is the student who made it.
func (svc *Service) GetAsStudent(ctx context.Context, actor access.Actor, id string) (Submission, error) {
	if !svc.policy.RoleAllowed(actor.Role, access.ActionViewOwnSubmission) {
		return Submission{}, core.ErrForbidden
	}
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submission")
	}
	if err := svc.policy.Authorize(actor, access.ActionViewOwnSubmission, sub.StudentID); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// GetAsReviewer returns the submission `id` to the lecturer owning its assignment or to an admin.
func (svc *Service) GetAsReviewer(ctx context.Context, actor access.Actor, id string) (Submission, error) {
	if !svc.policy.RoleAllowed(actor.Role, access.ActionReviewSubmission) {
		return Submission{}, core.ErrForbidden
	}
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submission")
	}
	if err := svc.policy.Authorize(actor, access.ActionReviewSubmission, sub.LecturerID); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// WriteFile copies the stored file of sub to w. sub must come from Get.
func (svc *Service) WriteFile(ctx context.Context, sub Submission, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, svc.conf.StorageTimeout)
	defer cancel()
	return errors.Wrap(svc.storage.Download(ctx, sub.FileKey, w), "downloading file")
}

// ListOwn returns the submissions of the calling student.
func (svc *Service) ListOwn(ctx context.Context, actor access.Actor, ordering ...core.DBOrdering) ([]Submission, error) {
	if err := svc.policy.Allow(actor, access.ActionListOwnSubmissions); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, &QueryFilter{StudentID: actor.ID}, ordering...)
}

// ListForReview returns the submissions to the calling lecturer's assignments.
func (svc *Service) ListForReview(ctx context.Context, actor access.Actor, graded *bool, ordering ...core.DBOrdering) ([]Submission, error) {
	if err := svc.policy.Allow(actor, access.ActionListReviewSubmissions); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, &QueryFilter{LecturerID: actor.ID, Graded: graded}, ordering...)
}

// ListAll returns every submission. Admins only.
func (svc *Service) ListAll(ctx context.Context, actor access.Actor, graded *bool, ordering ...core.DBOrdering) ([]Submission, error) {
	if err := svc.policy.Allow(actor, access.ActionListAllSubmissions); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, &QueryFilter{Graded: graded}, ordering...)
}

// ListForAssignment returns the submissions to an assignment, to its owner or an admin.
func (svc *Service) ListForAssignment(ctx context.Context, actor access.Actor, assignmentID string, ordering ...core.DBOrdering) ([]Submission, error) {
	if !svc.policy.RoleAllowed(actor.Role, access.ActionReviewAssignment) {
		return nil, core.ErrForbidden
	}
	asgmt, err := svc.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "finding assignment")
	}
	if err := svc.policy.Authorize(actor, access.ActionReviewAssignment, asgmt.LecturerID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, &QueryFilter{AssignmentID: asgmt.ID}, ordering...)
}

// AssignmentDetail returns an assignment with the submissions actor may see: all of them for its
// owner and admins, their own for a student, none for other lecturers.
func (svc *Service) AssignmentDetail(ctx context.Context, actor access.Actor, assignmentID string) (AssignmentDetail, error) {
	if err := svc.policy.Allow(actor, access.ActionViewAssignment); err != nil {
		return AssignmentDetail{}, err
	}
	asgmt, err := svc.assignments.Get(ctx, assignmentID)
	if err != nil {
		return AssignmentDetail{}, errors.Wrap(err, "finding assignment")
	}

	detail := AssignmentDetail{Assignment: asgmt, Submissions: []Submission{}}
	var filter *QueryFilter
	switch {
	case svc.policy.Authorize(actor, access.ActionReviewAssignment, asgmt.LecturerID) == nil:
		filter = &QueryFilter{AssignmentID: asgmt.ID}
	case actor.Role == access.RoleStudent:
		filter = &QueryFilter{AssignmentID: asgmt.ID, StudentID: actor.ID}
	default:
		return detail, nil
	}

	subs, err := svc.repo.QuerySubmissions(ctx, filter)
	if err != nil {
		return AssignmentDetail{}, errors.Wrap(err, "querying submissions")
	}
	if subs != nil {
		detail.Submissions = subs
	}
	return detail, nil
}

// Query returns submissions without authorization. For use by other services.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Submission, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QuerySubmissions(ctx, filter, ordering...)
}

func (svc *Service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.CountSubmissions(ctx, filter)
}
