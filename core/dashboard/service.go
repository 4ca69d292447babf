package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/report"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
)

type (
	UserReader interface {
		GetUser(ctx context.Context, filter user.GetFilter) (user.User, error)
		QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error)
		CountUsers(ctx context.Context, role access.Role) (int, error)
	}

	AssignmentReader interface {
		GetAssignment(ctx context.Context, id string) (assignment.Assignment, error)
		QueryAssignments(ctx context.Context, filter *assignment.QueryFilter, ordering ...core.DBOrdering) ([]assignment.Assignment, error)
		CountAssignments(ctx context.Context, filter *assignment.QueryFilter) (int, error)
	}

	SubmissionReader interface {
		QuerySubmissions(ctx context.Context, filter *submission.QueryFilter, ordering ...core.DBOrdering) ([]submission.Submission, error)
		CountSubmissions(ctx context.Context, filter *submission.QueryFilter) (int, error)
	}

	ReportCounter interface {
		CountReports(ctx context.Context, filter *report.QueryFilter) (int, error)
	}

	// Service computes the read-only views. Results are cached per (view, role, user) until
	// a write path calls Invalidate.
	Service struct {
		users       UserReader
		assignments AssignmentReader
		submissions SubmissionReader
		reports     ReportCounter
		policy      *access.Policy
		cache       core.Cache
		logger      core.Logger
	}
)

var _ core.Invalidator = (*Service)(nil)

func NewService(
	users UserReader,
	assignments AssignmentReader,
	submissions SubmissionReader,
	reports ReportCounter,
	policy *access.Policy,
	cache core.Cache,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(assignments, "assignments"),
		vala.IsNotNil(submissions, "submissions"),
		vala.IsNotNil(reports, "reports"),
		vala.IsNotNil(policy, "policy"),
		vala.IsNotNil(cache, "cache"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		users:       users,
		assignments: assignments,
		submissions: submissions,
		reports:     reports,
		policy:      policy,
		cache:       cache,
		logger:      logger,
	}
}

// Invalidate drops every cached view.
func (svc *Service) Invalidate(ctx context.Context) {
	if err := svc.cache.Flush(ctx); err != nil {
		svc.logger.Warn("flushing dashboard cache", errors.Wrap(err, "flushing cache"))
	}
}

func cacheKey(view string, actor access.Actor) string {
	return fmt.Sprintf("dashboard:%s:%s:%s", view, actor.Role, actor.ID)
}

// cached returns the cached value of key, or computes and stores it. Cache failures only cost a recompute.
// The fill is tied to the generation seen before computing, so an Invalidate racing the compute wins.
func cached[T any](ctx context.Context, svc *Service, key string, compute func() (T, error)) (T, error) {
	var val T
	gen, found, err := svc.cache.Get(ctx, key, &val)
	if err != nil {
		svc.logger.Warn("reading dashboard cache", errors.Wrap(err, "getting "+key))
	} else if found {
		return val, nil
	}

	if val, err = compute(); err != nil {
		return val, err
	}
	if err := svc.cache.Set(ctx, gen, key, val); err != nil {
		svc.logger.Warn("writing dashboard cache", errors.Wrap(err, "setting "+key))
	}
	return val, nil
}

// Student views

func (svc *Service) StudentDashboard(ctx context.Context, actor access.Actor) (StudentSummary, error) {
	if err := svc.policy.Allow(actor, access.ActionStudentDashboard); err != nil {
		return StudentSummary{}, err
	}
	return cached(ctx, svc, cacheKey("summary", actor), func() (StudentSummary, error) {
		student, err := svc.users.GetUser(ctx, user.GetFilter{ID: actor.ID})
		if err != nil {
			return StudentSummary{}, errors.Wrap(err, "finding student")
		}
		total, err := svc.assignments.CountAssignments(ctx, new(assignment.QueryFilter))
		if err != nil {
			return StudentSummary{}, errors.Wrap(err, "counting assignments")
		}
		subs, err := svc.submissions.QuerySubmissions(ctx, &submission.QueryFilter{StudentID: actor.ID})
		if err != nil {
			return StudentSummary{}, errors.Wrap(err, "querying submissions")
		}
		return StudentSummary{
			StudentName:      student.Name,
			TotalAssignments: total,
			TotalSubmissions: len(subs),
			AverageGrade:     MeanGrade(subs),
		}, nil
	})
}

func (svc *Service) StudentCharts(ctx context.Context, actor access.Actor) (StudentCharts, error) {
	if err := svc.policy.Allow(actor, access.ActionStudentDashboard); err != nil {
		return StudentCharts{}, err
	}
	return cached(ctx, svc, cacheKey("charts", actor), func() (StudentCharts, error) {
		subs, err := svc.submissions.QuerySubmissions(
			ctx,
			&submission.QueryFilter{StudentID: actor.ID},
			core.DBOrdering{Field: "submitted_at", Ascending: true},
		)
		if err != nil {
			return StudentCharts{}, errors.Wrap(err, "querying submissions")
		}

		charts := StudentCharts{Assignments: []string{}, Grades: []int{}}
		for _, sub := range subs {
			if sub.Graded && sub.Grade.Valid {
				charts.Assignments = append(charts.Assignments, sub.AssignmentTitle)
				charts.Grades = append(charts.Grades, sub.Grade.Int)
			}
		}
		charts.GradeTrend = WeeklyGradeTrend(subs)
		return charts, nil
	})
}

// StudentTables lists every assignment with the calling student's submission state, newest first.
func (svc *Service) StudentTables(ctx context.Context, actor access.Actor) ([]StudentAssignmentRow, error) {
	if err := svc.policy.Allow(actor, access.ActionStudentDashboard); err != nil {
		return nil, err
	}
	return cached(ctx, svc, cacheKey("tables", actor), func() ([]StudentAssignmentRow, error) {
		asgmts, err := svc.assignments.QueryAssignments(ctx, new(assignment.QueryFilter), core.DBOrdering{Field: "created_at"})
		if err != nil {
			return nil, errors.Wrap(err, "querying assignments")
		}
		subs, err := svc.submissions.QuerySubmissions(ctx, &submission.QueryFilter{StudentID: actor.ID})
		if err != nil {
			return nil, errors.Wrap(err, "querying submissions")
		}
		byAssignment := make(map[string]submission.Submission, len(subs))
		for _, sub := range subs {
			byAssignment[sub.AssignmentID] = sub
		}

		rows := make([]StudentAssignmentRow, 0, len(asgmts))
		for _, a := range asgmts {
			row := StudentAssignmentRow{
				ID:               a.ID,
				Title:            a.Title,
				Lecturer:         a.Lecturer.Name,
				SubmissionStatus: StatusNotSubmitted,
			}
			if sub, ok := byAssignment[a.ID]; ok {
				row.SubmissionStatus = StatusSubmitted
				row.Graded = sub.Graded
				row.Grade = sub.Grade
			}
			rows = append(rows, row)
		}
		return rows, nil
	})
}

// Lecturer views

func (svc *Service) LecturerDashboard(ctx context.Context, actor access.Actor) (LecturerSummary, error) {
	if err := svc.policy.Allow(actor, access.ActionLecturerDashboard); err != nil {
		return LecturerSummary{}, err
	}
	return cached(ctx, svc, cacheKey("summary", actor), func() (LecturerSummary, error) {
		subs, err := svc.submissions.QuerySubmissions(ctx, &submission.QueryFilter{LecturerID: actor.ID})
		if err != nil {
			return LecturerSummary{}, errors.Wrap(err, "querying submissions")
		}
		students := make(map[string]struct{})
		var pending int
		for _, sub := range subs {
			students[sub.StudentID] = struct{}{}
			if !sub.Graded {
				pending++
			}
		}

		assignments, err := svc.assignments.CountAssignments(ctx, &assignment.QueryFilter{LecturerID: actor.ID})
		if err != nil {
			return LecturerSummary{}, errors.Wrap(err, "counting assignments")
		}
		reports, err := svc.reports.CountReports(ctx, &report.QueryFilter{LecturerID: actor.ID})
		if err != nil {
			return LecturerSummary{}, errors.Wrap(err, "counting reports")
		}
		return LecturerSummary{
			TotalStudents:    len(students),
			TotalAssignments: assignments,
			PendingReviews:   pending,
			TotalReports:     reports,
		}, nil
	})
}

func (svc *Service) LecturerCharts(ctx context.Context, actor access.Actor) (LecturerCharts, error) {
	if err := svc.policy.Allow(actor, access.ActionLecturerDashboard); err != nil {
		return LecturerCharts{}, err
	}
	return cached(ctx, svc, cacheKey("charts", actor), func() (LecturerCharts, error) {
		asgmts, err := svc.assignments.QueryAssignments(
			ctx,
			&assignment.QueryFilter{LecturerID: actor.ID},
			core.DBOrdering{Field: "created_at", Ascending: true},
		)
		if err != nil {
			return LecturerCharts{}, errors.Wrap(err, "querying assignments")
		}
		subs, err := svc.submissions.QuerySubmissions(ctx, &submission.QueryFilter{LecturerID: actor.ID})
		if err != nil {
			return LecturerCharts{}, errors.Wrap(err, "querying submissions")
		}
		byAssignment := make(map[string][]submission.Submission)
		for _, sub := range subs {
			byAssignment[sub.AssignmentID] = append(byAssignment[sub.AssignmentID], sub)
		}

		charts := LecturerCharts{
			AssignmentTitles:     make([]string, 0, len(asgmts)),
			AverageGrades:        make([]null.Float64, 0, len(asgmts)),
			CompletedSubmissions: make([]int, 0, len(asgmts)),
			PendingSubmissions:   make([]int, 0, len(asgmts)),
		}
		for _, a := range asgmts {
			var completed, pending int
			for _, sub := range byAssignment[a.ID] {
				if sub.Graded {
					completed++
				} else {
					pending++
				}
			}
			charts.AssignmentTitles = append(charts.AssignmentTitles, a.Title)
			charts.AverageGrades = append(charts.AverageGrades, MeanGrade(byAssignment[a.ID]))
			charts.CompletedSubmissions = append(charts.CompletedSubmissions, completed)
			charts.PendingSubmissions = append(charts.PendingSubmissions, pending)
		}
		return charts, nil
	})
}

// StudentSummaries lists every student with their completion rate and mean grade, sorted by
// completion rate descending then name. Lecturers only see figures for their own assignments.
func (svc *Service) StudentSummaries(ctx context.Context, actor access.Actor) ([]StudentRow, error) {
	var scope string
	switch {
	case svc.policy.Allow(actor, access.ActionLecturerDashboard) == nil:
		scope = actor.ID
	case svc.policy.Allow(actor, access.ActionAdminDashboard) == nil:
	default:
		return nil, core.ErrForbidden
	}

	return cached(ctx, svc, cacheKey("tables", actor), func() ([]StudentRow, error) {
		totalAssignments, err := svc.assignments.CountAssignments(ctx, &assignment.QueryFilter{LecturerID: scope})
		if err != nil {
			return nil, errors.Wrap(err, "counting assignments")
		}
		students, err := svc.users.QueryUsers(ctx, &user.QueryFilter{Roles: []access.Role{access.RoleStudent}})
		if err != nil {
			return nil, errors.Wrap(err, "querying students")
		}
		subs, err := svc.submissions.QuerySubmissions(ctx, &submission.QueryFilter{LecturerID: scope})
		if err != nil {
			return nil, errors.Wrap(err, "querying submissions")
		}
		byStudent := make(map[string][]submission.Submission)
		for _, sub := range subs {
			byStudent[sub.StudentID] = append(byStudent[sub.StudentID], sub)
		}

		rows := make([]StudentRow, 0, len(students))
		for _, s := range students {
			rows = append(rows, StudentRow{
				ID:             s.ID,
				Name:           s.Name,
				Email:          s.Email,
				CompletionRate: CompletionRate(len(byStudent[s.ID]), totalAssignments),
				AverageGrade:   MeanGrade(byStudent[s.ID]),
			})
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].CompletionRate != rows[j].CompletionRate {
				return rows[i].CompletionRate > rows[j].CompletionRate
			}
			return rows[i].Name < rows[j].Name
		})
		return rows, nil
	})
}

// LecturerTables is StudentSummaries restricted to lecturers.
func (svc *Service) LecturerTables(ctx context.Context, actor access.Actor) ([]StudentRow, error) {
	if err := svc.policy.Allow(actor, access.ActionLecturerDashboard); err != nil {
		return nil, err
	}
	return svc.StudentSummaries(ctx, actor)
}

// Admin views

// AdminTables is StudentSummaries restricted to admins.
func (svc *Service) AdminTables(ctx context.Context, actor access.Actor) ([]StudentRow, error) {
	if err := svc.policy.Allow(actor, access.ActionAdminDashboard); err != nil {
		return nil, err
	}
	return svc.StudentSummaries(ctx, actor)
}

func (svc *Service) AdminDashboard(ctx context.Context, actor access.Actor) (AdminSummary, error) {
	if err := svc.policy.Allow(actor, access.ActionAdminDashboard); err != nil {
		return AdminSummary{}, err
	}
	return cached(ctx, svc, cacheKey("summary", actor), func() (AdminSummary, error) {
		var (
			sum AdminSummary
			err error
		)
		if sum.TotalLecturers, err = svc.users.CountUsers(ctx, access.RoleLecturer); err != nil {
			return AdminSummary{}, errors.Wrap(err, "counting lecturers")
		}
		if sum.TotalStudents, err = svc.users.CountUsers(ctx, access.RoleStudent); err != nil {
			return AdminSummary{}, errors.Wrap(err, "counting students")
		}
		if sum.TotalAssignments, err = svc.assignments.CountAssignments(ctx, new(assignment.QueryFilter)); err != nil {
			return AdminSummary{}, errors.Wrap(err, "counting assignments")
		}
		if sum.TotalSubmissions, err = svc.submissions.CountSubmissions(ctx, new(submission.QueryFilter)); err != nil {
			return AdminSummary{}, errors.Wrap(err, "counting submissions")
		}
		return sum, nil
	})
}

func (svc *Service) AdminCharts(ctx context.Context, actor access.Actor) (AdminCharts, error) {
	if err := svc.policy.Allow(actor, access.ActionAdminDashboard); err != nil {
		return AdminCharts{}, err
	}
	return cached(ctx, svc, cacheKey("charts", actor), func() (AdminCharts, error) {
		asgmts, err := svc.assignments.QueryAssignments(ctx, new(assignment.QueryFilter))
		if err != nil {
			return AdminCharts{}, errors.Wrap(err, "querying assignments")
		}
		created := make([]time.Time, 0, len(asgmts))
		for _, a := range asgmts {
			created = append(created, a.CreatedAt)
		}

		charts := AdminCharts{AssignmentsPerWeek: WeeklyCounts(created)}
		if charts.AdminCount, err = svc.users.CountUsers(ctx, access.RoleAdmin); err != nil {
			return AdminCharts{}, errors.Wrap(err, "counting admins")
		}
		if charts.LecturerCount, err = svc.users.CountUsers(ctx, access.RoleLecturer); err != nil {
			return AdminCharts{}, errors.Wrap(err, "counting lecturers")
		}
		if charts.StudentCount, err = svc.users.CountUsers(ctx, access.RoleStudent); err != nil {
			return AdminCharts{}, errors.Wrap(err, "counting students")
		}
		return charts, nil
	})
}

// AssignmentCompletion compares the submissions of assignment `id` with the number of students
// registered right now. Only its owner or an admin may see it.
func (svc *Service) AssignmentCompletion(ctx context.Context, actor access.Actor, id string) (AssignmentCompletion, error) {
	if !svc.policy.RoleAllowed(actor.Role, access.ActionReviewAssignment) {
		return AssignmentCompletion{}, core.ErrForbidden
	}
	asgmt, err := svc.assignments.GetAssignment(ctx, id)
	if err != nil {
		return AssignmentCompletion{}, errors.Wrap(err, "finding assignment")
	}
	if err := svc.policy.Authorize(actor, access.ActionReviewAssignment, asgmt.LecturerID); err != nil {
		return AssignmentCompletion{}, err
	}

	return cached(ctx, svc, cacheKey("completion:"+asgmt.ID, actor), func() (AssignmentCompletion, error) {
		submitted, err := svc.submissions.CountSubmissions(ctx, &submission.QueryFilter{AssignmentID: asgmt.ID})
		if err != nil {
			return AssignmentCompletion{}, errors.Wrap(err, "counting submissions")
		}
		students, err := svc.users.CountUsers(ctx, access.RoleStudent)
		if err != nil {
			return AssignmentCompletion{}, errors.Wrap(err, "counting students")
		}
		return AssignmentCompletion{
			AssignmentID:  asgmt.ID,
			Submitted:     submitted,
			TotalStudents: students,
			Rate:          CompletionRate(submitted, students),
		}, nil
	})
}
