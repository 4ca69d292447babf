package dashboard_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/dashboard"
	"github.com/njautech/schoolhub/core/report"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
	"github.com/njautech/schoolhub/testutil"
)

func txtFile() submission.File {
	return submission.File{Name: "a.txt", ContentType: "text/plain", Size: 2, Content: strings.NewReader("hi")}
}

func intPtr(i int) *int { return &i }

type school struct {
	env                 *testutil.Env
	l1, l2              user.User
	alice, bob, charlie user.User
	admin               user.User
	essay, lab, quiz    string
}

// newSchool sets up two lecturers, three students and three assignments:
// alice submitted essay (graded 80, week 2024-W05) and lab (graded 60, week 2024-W06), bob submitted essay (ungraded).
func newSchool(t *testing.T) school {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	t0 := time.Date(2024, 1, 29, 10, 0, 0, 0, time.UTC) // monday, 2024-W05

	s := school{
		env:     env,
		l1:      testutil.CreateUser(t, env.UserRepo, "Lecturer One", "l1@example.com", "", access.RoleLecturer),
		l2:      testutil.CreateUser(t, env.UserRepo, "Lecturer Two", "l2@example.com", "", access.RoleLecturer),
		alice:   testutil.CreateUser(t, env.UserRepo, "Alice", "alice@example.com", "", access.RoleStudent),
		bob:     testutil.CreateUser(t, env.UserRepo, "Bob", "bob@example.com", "", access.RoleStudent),
		charlie: testutil.CreateUser(t, env.UserRepo, "Charlie", "charlie@example.com", "", access.RoleStudent),
		admin:   testutil.CreateUser(t, env.UserRepo, "Admin", "admin@example.com", "", access.RoleAdmin),
	}
	s.essay = testutil.CreateAssignment(t, env.AssignmentRepo, s.l1, "Essay", t0).ID
	s.lab = testutil.CreateAssignment(t, env.AssignmentRepo, s.l1, "Lab", t0.Add(time.Hour)).ID
	s.quiz = testutil.CreateAssignment(t, env.AssignmentRepo, s.l2, "Quiz", t0.AddDate(0, 0, 7)).ID

	now := t0
	env.SetNow(func() time.Time { return now })
	submit := func(student user.User, asgmtID string) submission.Submission {
		sub, err := env.SubmissionSvc.Submit(ctx, student.Actor(), submission.NewSubmission{AssignmentID: asgmtID, File: txtFile()})
		require.NoError(t, err)
		return sub
	}
	grade := func(sub submission.Submission, g int) {
		_, err := env.SubmissionSvc.Grade(ctx, s.l1.Actor(), sub.ID, submission.GradeSubmission{Grade: intPtr(g)})
		require.NoError(t, err)
	}

	grade(submit(s.alice, s.essay), 80)
	submit(s.bob, s.essay)
	now = t0.AddDate(0, 0, 7) // 2024-W06
	grade(submit(s.alice, s.lab), 60)

	_, err := env.ReportSvc.Create(ctx, s.l1.Actor(), s.bob.ID, report.NewReport{Text: "Late again."})
	require.NoError(t, err)
	return s
}

func TestService_student(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	svc := s.env.DashboardSvc

	sum, err := svc.StudentDashboard(ctx, s.alice.Actor())
	require.NoError(t, err)
	assert.Equal(t, dashboard.StudentSummary{
		StudentName:      "Alice",
		TotalAssignments: 3,
		TotalSubmissions: 2,
		AverageGrade:     null.Float64From(70),
	}, sum)

	sum, err = svc.StudentDashboard(ctx, s.charlie.Actor())
	require.NoError(t, err)
	assert.False(t, sum.AverageGrade.Valid, "no grades, no mean")

	charts, err := svc.StudentCharts(ctx, s.alice.Actor())
	require.NoError(t, err)
	assert.Equal(t, []string{"Essay", "Lab"}, charts.Assignments)
	assert.Equal(t, []int{80, 60}, charts.Grades)
	assert.Equal(t, []dashboard.WeekPoint{{Week: "2024-W05", Value: 80}, {Week: "2024-W06", Value: 60}}, charts.GradeTrend)

	rows, err := svc.StudentTables(ctx, s.bob.Actor())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	byTitle := make(map[string]dashboard.StudentAssignmentRow)
	for _, r := range rows {
		byTitle[r.Title] = r
	}
	assert.Equal(t, dashboard.StatusSubmitted, byTitle["Essay"].SubmissionStatus)
	assert.False(t, byTitle["Essay"].Graded)
	assert.Equal(t, "Lecturer One", byTitle["Essay"].Lecturer)
	assert.Equal(t, dashboard.StatusNotSubmitted, byTitle["Quiz"].SubmissionStatus)

	_, err = svc.StudentDashboard(ctx, s.l1.Actor())
	assert.True(t, core.IsForbidden(err))
}

func TestService_lecturer(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	svc := s.env.DashboardSvc

	sum, err := svc.LecturerDashboard(ctx, s.l1.Actor())
	require.NoError(t, err)
	assert.Equal(t, dashboard.LecturerSummary{TotalStudents: 2, TotalAssignments: 2, PendingReviews: 1, TotalReports: 1}, sum)

	sum, err = svc.LecturerDashboard(ctx, s.l2.Actor())
	require.NoError(t, err)
	assert.Equal(t, dashboard.LecturerSummary{TotalAssignments: 1}, sum)

	charts, err := svc.LecturerCharts(ctx, s.l1.Actor())
	require.NoError(t, err)
	assert.Equal(t, []string{"Essay", "Lab"}, charts.AssignmentTitles)
	assert.Equal(t, []null.Float64{null.Float64From(80), null.Float64From(60)}, charts.AverageGrades)
	assert.Equal(t, []int{1, 1}, charts.CompletedSubmissions)
	assert.Equal(t, []int{1, 0}, charts.PendingSubmissions)

	rows, err := svc.StudentSummaries(ctx, s.l1.Actor())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alice", rows[0].Name)
	assert.Equal(t, 100.0, rows[0].CompletionRate)
	assert.Equal(t, null.Float64From(70), rows[0].AverageGrade)
	assert.Equal(t, "Bob", rows[1].Name)
	assert.Equal(t, 50.0, rows[1].CompletionRate)
	assert.False(t, rows[1].AverageGrade.Valid)
	assert.Equal(t, "Charlie", rows[2].Name)
	assert.Equal(t, 0.0, rows[2].CompletionRate)

	_, err = svc.StudentSummaries(ctx, s.alice.Actor())
	assert.True(t, core.IsForbidden(err))
}

func TestService_admin(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	svc := s.env.DashboardSvc

	sum, err := svc.AdminDashboard(ctx, s.admin.Actor())
	require.NoError(t, err)
	assert.Equal(t, dashboard.AdminSummary{TotalLecturers: 2, TotalStudents: 3, TotalAssignments: 3, TotalSubmissions: 3}, sum)

	charts, err := svc.AdminCharts(ctx, s.admin.Actor())
	require.NoError(t, err)
	assert.Equal(t, []dashboard.WeekPoint{{Week: "2024-W05", Value: 2}, {Week: "2024-W06", Value: 1}}, charts.AssignmentsPerWeek)
	assert.Equal(t, 1, charts.AdminCount)
	assert.Equal(t, 2, charts.LecturerCount)
	assert.Equal(t, 3, charts.StudentCount)

	rows, err := svc.StudentSummaries(ctx, s.admin.Actor())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 66.67, rows[0].CompletionRate, "alice: 2 of all 3 assignments")
	assert.Equal(t, 33.33, rows[1].CompletionRate)

	_, err = svc.AdminDashboard(ctx, s.l1.Actor())
	assert.True(t, core.IsForbidden(err))
}

func TestService_AssignmentCompletion(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	svc := s.env.DashboardSvc

	c, err := svc.AssignmentCompletion(ctx, s.l1.Actor(), s.essay)
	require.NoError(t, err)
	assert.Equal(t, dashboard.AssignmentCompletion{AssignmentID: s.essay, Submitted: 2, TotalStudents: 3, Rate: 66.67}, c)

	_, err = svc.AssignmentCompletion(ctx, s.l2.Actor(), s.essay)
	assert.True(t, core.IsForbidden(err))
	_, err = svc.AssignmentCompletion(ctx, s.alice.Actor(), s.essay)
	assert.True(t, core.IsForbidden(err))
	_, err = svc.AssignmentCompletion(ctx, s.admin.Actor(), "nope")
	assert.True(t, core.IsNotFound(err))

	// the student count is read at query time
	_, err = s.env.UserSvc.Register(ctx, user.NewUser{Name: "Dave", Email: "dave@example.com", Password: "secret1"})
	require.NoError(t, err)
	c, err = svc.AssignmentCompletion(ctx, s.admin.Actor(), s.essay)
	require.NoError(t, err)
	assert.Equal(t, 4, c.TotalStudents)
	assert.Equal(t, 50.0, c.Rate)
}

func TestService_cacheInvalidation(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	svc := s.env.DashboardSvc

	sum, err := svc.StudentDashboard(ctx, s.charlie.Actor())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalSubmissions)
	assert.Positive(t, s.env.Cache.Len())

	// a write that bypasses the services is not seen until something invalidates
	_, err = s.env.SubmissionRepo.CreateSubmission(ctx, submission.Submission{
		AssignmentID: s.quiz, StudentID: s.charlie.ID, FileKey: "submissions/x", FileName: "x.txt",
	})
	require.NoError(t, err)
	sum, err = svc.StudentDashboard(ctx, s.charlie.Actor())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalSubmissions, "served from cache")

	// service writes invalidate
	_, err = s.env.SubmissionSvc.Submit(ctx, s.charlie.Actor(), submission.NewSubmission{AssignmentID: s.essay, File: txtFile()})
	require.NoError(t, err)
	sum, err = svc.StudentDashboard(ctx, s.charlie.Actor())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalSubmissions)

	// keys are per user
	bob, err := svc.StudentDashboard(ctx, s.bob.Actor())
	require.NoError(t, err)
	assert.Equal(t, "Bob", bob.StudentName)
}

// racingSubmissions stores a submission and invalidates the cache right after the first read,
// as a concurrent write path would while a view is being computed.
type racingSubmissions struct {
	dashboard.SubmissionReader
	once  func()
	fired bool
}

func (r *racingSubmissions) QuerySubmissions(ctx context.Context, filter *submission.QueryFilter, ordering ...core.DBOrdering) ([]submission.Submission, error) {
	subs, err := r.SubmissionReader.QuerySubmissions(ctx, filter, ordering...)
	if !r.fired {
		r.fired = true
		r.once()
	}
	return subs, err
}

func TestService_invalidationDuringCompute(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	env := s.env

	subs := &racingSubmissions{SubmissionReader: env.SubmissionRepo}
	svc := dashboard.NewService(env.UserRepo, env.AssignmentRepo, subs, env.ReportRepo, env.Policy, env.Cache, env.Logger)
	subs.once = func() {
		_, err := env.SubmissionRepo.CreateSubmission(ctx, submission.Submission{
			AssignmentID: s.quiz, StudentID: s.charlie.ID, FileKey: "submissions/q", FileName: "q.txt",
		})
		require.NoError(t, err)
		svc.Invalidate(ctx)
	}

	_, err := svc.StudentDashboard(ctx, s.charlie.Actor())
	require.NoError(t, err)
	assert.Zero(t, env.Cache.Len(), "stale fill must not be stored")

	sum, err := svc.StudentDashboard(ctx, s.charlie.Actor())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalSubmissions)
}

func TestService_tablesByRole(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()
	svc := s.env.DashboardSvc

	rows, err := svc.LecturerTables(ctx, s.l1.Actor())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	_, err = svc.LecturerTables(ctx, s.admin.Actor())
	assert.True(t, core.IsForbidden(err))

	rows, err = svc.AdminTables(ctx, s.admin.Actor())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	_, err = svc.AdminTables(ctx, s.l1.Actor())
	assert.True(t, core.IsForbidden(err))
}
