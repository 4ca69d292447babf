package submission_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
	"github.com/njautech/schoolhub/testutil"
)

func pdfFile(name string) submission.File {
	content := "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"
	return submission.File{
		Name:        name,
		ContentType: "application/pdf",
		Size:        int64(len(content)),
		Content:     strings.NewReader(content),
	}
}

func intPtr(i int) *int { return &i }

type fixture struct {
	env      *testutil.Env
	owner    user.User
	other    user.User
	student  user.User
	student2 user.User
	admin    user.User
	asgmtID  string
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	f := fixture{
		env:      env,
		owner:    testutil.CreateUser(t, env.UserRepo, "Owner", "owner@example.com", "", access.RoleLecturer),
		other:    testutil.CreateUser(t, env.UserRepo, "Other", "other@example.com", "", access.RoleLecturer),
		student:  testutil.CreateUser(t, env.UserRepo, "Student", "student@example.com", "", access.RoleStudent),
		student2: testutil.CreateUser(t, env.UserRepo, "Student Two", "student2@example.com", "", access.RoleStudent),
		admin:    testutil.CreateUser(t, env.UserRepo, "Admin", "admin@example.com", "", access.RoleAdmin),
	}
	f.asgmtID = testutil.CreateAssignment(t, env.AssignmentRepo, f.owner, "Essay").ID
	return f
}

func TestService_Submit_preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.env.SubmissionSvc

	tests := []struct {
		name    string
		actor   access.Actor
		ns      submission.NewSubmission
		wantErr func(error) bool
	}{
		{
			name: "lecturer forbidden", actor: f.owner.Actor(), wantErr: core.IsForbidden,
			ns: submission.NewSubmission{AssignmentID: f.asgmtID, File: pdfFile("a.pdf")},
		},
		{
			name: "admin forbidden", actor: f.admin.Actor(), wantErr: core.IsForbidden,
			ns: submission.NewSubmission{AssignmentID: f.asgmtID, File: pdfFile("a.pdf")},
		},
		{
			name: "unknown assignment", actor: f.student.Actor(), wantErr: core.IsNotFound,
			ns: submission.NewSubmission{AssignmentID: "nope", File: pdfFile("a.pdf")},
		},
		{
			name: "png rejected", actor: f.student.Actor(), wantErr: core.IsValidation,
			ns: submission.NewSubmission{AssignmentID: f.asgmtID, File: submission.File{
				Name: "a.png", ContentType: "image/png", Size: 3, Content: strings.NewReader("png"),
			}},
		},
		{
			name: "too large", actor: f.student.Actor(), wantErr: core.IsValidation,
			ns: submission.NewSubmission{AssignmentID: f.asgmtID, File: submission.File{
				Name: "a.txt", ContentType: "text/plain", Size: 10<<20 + 1,
				Content: bytes.NewReader(make([]byte, 10<<20+1)),
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.actor, tt.ns)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
		})
	}
	assert.Zero(t, f.env.Storage.Uploads(), "nothing is stored when a precondition fails")
}

func TestService_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.env.SubmissionSvc
	now := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	svc.SetNowFunc(func() time.Time { return now })

	sub, err := svc.Submit(ctx, f.student.Actor(), submission.NewSubmission{
		AssignmentID: f.asgmtID,
		Comment:      "  here it is ",
		File:         pdfFile("my essay.pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, f.asgmtID, sub.AssignmentID)
	assert.Equal(t, f.student.ID, sub.StudentID)
	assert.Equal(t, "here it is", sub.Comment.String)
	assert.False(t, sub.Graded)
	assert.False(t, sub.Grade.Valid)
	assert.Equal(t, now, sub.SubmittedAt)
	assert.Equal(t, "application/pdf", sub.ContentType)
	assert.True(t, strings.HasPrefix(sub.FileKey, submission.FileKeyPrefix+"assignment_"), sub.FileKey)
	assert.Equal(t, "memory://"+sub.FileKey, sub.FileURL)
	assert.Equal(t, []string{sub.FileKey}, f.env.Storage.Keys())

	_, err = svc.Submit(ctx, f.student.Actor(), submission.NewSubmission{AssignmentID: f.asgmtID, File: pdfFile("again.pdf")})
	assert.True(t, core.IsConflict(err), "second submission: %v", err)
	assert.Equal(t, 1, f.env.Storage.Uploads(), "duplicates are caught before uploading")

	var buf bytes.Buffer
	got, err := svc.Get(ctx, f.student.Actor(), sub.ID)
	require.NoError(t, err)
	require.NoError(t, svc.WriteFile(ctx, got, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "%PDF-"))
}

func TestService_Submit_concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.env.SubmissionSvc.Submit(ctx, f.student.Actor(), submission.NewSubmission{
				AssignmentID: f.asgmtID,
				File:         pdfFile("essay.pdf"),
			})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case core.IsConflict(err):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	count, err := f.env.SubmissionSvc.Count(ctx, &submission.QueryFilter{AssignmentID: f.asgmtID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, f.env.Storage.Keys(), 1, "losing uploads are discarded")
}

func TestService_Grade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.env.SubmissionSvc

	sub, err := svc.Submit(ctx, f.student.Actor(), submission.NewSubmission{AssignmentID: f.asgmtID, File: pdfFile("a.pdf")})
	require.NoError(t, err)

	grade := func(actor access.Actor, id string, g *int) error {
		_, err := svc.Grade(ctx, actor, id, submission.GradeSubmission{Grade: g, Feedback: "Good"})
		return err
	}

	assert.True(t, core.IsForbidden(grade(f.student.Actor(), sub.ID, intPtr(90))), "students never grade")
	assert.True(t, core.IsForbidden(grade(f.admin.Actor(), sub.ID, intPtr(90))), "no admin bypass")
	assert.True(t, core.IsNotFound(grade(f.owner.Actor(), "nope", intPtr(90))))
	assert.True(t, core.IsForbidden(grade(f.other.Actor(), sub.ID, intPtr(90))), "only the owning lecturer")
	assert.True(t, core.IsValidation(grade(f.owner.Actor(), sub.ID, intPtr(101))))
	assert.True(t, core.IsValidation(grade(f.owner.Actor(), sub.ID, intPtr(-1))))
	assert.True(t, core.IsValidation(grade(f.owner.Actor(), sub.ID, nil)))

	// out of order: a stranger with a bad grade gets Forbidden, not Validation
	assert.True(t, core.IsForbidden(grade(f.other.Actor(), sub.ID, intPtr(500))))

	graded, err := svc.Grade(ctx, f.owner.Actor(), sub.ID, submission.GradeSubmission{Grade: intPtr(0), Feedback: " Try again "})
	require.NoError(t, err)
	assert.True(t, graded.Graded)
	assert.Equal(t, 0, graded.Grade.Int)
	assert.True(t, graded.Grade.Valid)
	assert.Equal(t, "Try again", graded.Feedback.String)
	assert.True(t, graded.GradedAt.Valid)

	assert.True(t, core.IsConflict(grade(f.owner.Actor(), sub.ID, intPtr(100))), "grading is terminal")
}

func TestService_reads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.env.SubmissionSvc

	sub1, err := svc.Submit(ctx, f.student.Actor(), submission.NewSubmission{AssignmentID: f.asgmtID, File: pdfFile("a.pdf")})
	require.NoError(t, err)
	sub2, err := svc.Submit(ctx, f.student2.Actor(), submission.NewSubmission{AssignmentID: f.asgmtID, File: pdfFile("b.pdf")})
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		_, err := svc.Get(ctx, f.student2.Actor(), sub1.ID)
		assert.True(t, core.IsForbidden(err), "another student's submission")
		_, err = svc.Get(ctx, f.other.Actor(), sub1.ID)
		assert.True(t, core.IsForbidden(err), "another lecturer's assignment")

		for _, actor := range []access.Actor{f.student.Actor(), f.owner.Actor(), f.admin.Actor()} {
			got, err := svc.Get(ctx, actor, sub1.ID)
			require.NoError(t, err)
			assert.Equal(t, sub1.ID, got.ID)
			assert.Equal(t, "Essay", got.AssignmentTitle)
			assert.Equal(t, f.owner.ID, got.LecturerID)
			assert.Equal(t, "Student", got.Student.Name)
		}

		_, err = svc.GetAsStudent(ctx, f.owner.Actor(), sub1.ID)
		assert.True(t, core.IsForbidden(err))
		_, err = svc.GetAsReviewer(ctx, f.student.Actor(), sub1.ID)
		assert.True(t, core.IsForbidden(err))
	})

	t.Run("lists", func(t *testing.T) {
		own, err := svc.ListOwn(ctx, f.student.Actor())
		require.NoError(t, err)
		require.Len(t, own, 1)
		assert.Equal(t, sub1.ID, own[0].ID)

		review, err := svc.ListForReview(ctx, f.owner.Actor(), nil)
		require.NoError(t, err)
		assert.Len(t, review, 2)

		none, err := svc.ListForReview(ctx, f.other.Actor(), nil)
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := svc.ListAll(ctx, f.admin.Actor(), nil)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		_, err = svc.ListAll(ctx, f.owner.Actor(), nil)
		assert.True(t, core.IsForbidden(err))
		_, err = svc.ListOwn(ctx, f.admin.Actor())
		assert.True(t, core.IsForbidden(err))

		_, err = svc.ListForAssignment(ctx, f.other.Actor(), f.asgmtID)
		assert.True(t, core.IsForbidden(err))
		forAsgmt, err := svc.ListForAssignment(ctx, f.owner.Actor(), f.asgmtID)
		require.NoError(t, err)
		assert.Len(t, forAsgmt, 2)
	})

	t.Run("assignment detail", func(t *testing.T) {
		tests := []struct {
			name    string
			actor   access.Actor
			wantIDs []string
		}{
			{name: "owner sees all", actor: f.owner.Actor(), wantIDs: []string{sub1.ID, sub2.ID}},
			{name: "admin sees all", actor: f.admin.Actor(), wantIDs: []string{sub1.ID, sub2.ID}},
			{name: "student sees own", actor: f.student2.Actor(), wantIDs: []string{sub2.ID}},
			{name: "other lecturer sees none", actor: f.other.Actor(), wantIDs: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				detail, err := svc.AssignmentDetail(ctx, tt.actor, f.asgmtID)
				require.NoError(t, err)
				assert.Equal(t, "Essay", detail.Title)
				ids := make([]string, 0, len(detail.Submissions))
				for _, s := range detail.Submissions {
					ids = append(ids, s.ID)
				}
				assert.ElementsMatch(t, tt.wantIDs, ids)
			})
		}

		_, err := svc.AssignmentDetail(ctx, f.student.Actor(), "nope")
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_ReconcileUploads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	f.env.SetNow(func() time.Time { return now })

	sub, err := f.env.SubmissionSvc.Submit(ctx, f.student.Actor(), submission.NewSubmission{AssignmentID: f.asgmtID, File: pdfFile("a.pdf")})
	require.NoError(t, err)
	f.env.Storage.Put(submission.FileKeyPrefix+"orphan_old", []byte("x"))
	f.env.Storage.Put("elsewhere/old", []byte("x"))

	now = now.Add(30 * time.Minute)
	f.env.Storage.Put(submission.FileKeyPrefix+"orphan_recent", []byte("x"))

	now = now.Add(50 * time.Minute)
	deleted, err := f.env.SubmissionSvc.ReconcileUploads(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.ElementsMatch(t,
		[]string{sub.FileKey, submission.FileKeyPrefix + "orphan_recent", "elsewhere/old"},
		f.env.Storage.Keys(),
	)
}
