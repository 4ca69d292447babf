package assignment_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/testutil"
)

func strPtr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lecturer := testutil.CreateUser(t, env.UserRepo, "Lecturer", "lect@example.com", "", access.RoleLecturer)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@example.com", "", access.RoleStudent)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@example.com", "", access.RoleAdmin)

	tests := []struct {
		name    string
		actor   access.Actor
		na      assignment.NewAssignment
		wantErr func(error) bool
	}{
		{name: "student forbidden", actor: student.Actor(), na: assignment.NewAssignment{Title: "Essay"}, wantErr: core.IsForbidden},
		{name: "admin forbidden", actor: admin.Actor(), na: assignment.NewAssignment{Title: "Essay"}, wantErr: core.IsForbidden},
		{
			name: "stale lecturer token", actor: access.Actor{ID: student.ID, Role: access.RoleLecturer},
			na: assignment.NewAssignment{Title: "Essay"}, wantErr: core.IsForbidden,
		},
		{name: "blank title", actor: lecturer.Actor(), na: assignment.NewAssignment{Title: "   "}, wantErr: core.IsValidation},
		{
			name: "title too long", actor: lecturer.Actor(),
			na: assignment.NewAssignment{Title: strings.Repeat("a", 151)}, wantErr: core.IsValidation,
		},
		{name: "ok", actor: lecturer.Actor(), na: assignment.NewAssignment{Title: " Essay ", Description: "Write one."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asgmt, err := env.AssignmentSvc.Create(ctx, tt.actor, tt.na)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Essay", asgmt.Title)
			assert.Equal(t, lecturer.ID, asgmt.LecturerID)
			assert.Equal(t, "Lecturer", asgmt.Lecturer.Name)
		})
	}
}

func TestService_UpdateDelete_ownership(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@example.com", "", access.RoleLecturer)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other@example.com", "", access.RoleLecturer)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@example.com", "", access.RoleStudent)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@example.com", "", access.RoleAdmin)
	asgmt := testutil.CreateAssignment(t, env.AssignmentRepo, owner, "Essay")

	update := func(actor access.Actor, id, title string) error {
		_, err := env.AssignmentSvc.Update(ctx, actor, id, assignment.UpdateAssignment{Title: strPtr(title)})
		return err
	}

	assert.True(t, core.IsForbidden(update(student.Actor(), asgmt.ID, "x")), "students never update")
	assert.True(t, core.IsForbidden(update(other.Actor(), asgmt.ID, "x")), "only the owner lecturer")
	assert.True(t, core.IsNotFound(update(owner.Actor(), "nope", "x")))
	assert.True(t, core.IsValidation(update(owner.Actor(), asgmt.ID, " ")))
	assert.NoError(t, update(owner.Actor(), asgmt.ID, "Essay v2"))
	assert.NoError(t, update(admin.Actor(), asgmt.ID, "Essay v3"), "admins bypass ownership")

	got, err := env.AssignmentSvc.Retrieve(ctx, student.Actor(), asgmt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Essay v3", got.Title)
	assert.Equal(t, owner.ID, got.LecturerID, "ownership is immutable")

	assert.True(t, core.IsForbidden(env.AssignmentSvc.Delete(ctx, other.Actor(), asgmt.ID)))
	assert.True(t, core.IsForbidden(env.AssignmentSvc.Delete(ctx, student.Actor(), asgmt.ID)))

	// blocked while submissions exist
	_, err = env.SubmissionRepo.CreateSubmission(ctx, submission.Submission{
		AssignmentID: asgmt.ID, StudentID: student.ID, FileKey: "submissions/k", FileName: "a.pdf",
	})
	require.NoError(t, err)
	assert.True(t, core.IsConflict(env.AssignmentSvc.Delete(ctx, owner.Actor(), asgmt.ID)))

	other2 := testutil.CreateAssignment(t, env.AssignmentRepo, owner, "Lab")
	assert.NoError(t, env.AssignmentSvc.Delete(ctx, admin.Actor(), other2.ID))
	_, err = env.AssignmentSvc.Get(ctx, other2.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	l1 := testutil.CreateUser(t, env.UserRepo, "L One", "l1@example.com", "", access.RoleLecturer)
	l2 := testutil.CreateUser(t, env.UserRepo, "L Two", "l2@example.com", "", access.RoleLecturer)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@example.com", "", access.RoleStudent)
	testutil.CreateAssignment(t, env.AssignmentRepo, l1, "B")
	testutil.CreateAssignment(t, env.AssignmentRepo, l1, "A")
	testutil.CreateAssignment(t, env.AssignmentRepo, l2, "C")

	all, err := env.AssignmentSvc.Query(ctx, student.Actor(), nil, core.DBOrdering{Field: "title", Ascending: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{all[0].Title, all[1].Title, all[2].Title})

	mine, err := env.AssignmentSvc.Query(ctx, student.Actor(), &assignment.QueryFilter{LecturerID: l1.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = env.AssignmentSvc.Query(ctx, access.Actor{ID: "x", Role: "guest"}, nil)
	assert.True(t, core.IsForbidden(err))
}
