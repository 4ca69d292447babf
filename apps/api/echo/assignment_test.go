package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/dashboard"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/testutil"
)

func Test_assignmentApi(t *testing.T) {
	a := setup(t)
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@example.com", "", access.RoleAdmin)
	ada := testutil.CreateUser(t, a.UserRepo, "Ada Lovelace", "ada@example.com", "", access.RoleLecturer)
	alan := testutil.CreateUser(t, a.UserRepo, "Alan Turing", "alan@example.com", "", access.RoleLecturer)
	student := testutil.CreateUser(t, a.UserRepo, "Student", "student@example.com", "", access.RoleStudent)

	essay := testutil.CreateAssignment(t, a.AssignmentRepo, ada, "Essay", t0)
	lab := testutil.CreateAssignment(t, a.AssignmentRepo, alan, "Lab", t0.Add(time.Hour))

	adaToken := a.getToken(t, ada)
	alanToken := a.getToken(t, alan)
	studentToken := a.getToken(t, student)
	adminToken := a.getToken(t, admin)
	forbidden := marshalObj(t, newHTTPErr(http.StatusForbidden, "permission denied"))
	notFound := marshalObj(t, newHTTPErr(http.StatusNotFound, "assignment not found"))

	runHTTPTests(t, a, []httpTest{
		{
			name: "create: student", method: http.MethodPost, path: "/addassignment", token: studentToken,
			body: []byte(`{"title":"Quiz"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "create: admin", method: http.MethodPost, path: "/addassignment", token: adminToken,
			body: []byte(`{"title":"Quiz"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "create: blank title", method: http.MethodPost, path: "/addassignment", token: adaToken,
			body: []byte(`{"title":"   "}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "list: newest first", path: "/assignments", token: studentToken,
			wantCode: http.StatusOK, wantData: marshalList(t, lab, essay),
		},
		{
			name: "list: by title", path: "/assignments?ordering=title", token: studentToken,
			wantCode: http.StatusOK, wantData: marshalList(t, essay, lab),
		},
		{
			name: "list: by lecturer", path: "/assignments/lecturer/" + ada.ID, token: studentToken,
			wantCode: http.StatusOK, wantData: marshalList(t, essay),
		},
		{
			name: "list: by lecturer query", path: "/assignments?lecturer_id=" + alan.ID, token: adaToken,
			wantCode: http.StatusOK, wantData: marshalList(t, lab),
		},
		{
			name: "detail: unknown", path: "/assignment/nope", token: studentToken,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "detail: other lecturer", path: "/assignment/" + essay.ID, token: alanToken,
			wantCode: http.StatusOK,
			wantData: marshalObj(t, submission.AssignmentDetail{Assignment: essay, Submissions: []submission.Submission{}}),
		},
		{
			name: "update: not owner", method: http.MethodPut, path: "/assignments/" + essay.ID, token: alanToken,
			body: []byte(`{"title":"Mine now"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "update: student", method: http.MethodPut, path: "/assignments/" + essay.ID, token: studentToken,
			body: []byte(`{"title":"Mine now"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "update: unknown", method: http.MethodPut, path: "/assignments/nope", token: adaToken,
			body: []byte(`{"title":"Essay 2"}`), wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "summary: not owner", path: "/assignments/" + essay.ID + "/summary", token: alanToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "delete: not owner", method: http.MethodDelete, path: "/assignments/" + essay.ID, token: alanToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
	})

	// create
	req, rec := newAuthRequest(http.MethodPost, "/addassignment", adaToken, []byte(`{"title":"  Quiz  ","description":"Ten questions"}`))
	a.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var quiz assignment.Assignment
	decode(t, rec.Body, &quiz)
	assert.NotEmpty(t, quiz.ID)
	assert.Equal(t, "Quiz", quiz.Title)
	assert.Equal(t, ada.ID, quiz.LecturerID)
	assert.Equal(t, "Ada Lovelace", quiz.Lecturer.Name)

	// update: owner, then admin
	req, rec = newAuthRequest(http.MethodPut, "/assignments/"+quiz.ID, adaToken, []byte(`{"description":"Twelve questions"}`))
	a.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec.Body, &quiz)
	assert.Equal(t, "Quiz", quiz.Title)
	assert.Equal(t, "Twelve questions", quiz.Description)

	req, rec = newAuthRequest(http.MethodPut, "/assignments/"+quiz.ID, adminToken, []byte(`{"title":"Final quiz"}`))
	a.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec.Body, &quiz)
	assert.Equal(t, "Final quiz", quiz.Title)

	// delete is refused once submitted to
	req, rec = newUploadRequest(t, "/submit/"+essay.ID, studentToken, "essay.txt", "text/plain", []byte("my essay"), "")
	a.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodDelete, "/assignments/"+essay.ID, adaToken)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marshalObj(t, newHTTPErr(http.StatusConflict, "assignment has submissions and cannot be deleted")),
	}, a.serve(req, rec))

	req, rec = newAuthRequest(http.MethodDelete, "/assignments/"+quiz.ID, adaToken)
	a.serve(req, rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/assignment/"+quiz.ID, adaToken)
	a.serve(req, rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_assignmentApi_detailAndSummary(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@example.com", "", access.RoleAdmin)
	ada := testutil.CreateUser(t, a.UserRepo, "Ada Lovelace", "ada@example.com", "", access.RoleLecturer)
	alice := testutil.CreateUser(t, a.UserRepo, "Alice", "alice@example.com", "", access.RoleStudent)
	bob := testutil.CreateUser(t, a.UserRepo, "Bob", "bob@example.com", "", access.RoleStudent)
	testutil.CreateUser(t, a.UserRepo, "Carol", "carol@example.com", "", access.RoleStudent)
	essay := testutil.CreateAssignment(t, a.AssignmentRepo, ada, "Essay")

	for _, usr := range []struct{ token, content string }{
		{a.getToken(t, alice), "alice's essay"},
		{a.getToken(t, bob), "bob's essay"},
	} {
		req, rec := newUploadRequest(t, "/submit/"+essay.ID, usr.token, "essay.md", "text/markdown", []byte(usr.content), "")
		a.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	detail := func(token string) submission.AssignmentDetail {
		req, rec := newAuthRequest(http.MethodGet, "/assignment/"+essay.ID, token)
		a.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var d submission.AssignmentDetail
		decode(t, rec.Body, &d)
		return d
	}

	d := detail(a.getToken(t, ada))
	assert.Equal(t, essay.ID, d.ID)
	assert.Len(t, d.Submissions, 2)
	assert.Len(t, detail(a.getToken(t, admin)).Submissions, 2)

	d = detail(a.getToken(t, alice))
	require.Len(t, d.Submissions, 1)
	assert.Equal(t, alice.ID, d.Submissions[0].StudentID)

	// summary
	var summary dashboard.AssignmentCompletion
	req, rec := newAuthRequest(http.MethodGet, "/assignments/"+essay.ID+"/summary", a.getToken(t, ada))
	a.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec.Body, &summary)
	assert.Equal(t, 2, summary.Submitted)
	assert.Equal(t, 3, summary.TotalStudents)
	assert.Equal(t, 66.67, summary.Rate)

	req, rec = newAuthRequest(http.MethodGet, "/assignments/"+essay.ID+"/summary", a.getToken(t, alice))
	a.serve(req, rec)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
