package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
)

const selectSubmissions = `SELECT s.id, s.assignment_id, s.student_id, s.file_key, s.file_url, s.file_name,
		s.content_type, s.file_size, s.comment, s.graded, s.grade, s.feedback, s.submitted_at, s.graded_at,
		a.title AS assignment_title, a.lecturer_id,
		u.id AS "student.id", u.name AS "student.name", u.email AS "student.email"
	FROM submissions s
	JOIN assignments a ON a.id = s.assignment_id
	JOIN users u ON u.id = s.student_id`

var submissionOrdering = prefixed(submission.OrderingFields, "s")

type submissionRepository struct {
	db core.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db core.DB) submission.Repository {
	return &submissionRepository{db: db}
}

// CreateSubmission relies on the UNIQUE (assignment_id, student_id) constraint, so concurrent
// submissions of the same pair store exactly one row.
func (repo *submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	if !validID(sub.AssignmentID) {
		return submission.Submission{}, assignment.ErrNotFound
	}
	if !validID(sub.StudentID) {
		return submission.Submission{}, user.ErrNotFound
	}

	sub.ID = uuid.NewString()
	q := `INSERT INTO submissions (
			id, assignment_id, student_id, file_key, file_url, file_name, content_type, file_size,
			comment, graded, grade, feedback, submitted_at, graded_at
		) VALUES (
			:id, :assignment_id, :student_id, :file_key, :file_url, :file_name, :content_type, :file_size,
			:comment, :graded, :grade, :feedback, :submitted_at, :graded_at
		)`
	if _, err := repo.db.NamedExecContext(ctx, q, sub); err != nil {
		if isUniqueViolation(err) {
			return submission.Submission{}, submission.ErrDuplicate
		}
		if constraint, ok := foreignKeyConstraint(err); ok {
			if constraint == "submissions_student_id_fkey" {
				return submission.Submission{}, user.ErrNotFound
			}
			return submission.Submission{}, assignment.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return repo.GetSubmission(ctx, sub.ID)
}

func (repo *submissionRepository) get(ctx context.Context, w *where) (submission.Submission, error) {
	var sub submission.Submission
	if err := repo.db.GetContext(ctx, &sub, selectSubmissions+w.String(), w.args...); err != nil {
		if isNoRows(err) {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "selecting submission")
	}
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	if !validID(id) {
		return submission.Submission{}, submission.ErrNotFound
	}
	w := new(where)
	w.add("s.id = ?", id)
	return repo.get(ctx, w)
}

func (repo *submissionRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (submission.Submission, error) {
	if !validID(assignmentID) || !validID(studentID) {
		return submission.Submission{}, submission.ErrNotFound
	}
	w := new(where)
	w.add("s.assignment_id = ?", assignmentID)
	w.add("s.student_id = ?", studentID)
	return repo.get(ctx, w)
}

func (repo *submissionRepository) filter(filter *submission.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	for _, f := range []struct{ col, id string }{
		{"s.assignment_id", filter.AssignmentID},
		{"s.student_id", filter.StudentID},
		{"a.lecturer_id", filter.LecturerID},
	} {
		if f.id == "" {
			continue
		}
		if !validID(f.id) {
			w.conds = append(w.conds, "false")
			continue
		}
		w.add(f.col+" = ?", f.id)
	}
	if filter.Graded != nil {
		w.add("s.graded = ?", *filter.Graded)
	}
	return w
}

func (repo *submissionRepository) QuerySubmissions(
	ctx context.Context,
	filter *submission.QueryFilter,
	ordering ...core.DBOrdering,
) ([]submission.Submission, error) {
	w := repo.filter(filter)
	q := selectSubmissions + w.String() + core.OrderBy(ordering, submissionOrdering, "s.submitted_at DESC")

	subs := make([]submission.Submission, 0)
	if err := repo.db.SelectContext(ctx, &subs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	return subs, nil
}

func (repo *submissionRepository) CountSubmissions(ctx context.Context, filter *submission.QueryFilter) (int, error) {
	w := repo.filter(filter)
	q := `SELECT count(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id` + w.String()
	var n int
	if err := repo.db.GetContext(ctx, &n, q, w.args...); err != nil {
		return 0, errors.Wrap(err, "counting submissions")
	}
	return n, nil
}

// GradeSubmission only touches ungraded rows, so two lecturers grading at once cannot both succeed.
func (repo *submissionRepository) GradeSubmission(
	ctx context.Context,
	id string,
	grade int,
	feedback null.String,
	gradedAt time.Time,
) (submission.Submission, error) {
	if !validID(id) {
		return submission.Submission{}, submission.ErrNotFound
	}
	res, err := repo.db.ExecContext(
		ctx,
		`UPDATE submissions SET graded = true, grade = $2, feedback = $3, graded_at = $4 WHERE id = $1 AND NOT graded`,
		id, grade, feedback, gradedAt,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "grading submission")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "grading submission")
	}

	sub, err := repo.GetSubmission(ctx, id)
	if err != nil {
		return submission.Submission{}, err
	}
	if n == 0 {
		return submission.Submission{}, submission.ErrAlreadyGraded
	}
	return sub, nil
}

func (repo *submissionRepository) ListFileKeys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &keys, `SELECT file_key FROM submissions ORDER BY file_key`); err != nil {
		return nil, errors.Wrap(err, "selecting file keys")
	}
	return keys, nil
}
