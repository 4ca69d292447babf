package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db}
}

var submissionComparers = comparers[submission.Submission]{
	"submitted_at": func(a, b submission.Submission) int { return a.SubmittedAt.Compare(b.SubmittedAt) },
	"graded_at":    func(a, b submission.Submission) int { return a.GradedAt.Time.Compare(b.GradedAt.Time) },
	"grade":        func(a, b submission.Submission) int { return compareInts(int64(a.Grade.Int), int64(b.Grade.Int)) },
}

func (repo *submissionRepository) joined(s *submission.Submission) submission.Submission {
	sub := *s
	if a, ok := repo.db.assignments[s.AssignmentID]; ok {
		sub.AssignmentTitle = a.Title
		sub.LecturerID = a.LecturerID
	}
	sub.Student = repo.db.userRef(s.StudentID)
	return sub
}

// CreateSubmission checks the (assignment, student) pair and inserts under the same lock,
// like the UNIQUE constraint of the SQL store.
func (repo *submissionRepository) CreateSubmission(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[sub.AssignmentID]; !ok {
		return submission.Submission{}, assignment.ErrNotFound
	}
	if _, ok := repo.db.users[sub.StudentID]; !ok {
		return submission.Submission{}, user.ErrNotFound
	}
	for _, s := range repo.db.submissions {
		if s.AssignmentID == sub.AssignmentID && s.StudentID == sub.StudentID {
			return submission.Submission{}, submission.ErrDuplicate
		}
	}

	sub.ID = newID()
	sub.AssignmentTitle, sub.LecturerID, sub.Student = "", "", user.Ref{}
	repo.db.submissions[sub.ID] = &sub
	return repo.joined(&sub), nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return repo.joined(s), nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) FindSubmission(_ context.Context, assignmentID, studentID string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return repo.joined(s), nil
		}
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) query(filter *submission.QueryFilter) []submission.Submission {
	if filter == nil {
		filter = new(submission.QueryFilter)
	}
	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.submissions {
		sub := repo.joined(s)
		if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		if filter.LecturerID != "" && sub.LecturerID != filter.LecturerID {
			continue
		}
		if filter.Graded != nil && sub.Graded != *filter.Graded {
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter *submission.QueryFilter, ordering ...core.DBOrdering) ([]submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := repo.query(filter)
	sortRows(subs, submissionComparers, ordering, core.DBOrdering{Field: "submitted_at"})
	return subs, nil
}

func (repo *submissionRepository) CountSubmissions(_ context.Context, filter *submission.QueryFilter) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.query(filter)), nil
}

func (repo *submissionRepository) GradeSubmission(
	_ context.Context,
	id string,
	grade int,
	feedback null.String,
	gradedAt time.Time,
) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	if s.Graded {
		return submission.Submission{}, submission.ErrAlreadyGraded
	}
	s.Graded = true
	s.Grade = null.IntFrom(grade)
	s.Feedback = feedback
	s.GradedAt = null.TimeFrom(gradedAt)
	return repo.joined(s), nil
}

func (repo *submissionRepository) ListFileKeys(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	keys := make([]string, 0, len(repo.db.submissions))
	for _, s := range repo.db.submissions {
		keys = append(keys, s.FileKey)
	}
	sort.Strings(keys)
	return keys, nil
}
