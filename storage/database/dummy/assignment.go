package dummydb

import (
	"context"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/user"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

var assignmentComparers = comparers[assignment.Assignment]{
	"title":      func(a, b assignment.Assignment) int { return compareStrings(a.Title, b.Title) },
	"created_at": func(a, b assignment.Assignment) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *assignmentRepository) joined(a *assignment.Assignment) assignment.Assignment {
	asgmt := *a
	asgmt.Lecturer = repo.db.userRef(a.LecturerID)
	return asgmt
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, asgmt assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[asgmt.LecturerID]; !ok {
		return assignment.Assignment{}, user.ErrNotFound
	}
	asgmt.ID = newID()
	asgmt.Lecturer = user.Ref{}
	repo.db.assignments[asgmt.ID] = &asgmt
	return repo.joined(&asgmt), nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return repo.joined(a), nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) query(filter *assignment.QueryFilter) []assignment.Assignment {
	if filter == nil {
		filter = new(assignment.QueryFilter)
	}
	asgmts := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignments {
		if filter.LecturerID != "" && a.LecturerID != filter.LecturerID {
			continue
		}
		asgmts = append(asgmts, repo.joined(a))
	}
	return asgmts
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter *assignment.QueryFilter, ordering ...core.DBOrdering) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	asgmts := repo.query(filter)
	sortRows(asgmts, assignmentComparers, ordering, core.DBOrdering{Field: "created_at"})
	return asgmts, nil
}

func (repo *assignmentRepository) CountAssignments(_ context.Context, filter *assignment.QueryFilter) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.query(filter)), nil
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, asgmt assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.assignments[asgmt.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	// ownership is immutable
	orig.Title = asgmt.Title
	orig.Description = asgmt.Description
	orig.UpdatedAt = asgmt.UpdatedAt
	return repo.joined(orig), nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	for _, s := range repo.db.submissions {
		if s.AssignmentID == id {
			return assignment.ErrHasSubmissions
		}
	}
	delete(repo.db.assignments, id)
	return nil
}
