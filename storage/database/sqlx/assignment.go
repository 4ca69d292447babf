package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/user"
)

const selectAssignments = `SELECT a.id, a.title, a.description, a.lecturer_id, a.created_at, a.updated_at,
		u.id AS "lecturer.id", u.name AS "lecturer.name", u.email AS "lecturer.email"
	FROM assignments a
	JOIN users u ON u.id = a.lecturer_id`

var assignmentOrdering = prefixed(assignment.OrderingFields, "a")

type assignmentRepository struct {
	db core.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db core.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asgmt assignment.Assignment) (assignment.Assignment, error) {
	if !validID(asgmt.LecturerID) {
		return assignment.Assignment{}, user.ErrNotFound
	}
	asgmt.ID = uuid.NewString()
	q := `INSERT INTO assignments (id, title, description, lecturer_id, created_at, updated_at)
		VALUES (:id, :title, :description, :lecturer_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, asgmt); err != nil {
		if _, ok := foreignKeyConstraint(err); ok {
			return assignment.Assignment{}, user.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return repo.GetAssignment(ctx, asgmt.ID)
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	if !validID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	var asgmt assignment.Assignment
	if err := repo.db.GetContext(ctx, &asgmt, selectAssignments+` WHERE a.id = $1`, id); err != nil {
		if isNoRows(err) {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "selecting assignment")
	}
	return asgmt, nil
}

func (repo *assignmentRepository) filter(filter *assignment.QueryFilter) *where {
	w := new(where)
	if filter != nil && filter.LecturerID != "" {
		if !validID(filter.LecturerID) {
			w.conds = append(w.conds, "false")
			return w
		}
		w.add("a.lecturer_id = ?", filter.LecturerID)
	}
	return w
}

func (repo *assignmentRepository) QueryAssignments(
	ctx context.Context,
	filter *assignment.QueryFilter,
	ordering ...core.DBOrdering,
) ([]assignment.Assignment, error) {
	w := repo.filter(filter)
	q := selectAssignments + w.String() + core.OrderBy(ordering, assignmentOrdering, "a.created_at DESC")

	asgmts := make([]assignment.Assignment, 0)
	if err := repo.db.SelectContext(ctx, &asgmts, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	return asgmts, nil
}

func (repo *assignmentRepository) CountAssignments(ctx context.Context, filter *assignment.QueryFilter) (int, error) {
	w := repo.filter(filter)
	var n int
	if err := repo.db.GetContext(ctx, &n, `SELECT count(*) FROM assignments a`+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting assignments")
	}
	return n, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, asgmt assignment.Assignment) (assignment.Assignment, error) {
	if !validID(asgmt.ID) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	res, err := repo.db.ExecContext(
		ctx,
		`UPDATE assignments SET title = $2, description = $3, updated_at = $4 WHERE id = $1`,
		asgmt.ID, asgmt.Title, asgmt.Description, asgmt.UpdatedAt,
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, err := res.RowsAffected(); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	} else if n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return repo.GetAssignment(ctx, asgmt.ID)
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if !validID(id) {
		return assignment.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		if _, ok := foreignKeyConstraint(err); ok {
			return assignment.ErrHasSubmissions
		}
		return errors.Wrap(err, "deleting assignment")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting assignment")
	} else if n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}
