package dummydb

import (
	"context"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/report"
	"github.com/njautech/schoolhub/core/user"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db}
}

var reportComparers = comparers[report.Report]{
	"created_at": func(a, b report.Report) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *reportRepository) joined(r *report.Report) report.Report {
	rep := *r
	rep.Student = repo.db.userRef(r.StudentID)
	rep.Lecturer = repo.db.userRef(r.LecturerID)
	return rep
}

func (repo *reportRepository) CreateReport(_ context.Context, rep report.Report) (report.Report, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[rep.StudentID]; !ok {
		return report.Report{}, user.ErrNotFound
	}
	if _, ok := repo.db.users[rep.LecturerID]; !ok {
		return report.Report{}, user.ErrNotFound
	}
	rep.ID = newID()
	rep.Student, rep.Lecturer = user.Ref{}, user.Ref{}
	repo.db.reports[rep.ID] = &rep
	return repo.joined(&rep), nil
}

func (repo *reportRepository) query(filter *report.QueryFilter) []report.Report {
	if filter == nil {
		filter = new(report.QueryFilter)
	}
	reps := make([]report.Report, 0)
	for _, r := range repo.db.reports {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.LecturerID != "" && r.LecturerID != filter.LecturerID {
			continue
		}
		reps = append(reps, repo.joined(r))
	}
	return reps
}

func (repo *reportRepository) QueryReports(_ context.Context, filter *report.QueryFilter, ordering ...core.DBOrdering) ([]report.Report, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reps := repo.query(filter)
	sortRows(reps, reportComparers, ordering, core.DBOrdering{Field: "created_at"})
	return reps, nil
}

func (repo *reportRepository) CountReports(_ context.Context, filter *report.QueryFilter) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.query(filter)), nil
}
