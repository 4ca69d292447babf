package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/report"
	"github.com/njautech/schoolhub/core/user"
)

const selectReports = `SELECT r.id, r.student_id, r.lecturer_id, r.report_text, r.created_at,
		st.id AS "student.id", st.name AS "student.name", st.email AS "student.email",
		lec.id AS "lecturer.id", lec.name AS "lecturer.name", lec.email AS "lecturer.email"
	FROM reports r
	JOIN users st ON st.id = r.student_id
	JOIN users lec ON lec.id = r.lecturer_id`

var reportOrdering = prefixed(report.OrderingFields, "r")

type reportRepository struct {
	db core.DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db core.DB) report.Repository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) CreateReport(ctx context.Context, rep report.Report) (report.Report, error) {
	if !validID(rep.StudentID) || !validID(rep.LecturerID) {
		return report.Report{}, user.ErrNotFound
	}
	rep.ID = uuid.NewString()
	q := `INSERT INTO reports (id, student_id, lecturer_id, report_text, created_at)
		VALUES (:id, :student_id, :lecturer_id, :report_text, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, rep); err != nil {
		if _, ok := foreignKeyConstraint(err); ok {
			return report.Report{}, user.ErrNotFound
		}
		return report.Report{}, errors.Wrap(err, "inserting report")
	}

	var created report.Report
	if err := repo.db.GetContext(ctx, &created, selectReports+` WHERE r.id = $1`, rep.ID); err != nil {
		return report.Report{}, errors.Wrap(err, "selecting report")
	}
	return created, nil
}

func (repo *reportRepository) filter(filter *report.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	for _, f := range []struct{ col, id string }{
		{"r.student_id", filter.StudentID},
		{"r.lecturer_id", filter.LecturerID},
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
	return w
}

func (repo *reportRepository) QueryReports(ctx context.Context, filter *report.QueryFilter, ordering ...core.DBOrdering) ([]report.Report, error) {
	w := repo.filter(filter)
	q := selectReports + w.String() + core.OrderBy(ordering, reportOrdering, "r.created_at DESC")

	reps := make([]report.Report, 0)
	if err := repo.db.SelectContext(ctx, &reps, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting reports")
	}
	return reps, nil
}

func (repo *reportRepository) CountReports(ctx context.Context, filter *report.QueryFilter) (int, error) {
	w := repo.filter(filter)
	var n int
	if err := repo.db.GetContext(ctx, &n, `SELECT count(*) FROM reports r`+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting reports")
	}
	return n, nil
}
