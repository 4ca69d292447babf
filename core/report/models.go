package report

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/user"
)

type Report struct {
	ID         string    `json:"id" db:"id"`
	StudentID  string    `json:"student_id" db:"student_id"`
	LecturerID string    `json:"lecturer_id" db:"lecturer_id"`
	Text       string    `json:"report_text" db:"report_text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC

	// read-only, joined from the users
	Student  user.Ref `json:"student" db:"student"`
	Lecturer user.Ref `json:"lecturer" db:"lecturer"`
}

// NewReport contains information needed to create a new Report.
type NewReport struct {
	Text string `json:"report_text" validate:"required,notblank_,max=10000"`
}

func (nr *NewReport) Validate(validate *validator.Validate) error {
	nr.Text = core.CleanString(nr.Text)
	return validate.Struct(nr)
}

type QueryFilter struct {
	StudentID  string
	LecturerID string
}

// OrderingFields maps public ordering names to columns.
var OrderingFields = map[string]string{
	"created_at": "created_at",
}
