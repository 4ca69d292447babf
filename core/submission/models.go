package submission

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/user"
)

const (
	GradeMin = 0
	GradeMax = 100

	FeedbackMaxLen = 5000
)

type Submission struct {
	ID           string      `json:"id" db:"id"`
	AssignmentID string      `json:"assignment_id" db:"assignment_id"`
	StudentID    string      `json:"student_id" db:"student_id"`
	FileKey      string      `json:"-" db:"file_key"`
	FileURL      string      `json:"file_url" db:"file_url"`
	FileName     string      `json:"file_name" db:"file_name"`
	ContentType  string      `json:"content_type" db:"content_type"`
	FileSize     int64       `json:"file_size" db:"file_size"`
	Comment      null.String `json:"comment" db:"comment"`
	Graded       bool        `json:"graded" db:"graded"`
	Grade        null.Int    `json:"grade" db:"grade"`
	Feedback     null.String `json:"feedback" db:"feedback"`
	SubmittedAt  time.Time   `json:"submitted_at" db:"submitted_at"` // UTC
	GradedAt     null.Time   `json:"graded_at" db:"graded_at"`       // UTC

	// read-only, joined from the assignment and the student
	AssignmentTitle string   `json:"assignment_title" db:"assignment_title"`
	LecturerID      string   `json:"lecturer_id" db:"lecturer_id"`
	Student         user.Ref `json:"student" db:"student"`
}

// File is an uploaded document. Size is the declared size in bytes.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// NewSubmission contains information needed to create a new Submission.
type NewSubmission struct {
	AssignmentID string
	Comment      string
	File         File
}

// GradeSubmission contains the grade and feedback a lecturer gives a Submission.
type GradeSubmission struct {
	Grade    *int   `json:"grade" validate:"required"`
	Feedback string `json:"comment" validate:"max=5000"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

type QueryFilter struct {
	AssignmentID string
	StudentID    string
	LecturerID   string
	Graded       *bool `query:"graded"`
}

// OrderingFields maps public ordering names to columns.
var OrderingFields = map[string]string{
	"submitted_at": "submitted_at",
	"graded_at":    "graded_at",
	"grade":        "grade",
}
