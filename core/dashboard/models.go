package dashboard

import (
	"github.com/volatiletech/null/v8"
)

const (
	StatusSubmitted    = "submitted"
	StatusNotSubmitted = "not_submitted"
)

type (
	StudentSummary struct {
		StudentName      string       `json:"student_name"`
		TotalAssignments int          `json:"total_assignments"`
		TotalSubmissions int          `json:"total_submissions"`
		AverageGrade     null.Float64 `json:"average_grade"`
	}

	LecturerSummary struct {
		TotalStudents    int `json:"total_students"` // distinct submitters
		TotalAssignments int `json:"total_assignments"`
		PendingReviews   int `json:"pending_reviews"`
		TotalReports     int `json:"total_reports"`
	}

	AdminSummary struct {
		TotalLecturers   int `json:"total_lecturers"`
		TotalStudents    int `json:"total_students"`
		TotalAssignments int `json:"total_assignments"`
		TotalSubmissions int `json:"total_submissions"`
	}

	// AssignmentCompletion compares the submissions of an assignment with the current number of students.
	AssignmentCompletion struct {
		AssignmentID  string  `json:"assignment_id"`
		Submitted     int     `json:"submitted"`
		TotalStudents int     `json:"total_students"`
		Rate          float64 `json:"rate"` // percentage
	}

	StudentCharts struct {
		Assignments []string    `json:"assignments"`
		Grades      []int       `json:"grades"`
		GradeTrend  []WeekPoint `json:"grade_trend"`
	}

	// LecturerCharts holds one entry per assignment of the lecturer, in the same order.
	LecturerCharts struct {
		AssignmentTitles     []string       `json:"assignment_titles"`
		AverageGrades        []null.Float64 `json:"average_grades"`
		CompletedSubmissions []int          `json:"completed_submissions"`
		PendingSubmissions   []int          `json:"pending_submissions"`
	}

	AdminCharts struct {
		AssignmentsPerWeek []WeekPoint `json:"assignments_per_week"`
		AdminCount         int         `json:"admin_count"`
		LecturerCount      int         `json:"lecturer_count"`
		StudentCount       int         `json:"student_count"`
	}

	// StudentAssignmentRow is the state of one assignment for the calling student.
	StudentAssignmentRow struct {
		ID               string   `json:"id"`
		Title            string   `json:"title"`
		Lecturer         string   `json:"lecturer"`
		SubmissionStatus string   `json:"submission_status"`
		Graded           bool     `json:"graded"`
		Grade            null.Int `json:"grade"`
	}

	StudentRow struct {
		ID             string       `json:"id"`
		Name           string       `json:"name"`
		Email          string       `json:"email"`
		CompletionRate float64      `json:"completion_rate"` // percentage
		AverageGrade   null.Float64 `json:"average_grade"`
	}
)
