package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/user"
)

const TitleMaxLen = 150

type Assignment struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	LecturerID  string    `json:"lecturer_id" db:"lecturer_id"`
	Lecturer    user.Ref  `json:"lecturer" db:"lecturer"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string `json:"title" validate:"required,notblank_,max=150"`
	Description string `json:"description" validate:"max=5000"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
type UpdateAssignment struct {
	Title       *string `json:"title" validate:"omitempty,notblank_,max=150"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		title := core.CleanString(*ua.Title)
		ua.Title = &title
	}
	if ua.Description != nil {
		desc := core.CleanString(*ua.Description)
		ua.Description = &desc
	}
	return validate.Struct(ua)
}

type QueryFilter struct {
	LecturerID string `query:"lecturer_id"`
}

// OrderingFields maps public ordering names to columns.
var OrderingFields = map[string]string{
	"title":      "title",
	"created_at": "created_at",
}
