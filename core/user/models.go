package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
)

type User struct {
	ID                  string      `json:"id" db:"id"`
	Name                string      `json:"name" db:"name"`
	Email               string      `json:"email" db:"email"`
	Role                access.Role `json:"role" db:"role"`
	PasswordHash        []byte      `json:"-" db:"password_hash"`
	ResetTokenHash      null.String `json:"-" db:"reset_token_hash"`
	ResetTokenExpiresAt null.Time   `json:"-" db:"reset_token_expires_at"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string, cost int) error {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) Actor() access.Actor {
	return access.Actor{ID: u.ID, Role: u.Role}
}

// Ref is the public subset of a User embedded in other resources.
type Ref struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what an admin may change on an existing User.
type UpdateUser struct {
	Role access.Role `json:"role" validate:"required,role"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	uu.Role = access.Role(core.CleanString(string(uu.Role), true /* lower */))
	return validate.Struct(uu)
}

type ResetUserPassword struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search string        `query:"search"`
	Roles  []access.Role `query:"role"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	roles := qf.Roles[:0]
	for _, r := range qf.Roles {
		r = access.Role(core.CleanString(string(r), true /* lower */))
		if r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		roles = nil
	}
	qf.Roles = roles
}

// OrderingFields maps public ordering names to columns.
var OrderingFields = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
}
