package dummydb

import (
	"context"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

var userComparers = comparers[user.User]{
	"name":       func(a, b user.User) int { return compareStrings(a.Name, b.Name) },
	"email":      func(a, b user.User) int { return compareStrings(a.Email, b.Email) },
	"role":       func(a, b user.User) int { return compareStrings(string(a.Role), string(b.Role)) },
	"created_at": func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *userRepository) emailTaken(email, excludedID string) bool {
	for _, usr := range repo.db.users {
		if usr.ID != excludedID && strings.EqualFold(usr.Email, email) {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.emailTaken(usr.Email, "") {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = newID()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok && (filter.Email == "" || strings.EqualFold(usr.Email, filter.Email)) {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.users {
			if strings.EqualFold(usr.Email, filter.Email) {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter == nil {
		filter = new(user.QueryFilter)
	}
	search := strings.ToLower(filter.Search)

	users := make([]user.User, 0)
	for _, usr := range repo.db.users {
		// users with search keyword matching any Name or Email ?
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			continue
		}
		// users with any of the specified roles
		if len(filter.Roles) > 0 && !hasRole(usr.Role, filter.Roles) {
			continue
		}
		users = append(users, *usr)
	}
	sortRows(users, userComparers, ordering, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func hasRole(role access.Role, roles []access.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (repo *userRepository) CountUsers(_ context.Context, role access.Role) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if role == "" {
		return len(repo.db.users), nil
	}
	var n int
	for _, usr := range repo.db.users {
		if usr.Role == role {
			n++
		}
	}
	return n, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origUsr, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	origUsr.Name = usr.Name
	origUsr.Email = usr.Email
	origUsr.Role = usr.Role
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	origUsr.UpdatedAt = usr.UpdatedAt
	return *origUsr, nil
}

func (repo *userRepository) SetPasswordResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.ResetTokenHash = null.StringFrom(tokenHash)
	usr.ResetTokenExpiresAt = null.TimeFrom(expiresAt)
	return nil
}

func (repo *userRepository) ConsumePasswordResetToken(_ context.Context, tokenHash string, pwdHash []byte, now time.Time) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, usr := range repo.db.users {
		if !usr.ResetTokenHash.Valid || usr.ResetTokenHash.String != tokenHash {
			continue
		}
		if !usr.ResetTokenExpiresAt.Valid || !usr.ResetTokenExpiresAt.Time.After(now) {
			break
		}
		usr.PasswordHash = pwdHash
		usr.ResetTokenHash = null.String{}
		usr.ResetTokenExpiresAt = null.Time{}
		usr.UpdatedAt = now
		return *usr, nil
	}
	return user.User{}, user.ErrInvalidResetToken
}

func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return user.ErrNotFound
	}
	for _, a := range repo.db.assignments {
		if a.LecturerID == id {
			return user.ErrUserInUse
		}
	}
	for _, s := range repo.db.submissions {
		if s.StudentID == id {
			return user.ErrUserInUse
		}
	}
	for _, r := range repo.db.reports {
		if r.StudentID == id || r.LecturerID == id {
			return user.ErrUserInUse
		}
	}
	delete(repo.db.users, id)
	return nil
}
