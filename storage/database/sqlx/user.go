package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/user"
)

const userColumns = `id, name, email, role, password_hash, reset_token_hash, reset_token_expires_at, created_at, updated_at`

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.NewString()
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :name, :email, :role, :password_hash, :reset_token_hash, :reset_token_expires_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, usr); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	w := new(where)
	if filter.ID != "" {
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		w.add("lower(email) = lower(?)", filter.Email)
	}
	if len(w.conds) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := repo.db.GetContext(ctx, &usr, `SELECT `+userColumns+` FROM users`+w.String(), w.args...); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return usr, nil
}

func (repo *userRepository) filter(filter *user.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.Search != "" {
		w.add("(name ILIKE ? OR email ILIKE ?)", likePattern(filter.Search))
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		w.add("role = ANY(?)", pq.Array(roles))
	}
	return w
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	w := repo.filter(filter)
	q := `SELECT ` + userColumns + ` FROM users` + w.String() +
		core.OrderBy(ordering, user.OrderingFields, "created_at DESC")

	users := make([]user.User, 0)
	if err := repo.db.SelectContext(ctx, &users, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return users, nil
}

func (repo *userRepository) CountUsers(ctx context.Context, role access.Role) (int, error) {
	w := new(where)
	if role != "" {
		w.add("role = ?", role)
	}
	var n int
	if err := repo.db.GetContext(ctx, &n, `SELECT count(*) FROM users`+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return n, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	q := `UPDATE users
		SET name = $2, email = $3, role = $4, password_hash = COALESCE($5, password_hash), updated_at = $6
		WHERE id = $1
		RETURNING ` + userColumns

	var pwdHash interface{} // keep the stored hash when none is given
	if usr.PasswordHash != nil {
		pwdHash = usr.PasswordHash
	}
	var updated user.User
	err := repo.db.GetContext(ctx, &updated, q, usr.ID, usr.Name, usr.Email, usr.Role, pwdHash, usr.UpdatedAt)
	switch {
	case err == nil:
		return updated, nil
	case isNoRows(err):
		return user.User{}, user.ErrNotFound
	case isUniqueViolation(err):
		return user.User{}, user.ErrEmailExists
	default:
		return user.User{}, errors.Wrap(err, "updating user")
	}
}

func (repo *userRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if !validID(id) {
		return user.ErrNotFound
	}
	res, err := repo.db.ExecContext(
		ctx,
		`UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3 WHERE id = $1`,
		id, tokenHash, expiresAt,
	)
	if err != nil {
		return errors.Wrap(err, "setting reset token")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "setting reset token")
	} else if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) ConsumePasswordResetToken(ctx context.Context, tokenHash string, pwdHash []byte, now time.Time) (user.User, error) {
	q := `UPDATE users
		SET password_hash = $2, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = $3
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $3
		RETURNING ` + userColumns

	var usr user.User
	if err := repo.db.GetContext(ctx, &usr, q, tokenHash, pwdHash, now); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrInvalidResetToken
		}
		return user.User{}, errors.Wrap(err, "consuming reset token")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	if !validID(id) {
		return user.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if _, ok := foreignKeyConstraint(err); ok {
			return user.ErrUserInUse
		}
		return errors.Wrap(err, "deleting user")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting user")
	} else if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
