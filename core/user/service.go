package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrEmailExists        = core.NewConflictError("a user with this email already exists")
	ErrInvalidCredentials = core.NewAuthError("invalid email or password")
	ErrInvalidResetToken  = core.NewValidationError(errors.New("invalid or expired password reset token"))
	ErrUserInUse          = core.NewConflictError("user still owns assignments, submissions or reports")
	ErrSelfManagement     = core.NewPermissionError("you cannot change or delete your own account")
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		// CountUsers counts users holding role, or all users when role is empty.
		CountUsers(ctx context.Context, role access.Role) (int, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
		// ConsumePasswordResetToken replaces the password hash of the user holding an unexpired tokenHash
		// and clears the token in the same write. Returns ErrInvalidResetToken when no user matches.
		ConsumePasswordResetToken(ctx context.Context, tokenHash string, pwdHash []byte, now time.Time) (User, error)
		// DeleteUser returns ErrUserInUse while the user is referenced by other resources.
		DeleteUser(ctx context.Context, id string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		policy  *access.Policy
		inv     core.Invalidator
		conf    *core.Config
		now     core.NowFunc
	}

	passwordResetData struct {
		Name      string
		Token     string
		ExpiresIn string
	}
)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	policy *access.Policy,
	inv core.Invalidator,
	conf *core.Config,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(policy, "policy"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	if inv == nil {
		inv = core.NopInvalidator{}
	}
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		policy:  policy,
		inv:     inv,
		conf:    conf,
		now:     core.UTCNow,
	}
}

// SetNowFunc replaces the service clock.
func (svc *Service) SetNowFunc(now core.NowFunc) { svc.now = now }

// Register creates a student account.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	return svc.Create(ctx, nu, access.RoleStudent)
}

// Create creates a user holding role. Callers are responsible for authorizing the role.
func (svc *Service) Create(ctx context.Context, nu NewUser, role access.Role) (User, error) {
	if !role.IsValid() {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: roleText})
	}
	now := svc.now()
	usr := User{
		Name:      core.CleanString(nu.Name),
		Email:     core.CleanString(nu.Email, true /* lower */),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password, svc.conf.Auth.BcryptCost); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.inv.Invalidate(ctx)
	return usr, nil
}

// Authenticate returns the user owning email when pwd matches.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Retrieve returns the user `id` when actor is that user or an admin.
func (svc *Service) Retrieve(ctx context.Context, actor access.Actor, id string) (User, error) {
	if err := svc.policy.Authorize(actor, access.ActionViewUser, id); err != nil {
		return User{}, err
	}
	return svc.GetByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, actor access.Actor, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if err := svc.policy.Allow(actor, access.ActionManageUser); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

// UpdateRole changes the role of user `id`. Admins cannot change their own role.
func (svc *Service) UpdateRole(ctx context.Context, actor access.Actor, id string, uu UpdateUser) (User, error) {
	if err := svc.policy.Allow(actor, access.ActionManageUser); err != nil {
		return User{}, err
	}
	if actor.ID == id {
		return User{}, ErrSelfManagement
	}
	return svc.setRole(ctx, GetFilter{ID: id}, uu.Role)
}

// SetRole changes the role of the user owning email. Used by the admin CLI.
func (svc *Service) SetRole(ctx context.Context, email string, role access.Role) (User, error) {
	return svc.setRole(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)}, role)
}

func (svc *Service) setRole(ctx context.Context, filter GetFilter, role access.Role) (User, error) {
	if !role.IsValid() {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: roleText})
	}
	usr, err := svc.repo.GetUser(ctx, filter)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user")
	}
	usr.Role = role
	usr.UpdatedAt = svc.now()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	svc.inv.Invalidate(ctx)
	return usr, nil
}

// SetPassword replaces the password of the user owning email. Used by the admin CLI.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return errors.Wrap(err, "finding user by email")
	}
	if err := usr.SetPassword(pwd, svc.conf.Auth.BcryptCost); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// Delete removes user `id`. Admins cannot delete themselves.
func (svc *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	if err := svc.policy.Allow(actor, access.ActionManageUser); err != nil {
		return err
	}
	if actor.ID == id {
		return ErrSelfManagement
	}
	if err := svc.repo.DeleteUser(ctx, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	svc.inv.Invalidate(ctx)
	return nil
}

func (svc *Service) Count(ctx context.Context, role access.Role) (int, error) {
	return svc.repo.CountUsers(ctx, role)
}

// RequestPasswordReset stores a new reset token for the user owning email and mails it to them.
// Returns ErrNotFound for unknown emails; HTTP handlers must not leak that.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return errors.Wrap(err, "finding user by email")
	}

	token, hash, err := makeResetToken()
	if err != nil {
		return errors.Wrap(err, "generating reset token")
	}
	timeout := svc.conf.Auth.PasswordResetTimeoutDelta
	if err := svc.repo.SetPasswordResetToken(ctx, usr.ID, hash, svc.now().Add(timeout)); err != nil {
		return errors.Wrap(err, "storing reset token")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{
			Name:      usr.Name,
			Token:     token,
			ExpiresIn: humanDuration(timeout),
		},
	})
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	var usr User
	if err := usr.SetPassword(rp.Password, svc.conf.Auth.BcryptCost); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if _, err := svc.repo.ConsumePasswordResetToken(ctx, hashResetToken(rp.Token), usr.PasswordHash, svc.now()); err != nil {
		return errors.Wrap(err, "consuming reset token")
	}
	return nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0 && d >= time.Hour:
		if h := int(d / time.Hour); h > 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d%time.Minute == 0 && d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
