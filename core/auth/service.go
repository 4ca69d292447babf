package auth

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
	"github.com/njautech/schoolhub/core/user"
)

// UserService is the part of user.Service the credential service relies on.
type UserService interface {
	Register(ctx context.Context, nu user.NewUser) (user.User, error)
	Authenticate(ctx context.Context, email, pwd string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

var _ UserService = (*user.Service)(nil)

// Service registers and logs users in, and turns tokens back into actors.
type Service struct {
	users  UserService
	tokens *Tokens
}

func NewService(users UserService, tokens *Tokens) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(tokens, "tokens"),
	).CheckAndPanic()
	return &Service{users: users, tokens: tokens}
}

// Register creates a student and issues their first tokens.
func (svc *Service) Register(ctx context.Context, nu user.NewUser) (user.User, Pair, error) {
	usr, err := svc.users.Register(ctx, nu)
	if err != nil {
		return user.User{}, Pair{}, errors.Wrap(err, "registering user")
	}
	pair, err := svc.tokens.IssuePair(usr.Actor())
	if err != nil {
		return user.User{}, Pair{}, errors.Wrap(err, "issuing tokens")
	}
	return usr, pair, nil
}

// Login fails with user.ErrNotFound for unknown emails and user.ErrInvalidCredentials for bad passwords.
func (svc *Service) Login(ctx context.Context, email, pwd string) (user.User, Pair, error) {
	usr, err := svc.users.Authenticate(ctx, email, pwd)
	if err != nil {
		return user.User{}, Pair{}, errors.Wrap(err, "authenticating")
	}
	pair, err := svc.tokens.IssuePair(usr.Actor())
	if err != nil {
		return user.User{}, Pair{}, errors.Wrap(err, "issuing tokens")
	}
	return usr, pair, nil
}

// Refresh issues a new access token, reading the role from the store.
func (svc *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	id, err := svc.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return "", ErrInvalidToken
		}
		return "", errors.Wrap(err, "finding user by ID")
	}
	token, err := svc.tokens.IssueAccess(usr.Actor())
	return token, errors.Wrap(err, "issuing access token")
}

// Verify is the single check every protected request goes through.
func (svc *Service) Verify(token string) (access.Actor, error) {
	return svc.tokens.Verify(token)
}
