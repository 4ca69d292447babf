package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/access"
)

var (
	ErrInvalidToken = core.NewAuthError("invalid or expired token")

	errNoExpiry   = errors.New("token has no expiry")
	errNoSubject  = errors.New("token has no subject")
	errWrongType  = errors.New("wrong token type")
	errBadRole    = errors.New("token role is invalid")
	errBadIssuer  = errors.New("token issuer is invalid")
	errBadSigning = errors.New("unexpected signing method")
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims represents the authorization claims transmitted via a JWT.
// Refresh tokens never carry a role: it is read again from the store on refresh.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenType   `json:"typ"`
	Role access.Role `json:"role,omitempty"`
}

func (c *Claims) Valid() error {
	if err := c.RegisteredClaims.Valid(); err != nil {
		return err
	}
	if c.ExpiresAt == nil {
		return errNoExpiry
	}
	if c.Subject == "" {
		return errNoSubject
	}
	return nil
}

// Pair is what a client receives after authenticating.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Tokens issues and verifies signed tokens. Access and refresh tokens use distinct secrets.
type Tokens struct {
	issuer     string
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        core.NowFunc
}

func NewTokens(conf core.AuthConfig) *Tokens {
	return &Tokens{
		issuer:     conf.Issuer,
		accessKey:  []byte(conf.AccessSecret),
		refreshKey: []byte(conf.RefreshSecret),
		accessTTL:  conf.AccessExpirationDelta,
		refreshTTL: conf.RefreshExpirationDelta,
		now:        core.UTCNow,
	}
}

// SetNowFunc replaces the clock used to stamp issued tokens.
func (t *Tokens) SetNowFunc(now core.NowFunc) { t.now = now }

func (t *Tokens) newClaims(subject string, typ TokenType, ttl time.Duration) *Claims {
	now := t.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
}

// IssueAccess signs a short-lived token carrying the actor id and role.
func (t *Tokens) IssueAccess(actor access.Actor) (string, error) {
	if actor.ID == "" || !actor.Role.IsValid() {
		return "", errors.New("issuing access token: invalid actor")
	}
	claims := t.newClaims(actor.ID, AccessToken, t.accessTTL)
	claims.Role = actor.Role
	return t.sign(claims, t.accessKey)
}

// IssueRefresh signs a long-lived token carrying only the user id.
func (t *Tokens) IssueRefresh(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("issuing refresh token: empty user id")
	}
	return t.sign(t.newClaims(userID, RefreshToken, t.refreshTTL), t.refreshKey)
}

func (t *Tokens) IssuePair(actor access.Actor) (Pair, error) {
	accessTok, err := t.IssueAccess(actor)
	if err != nil {
		return Pair{}, err
	}
	refreshTok, err := t.IssueRefresh(actor.ID)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: accessTok, RefreshToken: refreshTok}, nil
}

func (t *Tokens) sign(claims *Claims, key []byte) (string, error) {
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify checks an access token and returns the actor it was issued to.
// Any signature, algorithm, expiry or payload problem yields ErrInvalidToken.
func (t *Tokens) Verify(token string) (access.Actor, error) {
	claims, err := t.parse(token, AccessToken, t.accessKey)
	if err != nil {
		return access.Actor{}, err
	}
	if !claims.Role.IsValid() {
		return access.Actor{}, errors.Wrap(ErrInvalidToken, errBadRole.Error())
	}
	return access.Actor{ID: claims.Subject, Role: claims.Role}, nil
}

// VerifyRefresh checks a refresh token and returns the user id it was issued to.
func (t *Tokens) VerifyRefresh(token string) (string, error) {
	claims, err := t.parse(token, RefreshToken, t.refreshKey)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (t *Tokens) parse(token string, typ TokenType, key []byte) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errBadSigning
		}
		return key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.Wrap(ErrInvalidToken, "parsing token")
	}
	if claims.Type != typ {
		return nil, errors.Wrap(ErrInvalidToken, errWrongType.Error())
	}
	if !claims.VerifyIssuer(t.issuer, true) {
		return nil, errors.Wrap(ErrInvalidToken, errBadIssuer.Error())
	}
	return claims, nil
}
