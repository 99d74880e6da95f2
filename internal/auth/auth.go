package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mediaferry/internal/media"
	"mediaferry/internal/services"
)

var (
	// ErrInvalidSession covers empty, malformed, unsigned and expired tokens.
	ErrInvalidSession = errors.New("invalid session")
	// ErrUnknownUser is returned when a valid token names a missing user.
	ErrUnknownUser = errors.New("unknown user")
)

// UserRepository loads users by id.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*media.User, error)
}

// Claims is the session token body.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator verifies session cookies.
type Authenticator struct {
	secret []byte
	users  UserRepository
}

// NewAuthenticator builds an Authenticator for tokens signed with secret.
func NewAuthenticator(secret string, users UserRepository) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users}
}

// Authenticate verifies cookie and returns the user it names.
func (a *Authenticator) Authenticate(ctx context.Context, cookie string) (*media.User, error) {
	cookie = strings.TrimSpace(cookie)
	if cookie == "" {
		return nil, ErrInvalidSession
	}
	token, err := jwt.ParseWithClaims(cookie, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}

	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, claims.Subject)
		}
		return nil, services.Wrap(services.ErrTransient, "auth", "load user", claims.Subject, err)
	}
	return user, nil
}

// Issuer mints session tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer builds an Issuer signing with secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue returns a signed token for userID valid for ttl. A non-positive ttl
// produces a token without expiry.
func (i *Issuer) Issue(userID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", services.Wrap(services.ErrValidation, "auth", "issue token", "user id is required", nil)
	}
	now := i.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
