// Package auth issues and validates the signed HS256 claim tokens used by
// plantgate: role-scoped session tokens for admins and plants, and role-less
// email verification tokens.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of session roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RolePlant Role = "plant"
)

func (r Role) valid() bool {
	switch r {
	case RoleAdmin, RolePlant:
		return true
	default:
		return false
	}
}

// Claims is the token payload. Verification tokens leave Role empty.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role,omitempty"`
}

// TokenService signs and checks tokens with one process-wide secret.
// It holds no mutable state.
type TokenService struct {
	secret          []byte
	sessionTTL      time.Duration
	verificationTTL time.Duration
	now             func() time.Time
}

func NewTokenService(secret []byte, sessionTTL, verificationTTL time.Duration) *TokenService {
	return NewTokenServiceWithNow(secret, sessionTTL, verificationTTL, time.Now)
}

func NewTokenServiceWithNow(secret []byte, sessionTTL, verificationTTL time.Duration, now func() time.Time) *TokenService {
	return &TokenService{
		secret:          secret,
		sessionTTL:      sessionTTL,
		verificationTTL: verificationTTL,
		now:             now,
	}
}

// Issue signs a token for subject expiring ttl from now. An empty role
// produces a verification-class token.
func (s *TokenService) Issue(subject string, role Role, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("missing subject")
	}
	if role != "" && !role.valid() {
		return "", errors.New("unknown role")
	}
	if ttl <= 0 {
		return "", errors.New("invalid ttl")
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
		},
		Role: role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ceilSecond rounds t up to a whole second. NumericDate truncates, which
// would otherwise cut up to a second off the ttl.
func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}

// IssueSession issues a session token for an admin or a plant.
func (s *TokenService) IssueSession(subject string, role Role) (string, error) {
	if !role.valid() {
		return "", errors.New("unknown role")
	}
	return s.Issue(subject, role, s.sessionTTL)
}

// IssueVerification issues the short-lived token mailed to a new plant.
func (s *TokenService) IssueVerification(email string) (string, error) {
	return s.Issue(email, "", s.verificationTTL)
}

// Validate checks signature, expiry and role and returns the subject.
// Errors are common.ErrTokenExpired or common.ErrInvalidToken.
func (s *TokenService) Validate(token string, expected Role) (string, error) {
	if !expected.valid() {
		return "", common.ErrInvalidToken
	}
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Role != expected {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

// ValidateVerification checks signature and expiry and returns the subject
// email. Session tokens carry a role and are refused here.
func (s *TokenService) ValidateVerification(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Role != "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *TokenService) parse(token string) (*Claims, error) {
	// read the clock once; a token is valid strictly before its expiry
	now := s.now()

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !parsed.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
