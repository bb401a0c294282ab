package jwt

import (
	"errors"
	"time"

	jw "github.com/golang-jwt/jwt/v5"
)

// Service issues and verifies HS256 tokens whose subject is a user id.
type Service struct {
	secret []byte
	issuer string
	now    func() time.Time
}

type Option func(*Service)

// WithIssuer sets the iss claim on issued tokens and requires it on parsed ones.
func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

// WithClock injects the time source used for iat, exp and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Service signing with secret.
func New(secret []byte, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	s := &Service{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for userID valid for ttl. A zero ttl omits exp.
func (s *Service) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrMissingSubject
	}
	now := s.now()
	claims := jw.RegisteredClaims{
		Subject:  userID,
		Issuer:   s.issuer,
		IssuedAt: jw.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jw.NewNumericDate(now.Add(ttl))
	}
	return jw.NewWithClaims(jw.SigningMethodHS256, claims).SignedString(s.secret)
}

// Subject verifies token and returns its sub claim.
func (s *Service) Subject(token string) (string, error) {
	opts := []jw.ParserOption{
		jw.WithValidMethods([]string{jw.SigningMethodHS256.Alg()}),
		jw.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jw.WithIssuer(s.issuer))
	}

	var claims jw.RegisteredClaims
	_, err := jw.ParseWithClaims(token, &claims, func(*jw.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jw.ErrTokenExpired):
		return "", errors.Join(ErrExpiredToken, err)
	case err != nil:
		return "", errors.Join(ErrInvalidToken, err)
	case claims.Subject == "":
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}
