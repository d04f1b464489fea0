package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Validator validates a bearer token and returns the subject it was issued to.
type Validator interface {
	Validate(tokenString string) (string, error)
}

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrTokenMissingClaim = errors.New("token is missing required claim")
	ErrValidatorConfig   = errors.New("validator configuration error")
)

const defaultAcceptableSkew = 30 * time.Second

// JWTValidator validates HS256 tokens signed with the shared server secret.
type JWTValidator struct {
	secret []byte
	skew   time.Duration
}

// NewJWTValidator builds a validator for the given HS256 secret.
func NewJWTValidator(secret string) (*JWTValidator, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: jwt secret is empty", ErrValidatorConfig)
	}
	return &JWTValidator{secret: []byte(secret), skew: defaultAcceptableSkew}, nil
}

// Validate parses and verifies the token, returning its `sub` claim.
func (v *JWTValidator) Validate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrTokenInvalid
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return "", fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	sub := token.Subject()
	if sub == "" {
		return "", ErrTokenMissingClaim
	}
	return sub, nil
}
