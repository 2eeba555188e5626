package security

import (
	"bitwise74/account-api/pkg/util"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	resetTokenSize = 32

	DefaultVerificationTTL = time.Hour
	DefaultResetTTL        = time.Hour
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

type verificationClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer creates signed email verification tokens and opaque password
// reset tokens. Signed tokens can be checked without a store lookup but
// callers are expected to also compare them with the copy saved on the user
// so they can be revoked.
type TokenIssuer struct {
	secret          []byte
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

type TokenIssuerOpts struct {
	Secret          string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	// Clock override, mostly for tests
	Now func() time.Time
}

func NewTokenIssuer(o TokenIssuerOpts) (*TokenIssuer, error) {
	if o.Secret == "" {
		return nil, errors.New("no signing secret provided")
	}

	if o.VerificationTTL <= 0 {
		o.VerificationTTL = DefaultVerificationTTL
	}

	if o.ResetTTL <= 0 {
		o.ResetTTL = DefaultResetTTL
	}

	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}

	return &TokenIssuer{
		secret:          []byte(o.Secret),
		verificationTTL: o.VerificationTTL,
		resetTTL:        o.ResetTTL,
		now:             o.Now,
	}, nil
}

// IssueVerification returns a signed token for email and the time it expires at
func (t *TokenIssuer) IssueVerification(email string) (string, time.Time, error) {
	if email == "" {
		return "", time.Time{}, errors.New("no email provided")
	}

	// Random ID so two tokens for the same email never collide
	jti, err := util.GenerateToken(8)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token ID, %w", err)
	}

	now := t.now()
	exp := now.Add(t.verificationTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, verificationClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign verification token, %w", err)
	}

	return signed, exp, nil
}

// ParseVerification checks the signature and expiry of a verification token
// and returns the email it was issued for
func (t *TokenIssuer) ParseVerification(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrTokenInvalid
	}

	var claims verificationClaims

	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(tk *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}

		return "", fmt.Errorf("%w, %v", ErrTokenInvalid, err)
	}

	if claims.Email == "" {
		return "", ErrTokenInvalid
	}

	return claims.Email, nil
}

// IssueReset returns a random opaque reset token and the time it expires at.
// The token means nothing on its own, the stored copy is what validates it.
func (t *TokenIssuer) IssueReset() (string, time.Time, error) {
	token, err := util.GenerateToken(resetTokenSize)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate reset token, %w", err)
	}

	return token, t.now().Add(t.resetTTL), nil
}

// Now returns the issuer's current time
func (t *TokenIssuer) Now() time.Time {
	return t.now()
}
