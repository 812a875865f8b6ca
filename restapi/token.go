package restapi

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
)

// TokenVerifier turns a bearer token into the actor stored on the request
// context.
type TokenVerifier interface {
	Verify(token string) (*auth.ActorContext, error)
}

// Claims is the JWT payload accepted by HS256Verifier.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// HS256Verifier validates tokens signed with a shared secret.
type HS256Verifier struct {
	secret   []byte
	issuer   string
	audience string
	clock    types.Clock
}

// VerifierConfig configures an HS256Verifier.
type VerifierConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Clock    types.Clock
}

// NewHS256Verifier builds a verifier. The secret is required.
func NewHS256Verifier(cfg VerifierConfig) (*HS256Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("go-presence: jwt secret required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &HS256Verifier{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		clock:    clock,
	}, nil
}

var _ TokenVerifier = (*HS256Verifier)(nil)

// Verify parses and validates the token. The subject must be a user uuid.
func (v *HS256Verifier) Verify(raw string) (*auth.ActorContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, jwt.ErrTokenInvalidSubject
	}
	return &auth.ActorContext{
		ActorID: claims.Subject,
		Subject: claims.Subject,
		Role:    claims.Role,
	}, nil
}

// SignToken issues an HS256 token for the user. Used by examples and tests.
func SignToken(secret string, userID uuid.UUID, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
