package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissing   = errors.New("missing credential")
	ErrExpired   = errors.New("credential expired")
	ErrRevoked   = errors.New("credential revoked")
	ErrMalformed = errors.New("credential malformed")
	ErrInvalid   = errors.New("credential invalid")
)

// Verifier resolves a bearer credential to a stable user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Reason names the verification failure for API responses.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissing):
		return "missing"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissing
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrMissing
	}
	return token, nil
}

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// JWTVerifier checks HMAC-signed tokens and honours per-user revocation:
// tokens issued at or before a user's revocation time are rejected.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time

	mu           sync.RWMutex
	revokedUntil map[string]time.Time
}

func NewJWTVerifier(cfg Config) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: signing secret is required")
	}
	return &JWTVerifier{
		secret:       []byte(cfg.Secret),
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		parser:       jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
		now:          time.Now,
		revokedUntil: make(map[string]time.Time),
	}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissing
	}

	claims := &jwt.RegisteredClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", fmt.Errorf("%w: %v", ErrExpired, err)
		default:
			return "", fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrInvalid)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", fmt.Errorf("%w: unexpected issuer", ErrInvalid)
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return "", fmt.Errorf("%w: unexpected audience", ErrInvalid)
	}
	if v.isRevoked(claims.Subject, claims.IssuedAt) {
		return "", ErrRevoked
	}
	return claims.Subject, nil
}

// RevokeTokens invalidates every token already issued to userID. Token
// timestamps have second precision, so tokens issued later in the same
// second are rejected too.
func (v *JWTVerifier) RevokeTokens(userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.revokedUntil[userID] = v.now().Truncate(time.Second)
}

func (v *JWTVerifier) isRevoked(userID string, issuedAt *jwt.NumericDate) bool {
	v.mu.RLock()
	cutoff, ok := v.revokedUntil[userID]
	v.mu.RUnlock()
	if !ok {
		return false
	}
	if issuedAt == nil {
		return true
	}
	return !issuedAt.Time.After(cutoff)
}

// Issuer signs tokens that a JWTVerifier with the same config accepts.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: signing secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (i *Issuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("auth: user id is required")
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
