// Package tokens signs and verifies the access/refresh token pair bound to a
// user identity. It is deliberately stateless: refresh-token revocation is an
// external concern handled by the tokenrepo port.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	clockport "github.com/traveal-app/traveal-api/internal/ports/out/clock"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers every verification failure: malformed input,
	// signature mismatch, wrong token type. Cryptographic detail never leaks
	// past this package.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired wraps ErrTokenInvalid so callers that only care about
	// validity can ignore the distinction, while refresh flows can detect a
	// token that merely aged out.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)
)

// Config is the process-wide signing configuration, loaded once at startup.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Pair is a freshly issued access/refresh token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string

	// RefreshID is the refresh token's JTI claim; the caller persists it to
	// enable later revocation.
	RefreshID        string
	RefreshExpiresAt time.Time

	ExpiresIn int64 // access token lifetime in seconds
}

type claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clk        clockport.Clock
}

func NewService(cfg Config, clk clockport.Clock) *Service {
	return &Service{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		clk:        clk,
	}
}

// Issue mints a token pair for the user identified by userUUID. It performs
// no I/O and has no side effects beyond signing.
func (s *Service) Issue(userUUID string) (Pair, error) {
	now := s.clk.Now()
	refreshID := uuid.NewString()
	refreshExpiry := now.Add(s.refreshTTL)

	access, err := s.sign(claims{
		TokenType: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUUID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	if err != nil {
		return Pair{}, err
	}

	refresh, err := s.sign(claims{
		TokenType: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUUID,
			ID:        refreshID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshID:        refreshID,
		RefreshExpiresAt: refreshExpiry,
		ExpiresIn:        int64(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess checks signature and expiry and returns the bound user UUID.
func (s *Service) VerifyAccess(token string) (string, error) {
	c, err := s.parse(token, typeAccess)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// VerifyRefresh checks a refresh token and returns the bound user UUID and
// the token's JTI for revocation lookup.
func (s *Service) VerifyRefresh(token string) (userUUID string, jti string, err error) {
	c, err := s.parse(token, typeRefresh)
	if err != nil {
		return "", "", err
	}
	return c.Subject, c.ID, nil
}

func (s *Service) sign(c claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Service) parse(token string, expectedType string) (claims, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clk.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims{}, ErrTokenExpired
		}
		return claims{}, ErrTokenInvalid
	}
	if !parsed.Valid || c.TokenType != expectedType || c.Subject == "" {
		return claims{}, ErrTokenInvalid
	}
	return c, nil
}
