package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Authenticator checks a principal's secret and returns the roles to grant.
// The doctor and patient file services implement it.
type Authenticator interface {
	Authenticate(ctx context.Context, id, secret string) ([]string, error)
}

// TokenIssuer signs HS256 tokens for standalone mode.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(key []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}
}

func (i *TokenIssuer) Issue(subject string, roles []string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Middleware verifies tokens issued by i.
func (i *TokenIssuer) Middleware(skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return JWTMiddleware(JWTConfig{Issuer: i.issuer, SigningKey: i.key, Skipper: skipper})
}

type TokenRequest struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenHandler exchanges a doctor or patient file id and secret for a token.
type TokenHandler struct {
	issuer         *TokenIssuer
	authenticators map[string]Authenticator
}

func NewTokenHandler(issuer *TokenIssuer, doctors, patients Authenticator) *TokenHandler {
	return &TokenHandler{
		issuer: issuer,
		authenticators: map[string]Authenticator{
			RoleDoctor:  doctors,
			RolePatient: patients,
		},
	}
}

func (h *TokenHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/token", h.Token)
}

func (h *TokenHandler) Token(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, ok := h.authenticators[req.Kind]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be doctor or patient")
	}
	if req.ID == "" || req.Secret == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id and secret are required")
	}

	roles, err := a.Authenticate(c.Request().Context(), req.ID, req.Secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, exp, err := h.issuer.Issue(req.ID, roles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(exp.Sub(h.issuer.now()).Seconds()),
	})
}
