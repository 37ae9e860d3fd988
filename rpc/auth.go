package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ScopeAdmin is the JWT scope required to invoke admin-mutating methods.
const ScopeAdmin = "sale.admin"

var (
	errMissingToken = errors.New("rpc: missing bearer token")
	errInvalidToken = errors.New("rpc: invalid bearer token")
	errMissingScope = errors.New("rpc: token lacks required scope")
)

// AuthConfig controls verification of admin bearer tokens.
type AuthConfig struct {
	Enabled    bool
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

// Authenticator validates HMAC-signed JWTs presented on admin methods.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
}

// NewAuthenticator builds an authenticator from the supplied configuration.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

// Authorize checks the request's bearer token. When authentication is
// disabled every request passes.
func (a *Authenticator) Authorize(r *http.Request) error {
	if a == nil || !a.cfg.Enabled {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return errMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return errInvalidToken
	}

	scope, _ := claims["scope"].(string)
	for _, granted := range strings.Fields(scope) {
		if granted == ScopeAdmin {
			return nil
		}
	}
	return errMissingScope
}
