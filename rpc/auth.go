package rpc

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"crowdfund/crypto"
)

const defaultClockSkew = 2 * time.Minute

// AuthConfig configures HS256 bearer tokens. The token subject names the
// calling principal.
type AuthConfig struct {
	HMACSecret    string
	HMACSecretEnv string
	Issuer        string
	Audience      string
	ClockSkew     time.Duration
}

type authenticator struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" && strings.TrimSpace(cfg.HMACSecretEnv) != "" {
		secret = strings.TrimSpace(os.Getenv(strings.TrimSpace(cfg.HMACSecretEnv)))
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	return &authenticator{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		skew:     skew,
	}
}

func (a *authenticator) enabled() bool {
	return a != nil && len(a.secret) > 0
}

// authenticate validates the bearer token of r and returns the principal
// named by its subject.
func (a *authenticator) authenticate(r *http.Request) ([20]byte, *RPCError) {
	if !a.enabled() {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "authentication not configured"}
	}
	raw := extractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.skew),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		msg := "invalid token"
		if err != nil {
			msg = err.Error()
		}
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "invalid token", Data: msg}
	}
	caller, err := crypto.ParsePrincipal(crypto.PrincipalPrefix, claims.Subject)
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "token subject is not a principal address", Data: err.Error()}
	}
	return caller, nil
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// IssueToken mints an HS256 token whose subject is the bech32 form of
// principal. It is used by operator tooling and tests.
func IssueToken(secret []byte, principal [20]byte, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("rpc: token secret required")
	}
	if ttl <= 0 {
		return "", errors.New("rpc: token ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   crypto.Format(crypto.PrincipalPrefix, principal),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if issuer != "" {
		claims.Issuer = issuer
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
