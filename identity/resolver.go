package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/mikolajkapica/gister/core"
)

const bearerPrefix = "Bearer "

// FallbackConfig controls verification of bearer tokens on the fallback
// resolution path. Exactly one of HMACSecret or Ed25519PublicKey is
// expected for verified operation. AllowUnverified decodes claims without
// checking the signature; it exists for local development only and every
// use is logged.
type FallbackConfig struct {
	HMACSecret       string
	Ed25519PublicKey ed25519.PublicKey
	Issuer           string
	Audience         string
	AllowUnverified  bool
}

func (c FallbackConfig) hasKeyMaterial() bool {
	return strings.TrimSpace(c.HMACSecret) != "" || len(c.Ed25519PublicKey) > 0
}

type Config struct {
	Verifier       core.SessionVerifier
	Fallback       FallbackConfig
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Clock          func() time.Time
}

// Resolver establishes the caller identity for one inbound request. It
// only reads: no persistent state is touched on either path.
type Resolver struct {
	verifier core.SessionVerifier
	fallback FallbackConfig
	logger   core.Logger
	nowFn    func() time.Time
}

func NewResolver(cfg Config) *Resolver {
	_, logger := glog.Resolve("identity", cfg.LoggerProvider, cfg.Logger)
	nowFn := cfg.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Resolver{
		verifier: cfg.Verifier,
		fallback: cfg.Fallback,
		logger:   glog.Ensure(logger),
		nowFn:    nowFn,
	}
}

// Resolve runs the primary path, then the fallback path, and never fails:
// when neither path yields an identity the request proceeds as
// unauthenticated with ResolutionPathNone.
func (r *Resolver) Resolve(ctx context.Context, header http.Header) core.IdentityContext {
	if r == nil {
		return core.IdentityContext{Path: core.ResolutionPathNone}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if identity, ok := r.resolvePrimary(ctx, header); ok {
		return identity
	}
	if identity, ok := r.resolveFallback(ctx, header); ok {
		return identity
	}
	return core.IdentityContext{Path: core.ResolutionPathNone}
}

func (r *Resolver) resolvePrimary(ctx context.Context, header http.Header) (core.IdentityContext, bool) {
	if r.verifier == nil {
		return core.IdentityContext{}, false
	}
	session, err := r.verifier.ResolveSession(ctx, header)
	if err != nil {
		r.logger.Debug("session verification failed", "error", err.Error())
		return core.IdentityContext{}, false
	}
	if session == nil || session.User.IsZero() {
		return core.IdentityContext{}, false
	}
	identity := core.IdentityContext{
		User:  session.User,
		Path:  core.ResolutionPathPrimary,
		Name:  strings.TrimSpace(session.Name),
		Email: strings.TrimSpace(session.Email),
	}
	if !session.ExpiresAt.IsZero() {
		expiresAt := session.ExpiresAt.UTC()
		identity.ExpiresAt = &expiresAt
	}
	return identity, true
}

func (r *Resolver) resolveFallback(ctx context.Context, header http.Header) (core.IdentityContext, bool) {
	token := bearerToken(header)
	if token == "" {
		return core.IdentityContext{}, false
	}

	claims, err := r.claimsFromToken(ctx, token)
	if err != nil {
		r.logger.Debug("bearer token rejected", "error", err.Error())
		return core.IdentityContext{}, false
	}
	subject := strings.TrimSpace(readString(claims["sub"]))
	if subject == "" {
		return core.IdentityContext{}, false
	}

	identity := core.IdentityContext{
		User:  core.LocalIdentity(subject),
		Path:  core.ResolutionPathFallback,
		Name:  strings.TrimSpace(readString(claims["name"])),
		Email: strings.TrimSpace(readString(claims["email"])),
	}
	if expiresAt, ok := readUnixTime(claims["exp"]); ok {
		identity.ExpiresAt = &expiresAt
	}
	return identity, true
}

func (r *Resolver) claimsFromToken(_ context.Context, token string) (map[string]any, error) {
	if r.fallback.hasKeyMaterial() {
		return r.verifyClaims(token)
	}
	if r.fallback.AllowUnverified {
		r.logger.Warn("decoding bearer token without signature verification; configure fallback key material before production use")
		return r.unverifiedClaims(token)
	}
	return nil, fmt.Errorf("identity: fallback key material is not configured")
}

func (r *Resolver) verifyClaims(token string) (map[string]any, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(r.nowFn),
		jwt.WithExpirationRequired(),
	}
	if issuer := strings.TrimSpace(r.fallback.Issuer); issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(r.fallback.Audience); audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(audience))
	}
	if strings.TrimSpace(r.fallback.HMACSecret) != "" {
		parserOptions = append(parserOptions, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	} else {
		parserOptions = append(parserOptions, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(parserOptions...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if strings.TrimSpace(r.fallback.HMACSecret) != "" {
			return []byte(r.fallback.HMACSecret), nil
		}
		return r.fallback.Ed25519PublicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("identity: verify bearer token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("identity: bearer token is invalid")
	}
	return map[string]any(claims), nil
}

// unverifiedClaims mirrors the behavior this service replaced: decode the
// payload segment and trust its contents. Expiry is still enforced.
func (r *Resolver) unverifiedClaims(token string) (map[string]any, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("identity: invalid bearer token format")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("identity: decode bearer token payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, fmt.Errorf("identity: decode bearer token claims: %w", err)
	}
	if expiresAt, ok := readUnixTime(payload["exp"]); ok && !expiresAt.After(r.nowFn()) {
		return nil, fmt.Errorf("identity: bearer token is expired")
	}
	return payload, nil
}

func bearerToken(header http.Header) string {
	if header == nil {
		return ""
	}
	value := strings.TrimSpace(header.Get("Authorization"))
	if value == "" {
		return ""
	}
	if len(value) < len(bearerPrefix) || !strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(value[len(bearerPrefix):])
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readUnixTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case float64:
		return time.Unix(int64(typed), 0).UTC(), true
	case int64:
		return time.Unix(typed, 0).UTC(), true
	case int:
		return time.Unix(int64(typed), 0).UTC(), true
	case json.Number:
		seconds, err := typed.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(seconds, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
