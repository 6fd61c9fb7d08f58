package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bookverse/platform/internal/cachemanager"
	"github.com/bookverse/platform/internal/log"
)

var (
	// ErrServiceUnavailable means the OIDC authority or its JWKS endpoint
	// could not be reached and no cached keys exist.
	ErrServiceUnavailable = errors.New("authentication service unavailable")

	// ErrMissingToken means the request carried no bearer credential.
	ErrMissingToken = errors.New("authentication required")

	// ErrInvalidToken means the bearer credential failed validation.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	jwksCacheTTL     = time.Hour
	discoveryTimeout = 10 * time.Second

	discoveryKey = "oidc-configuration"
	jwksKey      = "jwks"
)

// Config holds the authentication settings.
type Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	DevelopmentMode bool   `mapstructure:"development_mode"`
	Authority       string `mapstructure:"authority"`
	Audience        string `mapstructure:"audience"`
	Algorithm       string `mapstructure:"algorithm"`
}

type oidcConfiguration struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Service validates bearer tokens against the configured OIDC authority.
// Discovery and JWKS responses are cached; a JWKS refresh failure falls back
// to the last fetched key set so validation survives authority outages.
type Service struct {
	cfg        Config
	httpClient *http.Client
	parser     *jwt.Parser

	discovery *cachemanager.ReadThrough[oidcConfiguration, struct{}]
	keys      *cachemanager.ReadThrough[jwkSet, struct{}]
}

// NewService creates an authentication service. The caches are owned by the
// returned Service; callers construct one Service per process.
func NewService(cfg Config, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: discoveryTimeout}
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "RS256"
	}

	s := &Service{cfg: cfg, httpClient: httpClient}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{cfg.Algorithm}),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	s.discovery = cachemanager.NewReadThrough(
		cachemanager.NewInMemory[oidcConfiguration]("oidc-discovery", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		s.fetchDiscovery,
	)
	s.keys = cachemanager.NewReadThrough(
		cachemanager.NewInMemory[jwkSet]("jwks", jwksCacheTTL, cachemanager.DefaultCleanupInterval),
		s.fetchJWKS,
	)
	return s
}

func (s *Service) fetchDiscovery(ctx context.Context, _ struct{}) (oidcConfiguration, error) {
	url := strings.TrimRight(s.cfg.Authority, "/") + "/.well-known/openid_configuration"

	var cfg oidcConfiguration
	if err := s.getJSON(ctx, url, &cfg); err != nil {
		log.Error(log.CatAuth, "failed to fetch OIDC configuration", "error", err)
		return cfg, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	log.Info(log.CatAuth, "OIDC configuration loaded", "issuer", cfg.Issuer)
	return cfg, nil
}

func (s *Service) fetchJWKS(ctx context.Context, _ struct{}) (jwkSet, error) {
	var keys jwkSet

	cfg, err := s.discovery.Get(ctx, discoveryKey, struct{}{}, cachemanager.NeverExpire)
	if err != nil {
		return keys, err
	}
	if cfg.JWKSURI == "" {
		return keys, fmt.Errorf("%w: no jwks_uri in OIDC configuration", ErrServiceUnavailable)
	}

	if err := s.getJSON(ctx, cfg.JWKSURI, &keys); err != nil {
		log.Error(log.CatAuth, "failed to fetch JWKS", "error", err)
		return keys, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	log.Info(log.CatAuth, "JWKS refreshed", "keys", len(keys.Keys))
	return keys, nil
}

func (s *Service) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Authenticate resolves the request's principal. Demo/development mode and
// disabled auth both yield the demo user without touching the authority.
func (s *Service) Authenticate(ctx context.Context, r *http.Request) (*User, error) {
	if !s.cfg.Enabled || s.cfg.DevelopmentMode {
		log.Debug(log.CatAuth, "demo mode, using mock user")
		return DemoUser(), nil
	}

	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, ErrMissingToken
	}
	return s.ValidateToken(ctx, raw)
}

// ValidateToken verifies the JWT's signature against the authority's JWKS
// and extracts the principal from its claims.
func (s *Service) ValidateToken(ctx context.Context, raw string) (*User, error) {
	claims := jwt.MapClaims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.publicKeyFor(ctx, t)
	})
	if err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			return nil, err
		}
		log.Warn(log.CatAuth, "token validation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return userFromClaims(claims), nil
}

// publicKeyFor selects the JWKS key matching the token header's kid.
func (s *Service) publicKeyFor(ctx context.Context, t *jwt.Token) (*rsa.PublicKey, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("token header missing kid")
	}

	keys, err := s.keys.Get(ctx, jwksKey, struct{}{}, jwksCacheTTL)
	if err != nil {
		return nil, err
	}
	for _, k := range keys.Keys {
		if k.Kid == kid {
			return k.publicKey()
		}
	}
	return nil, fmt.Errorf("no matching key for kid %s", kid)
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %s", k.Kty)
	}
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

func userFromClaims(claims jwt.MapClaims) *User {
	u := &User{}
	if sub, _ := claims.GetSubject(); sub != "" {
		u.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		u.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		u.Name = name
	}
	if scope, ok := claims["scope"].(string); ok && scope != "" {
		u.Scopes = strings.Fields(scope)
	}
	if roles, ok := claims["roles"].([]any); ok {
		for _, r := range roles {
			if role, ok := r.(string); ok {
				u.Roles = append(u.Roles, role)
			}
		}
	}
	return u
}

// Status reports the authentication configuration for the health endpoint.
func (s *Service) Status(ctx context.Context) map[string]any {
	return map[string]any{
		"auth_enabled":     s.cfg.Enabled,
		"development_mode": s.cfg.DevelopmentMode,
		"oidc_authority":   s.cfg.Authority,
		"audience":         s.cfg.Audience,
		"algorithm":        s.cfg.Algorithm,
	}
}

// TestConnection exercises OIDC discovery and JWKS retrieval, reporting the
// outcome for health monitoring.
func (s *Service) TestConnection(ctx context.Context) map[string]any {
	cfg, err := s.discovery.Get(ctx, discoveryKey, struct{}{}, cachemanager.NeverExpire)
	if err != nil {
		return map[string]any{"status": "unhealthy", "error": err.Error()}
	}

	keys, err := s.keys.Get(ctx, jwksKey, struct{}{}, jwksCacheTTL)
	if err != nil {
		return map[string]any{"status": "unhealthy", "error": err.Error()}
	}

	return map[string]any{
		"status":             "healthy",
		"oidc_config_loaded": cfg.Issuer != "",
		"jwks_loaded":        len(keys.Keys) > 0,
		"keys_count":         len(keys.Keys),
	}
}
