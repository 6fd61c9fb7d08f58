package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// testAuthority serves OIDC discovery and a JWKS for one generated RSA key.
type testAuthority struct {
	server *httptest.Server
	key    *rsa.PrivateKey
	kid    string
}

func newTestAuthority(t *testing.T) *testAuthority {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	a := &testAuthority{key: key, kid: "test-key-1"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid_configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   a.server.URL,
			"jwks_uri": a.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, r *http.Request) {
		pub := &key.PublicKey
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kid": a.kid,
				"kty": "RSA",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	})

	a.server = httptest.NewServer(mux)
	t.Cleanup(a.server.Close)
	return a
}

func (a *testAuthority) sign(t *testing.T, claims jwt.MapClaims, kid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(a.key)
	require.NoError(t, err)
	return signed
}

func defaultClaims(audience string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-42",
		"email": "reader@bookverse.com",
		"name":  "Avid Reader",
		"scope": "openid " + ScopeAPI,
		"roles": []any{"user"},
		"aud":   audience,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func newTestService(a *testAuthority) *Service {
	return NewService(Config{
		Enabled:   true,
		Authority: a.server.URL,
		Audience:  ScopeAPI,
		Algorithm: "RS256",
	}, a.server.Client())
}

func TestValidateToken(t *testing.T) {
	authority := newTestAuthority(t)
	svc := newTestService(authority)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		raw := authority.sign(t, defaultClaims(ScopeAPI), authority.kid)

		user, err := svc.ValidateToken(ctx, raw)
		require.NoError(t, err)
		require.Equal(t, "user-42", user.Subject)
		require.Equal(t, "reader@bookverse.com", user.Email)
		require.True(t, user.HasScope(ScopeAPI))
		require.True(t, user.HasRole("user"))
		require.False(t, user.HasRole("admin"))
	})

	t.Run("unknown kid", func(t *testing.T) {
		raw := authority.sign(t, defaultClaims(ScopeAPI), "rotated-away")

		_, err := svc.ValidateToken(ctx, raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := defaultClaims(ScopeAPI)
		claims["exp"] = time.Now().Add(-time.Hour).Unix()
		raw := authority.sign(t, claims, authority.kid)

		_, err := svc.ValidateToken(ctx, raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		raw := authority.sign(t, defaultClaims("someone:else"), authority.kid)

		_, err := svc.ValidateToken(ctx, raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthenticateDemoMode(t *testing.T) {
	svc := NewService(Config{Enabled: true, DevelopmentMode: true}, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	user, err := svc.Authenticate(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, "demo-user", user.Subject)
	require.True(t, user.HasScope(ScopeAPI))
	require.True(t, user.HasRole("admin"))
}

func TestAuthenticateMissingToken(t *testing.T) {
	svc := NewService(Config{Enabled: true, Authority: "http://127.0.0.1:0"}, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := svc.Authenticate(context.Background(), r)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddleware(t *testing.T) {
	authority := newTestAuthority(t)
	svc := newTestService(authority)

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		require.NotNil(t, user)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing token is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		svc.RequireAuth(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("valid token passes", func(t *testing.T) {
		raw := authority.sign(t, defaultClaims(ScopeAPI), authority.kid)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+raw)

		rec := httptest.NewRecorder()
		svc.RequireAuth(okHandler).ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing scope is 403", func(t *testing.T) {
		claims := defaultClaims(ScopeAPI)
		claims["scope"] = "openid"
		raw := authority.sign(t, claims, authority.kid)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+raw)

		rec := httptest.NewRecorder()
		svc.RequireScope(ScopeAPI)(okHandler).ServeHTTP(rec, r)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestTestConnection(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		authority := newTestAuthority(t)
		svc := newTestService(authority)

		status := svc.TestConnection(context.Background())
		require.Equal(t, "healthy", status["status"])
		require.Equal(t, 1, status["keys_count"])
	})

	t.Run("unreachable authority", func(t *testing.T) {
		svc := NewService(Config{
			Enabled:   true,
			Authority: "http://127.0.0.1:1",
		}, &http.Client{Timeout: 100 * time.Millisecond})

		status := svc.TestConnection(context.Background())
		require.Equal(t, "unhealthy", status["status"])
	})
}
