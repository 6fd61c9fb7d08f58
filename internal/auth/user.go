// Package auth validates bearer credentials for the platform API. Tokens
// are RS256 JWTs verified against the OIDC authority's JWKS; demo mode
// substitutes a fixed user for environments without a reachable authority.
package auth

import "slices"

// User is an authenticated principal extracted from a validated token.
type User struct {
	Subject string
	Email   string
	Name    string
	Scopes  []string
	Roles   []string
}

// HasScope reports whether the user's token granted the OAuth scope.
func (u *User) HasScope(scope string) bool {
	return slices.Contains(u.Scopes, scope)
}

// HasRole reports whether the user carries the application role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// ScopeAPI guards the platform API endpoints.
const ScopeAPI = "bookverse:api"

// DemoUser is the principal returned in demo/development mode.
func DemoUser() *User {
	return &User{
		Subject: "demo-user",
		Email:   "demo@bookverse.com",
		Name:    "Demo User",
		Scopes:  []string{"openid", "profile", "email", ScopeAPI},
		Roles:   []string{"user", "admin"},
	}
}
