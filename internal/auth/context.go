package auth

import (
	"context"

	"github.com/straye-as/pipeline-gateway/internal/domain"
)

// UserContext holds the authenticated caller
type UserContext struct {
	UserID      string
	DisplayName string
	Email       string
	Roles       []domain.TeamRole
	// AccessToken is forwarded to the CRM backend. Empty for API-key callers,
	// whose requests fall back to the service token.
	AccessToken string
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok && user != nil
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// TokenFromContext returns the caller's bearer token for upstream calls
func TokenFromContext(ctx context.Context) (string, bool) {
	user, ok := FromContext(ctx)
	if !ok || user.AccessToken == "" {
		return "", false
	}
	return user.AccessToken, true
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.TeamRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.TeamRole) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// CanWrite reports whether the caller may mutate leads. Tokens without role
// claims are trusted and left to the backend to authorise.
func (u *UserContext) CanWrite() bool {
	if len(u.Roles) == 0 {
		return true
	}
	return u.HasAnyRole(domain.TeamRoleAdmin, domain.TeamRoleSales)
}

// RolesAsStrings returns roles for logging
func (u *UserContext) RolesAsStrings() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = string(r)
	}
	return out
}
