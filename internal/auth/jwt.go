package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/straye-as/pipeline-gateway/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenParser turns a bearer token into a UserContext.
//
// The CRM backend owns authentication. Without a secret, JWT claims are read
// unverified for identity and logging and opaque tokens pass through; the
// middleware then confirms them with Verifier. With a secret, tokens must be
// HS256 JWTs signed with it.
type TokenParser struct {
	secret []byte
	now    func() time.Time
}

// NewTokenParser creates a parser; secret may be empty
func NewTokenParser(secret string) *TokenParser {
	p := &TokenParser{now: time.Now}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Parse validates token and extracts the caller
func (p *TokenParser) Parse(token string) (*UserContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	if !looksLikeJWT(token) {
		if p.secret != nil {
			return nil, ErrInvalidToken
		}
		return &UserContext{AccessToken: token}, nil
	}

	claims := jwt.MapClaims{}
	if p.secret != nil {
		parser := jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(p.now),
		)
		if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return p.secret, nil
		}); err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrExpiredToken
			}
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		exp, err := claims.GetExpirationTime()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		if exp != nil && !p.now().Before(exp.Time) {
			return nil, ErrExpiredToken
		}
	}

	return &UserContext{
		UserID:      extractString(claims, "sub", "oid", "userId"),
		DisplayName: extractString(claims, "name", "preferred_username"),
		Email:       extractString(claims, "email", "upn"),
		Roles:       ExtractRoles(claims),
		AccessToken: token,
	}, nil
}

// VerifiesSignature reports whether Parse checks token signatures
func (p *TokenParser) VerifiesSignature() bool {
	return p.secret != nil
}

func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func extractString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if val, ok := claims[key]; ok {
			if str, ok := val.(string); ok && str != "" {
				return str
			}
		}
	}
	return ""
}

// ExtractRoles reads "roles" or "role" claims, keeping known team roles only
func ExtractRoles(claims jwt.MapClaims) []domain.TeamRole {
	var raw []string
	for _, key := range []string{"roles", "role"} {
		switch v := claims[key].(type) {
		case []interface{}:
			for _, r := range v {
				if str, ok := r.(string); ok {
					raw = append(raw, str)
				}
			}
		case []string:
			raw = append(raw, v...)
		case string:
			raw = append(raw, v)
		}
	}

	roles := []domain.TeamRole{}
	for _, r := range raw {
		role := domain.TeamRole(strings.ToUpper(strings.TrimSpace(r)))
		if role.IsValid() && !containsRole(roles, role) {
			roles = append(roles, role)
		}
	}
	return roles
}

func containsRole(roles []domain.TeamRole, role domain.TeamRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
