package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/config"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"go.uber.org/zap"
)

// Middleware handles authentication for HTTP requests
type Middleware struct {
	parser   *TokenParser
	verifier *Verifier
	apiKey   string
	logger   *zap.Logger
}

// NewMiddleware creates a new authentication middleware. When the token
// signature cannot be checked locally, bearer tokens are confirmed with
// verifier before the request proceeds; verifier may be nil in tests.
func NewMiddleware(cfg *config.Config, verifier *Verifier, logger *zap.Logger) *Middleware {
	return &Middleware{
		parser:   NewTokenParser(cfg.Security.JWTSecret),
		verifier: verifier,
		apiKey:   cfg.ApiKey.Value,
		logger:   logger,
	}
}

// systemUser is the identity of API-key callers. It carries no access token,
// so upstream calls use the service token.
func systemUser() *UserContext {
	return &UserContext{
		UserID:      "system",
		DisplayName: "System",
		Roles:       []domain.TeamRole{domain.TeamRoleAdmin},
	}
}

// Authenticate requires a bearer token or a valid x-api-key header
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				unauthorized(w, "Invalid API key")
				return
			}
			user := systemUser()
			m.logAuthenticated(r, "api_key", user, start)
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), user)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Missing authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "Invalid authorization header format")
			return
		}

		user, err := m.parser.Parse(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			detail := "Invalid token"
			if errors.Is(err, ErrExpiredToken) {
				detail = "Token expired"
			}
			unauthorized(w, detail)
			return
		}

		if m.verifier != nil && !m.parser.VerifiesSignature() {
			if err := m.verifier.Verify(r.Context(), user.AccessToken); err != nil {
				if errors.Is(err, ErrInvalidToken) {
					m.logger.Warn("backend rejected token",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("remote_addr", r.RemoteAddr),
					)
					unauthorized(w, "Invalid token")
					return
				}
				m.logger.Error("token check failed", zap.String("path", r.URL.Path), zap.Error(err))
				domain.WriteProblem(w, domain.NewAPIError(http.StatusServiceUnavailable,
					"The CRM backend could not be reached. Please try again."))
				return
			}
		}

		m.logAuthenticated(r, "bearer", user, start)
		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), user)))
	})
}

func (m *Middleware) logAuthenticated(r *http.Request, authType string, user *UserContext, start time.Time) {
	m.logger.Debug("request authenticated",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("auth_type", authType),
		zap.String("user_id", user.UserID),
		zap.Strings("roles", user.RolesAsStrings()),
		zap.Duration("auth_duration", time.Since(start)),
	)
}

// RequireRole ensures the caller has one of roles. Callers whose token
// carries no role claims are passed through for the backend to authorise.
func (m *Middleware) RequireRole(roles ...domain.TeamRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := FromContext(r.Context())
			if !ok {
				forbidden(w, "No user context")
				return
			}
			if len(user.Roles) > 0 && !user.HasAnyRole(roles...) {
				forbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireWrite rejects mutating requests from read-only callers
func (m *Middleware) RequireWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
			user, ok := FromContext(r.Context())
			if !ok || !user.CanWrite() {
				forbidden(w, "Read-only access")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) validateAPIKey(apiKey string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(apiKey), []byte(m.apiKey)) == 1
}

func unauthorized(w http.ResponseWriter, detail string) {
	domain.WriteProblem(w, domain.NewAPIError(http.StatusUnauthorized, detail))
}

func forbidden(w http.ResponseWriter, detail string) {
	domain.WriteProblem(w, domain.NewAPIError(http.StatusForbidden, detail))
}
