package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// TokenChecker asks the backend whether it accepts a bearer token
type TokenChecker interface {
	CheckToken(ctx context.Context, token string) (bool, error)
}

// maxAcceptedTokens bounds the accepted set before expired entries are swept
const maxAcceptedTokens = 4096

// Verifier confirms bearer tokens with the backend and remembers accepted
// ones for ttl. Rejections are never cached.
type Verifier struct {
	checker TokenChecker
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	accepted map[string]time.Time
}

// NewVerifier creates a verifier. A non-positive ttl checks every request.
func NewVerifier(checker TokenChecker, ttl time.Duration) *Verifier {
	return &Verifier{
		checker:  checker,
		ttl:      ttl,
		now:      time.Now,
		accepted: make(map[string]time.Time),
	}
}

// SetClock replaces the time source
func (v *Verifier) SetClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

// Verify returns nil when the backend accepts token, ErrInvalidToken when it
// refuses it, and any other error when the backend could not answer.
func (v *Verifier) Verify(ctx context.Context, token string) error {
	key := tokenKey(token)

	v.mu.Lock()
	now := v.now()
	if until, ok := v.accepted[key]; ok && now.Before(until) {
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()

	ok, err := v.checker.CheckToken(ctx, token)
	if err != nil {
		return fmt.Errorf("token check: %w", err)
	}
	if !ok {
		v.mu.Lock()
		delete(v.accepted, key)
		v.mu.Unlock()
		return ErrInvalidToken
	}
	if v.ttl <= 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.accepted) >= maxAcceptedTokens {
		for k, until := range v.accepted {
			if !now.Before(until) {
				delete(v.accepted, k)
			}
		}
	}
	v.accepted[key] = now.Add(v.ttl)
	return nil
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
