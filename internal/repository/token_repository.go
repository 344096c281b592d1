package repository

import (
	"sync"
	"time"
)

// DeviceToken is one registered push-notification target.
type DeviceToken struct {
	Token        string
	Platform     string // "android" or "ios"
	RegisteredAt time.Time
}

// TokenRepository tracks device tokens for trade and high-score alerts.
// Tokens live in memory only; clients re-register on app start.
type TokenRepository struct {
	tokens map[string]*DeviceToken
	mu     sync.RWMutex
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]*DeviceToken),
	}
}

// Register adds or refreshes a device token.
func (r *TokenRepository) Register(token, platform string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = &DeviceToken{
		Token:        token,
		Platform:     platform,
		RegisteredAt: time.Now(),
	}
}

// Unregister removes a device token, a no-op when absent.
func (r *TokenRepository) Unregister(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, token)
}

func (r *TokenRepository) AllTokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		tokens = append(tokens, token)
	}
	return tokens
}

func (r *TokenRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tokens)
}
