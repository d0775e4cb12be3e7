package salesforce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Salesforce refresh grants carry no expires_in, so tokens are held for
// a fixed window shorter than the default 2h session timeout.
const tokenValidity = 115 * time.Minute

// refreshMargin is how close to expiry a token may get before Get
// refreshes it eagerly.
const refreshMargin = 30 * time.Second

// Token is one issued access token and the instance it belongs to.
type Token struct {
	AccessToken string
	InstanceURL string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// refresher is the slice of Client the manager needs.
type refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPayload, error)
}

// TokenManager holds the single process-wide token slot. Get returns the
// cached token while it stays at least refreshMargin from expiry and
// otherwise performs exactly one refresh attempt; a failed attempt fails
// that request and leaves the slot empty. Concurrent refreshes are
// serialized by the mutex, so one request's refresh satisfies the others.
type TokenManager struct {
	mu           sync.RWMutex
	token        *Token
	client       refresher
	refreshToken string
	log          zerolog.Logger
	now          func() time.Time
}

// NewTokenManager creates a token manager over the given client.
func NewTokenManager(client refresher, refreshToken string, log zerolog.Logger) *TokenManager {
	return &TokenManager{
		client:       client,
		refreshToken: refreshToken,
		log:          log.With().Str("component", "token_manager").Logger(),
		now:          time.Now,
	}
}

// Get returns a valid token, refreshing first when the slot is empty or
// the cached token is within refreshMargin of expiry.
func (m *TokenManager) Get(ctx context.Context) (*Token, error) {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if token != nil && m.now().Add(refreshMargin).Before(token.ExpiresAt) {
		return token, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if m.token != nil && m.now().Add(refreshMargin).Before(m.token.ExpiresAt) {
		return m.token, nil
	}

	payload, err := m.client.RefreshAccessToken(ctx, m.refreshToken)
	if err != nil {
		m.token = nil
		return nil, fmt.Errorf("failed to refresh salesforce token: %w", err)
	}

	issued := m.now()
	m.token = &Token{
		AccessToken: payload.AccessToken,
		InstanceURL: payload.InstanceURL,
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(tokenValidity),
	}
	m.log.Info().Str("instance_url", m.token.InstanceURL).Time("expires_at", m.token.ExpiresAt).Msg("Refreshed access token")
	return m.token, nil
}

// Invalidate clears the slot so the next Get refreshes. Called when
// Salesforce rejects a token before its expected expiry.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	m.log.Debug().Msg("Invalidated cached token")
}

// Current returns the cached token without refreshing, for status
// reporting.
func (m *TokenManager) Current() *Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}
