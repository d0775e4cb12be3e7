package salesforce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRefresher counts refresh attempts and serves a canned payload.
type fakeRefresher struct {
	calls   int
	payload *TokenPayload
	err     error
}

func (f *fakeRefresher) RefreshAccessToken(_ context.Context, _ string) (*TokenPayload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func validPayload() *TokenPayload {
	return &TokenPayload{
		AccessToken: "00D-access",
		InstanceURL: "https://example.my.salesforce.com",
	}
}

func newTestManager(refresher *fakeRefresher, now func() time.Time) *TokenManager {
	m := NewTokenManager(refresher, "refresh-token", zerolog.Nop())
	m.now = now
	return m
}

func TestGetRefreshesOnFirstCall(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := newTestManager(&fakeRefresher{payload: validPayload()}, func() time.Time { return now })

	token, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "00D-access", token.AccessToken)
	assert.Equal(t, "https://example.my.salesforce.com", token.InstanceURL)
	assert.Equal(t, now.Add(tokenValidity), token.ExpiresAt)
}

func TestGetReusesCachedToken(t *testing.T) {
	now := time.Unix(1700000000, 0)
	refresher := &fakeRefresher{payload: validPayload()}
	m := newTestManager(refresher, func() time.Time { return now })

	first, err := m.Get(context.Background())
	require.NoError(t, err)

	// Well inside the validity window: no second refresh.
	now = now.Add(time.Hour)
	second, err := m.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, refresher.calls)
}

func TestGetRefreshesInsideExpiryMargin(t *testing.T) {
	now := time.Unix(1700000000, 0)
	refresher := &fakeRefresher{payload: validPayload()}
	m := newTestManager(refresher, func() time.Time { return now })

	_, err := m.Get(context.Background())
	require.NoError(t, err)

	// 20s before expiry is within the 30s refresh margin.
	now = now.Add(tokenValidity - 20*time.Second)
	token, err := m.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, refresher.calls)
	assert.Equal(t, now.Add(tokenValidity), token.ExpiresAt)
}

func TestGetFailureIsSingleAttempt(t *testing.T) {
	now := time.Unix(1700000000, 0)
	refresher := &fakeRefresher{err: errors.New("invalid_grant: expired access/refresh token")}
	m := newTestManager(refresher, func() time.Time { return now })

	_, err := m.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, refresher.calls, "a failed refresh must not be retried within the request")
	assert.Nil(t, m.Current())

	// The next request attempts again.
	_, err = m.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, refresher.calls)
}

func TestInvalidateForcesRefresh(t *testing.T) {
	now := time.Unix(1700000000, 0)
	refresher := &fakeRefresher{payload: validPayload()}
	m := newTestManager(refresher, func() time.Time { return now })

	_, err := m.Get(context.Background())
	require.NoError(t, err)

	m.Invalidate()
	assert.Nil(t, m.Current())

	_, err = m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, refresher.calls)
}
