package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/climate-insights/internal/cache"
	"github.com/kjstillabower/climate-insights/internal/models"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyToken(ctx context.Context, token string) (models.Principal, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.Principal), args.Error(1)
}

// brokenCache fails every call.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (models.Principal, bool, error) {
	return models.Principal{}, false, errors.New("cache unavailable")
}

func (brokenCache) Set(context.Context, string, models.Principal, time.Duration) error {
	return errors.New("cache unavailable")
}

func (brokenCache) Close() error { return nil }

var ada = models.Principal{ID: "4b1c", Email: "ada@example.com", Role: "authenticated"}

func bearer(v string) http.Header {
	h := http.Header{}
	h.Set("Authorization", v)
	return h
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"standard", "Bearer abc.def", "abc.def", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"padded", "  Bearer   abc  ", "abc", true},
		{"absent", "", "", false},
		{"no token", "Bearer", "", false},
		{"blank token", "Bearer    ", "", false},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", false},
		{"token only", "abc.def", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := BearerToken(bearer(tc.header))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestGate_MissingHeaderNeverCallsProvider verifies that absent or malformed headers are
// rejected locally.
func TestGate_MissingHeaderNeverCallsProvider(t *testing.T) {
	v := new(mockVerifier)
	g := NewGate(v, cache.NewInMemoryCache(), "in_memory", time.Minute, nil)

	for _, h := range []http.Header{{}, bearer("Token abc"), bearer("Bearer ")} {
		_, ok := g.Authenticate(context.Background(), h)
		assert.False(t, ok)
	}
	v.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}

// TestGate_CachesVerifiedPrincipal verifies that a second request with the same token is
// served from the cache.
func TestGate_CachesVerifiedPrincipal(t *testing.T) {
	v := new(mockVerifier)
	v.On("VerifyToken", mock.Anything, "tok").Return(ada, nil).Once()
	c := cache.NewInMemoryCache()
	g := NewGate(v, c, "in_memory", time.Minute, nil)

	p1, ok1 := g.Authenticate(context.Background(), bearer("Bearer tok"))
	p2, ok2 := g.Authenticate(context.Background(), bearer("Bearer tok"))

	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, ada, p1)
	assert.Equal(t, ada, p2)
	v.AssertNumberOfCalls(t, "VerifyToken", 1)

	_, hit, _ := c.Get(context.Background(), cacheKey("tok"))
	assert.True(t, hit, "cache key is the token digest")
	_, hit, _ = c.Get(context.Background(), "tok")
	assert.False(t, hit, "raw token must not be a cache key")
}

// TestGate_ZeroTTLAlwaysVerifies verifies that caching is disabled with ttl 0.
func TestGate_ZeroTTLAlwaysVerifies(t *testing.T) {
	v := new(mockVerifier)
	v.On("VerifyToken", mock.Anything, "tok").Return(ada, nil)
	g := NewGate(v, cache.NewInMemoryCache(), "in_memory", 0, nil)

	g.Authenticate(context.Background(), bearer("Bearer tok"))
	g.Authenticate(context.Background(), bearer("Bearer tok"))

	v.AssertNumberOfCalls(t, "VerifyToken", 2)
}

// TestGate_ProviderErrorsAreUnauthenticated verifies that every provider failure yields
// (zero, false) and nothing is cached.
func TestGate_ProviderErrorsAreUnauthenticated(t *testing.T) {
	for _, provErr := range []error{ErrInvalidToken, ErrUpstreamFailure, ErrCircuitOpen, context.DeadlineExceeded} {
		v := new(mockVerifier)
		v.On("VerifyToken", mock.Anything, "tok").Return(models.Principal{}, provErr)
		c := cache.NewInMemoryCache()
		g := NewGate(v, c, "in_memory", time.Minute, nil)

		p, ok := g.Authenticate(context.Background(), bearer("Bearer tok"))

		assert.False(t, ok, "error %v", provErr)
		assert.Equal(t, models.Principal{}, p)
		assert.Equal(t, 0, c.Len())
	}
}

// TestGate_CacheErrorsAreIgnored verifies that a failing cache degrades to provider calls
// and is logged through the request-scoped logger.
func TestGate_CacheErrorsAreIgnored(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := context.WithValue(context.Background(), "logger", zap.New(core))
	v := new(mockVerifier)
	v.On("VerifyToken", mock.Anything, "tok").Return(ada, nil)
	g := NewGate(v, brokenCache{}, "memcached", time.Minute, nil)

	p, ok := g.Authenticate(ctx, bearer("Bearer tok"))

	require.True(t, ok)
	assert.Equal(t, ada, p)
	assert.Equal(t, 1, logs.FilterMessage("principal cache get failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("principal cache set failed").Len())
}

// TestGate_LogsRejectionReason verifies that the categorized reason is logged at DEBUG.
func TestGate_LogsRejectionReason(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	v := new(mockVerifier)
	v.On("VerifyToken", mock.Anything, "tok").Return(models.Principal{}, ErrRateLimited)
	g := NewGate(v, nil, "", time.Minute, zap.New(core))

	_, ok := g.Authenticate(context.Background(), bearer("Bearer tok"))

	require.False(t, ok)
	entries := logs.FilterMessage("authentication failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "rate_limited", entries[0].ContextMap()["reason"])
}
