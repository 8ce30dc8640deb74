package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/observability"
)

// Verifier resolves a bearer token to the principal it was issued to.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (models.Principal, error)
}

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrRateLimited     = errors.New("identity provider rate limited")
	ErrUpstreamFailure = errors.New("identity provider failure")
	ErrCircuitOpen     = errors.New("identity provider circuit open")
	ErrMalformedReply  = errors.New("malformed identity provider response")
)

// userPath is the identity provider endpoint that returns the token's user.
const userPath = "/auth/v1/user"

// maxReplyBytes bounds how much of the provider's response is read.
const maxReplyBytes = 1 << 20

// BreakerSettings configures the circuit breaker around the identity provider.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	// Zero disables tripping.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before allowing a trial request.
	Timeout time.Duration
}

// SupabaseClient verifies tokens against a Supabase-compatible GET /auth/v1/user.
// No retries: a failed verification is reported to the caller as-is.
type SupabaseClient struct {
	userURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewSupabaseClient(baseURL, apiKey string, timeout time.Duration, bs BreakerSettings) (*SupabaseClient, error) {
	if apiKey == "" {
		return nil, errors.New("identity API key is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid identity URL %q", baseURL)
	}

	threshold := bs.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "identity_provider",
		MaxRequests: 1,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			observability.BreakerState.Set(float64(to))
		},
	})
	observability.BreakerState.Set(float64(gobreaker.StateClosed))

	return &SupabaseClient{
		userURL: u.String() + userPath,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}, nil
}

// breakerSuccess treats a rejected token or a caller hanging up as a healthy provider.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, ErrInvalidToken) || errors.Is(err, context.Canceled)
}

// BreakerState reports the breaker's current state.
func (c *SupabaseClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c *SupabaseClient) VerifyToken(ctx context.Context, token string) (models.Principal, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchUser(ctx, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return models.Principal{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return models.Principal{}, err
	}
	return res.(models.Principal), nil
}

func (c *SupabaseClient) fetchUser(ctx context.Context, token string) (models.Principal, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return models.Principal{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.IdentityProviderDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.Principal{}, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()
	observability.IdentityProviderDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if err := statusError(resp.StatusCode); err != nil {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
		return models.Principal{}, err
	}

	var body userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&body); err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if body.ID == "" {
		return models.Principal{}, fmt.Errorf("%w: response has no user id", ErrInvalidToken)
	}
	return models.Principal{ID: body.ID, Email: body.Email, Role: body.Role}, nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	default:
		// 401, 403 and any other client error mean the token was refused
		return fmt.Errorf("%w: HTTP %d", ErrInvalidToken, code)
	}
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}
