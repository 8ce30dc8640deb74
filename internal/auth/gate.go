package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-insights/internal/cache"
	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/observability"
)

// Authenticator decides whether a request carries a valid bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, header http.Header) (models.Principal, bool)
}

// Gate authenticates requests by bearer token, consulting the principal cache before
// the identity provider. It never returns an error: every failure is (zero, false).
type Gate struct {
	verifier  Verifier
	cache     cache.Cache
	cacheType string
	ttl       time.Duration
	logger    *zap.Logger
	coalescer *requestCoalescer
}

// NewGate builds a Gate. cacheType labels cache hit metrics; ttl 0 disables caching.
func NewGate(verifier Verifier, c cache.Cache, cacheType string, ttl time.Duration, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		verifier:  verifier,
		cache:     c,
		cacheType: cacheType,
		ttl:       ttl,
		logger:    logger,
		coalescer: newRequestCoalescer(),
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive; an empty token is rejected.
func BearerToken(header http.Header) (string, bool) {
	raw := strings.TrimSpace(header.Get("Authorization"))
	scheme, token, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// cacheKey digests the token so raw credentials never reach the cache backend.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (g *Gate) Authenticate(ctx context.Context, header http.Header) (models.Principal, bool) {
	logger := loggerFromContext(ctx, g.logger)

	token, ok := BearerToken(header)
	if !ok {
		g.reject(logger, errMissingToken)
		return models.Principal{}, false
	}

	key := cacheKey(token)
	if g.cache != nil && g.ttl > 0 {
		p, hit, err := g.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("principal cache get failed", zap.Error(err))
		} else if hit {
			observability.PrincipalCacheHitsTotal.WithLabelValues(g.cacheType).Inc()
			observability.AuthVerificationsTotal.WithLabelValues("cached").Inc()
			return p, true
		}
	}

	p, err := g.coalescer.GetOrDo(ctx, key, func(ctx context.Context) (models.Principal, error) {
		return g.verifier.VerifyToken(ctx, token)
	})
	if err != nil {
		g.reject(logger, err)
		return models.Principal{}, false
	}
	observability.AuthVerificationsTotal.WithLabelValues("ok").Inc()

	if g.cache != nil && g.ttl > 0 {
		if err := g.cache.Set(ctx, key, p, g.ttl); err != nil {
			logger.Warn("principal cache set failed", zap.Error(err))
		}
	}
	return p, true
}

func (g *Gate) reject(logger *zap.Logger, err error) {
	category := CategorizeError(err)
	observability.AuthVerificationsTotal.WithLabelValues(string(category)).Inc()
	logger.Debug("authentication failed", zap.String("reason", string(category)), zap.Error(err))
}

// loggerFromContext returns the request-scoped logger if present, otherwise fallback.
func loggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return fallback
}
