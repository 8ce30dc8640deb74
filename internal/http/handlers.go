package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-insights/internal/auth"
	"github.com/kjstillabower/climate-insights/internal/export"
	"github.com/kjstillabower/climate-insights/internal/lifecycle"
	"github.com/kjstillabower/climate-insights/internal/observability"
	"github.com/kjstillabower/climate-insights/internal/store"
	"github.com/kjstillabower/climate-insights/internal/traffic"
	"github.com/kjstillabower/climate-insights/internal/validation"
)

const defaultMaxPageSize = 100

// HealthConfig holds the inputs the health handler evaluates.
type HealthConfig struct {
	Lifecycle        *lifecycle.State
	Tracker          *traffic.Tracker
	DegradedErrorPct int
	// CachePing, when set, is called to check principal cache reachability.
	CachePing func(ctx context.Context) error
	// IdentityOpen, when set, reports whether the identity provider breaker is open.
	IdentityOpen func() bool
}

// Options tunes request handling.
type Options struct {
	// DebugErrors adds the underlying error as "detail" to 500 responses.
	DebugErrors bool
	// MaxPageSize is the default and maximum list limit.
	MaxPageSize int
	// MaxExportRows caps the observations in one export. Zero or anything above
	// export.MaxRows means export.MaxRows.
	MaxExportRows int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store        store.Store
	authn        auth.Authenticator
	healthConfig *HealthConfig
	logger       *zap.Logger
	debugErrors  bool
	maxPageSize  int
	maxExport    int

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	st store.Store,
	authn auth.Authenticator,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	opts Options,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = defaultMaxPageSize
	}
	if opts.MaxExportRows <= 0 || opts.MaxExportRows > export.MaxRows {
		opts.MaxExportRows = export.MaxRows
	}
	return &Handler{
		store:        st,
		authn:        authn,
		healthConfig: healthConfig,
		logger:       logger,
		debugErrors:  opts.DebugErrors,
		maxPageSize:  opts.MaxPageSize,
		maxExport:    opts.MaxExportRows,
	}
}

// tracker returns the traffic tracker, or nil when health tracking is not configured.
func (h *Handler) tracker() *traffic.Tracker {
	if h.healthConfig == nil {
		return nil
	}
	return h.healthConfig.Tracker
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeErr := h.store.Ping(ctx)
	result := h.computeHealthStatus(storeErr)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"store": checkStatus(storeErr == nil)}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if hc := h.healthConfig; hc != nil {
		if hc.CachePing != nil {
			checks["cache"] = checkStatus(hc.CachePing(ctx) == nil)
		}
		if hc.IdentityOpen != nil {
			checks["identityProvider"] = checkStatus(!hc.IdentityOpen())
		}
		if hc.Lifecycle != nil {
			resp["uptimeSeconds"] = int64(hc.Lifecycle.Uptime().Seconds())
		}
	}
	writeJSON(w, result.statusCode, resp)
}

func checkStatus(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > store unreachable > error rate breach > healthy.
func (h *Handler) computeHealthStatus(storeErr error) healthResult {
	hc := h.healthConfig
	if hc != nil && hc.Lifecycle != nil && hc.Lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if storeErr != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
	}
	if hc != nil && hc.Tracker != nil && hc.Tracker.Degraded(hc.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string                `json:"error"`
	Code      string                `json:"code"`
	RequestID string                `json:"requestId"`
	Details   validation.Violations `json:"details,omitempty"`
	Detail    string                `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response with code, message and the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeErrorBody(w, r, status, errorBody{Error: message, Code: code})
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	body.RequestID = correlationID(r.Context())
	writeJSON(w, status, body)
}

func correlationID(ctx context.Context) string {
	if v, ok := ctx.Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

// requestLogger returns the request-scoped logger set by CorrelationIDMiddleware.
func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return h.logger
}
