package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/climate-insights/internal/observability"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// BasePath prefixes every API route. /health and /metrics stay at the root.
	BasePath       string
	RequestTimeout time.Duration
	// Limiter throttles mutating routes. nil disables rate limiting.
	Limiter *rate.Limiter
}

// NewRouter mounts the API, /health and /metrics with the standard middleware chain.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(h.logger))
	router.Use(MetricsMiddleware(h.tracker()))
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	var api *mux.Router
	if cfg.BasePath != "" {
		api = router.PathPrefix(cfg.BasePath).Subrouter()
	} else {
		api = router.NewRoute().Subrouter()
	}
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))

	limited := RateLimitMiddleware(cfg.Limiter, h.tracker())
	mutation := func(f http.HandlerFunc) http.Handler { return limited(f) }

	api.Handle("/provinces", h.ListProvinces()).Methods(http.MethodGet)
	api.Handle("/provinces", mutation(h.CreateProvince())).Methods(http.MethodPost)
	api.Handle("/provinces/{id}", h.GetProvince()).Methods(http.MethodGet)
	api.Handle("/provinces/{id}", mutation(h.UpdateProvince())).Methods(http.MethodPatch)
	api.Handle("/provinces/{id}", mutation(h.DeleteProvince())).Methods(http.MethodDelete)

	api.Handle("/users", h.ListUsers()).Methods(http.MethodGet)
	api.Handle("/users", mutation(h.CreateUser())).Methods(http.MethodPost)
	api.Handle("/users/{id}", h.GetUser()).Methods(http.MethodGet)
	api.Handle("/users/{id}", mutation(h.UpdateUser())).Methods(http.MethodPatch)
	api.Handle("/users/{id}", mutation(h.DeleteUser())).Methods(http.MethodDelete)

	api.Handle("/weatherdata", h.ListWeather()).Methods(http.MethodGet)
	api.Handle("/weatherdata", mutation(h.CreateWeather())).Methods(http.MethodPost)
	api.Handle("/weatherdata/summary", h.SummarizeWeather()).Methods(http.MethodGet)
	api.HandleFunc("/weatherdata/export", h.ExportWeather).Methods(http.MethodGet)
	api.Handle("/weatherdata/{id}", h.GetWeather()).Methods(http.MethodGet)
	api.Handle("/weatherdata/{id}", mutation(h.UpdateWeather())).Methods(http.MethodPatch)
	api.Handle("/weatherdata/{id}", mutation(h.DeleteWeather())).Methods(http.MethodDelete)

	api.HandleFunc("/session", h.GetSession).Methods(http.MethodGet)
	return router
}
