package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/climate-insights/internal/lifecycle"
	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/store"
	"github.com/kjstillabower/climate-insights/internal/traffic"
)

const validToken = "valid-token"

// stubAuth accepts validToken and counts every call.
type stubAuth struct {
	calls atomic.Int32
}

func (s *stubAuth) Authenticate(_ context.Context, header http.Header) (models.Principal, bool) {
	s.calls.Add(1)
	if header.Get("Authorization") == "Bearer "+validToken {
		return models.Principal{ID: "user-1", Email: "editor@example.com", Role: "authenticated"}, true
	}
	return models.Principal{}, false
}

type testEnv struct {
	store   store.Store
	auth    *stubAuth
	clock   *clockwork.FakeClock
	tracker *traffic.Tracker
	state   *lifecycle.State
	handler *Handler
	router  http.Handler
}

type envOption func(*testEnv, *Options, *RouterConfig)

func withStore(st store.Store) envOption {
	return func(e *testEnv, _ *Options, _ *RouterConfig) { e.store = st }
}

func withDebugErrors() envOption {
	return func(_ *testEnv, o *Options, _ *RouterConfig) { o.DebugErrors = true }
}

func withMaxPageSize(n int) envOption {
	return func(_ *testEnv, o *Options, _ *RouterConfig) { o.MaxPageSize = n }
}

func withMaxExportRows(n int) envOption {
	return func(_ *testEnv, o *Options, _ *RouterConfig) { o.MaxExportRows = n }
}

func withBasePath(p string) envOption {
	return func(_ *testEnv, _ *Options, rc *RouterConfig) { rc.BasePath = p }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClock()
	env := &testEnv{
		store:   store.NewMemory(),
		auth:    &stubAuth{},
		clock:   clock,
		tracker: traffic.New(clock, time.Minute),
		state:   lifecycle.New(clock),
	}
	options := Options{}
	routerCfg := RouterConfig{RequestTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(env, &options, &routerCfg)
	}
	env.handler = NewHandler(env.store, env.auth, &HealthConfig{
		Lifecycle:        env.state,
		Tracker:          env.tracker,
		DegradedErrorPct: 5,
	}, zap.NewNop(), options)
	env.router = NewRouter(env.handler, routerCfg)
	return env
}

// do sends a request through the full router. An empty token sends no Authorization header.
func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func (e *testEnv) seedProvince(t *testing.T, name, code string) models.Province {
	t.Helper()
	p, err := e.store.CreateProvince(context.Background(), models.ProvinceInput{Name: name, Code: code})
	require.NoError(t, err)
	return p
}

func (e *testEnv) seedWeather(t *testing.T, provinceID int64, date time.Time, temp float64) models.WeatherData {
	t.Helper()
	wd, err := e.store.CreateWeather(context.Background(), models.WeatherInput{
		ProvinceID: provinceID, Date: date, Temperature: temp,
	})
	require.NoError(t, err)
	return wd
}
