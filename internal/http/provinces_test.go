package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/climate-insights/internal/models"
)

func TestProvinces_CreateUppercasesCode(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/provinces", `{"name":"Ontario","code":"on"}`, validToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeJSON[models.Province](t, w)
	assert.Equal(t, models.Province{ID: 1, Name: "Ontario", Code: "ON"}, created)

	w = env.do(t, http.MethodGet, "/provinces/1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decodeJSON[models.Province](t, w))
}

func TestProvinces_CreateTrimsInput(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/provinces", `{"name":"  Yukon ","code":" yt "}`, validToken)
	require.Equal(t, http.StatusCreated, w.Code)
	got := decodeJSON[models.Province](t, w)
	assert.Equal(t, "Yukon", got.Name)
	assert.Equal(t, "YT", got.Code)
}

func TestProvinces_DuplicateCodeIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedProvince(t, "Ontario", "ON")

	w := env.do(t, http.MethodPost, "/provinces", `{"name":"Other Ontario","code":"on"}`, validToken)
	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeJSON[errorBody](t, w)
	assert.Equal(t, "CONFLICT", body.Code)
	assert.Equal(t, "Province code already exists", body.Error)

	rows, err := env.store.ListProvinces(context.Background(), models.Page{})
	require.NoError(t, err)
	assert.Len(t, rows, 1, "no second row")
}

func TestProvinces_CreateRequiresAuth(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"no header", ""},
		{"unknown token", "expired-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, http.MethodPost, "/provinces", `{"name":"Ontario","code":"ON"}`, tt.token)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			body := decodeJSON[errorBody](t, w)
			assert.Equal(t, "UNAUTHENTICATED", body.Code)

			rows, err := env.store.ListProvinces(context.Background(), models.Page{})
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestProvinces_ValidationRunsBeforeAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/provinces", `{"name":"O","code":"ONT"}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeJSON[errorBody](t, w)
	assert.Equal(t, "VALIDATION_FAILED", body.Code)
	assert.True(t, body.Details.Has("name"))
	assert.True(t, body.Details.Has("code"))
	assert.Zero(t, env.auth.calls.Load(), "authenticator must not run for invalid payloads")
}

func TestProvinces_UnauthenticatedPatchLeavesRowUnchanged(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProvince(t, "Ontario", "ON")

	w := env.do(t, http.MethodPatch, "/provinces/1", `{"name":"Renamed"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	got, err := env.store.GetProvince(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestProvinces_Patch(t *testing.T) {
	env := newTestEnv(t)
	env.seedProvince(t, "Ontario", "ON")
	env.seedProvince(t, "Quebec", "QC")

	w := env.do(t, http.MethodPatch, "/provinces/1", `{"code":"nb"}`, validToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Province{ID: 1, Name: "Ontario", Code: "NB"}, decodeJSON[models.Province](t, w))

	w = env.do(t, http.MethodPatch, "/provinces/1", `{}`, validToken)
	require.Equal(t, http.StatusOK, w.Code, "empty patch returns the current row")
	assert.Equal(t, "NB", decodeJSON[models.Province](t, w).Code)

	w = env.do(t, http.MethodPatch, "/provinces/1", `{"code":"qc"}`, validToken)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Province code already exists", decodeJSON[errorBody](t, w).Error)
}

func TestProvinces_NotFound(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		body   string
		token  string
	}{
		{http.MethodGet, "", ""},
		{http.MethodPatch, `{"name":"Nowhere"}`, validToken},
		{http.MethodDelete, "", validToken},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := env.do(t, tt.method, "/provinces/999", tt.body, tt.token)
			require.Equal(t, http.StatusNotFound, w.Code)
			body := decodeJSON[errorBody](t, w)
			assert.Equal(t, "NOT_FOUND", body.Code)
			assert.Equal(t, "Province not found", body.Error)
		})
	}
}

func TestProvinces_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"abc", "0", "-3", "1.5", "99999999999999999999"} {
		t.Run(id, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/provinces/"+id, "", "")
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_ID", decodeJSON[errorBody](t, w).Code)
		})
	}
}

func TestProvinces_InvalidIDCheckedBeforeAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/provinces/abc", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.auth.calls.Load())
}

func TestProvinces_DeleteWithWeatherDataIsConflict(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProvince(t, "Ontario", "ON")
	wd := env.seedWeather(t, p.ID, time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), 25)

	w := env.do(t, http.MethodDelete, "/provinces/1", "", validToken)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Province has weather data", decodeJSON[errorBody](t, w).Error)

	_, err := env.store.GetProvince(context.Background(), p.ID)
	assert.NoError(t, err)
	_, err = env.store.GetWeather(context.Background(), wd.ID)
	assert.NoError(t, err)
}

func TestProvinces_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.seedProvince(t, "Ontario", "ON")

	w := env.do(t, http.MethodDelete, "/provinces/1", "", validToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/provinces/1", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProvinces_ListOrderedByName(t *testing.T) {
	env := newTestEnv(t)
	env.seedProvince(t, "Quebec", "QC")
	env.seedProvince(t, "Alberta", "AB")
	env.seedProvince(t, "Ontario", "ON")

	w := env.do(t, http.MethodGet, "/provinces", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	rows := decodeJSON[[]models.Province](t, w)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"AB", "ON", "QC"}, []string{rows[0].Code, rows[1].Code, rows[2].Code})
}

func TestProvinces_ListEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/provinces", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestProvinces_ListPagination(t *testing.T) {
	env := newTestEnv(t, withMaxPageSize(2))
	for _, p := range []struct{ name, code string }{
		{"Alberta", "AB"}, {"British Columbia", "BC"}, {"Manitoba", "MB"}, {"Ontario", "ON"},
	} {
		env.seedProvince(t, p.name, p.code)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"AB", "BC"}},
		{"?limit=10", []string{"AB", "BC"}},
		{"?limit=1&offset=2", []string{"MB"}},
		{"?offset=3", []string{"ON"}},
		{"?offset=10", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/provinces"+tt.query, "", "")
			require.Equal(t, http.StatusOK, w.Code)
			rows := decodeJSON[[]models.Province](t, w)
			codes := make([]string, 0, len(rows))
			for _, r := range rows {
				codes = append(codes, r.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestProvinces_ListInvalidQuery(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"?limit=-1", "?limit=ten", "?offset=-5", "?offset=1.5"} {
		t.Run(q, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/provinces"+q, "", "")
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_QUERY", decodeJSON[errorBody](t, w).Code)
		})
	}
}
