package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kjstillabower/climate-insights/internal/export"
	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/store"
	"github.com/kjstillabower/climate-insights/internal/validation"
)

var weatherResource = resource{
	name:   "Weather data",
	label:  "weather data",
	plural: "weather data",
}

func (h *Handler) weatherExists(ctx context.Context, id int64) error {
	_, err := h.store.GetWeather(ctx, id)
	return err
}

// referencedProvince turns a missing province into a provinceId violation.
func (h *Handler) referencedProvince(ctx context.Context, id int64) error {
	_, err := h.store.GetProvince(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return validation.Field("provinceId", "province does not exist")
	}
	return err
}

func (h *Handler) weatherFilter(r *http.Request) (models.WeatherFilter, error) {
	page, err := h.page(r)
	if err != nil {
		return models.WeatherFilter{}, err
	}
	provinceID, err := provinceFilter(r.URL.Query())
	if err != nil {
		return models.WeatherFilter{}, err
	}
	return models.WeatherFilter{ProvinceID: provinceID, Limit: page.Limit, Offset: page.Offset}, nil
}

// ListWeather handles GET /weatherdata?provinceId=&limit=&offset=.
func (h *Handler) ListWeather() http.HandlerFunc {
	return serve(h, endpoint[models.WeatherFilter]{
		resource: weatherResource,
		action:   "fetch",
		list:     true,
		bind:     h.weatherFilter,
		run: func(ctx context.Context, _ int64, filter models.WeatherFilter) (interface{}, error) {
			rows, err := h.store.ListWeather(ctx, filter)
			return nonNil(rows), err
		},
	})
}

// GetWeather handles GET /weatherdata/{id}.
func (h *Handler) GetWeather() http.HandlerFunc {
	return serve(h, endpoint[struct{}]{
		resource: weatherResource,
		action:   "fetch",
		withID:   true,
		run: func(ctx context.Context, id int64, _ struct{}) (interface{}, error) {
			return h.store.GetWeather(ctx, id)
		},
	})
}

// CreateWeather handles POST /weatherdata.
func (h *Handler) CreateWeather() http.HandlerFunc {
	return serve(h, endpoint[models.WeatherInput]{
		resource: weatherResource,
		action:   "create",
		mutates:  true,
		status:   http.StatusCreated,
		bind:     body(validation.WeatherCreate),
		run: func(ctx context.Context, _ int64, in models.WeatherInput) (interface{}, error) {
			if err := h.referencedProvince(ctx, in.ProvinceID); err != nil {
				return nil, err
			}
			return h.store.CreateWeather(ctx, in)
		},
	})
}

// UpdateWeather handles PATCH /weatherdata/{id}.
func (h *Handler) UpdateWeather() http.HandlerFunc {
	return serve(h, endpoint[models.WeatherPatch]{
		resource: weatherResource,
		action:   "update",
		withID:   true,
		mutates:  true,
		bind:     body(validation.WeatherPatch),
		exists:   h.weatherExists,
		run: func(ctx context.Context, id int64, patch models.WeatherPatch) (interface{}, error) {
			if patch.ProvinceID != nil {
				if err := h.referencedProvince(ctx, *patch.ProvinceID); err != nil {
					return nil, err
				}
			}
			return h.store.UpdateWeather(ctx, id, patch)
		},
	})
}

// DeleteWeather handles DELETE /weatherdata/{id}.
func (h *Handler) DeleteWeather() http.HandlerFunc {
	return serve(h, endpoint[struct{}]{
		resource: weatherResource,
		action:   "delete",
		withID:   true,
		mutates:  true,
		exists:   h.weatherExists,
		run: func(ctx context.Context, id int64, _ struct{}) (interface{}, error) {
			return deleted(h.store.DeleteWeather(ctx, id))
		},
	})
}

// SummarizeWeather handles GET /weatherdata/summary.
func (h *Handler) SummarizeWeather() http.HandlerFunc {
	return serve(h, endpoint[struct{}]{
		resource: weatherResource,
		action:   "summarize",
		run: func(ctx context.Context, _ int64, _ struct{}) (interface{}, error) {
			rows, err := h.store.SummarizeWeather(ctx)
			return nonNil(rows), err
		},
	})
}

// ExportWeather handles GET /weatherdata/export?provinceId=. It writes every matching
// observation, not a page, plus the per-province summary. More than maxExport matching
// rows is a 400.
func (h *Handler) ExportWeather(w http.ResponseWriter, r *http.Request) {
	meta := endpointMeta{resource: weatherResource, action: "export"}
	provinceID, err := provinceFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, meta, err)
		return
	}
	ctx := r.Context()
	rows, err := h.store.ListWeather(ctx, models.WeatherFilter{ProvinceID: provinceID, Limit: h.maxExport + 1})
	if err != nil {
		h.fail(w, r, meta, err)
		return
	}
	if len(rows) > h.maxExport {
		writeError(w, r, http.StatusBadRequest, "EXPORT_TOO_LARGE",
			fmt.Sprintf("Export is limited to %d rows; filter by provinceId", h.maxExport))
		return
	}
	summary, err := h.store.SummarizeWeather(ctx)
	if err != nil {
		h.fail(w, r, meta, err)
		return
	}
	if provinceID != nil {
		summary = onlyProvince(summary, *provinceID)
	}

	now := time.Now().UTC()
	data, err := export.Workbook(rows, summary, now)
	if err != nil {
		h.fail(w, r, meta, err)
		return
	}
	filename := "weather-data-" + now.Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func onlyProvince(summary []models.ProvinceSummary, id int64) []models.ProvinceSummary {
	out := summary[:0:0]
	for _, s := range summary {
		if s.ProvinceID == id {
			out = append(out, s)
		}
	}
	return out
}
