package http

import (
	"context"
	"net/http"

	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/validation"
)

var provinceResource = resource{
	name:   "Province",
	label:  "province",
	plural: "provinces",
	unique: "Province code already exists",
	inUse:  "Province has weather data",
}

func (h *Handler) provinceExists(ctx context.Context, id int64) error {
	_, err := h.store.GetProvince(ctx, id)
	return err
}

// ListProvinces handles GET /provinces.
func (h *Handler) ListProvinces() http.HandlerFunc {
	return serve(h, endpoint[models.Page]{
		resource: provinceResource,
		action:   "fetch",
		list:     true,
		bind:     h.page,
		run: func(ctx context.Context, _ int64, page models.Page) (interface{}, error) {
			rows, err := h.store.ListProvinces(ctx, page)
			return nonNil(rows), err
		},
	})
}

// GetProvince handles GET /provinces/{id}.
func (h *Handler) GetProvince() http.HandlerFunc {
	return serve(h, endpoint[struct{}]{
		resource: provinceResource,
		action:   "fetch",
		withID:   true,
		run: func(ctx context.Context, id int64, _ struct{}) (interface{}, error) {
			return h.store.GetProvince(ctx, id)
		},
	})
}

// CreateProvince handles POST /provinces.
func (h *Handler) CreateProvince() http.HandlerFunc {
	return serve(h, endpoint[models.ProvinceInput]{
		resource: provinceResource,
		action:   "create",
		mutates:  true,
		status:   http.StatusCreated,
		bind:     body(validation.ProvinceCreate),
		run: func(ctx context.Context, _ int64, in models.ProvinceInput) (interface{}, error) {
			return h.store.CreateProvince(ctx, in)
		},
	})
}

// UpdateProvince handles PATCH /provinces/{id}.
func (h *Handler) UpdateProvince() http.HandlerFunc {
	return serve(h, endpoint[models.ProvincePatch]{
		resource: provinceResource,
		action:   "update",
		withID:   true,
		mutates:  true,
		bind:     body(validation.ProvincePatch),
		exists:   h.provinceExists,
		run: func(ctx context.Context, id int64, patch models.ProvincePatch) (interface{}, error) {
			return h.store.UpdateProvince(ctx, id, patch)
		},
	})
}

// DeleteProvince handles DELETE /provinces/{id}. A province with observations is a conflict.
func (h *Handler) DeleteProvince() http.HandlerFunc {
	return serve(h, endpoint[struct{}]{
		resource: provinceResource,
		action:   "delete",
		withID:   true,
		mutates:  true,
		exists:   h.provinceExists,
		run: func(ctx context.Context, id int64, _ struct{}) (interface{}, error) {
			return deleted(h.store.DeleteProvince(ctx, id))
		},
	})
}

type deleteResponse struct {
	Success bool `json:"success"`
}

func deleted(err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	return deleteResponse{Success: true}, nil
}
